// Package registry persists which scripts were executed, with their checksum,
// timing and outcome, in a table of the default database.
package registry
