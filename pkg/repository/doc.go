// Package repository scans script locations and builds the ordered,
// validated script catalog.
package repository
