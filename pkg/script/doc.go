// Package script models the versioned SQL scripts maintained by dbmaint.
//
// A script is identified by its path relative to the location it was loaded
// from. The path encodes everything the engine needs to sequence it:
//
//	01_release/02_#patch_add_email.sql
//	│          │  │      └── description
//	│          │  └── qualifier "patch"
//	│          └── file index 2
//	└── directory index 1
//
// Each path segment follows the same grammar: an optional leading index
// followed by underscore-separated parts, each part being a #qualifier, an
// @targetdatabase or a free word. Files with an index are indexed scripts,
// files without one are repeatable scripts, and any file below the top-level
// postprocessing directory is a postprocessing script.
//
// Content is read lazily through a Content function and fingerprinted with a
// cached "h1:" SHA-256 checksum.
package script
