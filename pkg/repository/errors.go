package repository

import "fmt"

// Reason classifies a RepositoryError.
type Reason string

const (
	// ReasonUnparsableName is reported for a script path that does not follow
	// the naming grammar.
	ReasonUnparsableName Reason = "unparsable name"
	// ReasonUnknownQualifier is reported for a qualifier outside the
	// registered vocabulary.
	ReasonUnknownQualifier Reason = "unknown qualifier"
	// ReasonUnknownDatabase is reported for a target database that is not
	// configured.
	ReasonUnknownDatabase Reason = "unknown target database"
	// ReasonDuplicateIndex is reported when two indexed scripts share an
	// index path.
	ReasonDuplicateIndex Reason = "duplicate index"
	// ReasonDuplicateScript is reported when two locations hold the same
	// script path.
	ReasonDuplicateScript Reason = "duplicate script"
)

// RepositoryError reports an inconsistency in the script catalog. It aborts
// the run before anything is executed.
type RepositoryError struct {
	// Script is the offending script path.
	Script string

	// Reason classifies the inconsistency.
	Reason Reason

	// Detail names the other party of the conflict, when there is one.
	Detail string

	// Err is the underlying error, when there is one.
	Err error
}

func (e *RepositoryError) Error() string {
	msg := fmt.Sprintf("script %s: %s", e.Script, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	return msg
}

func (e *RepositoryError) Unwrap() error {
	return e.Err
}
