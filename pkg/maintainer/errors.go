package maintainer

import (
	"fmt"

	"github.com/pkg/errors"
)

type (
	// ConflictReason describes why a script conflicts with the registry.
	ConflictReason string

	// ScriptConflictError reports a script that cannot be reconciled with the
	// registry without recreating the database from scratch.
	ScriptConflictError struct {
		Script string
		Reason ConflictReason
	}

	// PendingErrorScriptError reports a script whose last execution failed.
	// No update runs until the error is marked as performed or reverted.
	PendingErrorScriptError struct {
		Script string
	}
)

const (
	// ConflictChanged is an executed indexed script whose content changed.
	ConflictChanged ConflictReason = "changed"

	// ConflictOutOfSequence is a new indexed script whose index is not higher
	// than the index of every executed script.
	ConflictOutOfSequence ConflictReason = "out-of-sequence"

	// ConflictDeleted is an executed script that is no longer available.
	ConflictDeleted ConflictReason = "deleted"
)

// ErrNoErrorScripts is returned when an error script is marked as performed or
// reverted but the registry holds none.
var ErrNoErrorScripts = errors.New("no failed scripts found in the registry")

func (e *ScriptConflictError) Error() string {
	switch e.Reason {
	case ConflictChanged:
		return fmt.Sprintf("script %s has been changed since it was executed", e.Script)
	case ConflictOutOfSequence:
		return fmt.Sprintf("script %s was added out of sequence", e.Script)
	case ConflictDeleted:
		return fmt.Sprintf("script %s was executed but has been deleted or renamed", e.Script)
	default:
		return fmt.Sprintf("script %s conflicts with the registry: %s", e.Script, e.Reason)
	}
}

func (e *PendingErrorScriptError) Error() string {
	return fmt.Sprintf(
		"script %s failed during a previous update; fix the database and mark the script as performed or reverted",
		e.Script,
	)
}
