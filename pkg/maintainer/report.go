package maintainer

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
)

// WriteReport writes a human readable summary of plan to w.
//
// Example output:
//
//	The database must be recreated from scratch:
//	  ! script 01_create.sql has been changed since it was executed
//	Scripts to execute (2):
//	  + 01_create.sql (from scratch)
//	  + 02_users.sql (from scratch)
func WriteReport(w io.Writer, plan *Plan) error {
	var b strings.Builder

	executeMarker := color.New(color.FgGreen).Sprint("+")
	removeMarker := color.New(color.FgYellow).Sprint("-")
	conflictMarker := color.New(color.FgRed).Sprint("!")

	pending := plan.Pending()
	skipped := plan.Skipped()
	upToDate := len(plan.Entries) - len(pending) - len(skipped)

	if plan.UpToDate() {
		fmt.Fprintln(&b, color.GreenString("The database is up to date."))
		_, err := io.WriteString(w, b.String())
		return err
	}

	if plan.Initial {
		fmt.Fprintln(&b, "No scripts have been executed yet.")
	}

	if plan.FromScratch {
		fmt.Fprintln(&b, color.RedString("The database must be recreated from scratch:"))
		for _, reason := range plan.FromScratchReasons {
			fmt.Fprintf(&b, "  %s %s\n", conflictMarker, reason.Error())
		}
	}

	if len(pending) > 0 {
		fmt.Fprintf(&b, "Scripts to execute (%d):\n", len(pending))
		for _, e := range plan.Entries {
			if e.Action == Execute {
				fmt.Fprintf(&b, "  %s %s (%s)\n", executeMarker, e.Script.Name, e.Reason)
			}
		}
	}

	if len(plan.Deleted) > 0 {
		fmt.Fprintf(&b, "Records to remove (%d):\n", len(plan.Deleted))
		for _, rec := range plan.Deleted {
			fmt.Fprintf(&b, "  %s %s\n", removeMarker, rec.FileName)
		}
	}

	if len(skipped) > 0 {
		fmt.Fprintf(&b, "Scripts of disabled databases (%d):\n", len(skipped))
		for _, s := range skipped {
			fmt.Fprintf(&b, "  %s %s (@%s)\n", removeMarker, s.Name, s.TargetDatabase)
		}
	}

	if upToDate > 0 {
		fmt.Fprintf(&b, "Scripts up to date: %d\n", upToDate)
	}

	_, err := io.WriteString(w, b.String())
	return err
}
