package ui

import (
	"fmt"
	"io"
)

// Check is one line of the environment report
type Check struct {
	Name   string
	Detail string
	OK     bool
	// Skipped marks optional components that are turned off
	Skipped bool
}

// PrintTitle prints a section heading
func PrintTitle(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

// PrintSuccess prints a success message
func PrintSuccess(w io.Writer, msg string) {
	fmt.Fprintln(w, doneStyle.Render(msg))
}

// PrintError prints an error message
func PrintError(w io.Writer, msg string) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+msg))
}

// PrintChecks prints one status line per check and reports whether all passed
func PrintChecks(w io.Writer, checks []Check) bool {
	allOK := true
	for _, c := range checks {
		var status string
		switch {
		case c.Skipped:
			status = skipStyle.Render("skip")
		case c.OK:
			status = okStyle.Render("ok")
		default:
			status = failStyle.Render("FAIL")
			allOK = false
		}
		fmt.Fprintf(w, "  [%s] %-10s %s\n", status, c.Name, detailStyle.Render(c.Detail))
	}
	return allOK
}
