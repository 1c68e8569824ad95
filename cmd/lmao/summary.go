package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	heading = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warning = color.New(color.FgYellow)
	failure = color.New(color.FgRed)
)

func printHeading(w io.Writer, format string, args ...any) {
	heading.Fprintf(w, format+"\n", args...)
}

func printSuccess(w io.Writer, format string, args ...any) {
	success.Fprintf(w, "✓ "+format+"\n", args...)
}

func printWarning(w io.Writer, format string, args ...any) {
	warning.Fprintf(w, "! "+format+"\n", args...)
}

func printFailure(w io.Writer, format string, args ...any) {
	failure.Fprintf(w, "✗ "+format+"\n", args...)
}

func printField(w io.Writer, name string, value any) {
	fmt.Fprintf(w, "  %-16s %v\n", name+":", value)
}
