package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	okColor   = color.New(color.FgGreen, color.Bold)
	busyColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

// printStatus writes a colored one-line status message
func printStatus(w io.Writer, c *color.Color, format string, args ...interface{}) {
	c.Fprintf(w, format, args...)
	fmt.Fprintln(w)
}
