// Package ui styles terminal output for the CLI.
package ui

import "os"

const (
	reset  = "\033[0m"
	bold   = "\033[1m"
	dim    = "\033[2m"
	red    = "\033[31m"
	green  = "\033[32m"
	yellow = "\033[33m"
	cyan   = "\033[36m"
	white  = "\033[97m"
)

// Enabled turns styling on. It starts off when NO_COLOR is set.
var Enabled = os.Getenv("NO_COLOR") == ""

func paint(style, s string) string {
	if !Enabled {
		return s
	}
	return style + s + reset
}

// Bold emphasizes labels.
func Bold(s string) string { return paint(bold, s) }

// Success marks a completed step.
func Success(s string) string { return paint(green, s) }

// Info is for secondary detail such as run IDs and error causes.
func Info(s string) string { return paint(dim+yellow, s) }

// Error marks a failed step.
func Error(s string) string { return paint(red, s) }

// Title is a command name in help output.
func Title(s string) string { return paint(bold+cyan, s) }

// Heading is a help section title.
func Heading(s string) string { return paint(bold+white, s) }

// Command is a runnable command or usage line.
func Command(s string) string { return paint(cyan, s) }

// Placeholder is an argument the user fills in.
func Placeholder(s string) string { return paint(yellow, s) }

// Example is a shell example or flag name.
func Example(s string) string { return paint(green, s) }

// Faint is for descriptions and comments.
func Faint(s string) string { return paint(dim, s) }
