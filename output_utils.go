// Verbosity-controlled console output for the batch unpacker
package main

import (
	"fmt"
	"os"
)

// LogLevel selects how much console output is produced
type LogLevel int

const (
	LevelQuiet   LogLevel = iota // errors and nothing else
	LevelNormal                  // standard progress output
	LevelVerbose                 // per-file details
	LevelDebug                   // everything, including parser internals
)

var outputLevel = LevelNormal

// SetOutputLevel configures the global verbosity for all helpers below
func SetOutputLevel(level LogLevel) {
	outputLevel = level
}

// Infof prints standard progress output unless quiet mode is active
func Infof(format string, args ...any) {
	if outputLevel >= LevelNormal {
		fmt.Printf(format, args...)
	}
}

// Verbosef prints per-file detail output in verbose or debug mode
func Verbosef(format string, args ...any) {
	if outputLevel >= LevelVerbose {
		fmt.Printf(format, args...)
	}
}

// Debugf prints parser internals in debug mode only
func Debugf(format string, args ...any) {
	if outputLevel >= LevelDebug {
		fmt.Printf(format, args...)
	}
}

// Errorf always prints to stderr regardless of verbosity
func Errorf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// Resultf prints final summaries, suppressed only in quiet mode
func Resultf(format string, args ...any) {
	if outputLevel >= LevelNormal {
		fmt.Printf(format, args...)
	}
}
