package main

import (
	"errors"
	"io/fs"

	"github.com/spf13/cobra"

	"marcer/internal/dsl"
	"marcer/internal/marc"
)

// Process exit codes.
const (
	exitOK         = 0
	exitFailure    = 1
	exitUsage      = 2
	exitSyntax     = 3
	exitInputError = 4
)

var (
	errNoInstructions = errors.New("no instruction file given, use -i <file>")
	errNoMARCFile     = errors.New("no MARC file given, use -f <file> or var marc_file")
)

// usageError marks a bad command line.
type usageError struct {
	err error
}

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// exitCode maps an error returned by a command to the process exit code.
func exitCode(err error) int {
	var ue *usageError
	var se *dsl.SyntaxError
	var fe *marc.FormatError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue),
		errors.Is(err, errNoInstructions),
		errors.Is(err, errNoMARCFile):
		return exitUsage
	case errors.As(err, &se),
		errors.As(err, &fe),
		errors.Is(err, marc.ErrBadLeader),
		errors.Is(err, marc.ErrInvalidTag),
		errors.Is(err, marc.ErrTruncated),
		errors.Is(err, marc.ErrBadDirectory):
		return exitSyntax
	case errors.Is(err, marc.ErrNoFile),
		errors.Is(err, marc.ErrEmptyFile),
		errors.Is(err, fs.ErrNotExist),
		errors.Is(err, fs.ErrPermission):
		return exitInputError
	}
	return exitFailure
}

// usageArgs turns argument validation failures into usage errors.
func usageArgs(fn cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := fn(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}
