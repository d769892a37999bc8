package interp

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Fetcher returns the text of the page at url.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Names of the switches a var statement can set.
const (
	VarDebug              = "debug"
	VarStrict             = "strict"
	VarOutputModifiedOnly = "output_modified_only"
	VarOutputChangedOnly  = "output_changed_only"
	VarMARCFile           = "marc_file"
)

// RunContext is the state shared by one run of an instruction program.
type RunContext struct {
	Strict            bool
	Debug             bool
	OutputChangedOnly bool
	MARCFile          string

	// Variables holds var assignments that are not run switches.
	Variables map[string]string

	// Printed counts print instructions executed; Written counts records
	// written by write instructions.
	Printed int
	Written int

	RunID   string
	Stdout  io.Writer
	Logger  *zap.Logger
	Fetcher Fetcher
}

// NewRunContext returns a context writing program output to stdout.
func NewRunContext(stdout io.Writer, logger *zap.Logger) *RunContext {
	if stdout == nil {
		stdout = os.Stdout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunContext{
		Variables: map[string]string{},
		RunID:     uuid.NewString(),
		Stdout:    stdout,
		Logger:    logger,
	}
}

// Assign applies a var statement.
func (rc *RunContext) Assign(name, value string) error {
	switch name {
	case VarDebug, VarStrict, VarOutputModifiedOnly, VarOutputChangedOnly:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s expects true or false, got %q", name, value)
		}
		switch name {
		case VarDebug:
			rc.Debug = b
		case VarStrict:
			rc.Strict = b
		default:
			rc.OutputChangedOnly = b
		}
	case VarMARCFile:
		if value == "" {
			return fmt.Errorf("%s needs a file name", name)
		}
		rc.MARCFile = value
	default:
		rc.Variables[name] = value
	}
	rc.Logger.Debug("variable set", zap.String("name", name), zap.String("value", value))
	return nil
}
