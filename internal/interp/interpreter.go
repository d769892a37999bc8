// Package interp runs parsed instruction programs over decoded records.
//
// A run has two passes. The apply pass executes every instruction against
// every record in file order. The finalize pass then lets buffered write
// instructions flush what they collected.
package interp

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marcer/internal/dsl"
	"marcer/internal/logging"
	"marcer/internal/marc"
)

// Summary reports what a run did.
type Summary struct {
	Records  int
	Printed  int
	Written  int
	Failures int // instructions that returned false
}

// Interpreter executes one program. It is not safe for concurrent use.
type Interpreter struct {
	rc      *RunContext
	program []dsl.Instruction
	writers map[*dsl.WriteOutput]*writeState
	log     *zap.Logger
	wlog    *zap.Logger
}

// New returns an interpreter for program.
func New(rc *RunContext, program []dsl.Instruction) *Interpreter {
	return &Interpreter{
		rc:      rc,
		program: program,
		writers: map[*dsl.WriteOutput]*writeState{},
		log:     logging.For(rc.Logger, logging.CategoryExec),
		wlog:    logging.For(rc.Logger, logging.CategoryWrite),
	}
}

// Run applies the program to records, then finalizes it. A non-nil error
// means a fatal runtime error; the summary covers the work done until then.
func (in *Interpreter) Run(ctx context.Context, records []*marc.Record) (Summary, error) {
	var sum Summary
	in.log.Debug("run started",
		zap.String("run_id", in.rc.RunID),
		zap.Int("records", len(records)),
		zap.Int("instructions", len(in.program)),
		zap.Bool("output_changed_only", in.rc.OutputChangedOnly))

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return in.summary(sum), err
		}
		sum.Records++
		for _, inst := range in.program {
			ok, err := in.exec(ctx, inst, rec)
			if err != nil {
				return in.summary(sum), fmt.Errorf("record %d (%s): %s: %w", i, rec.ControlNumber(), inst, err)
			}
			if !ok {
				sum.Failures++
				in.log.Debug("instruction failed",
					zap.Int("record", i),
					zap.String("control_number", rec.ControlNumber()),
					zap.Stringer("instruction", inst))
			}
		}
	}

	for range records {
		for _, inst := range in.program {
			if err := in.finalize(ctx, inst); err != nil {
				return in.summary(sum), fmt.Errorf("finalize %s: %w", inst, err)
			}
		}
	}

	sum = in.summary(sum)
	in.log.Debug("run finished",
		zap.String("run_id", in.rc.RunID),
		zap.Int("printed", sum.Printed),
		zap.Int("written", sum.Written),
		zap.Int("failures", sum.Failures))
	return sum, nil
}

func (in *Interpreter) summary(s Summary) Summary {
	s.Printed = in.rc.Printed
	s.Written = in.rc.Written
	return s
}

// finalize is a no-op for everything but write instructions, and recurses
// into conditional branches.
func (in *Interpreter) finalize(ctx context.Context, inst dsl.Instruction) error {
	switch i := inst.(type) {
	case *dsl.WriteOutput:
		return in.flush(ctx, i)
	case *dsl.ConditionalOnContent:
		return in.finalizeAll(ctx, i.Then, i.Else)
	case *dsl.ConditionalOnPosition:
		return in.finalizeAll(ctx, i.Then, i.Else)
	}
	return nil
}

func (in *Interpreter) finalizeAll(ctx context.Context, lists ...[]dsl.Instruction) error {
	for _, list := range lists {
		for _, inst := range list {
			if err := in.finalize(ctx, inst); err != nil {
				return err
			}
		}
	}
	return nil
}

// mark selects rec for gated output. Without gating it does nothing.
func (in *Interpreter) mark(rec *marc.Record) {
	if in.rc.OutputChangedOnly {
		rec.Touch()
	}
}
