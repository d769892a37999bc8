package interp

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"marcer/internal/dsl"
	"marcer/internal/logging"
	"marcer/internal/marc"
	"marcer/internal/store"
)

// writeState is the per-instruction output buffer.
type writeState struct {
	buffer  []*marc.Record
	started bool // the target was truncated by an earlier flush
}

func (in *Interpreter) state(w *dsl.WriteOutput) *writeState {
	st, ok := in.writers[w]
	if !ok {
		st = &writeState{}
		in.writers[w] = st
	}
	return st
}

// buffer records rec for w. Record-scoped writes flush right away.
func (in *Interpreter) buffer(ctx context.Context, w *dsl.WriteOutput, rec *marc.Record) error {
	st := in.state(w)
	st.buffer = append(st.buffer, rec)
	if w.Scope == dsl.ScopeRecord {
		return in.flush(ctx, w)
	}
	return nil
}

// flush writes the buffered records that pass gating and clears the
// buffer. The first flush of a run truncates the target; later flushes
// append.
func (in *Interpreter) flush(ctx context.Context, w *dsl.WriteOutput) error {
	st := in.state(w)
	if len(st.buffer) == 0 {
		return nil
	}
	selected := make([]*marc.Record, 0, len(st.buffer))
	for _, rec := range st.buffer {
		if in.rc.OutputChangedOnly && !rec.Dirty() {
			continue
		}
		selected = append(selected, rec)
	}
	st.buffer = st.buffer[:0]
	if len(selected) == 0 {
		return nil
	}

	var err error
	switch w.Format {
	case dsl.FormatSQLite:
		err = in.writeSQLite(ctx, w, st, selected)
	default:
		err = in.writeFile(w, st, selected)
	}
	if err != nil {
		return err
	}
	st.started = true
	in.rc.Written += len(selected)
	in.wlog.Debug("flushed records",
		zap.String("path", w.Path),
		zap.Stringer("format", w.Format),
		zap.Int("records", len(selected)))
	return nil
}

func (in *Interpreter) writeFile(w *dsl.WriteOutput, st *writeState, recs []*marc.Record) (err error) {
	flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
	if st.started {
		flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	}
	f, err := os.OpenFile(w.Path, flags, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", w.Path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", w.Path, cerr)
		}
	}()

	bw := bufio.NewWriter(f)
	for _, rec := range recs {
		if w.Format == dsl.FormatText {
			_, err = bw.WriteString(rec.String() + "\n")
		} else {
			_, err = rec.WriteTo(bw)
		}
		if err != nil {
			return fmt.Errorf("write %s: %w", w.Path, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write %s: %w", w.Path, err)
	}
	return nil
}

func (in *Interpreter) writeSQLite(ctx context.Context, w *dsl.WriteOutput, st *writeState, recs []*marc.Record) (err error) {
	s, err := store.Open(w.Path, logging.For(in.rc.Logger, logging.CategoryStore))
	if err != nil {
		return fmt.Errorf("open %s: %w", w.Path, err)
	}
	defer func() {
		if cerr := s.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", w.Path, cerr)
		}
	}()

	if !st.started {
		if err := s.Truncate(ctx); err != nil {
			return fmt.Errorf("write %s: %w", w.Path, err)
		}
	}
	if err := s.SaveRecords(ctx, in.rc.RunID, recs); err != nil {
		return fmt.Errorf("write %s: %w", w.Path, err)
	}
	return nil
}
