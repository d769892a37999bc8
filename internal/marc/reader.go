package marc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// ReaderOptions control how a Reader decodes records.
type ReaderOptions struct {
	Strict bool
	Logger *zap.Logger
}

// Stats summarises a decoded stream.
type Stats struct {
	Total        int
	Multilingual int
	Skipped      int // fields dropped by relaxed decoding
}

// Reader decodes records from a stream of concatenated MARC21 records.
type Reader struct {
	r      *bufio.Reader
	opts   ReaderOptions
	logger *zap.Logger
	index  int
	stats  Stats
	done   bool
}

// NewReader wraps r.
func NewReader(r io.Reader, opts ReaderOptions) *Reader {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{r: bufio.NewReader(r), opts: opts, logger: logger}
}

// Next returns the next record, or io.EOF once the stream ends on a record
// boundary.
func (rd *Reader) Next() (*Record, error) {
	if rd.done {
		return nil, io.EOF
	}

	head := make([]byte, LeaderSize)
	if _, err := io.ReadFull(rd.r, head); err != nil {
		if errors.Is(err, io.EOF) {
			rd.done = true
			return nil, io.EOF
		}
		return nil, rd.truncated(0, err)
	}

	leader, err := ParseLeader(head)
	if err != nil {
		rd.done = true
		return nil, &FormatError{Record: rd.index, Offset: -1, Err: err}
	}
	length := leader.RecordLength()
	if length <= LeaderSize {
		rd.done = true
		return nil, &FormatError{Record: rd.index, Offset: -1, Err: fmt.Errorf("%w: record length %d", ErrBadLeader, length)}
	}

	body := make([]byte, length-LeaderSize)
	if n, err := io.ReadFull(rd.r, body); err != nil {
		return nil, rd.truncated(LeaderSize+n, err)
	}

	rec, err := Decode(leader, body, DecodeOptions{Strict: rd.opts.Strict, Index: rd.index, Logger: rd.logger})
	if err != nil {
		rd.done = true
		return nil, err
	}
	rd.index++
	rd.stats.Total++
	rd.stats.Skipped += rec.Skipped()
	if rec.ContainsMultilingual() {
		rd.stats.Multilingual++
	}
	return rec, nil
}

// truncated ends the stream. Strict readers report ErrTruncated; relaxed
// readers log and report a clean end.
func (rd *Reader) truncated(offset int, cause error) error {
	rd.done = true
	if rd.opts.Strict {
		return &FormatError{Record: rd.index, Offset: offset, Err: fmt.Errorf("%w: %v", ErrTruncated, cause)}
	}
	rd.logger.Warn("stream ends inside a record, ignoring the remainder",
		zap.Int("record", rd.index),
		zap.Int("offset", offset))
	return io.EOF
}

// Stats returns counts for the records read so far.
func (rd *Reader) Stats() Stats { return rd.stats }

// ReadAll decodes every record in r.
func ReadAll(r io.Reader, opts ReaderOptions) ([]*Record, Stats, error) {
	rd := NewReader(r, opts)
	var recs []*Record
	for {
		rec, err := rd.Next()
		if errors.Is(err, io.EOF) {
			return recs, rd.Stats(), nil
		}
		if err != nil {
			return recs, rd.Stats(), err
		}
		recs = append(recs, rec)
	}
}

// ReadFile decodes every record in the file at path. Missing and empty
// files are rejected.
func ReadFile(path string, opts ReaderOptions) ([]*Record, Stats, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, Stats{}, fmt.Errorf("%w: %s", ErrNoFile, path)
		}
		return nil, Stats{}, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, Stats{}, fmt.Errorf("%w: %s is not a regular file", ErrNoFile, path)
	}
	if info.Size() == 0 {
		return nil, Stats{}, fmt.Errorf("%w: %s", ErrEmptyFile, path)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	recs, stats, err := ReadAll(f, opts)
	if err != nil {
		return nil, stats, fmt.Errorf("read %s: %w", path, err)
	}
	if opts.Logger != nil {
		opts.Logger.Info("read marc file",
			zap.String("path", path),
			zap.Int("records", stats.Total),
			zap.Int("multilingual", stats.Multilingual),
			zap.Int("skipped_fields", stats.Skipped))
	}
	return recs, stats, nil
}

// DecodeBytes decodes a single encoded record.
func DecodeBytes(b []byte, opts DecodeOptions) (*Record, error) {
	if len(b) < LeaderSize {
		return nil, &FormatError{Record: opts.Index, Offset: -1, Err: fmt.Errorf("%w: %d bytes", ErrBadLeader, len(b))}
	}
	leader, err := ParseLeader(b[:LeaderSize])
	if err != nil {
		return nil, &FormatError{Record: opts.Index, Offset: -1, Err: err}
	}
	return Decode(leader, b[LeaderSize:], opts)
}
