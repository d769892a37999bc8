package main

import (
	"bufio"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"marcer/internal/logging"
	"marcer/internal/marc"
)

func runDump(cmd *cobra.Command, args []string) error {
	var only *marc.Tag
	if dumpTag != "" {
		t, err := marc.ParseTag(dumpTag)
		if err != nil {
			return &usageError{err: err}
		}
		only = &t
	}

	records, _, err := marc.ReadFile(args[0], marc.ReaderOptions{
		Strict: strictDecode(),
		Logger: logging.For(logger, logging.CategoryCodec),
	})
	if err != nil {
		return err
	}
	return dumpRecords(cmd.OutOrStdout(), records, only)
}

// strictDecode reports whether stats and dump should reject malformed fields.
func strictDecode() bool {
	return runOpts.strict || cfg.Run.Strict
}

// dumpRecords writes records in MRK form, separated by blank lines. With a
// tag, only that tag's fields are written.
func dumpRecords(w io.Writer, records []*marc.Record, only *marc.Tag) error {
	bw := bufio.NewWriter(w)
	for _, rec := range records {
		if only == nil {
			fmt.Fprintln(bw, rec.String())
			continue
		}
		for _, e := range rec.Entries() {
			if e.Tag == *only {
				fmt.Fprintln(bw, e.String())
			}
		}
	}
	return bw.Flush()
}
