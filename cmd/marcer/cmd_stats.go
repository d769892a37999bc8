package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"marcer/internal/logging"
	"marcer/internal/marc"
)

// fileStats is one row of the stats report.
type fileStats struct {
	Path  string
	Stats marc.Stats
}

func runStats(cmd *cobra.Command, args []string) error {
	rows, err := collectStats(cmd.Context(), args, strictDecode())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), renderStats(rows))
	return nil
}

// collectStats decodes every file concurrently. Each goroutine owns its
// reader and records and fills its own slot of the result.
func collectStats(ctx context.Context, paths []string, strict bool) ([]fileStats, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	rows := make([]fileStats, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			_, stats, err := marc.ReadFile(path, marc.ReaderOptions{
				Strict: strict,
				Logger: logging.For(logger, logging.CategoryCodec),
			})
			if err != nil {
				return err
			}
			rows[i] = fileStats{Path: path, Stats: stats}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return rows, nil
}
