package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"marcer/internal/dsl"
	"marcer/internal/fetch"
	"marcer/internal/interp"
	"marcer/internal/logging"
	"marcer/internal/marc"
)

// runRun is shared by "marcer run" and the bare "marcer -i ... -f ..." form.
func runRun(cmd *cobra.Command, args []string) error {
	if runOpts.instructions == "" {
		return errNoInstructions
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logging.For(logger, logging.CategoryBoot).Info("received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
	}()

	stdout, stderr := cmd.OutOrStdout(), cmd.ErrOrStderr()
	once := func(ctx context.Context) error {
		_, err := executeRun(ctx, runOpts, stdout, stderr)
		return err
	}
	if runOpts.watch {
		return watchInstructions(ctx, runOpts.instructions, once)
	}
	return once(ctx)
}

// executeRun parses the instruction file, reads the MARC file and runs the
// program. Settings are applied in order: config file, flags, then var
// statements; a -f flag always names the MARC file.
func executeRun(ctx context.Context, opts runOptions, stdout, stderr io.Writer) (interp.Summary, error) {
	rc := interp.NewRunContext(stdout, logger)
	rc.Strict = cfg.Run.Strict || opts.strict
	rc.Debug = cfg.Run.Debug || opts.debug
	rc.OutputChangedOnly = cfg.Run.OutputModifiedOnly || opts.changedOnly
	rc.MARCFile = cfg.Run.MARCFile

	parser := dsl.NewParser(rc, logging.For(logger, logging.CategoryParse))
	program, err := parser.ParseFile(opts.instructions)
	if err != nil {
		return interp.Summary{}, err
	}
	if opts.marcFile != "" {
		rc.MARCFile = opts.marcFile
	}
	if rc.Debug {
		logLevel.SetLevel(zapcore.DebugLevel)
	}
	if rc.MARCFile == "" {
		return interp.Summary{}, errNoMARCFile
	}

	boot := logging.For(logger, logging.CategoryBoot)
	boot.Info("starting run",
		zap.String("run_id", rc.RunID),
		zap.String("instructions", opts.instructions),
		zap.String("marc_file", rc.MARCFile),
		zap.Int("statements", len(program)),
		zap.Bool("strict", rc.Strict),
		zap.Bool("output_changed_only", rc.OutputChangedOnly))

	records, stats, err := marc.ReadFile(rc.MARCFile, marc.ReaderOptions{
		Strict: rc.Strict,
		Logger: logging.For(logger, logging.CategoryCodec),
	})
	if err != nil {
		return interp.Summary{}, err
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:      cfg.FetchTimeout(),
		UserAgent:    cfg.Fetch.UserAgent,
		MaxBodyBytes: cfg.Fetch.MaxBodyBytes,
		Logger:       logging.For(logger, logging.CategoryFetch),
	})
	defer fetcher.Close()
	rc.Fetcher = fetcher

	sum, err := interp.New(rc, program).Run(ctx, records)
	if err != nil {
		return sum, fmt.Errorf("run %s: %w", opts.instructions, err)
	}
	fmt.Fprint(stderr, renderSummary(rc.MARCFile, stats, sum))
	return sum, nil
}
