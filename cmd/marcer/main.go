package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marcer/internal/config"
	"marcer/internal/logging"
)

var version = "1.2.0"

var (
	// Global flags
	verbose    bool
	configPath string

	// Set up by PersistentPreRunE
	logger   *zap.Logger
	logLevel = zap.NewAtomicLevel()
	cfg      = config.DefaultConfig()
)

// runOptions are the flags shared by the root and run commands.
type runOptions struct {
	instructions string
	marcFile     string
	strict       bool
	debug        bool
	changedOnly  bool
	watch        bool
}

var runOpts runOptions

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "marcer",
	Short: "Edit MARC21 records with an instruction file",
	Long: `marcer reads a file of MARC21 records, applies the statements of an
instruction file to every record, and writes the results.

Example:
  marcer -i fix-urls.txt -f catalog.mrc`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = config.DefaultPath
		}
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return err
		}

		logger, logLevel, err = logging.New(cfg.Logging, verbose || cfg.Run.Debug)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logging.For(logger, logging.CategoryBoot).Debug("configuration loaded",
			zap.String("path", path),
			zap.String("version", version))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	Args: usageArgs(cobra.NoArgs),
	RunE: runRun,
}

// runCmd runs an instruction file over a MARC file
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Apply an instruction file to a MARC file",
	Args:  usageArgs(cobra.NoArgs),
	RunE:  runRun,
}

var statsCmd = &cobra.Command{
	Use:   "stats <file>...",
	Short: "Count records, multilingual records and skipped fields",
	Args:  usageArgs(cobra.MinimumNArgs(1)),
	RunE:  runStats,
}

var dumpTag string

var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print records in MRK text form",
	Args:  usageArgs(cobra.ExactArgs(1)),
	RunE:  runDump,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  usageArgs(cobra.NoArgs),
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "marcer %s\n", version)
	},
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runOpts.instructions, "instructions", "i", "", "Instruction file")
	cmd.Flags().StringVarP(&runOpts.marcFile, "file", "f", "", "MARC file (overrides marc_file)")
	cmd.Flags().BoolVarP(&runOpts.debug, "debug", "d", false, "Log instruction failures")
	cmd.Flags().BoolVar(&runOpts.changedOnly, "changed-only", false, "Only write records that were changed or selected")
	cmd.Flags().BoolVar(&runOpts.watch, "watch", false, "Re-run whenever the instruction file changes")
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: marcer.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&runOpts.strict, "strict", "s", false, "Abort on malformed fields instead of skipping them")

	addRunFlags(rootCmd)
	addRunFlags(runCmd)

	dumpCmd.Flags().StringVarP(&dumpTag, "tag", "t", "", "Only print fields with this tag")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(dumpCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "marcer:", err)
		os.Exit(exitCode(err))
	}
}
