package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	verbose   bool
	vaultFlag string
	configDir string

	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "quill - AI writing actions for a folder of markdown notes",
	Long: `quill resolves prompt templates against your selection, pulls context from
the notes your selection links to, and streams the answer from the configured
model.

Templates understand {{=SELECTION=}}, {{=CONTEXT=}}, {{=CONTEXT_START=}} /
{{=CONTEXT_END=}}, {{=CURRENT_TIME=}}, {{=ALL_TAGS=}}, {{=CURRENT_TAGS=}} and the
{{=SHOW_MODEL_INFO=}}=true|false and {{=SHOW_PERFORMANCE=}}=true|false directives.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config := zap.NewProductionConfig()
		if verbose {
			config = zap.NewDevelopmentConfig()
			config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		} else {
			config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		}
		// stdout carries prompts and model output only.
		config.OutputPaths = []string{"stderr"}
		built, err := config.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = built
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&vaultFlag, "vault", "", "Path to the notes folder (default: config vault_path or current directory)")
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "Configuration directory (default: user config dir/quill)")

	rootCmd.AddCommand(
		resolveCmd,
		enhanceCmd,
		runCmd,
		replCmd,
		actionsCmd,
		historyCmd,
	)
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
