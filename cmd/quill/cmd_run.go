package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/action"
	"github.com/ChamsBouzaiene/quill/internal/prompts"
)

var (
	runDoc       string
	runSelection string
	runContext   string
	runImages    []string
)

var runCmd = &cobra.Command{
	Use:   "run ACTION",
	Short: "Run an action and stream the model's answer",
	Long: `Runs the named action against the selection (from --selection, stdin, or
the whole --doc) and streams the answer to stdout.

Example:
  echo "Some example text." | quill run Summarize
  quill run "Fix spelling and grammar" --doc Inbox.md`,
	Args: cobra.ExactArgs(1),
	RunE: runAction,
}

func init() {
	runCmd.Flags().StringVarP(&runDoc, "doc", "d", "", "Active document")
	runCmd.Flags().StringVarP(&runSelection, "selection", "s", "", "Selected text (default: stdin, then the whole document)")
	runCmd.Flags().StringVarP(&runContext, "context", "c", "", "Extra context text")
	runCmd.Flags().StringSliceVar(&runImages, "image", nil, "Image URL to attach (repeatable)")
}

func runAction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()

	a, err := env.Actions.Get(args[0])
	if err != nil {
		return err
	}
	runner, err := env.newRunner()
	if err != nil {
		return err
	}
	doc, err := documentID(env.Vault, runDoc)
	if err != nil {
		return err
	}

	selection := runSelection
	if selection == "" {
		if selection, err = readPiped(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	if selection == "" && doc != "" {
		if selection, err = env.Vault.Read(ctx, doc); err != nil {
			return err
		}
	}

	return execute(ctx, runner, a, action.Input{
		Action:       a,
		SelectedText: selection,
		ContextText:  runContext,
		Document:     doc,
		Images:       runImages,
	}, cmd.OutOrStdout())
}

func execute(ctx context.Context, runner *action.Runner, a prompts.Action, in action.Input, out io.Writer) error {
	res, err := runner.Run(ctx, in, out)
	fmt.Fprintln(out)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("action cancelled", zap.String("action", a.Name))
			return nil
		}
		return fmt.Errorf("action %q failed: %w", a.Name, err)
	}
	if res.Replace {
		logger.Debug("action output replaces the selection", zap.String("run_id", res.ID))
	}
	return nil
}
