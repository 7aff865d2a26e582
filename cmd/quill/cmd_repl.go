package main

import (
	"bufio"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ChamsBouzaiene/quill/internal/action"
	"github.com/ChamsBouzaiene/quill/internal/vault"
)

var replDoc string

var replCmd = &cobra.Command{
	Use:   "repl ACTION",
	Short: "Run an action once per input line",
	Long: `Reads lines from stdin and runs the action with each line as the selection.
The vault is watched while the session is open so tag summaries stay fresh.`,
	Args: cobra.ExactArgs(1),
	RunE: runRepl,
}

func init() {
	replCmd.Flags().StringVarP(&replDoc, "doc", "d", "", "Active document")
}

func runRepl(cmd *cobra.Command, args []string) error {
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
	doc, err := documentID(env.Vault, replDoc)
	if err != nil {
		return err
	}

	watcher, err := vault.NewWatcher(env.Vault, vault.DefaultDebounce)
	if err != nil {
		logger.Warn("vault watcher unavailable, tags may go stale", zap.Error(err))
	} else {
		watcher.OnChange(func(paths []string) {
			logger.Debug("notes changed", zap.Strings("paths", paths))
			env.Tags.Invalidate()
		})
		if err := watcher.Start(); err != nil {
			logger.Warn("failed to start vault watcher", zap.Error(err))
		} else {
			defer watcher.Stop()
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(cmd.ErrOrStderr(), "✍️  %s (vault: %s). One selection per line, Ctrl-D to quit.\n", a.Name, env.Vault.Root())

	s := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(cmd.ErrOrStderr(), "you> ")
		if !s.Scan() {
			break
		}
		line := s.Text()
		if line == "" {
			continue
		}
		if ctx.Err() != nil {
			break
		}

		in := action.Input{Action: a, SelectedText: line, Document: doc}
		if err := execute(ctx, runner, a, in, out); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "error: %v\n", err)
		}
	}
	return s.Err()
}
