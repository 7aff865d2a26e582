package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/quill/internal/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent action runs in this vault",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, root, err := historyStore()
		if err != nil {
			return err
		}
		runs, err := store.List(root, historyLimit)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(out, "No runs recorded yet.")
			return nil
		}
		for _, r := range runs {
			status := ""
			if r.Failed {
				status = " [failed]"
			}
			fmt.Fprintf(out, "%s  %s  %s%s\n    %s\n", r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Action, status, r.Excerpt)
		}
		return nil
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show ID",
	Short: "Print one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, root, err := historyStore()
		if err != nil {
			return err
		}
		run, err := store.Load(args[0], root)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Action:   %s\nModel:    %s · %s\nDocument: %s\nStarted:  %s (%s)\nTokens:   ~%d prompt + ~%d output\n",
			run.Action, run.Provider, run.Model, run.Document,
			run.StartedAt.Local().Format("2006-01-02 15:04:05"), run.Duration,
			run.Usage.PromptTokens, run.Usage.OutputTokens)
		if run.Error != "" {
			fmt.Fprintf(out, "Error:    %s\n", run.Error)
		}
		fmt.Fprintf(out, "\n%s\n", run.Output)
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list")
	historyCmd.AddCommand(historyShowCmd)
}

func historyStore() (*history.Store, string, error) {
	manager, cfg, err := loadConfig()
	if err != nil {
		return nil, "", err
	}
	root, err := resolveVaultRoot(cfg)
	if err != nil {
		return nil, "", err
	}
	return history.NewStore(manager.Dir()), root, nil
}
