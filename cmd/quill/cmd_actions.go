package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/quill/internal/prompts"
)

var actionsCmd = &cobra.Command{
	Use:   "actions",
	Short: "List the available actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		registry := prompts.DefaultRegistry()
		if cfg.ActionsFile != "" {
			if _, err := registry.LoadFile(cfg.ActionsFile); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		for _, a := range registry.List() {
			var notes []string
			if a.Builtin {
				notes = append(notes, "builtin")
			}
			if a.Replace {
				notes = append(notes, "replaces selection")
			}
			if a.Model != "" {
				notes = append(notes, "model "+a.Model)
			}
			line := a.Name
			if len(notes) > 0 {
				line += " (" + strings.Join(notes, ", ") + ")"
			}
			fmt.Fprintln(out, line)
		}
		return nil
	},
}
