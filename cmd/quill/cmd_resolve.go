package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ChamsBouzaiene/quill/internal/prompts"
)

var (
	resolveAction    string
	resolveTemplate  string
	resolveSystem    string
	resolveSelection string
	resolveContext   string
	resolveDoc       string
	resolveJSON      bool
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve an action's prompt templates without calling a model",
	Long: `Resolves the system and user templates of an action (or of --template /
--system) against the given selection and context and prints the result.

Example:
  quill resolve --action Summarize --selection "Some example text."
  quill resolve --template "{{=SELECTION=}} in French" --selection "Hello" --json`,
	RunE: runResolve,
}

func init() {
	resolveCmd.Flags().StringVarP(&resolveAction, "action", "a", "", "Action name")
	resolveCmd.Flags().StringVarP(&resolveTemplate, "template", "t", "", "User template (overrides the action's)")
	resolveCmd.Flags().StringVar(&resolveSystem, "system", "", "System template (overrides the action's)")
	resolveCmd.Flags().StringVarP(&resolveSelection, "selection", "s", "", "Selected text")
	resolveCmd.Flags().StringVarP(&resolveContext, "context", "c", "", "Context text")
	resolveCmd.Flags().StringVarP(&resolveDoc, "doc", "d", "", "Active document")
	resolveCmd.Flags().BoolVar(&resolveJSON, "json", false, "Print both scopes and the display directives as JSON")
}

type resolveOutput struct {
	System  string          `json:"system"`
	User    string          `json:"user"`
	Display prompts.Display `json:"display"`
}

func runResolve(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx, false)
	if err != nil {
		return err
	}
	defer env.Close()

	var a prompts.Action
	if resolveAction != "" {
		if a, err = env.Actions.Get(resolveAction); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("template") {
		a.Prompt = resolveTemplate
	}
	if cmd.Flags().Changed("system") {
		a.System = resolveSystem
	}
	if resolveAction == "" && !cmd.Flags().Changed("template") {
		return fmt.Errorf("either --action or --template is required")
	}

	doc, err := documentID(env.Vault, resolveDoc)
	if err != nil {
		return err
	}

	pc := prompts.Context{
		SelectedText:   resolveSelection,
		ContextText:    resolveContext,
		ActiveDocument: doc,
		Tags:           env.Tags,
	}
	system := a.System
	if env.VaultSystem != "" {
		system = env.VaultSystem + "\n\n" + system
	}
	scoped := env.Pipeline.ResolveScopes(ctx, system, a.Prompt, pc, env.Config.Display)

	out := cmd.OutOrStdout()
	if resolveJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(resolveOutput{
			System:  scoped.System.Prompt,
			User:    scoped.User.Prompt,
			Display: scoped.Display,
		})
	}
	_, err = fmt.Fprintln(out, scoped.User.Prompt)
	return err
}
