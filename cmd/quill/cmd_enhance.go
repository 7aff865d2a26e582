package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	enhanceDoc       string
	enhanceSelection string
)

var enhanceCmd = &cobra.Command{
	Use:   "enhance",
	Short: "Print the context retrieved from the notes a selection links to",
	Long: `Extracts the [[links]] and markdown links in the selection, chunks and
embeds the linked notes and prints the chunks most similar to the selection.
Prints nothing when the selection links to nothing.`,
	RunE: runEnhance,
}

func init() {
	enhanceCmd.Flags().StringVarP(&enhanceDoc, "doc", "d", "", "Active document (links resolve relative to it)")
	enhanceCmd.Flags().StringVarP(&enhanceSelection, "selection", "s", "", "Selected text (default: stdin)")
}

func runEnhance(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	env, err := prepareRuntimeEnv(ctx, true)
	if err != nil {
		return err
	}
	defer env.Close()

	if env.Retrieval == nil {
		return fmt.Errorf("retrieval is disabled or no embedding provider is configured")
	}

	selection := enhanceSelection
	if selection == "" {
		if selection, err = readPiped(cmd.InOrStdin()); err != nil {
			return err
		}
	}
	doc, err := documentID(env.Vault, enhanceDoc)
	if err != nil {
		return err
	}

	result := env.Retrieval.Enhance(ctx, selection, doc, env.Embedder)
	if result == "" {
		return nil
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), result)
	return err
}
