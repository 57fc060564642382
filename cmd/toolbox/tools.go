package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/aretw0/toolbox"
	"github.com/aretw0/toolbox/internal/cli"
	"github.com/aretw0/toolbox/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List every available capability",
	Long:  `Lists the built-in capabilities and the tools discovered on enabled external servers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		asJSON, _ := cmd.Flags().GetBool("json")

		s, err := startSession(cmd, optionsFor(cmd))
		if err != nil {
			return err
		}
		defer s.Close()

		defs := s.Definitions()
		out := cmd.OutOrStdout()
		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(defs)
		}

		if cli.IsTerminal(out) {
			tui.PrintBanner(out, toolbox.Version)
		}
		for _, d := range defs {
			summary, _, _ := strings.Cut(d.Description, "\n")
			fmt.Fprintf(out, "%-32s %s\n", tui.Bold(d.Name), tui.Faint(summary))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().Bool("json", false, "Print the full definitions, including parameter schemas, as JSON")
}
