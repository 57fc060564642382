package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/aretw0/toolbox/internal/cli"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/spf13/cobra"
)

var callCmd = &cobra.Command{
	Use:   "call <capability>",
	Short: "Run one capability",
	Long: `Dispatches a single capability with JSON parameters.

Dangerous capabilities (shell execution, file writes and deletes) ask for
confirmation unless --confirm=false or TOOLBOX_CONFIRM=false.`,
	Example: `  toolbox call file_list --params '{"path": "."}'
  toolbox call mcp_github_search_repositories --params '{"query": "mcp"}'`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("params")
		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		channel, _ := cmd.Flags().GetString("channel")
		subdir, _ := cmd.Flags().GetString("subdir")
		plain, _ := cmd.Flags().GetBool("plain")

		params := map[string]any{}
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return fmt.Errorf("invalid --params JSON: %w", err)
			}
		}

		s, err := startSession(cmd, optionsFor(cmd))
		if err != nil {
			return err
		}
		defer s.Close()

		tc := domain.ToolContext{
			UserID:       user,
			DisplayName:  name,
			ChannelID:    channel,
			OutputSubdir: subdir,
		}
		res, err := s.Dispatch(cmd.Context(), args[0], params, tc)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		cli.PrintResult(out, res, !plain && cli.IsTerminal(out))
		if res.IsError {
			return errCapabilityFailed
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(callCmd)
	f := callCmd.Flags()
	f.StringP("params", "p", "", "Parameters as a JSON object")
	f.String("user", currentUser(), "User id of the caller")
	f.String("name", currentUser(), "Display name of the caller")
	f.String("channel", "cli", "Channel id of the caller")
	f.String("subdir", "", "Fixed output subdirectory instead of the dated per-user one")
	f.Bool("plain", false, "Print output without Markdown rendering")
}

func currentUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "local"
}
