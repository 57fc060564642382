package main

import (
	"log/slog"
	"os"

	"github.com/aretw0/toolbox"
	"github.com/aretw0/toolbox/internal/cli"
	"github.com/aretw0/toolbox/internal/logging"
	mcpadapter "github.com/aretw0/toolbox/pkg/adapters/mcp"
	"github.com/aretw0/toolbox/pkg/domain"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the toolbox as an MCP server over stdio",
	Long: `Exposes every capability, external ones included, as tools of a Model Context
Protocol server on standard input and output. Logs go to stderr so they never
corrupt the JSON-RPC stream.

All calls share one sandboxing context, set with --user, --name and --subdir.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		name, _ := cmd.Flags().GetString("name")
		subdir, _ := cmd.Flags().GetString("subdir")
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = "warn"
		}
		logger := logging.New(logging.ParseLevel(level))

		opts := optionsFor(cmd)
		// stdin carries the protocol, there is nobody to ask.
		opts.Headless = true
		opts.Watch = true

		s, err := buildAndStart(cmd, opts, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		tc := domain.ToolContext{
			UserID:       user,
			DisplayName:  name,
			ChannelID:    "mcp",
			OutputRoot:   s.OutputRoot(),
			OutputSubdir: subdir,
		}
		srv := mcpadapter.NewServer(s, tc, "toolbox", toolbox.Version, logger)
		s.OnToolsChanged(srv.Sync)

		logger.Info("Starting MCP server (stdio)")
		return srv.Serve(cmd.Context(), os.Stdin, os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
	f := mcpCmd.Flags()
	f.String("user", currentUser(), "User id for every call")
	f.String("name", currentUser(), "Display name for every call")
	f.String("subdir", "", "Fixed output subdirectory instead of the dated per-user one")
}

// buildAndStart is startSession for long-running commands, which log instead of printing.
func buildAndStart(cmd *cobra.Command, opts cli.Options, logger *slog.Logger) (*cli.Session, error) {
	s, err := cli.Build(opts, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Start(cmd.Context()); err != nil {
		logger.Warn("Some servers failed discovery", "err", err)
	}
	return s, nil
}
