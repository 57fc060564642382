package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/toolbox/internal/cli"
	"github.com/aretw0/toolbox/internal/presentation/tui"
	"github.com/aretw0/toolbox/pkg/mcpclient"
	"github.com/spf13/cobra"
)

var serversCmd = &cobra.Command{
	Use:     "servers",
	Aliases: []string{"server"},
	Short:   "Manage external MCP server declarations",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List declared servers",
	RunE: func(cmd *cobra.Command, args []string) error {
		discover, _ := cmd.Flags().GetBool("discover")
		out := cmd.OutOrStdout()

		if !discover {
			config, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			servers := config.Servers()
			if len(servers) == 0 {
				fmt.Fprintln(out, tui.Faint("No servers declared in "+config.Path()))
				return nil
			}
			for _, s := range servers {
				fmt.Fprintf(out, "%-20s %-9s %s\n", tui.Bold(s.Name), enabledLabel(s.Enabled), tui.Faint(launchLine(s)))
			}
			return nil
		}

		s, err := startSession(cmd, optionsFor(cmd))
		if err != nil {
			return err
		}
		defer s.Close()
		for _, info := range s.Servers() {
			state := "idle"
			if info.Connected {
				state = "connected"
			}
			fmt.Fprintf(out, "%-20s %-9s %-10s %d tools\n", tui.Bold(info.Name), enabledLabel(info.Enabled), state, info.Tools)
		}
		return nil
	},
}

var serversAddCmd = &cobra.Command{
	Use:   "add <name> <command> [args...]",
	Short: "Declare a new server",
	Example: `  toolbox servers add --env GITHUB_TOKEN='${GITHUB_TOKEN}' github npx -y @modelcontextprotocol/server-github
  toolbox servers add files "npx -y @modelcontextprotocol/server-filesystem /tmp"`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		description, _ := cmd.Flags().GetString("description")
		envPairs, _ := cmd.Flags().GetStringArray("env")
		disabled, _ := cmd.Flags().GetBool("disabled")

		env := make(map[string]string, len(envPairs))
		for _, pair := range envPairs {
			k, v, ok := strings.Cut(pair, "=")
			if !ok || k == "" {
				return fmt.Errorf("invalid --env %q: want KEY=VALUE", pair)
			}
			env[k] = v
		}

		server := mcpclient.ServerConfig{
			Name:        args[0],
			Command:     args[1],
			Args:        args[2:],
			Enabled:     !disabled,
			Description: description,
		}
		if len(env) > 0 {
			server.Env = env
		}
		return updateConfig(cmd, func(c *mcpclient.Config) error { return c.Add(server) },
			"Added server '%s'", server.Name)
	},
}

var serversRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a server declaration",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(cmd, func(c *mcpclient.Config) error { return c.Remove(args[0]) },
			"Removed server '%s'", args[0])
	},
}

var serversEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(cmd, func(c *mcpclient.Config) error { return c.SetEnabled(args[0], true) },
			"Enabled server '%s'", args[0])
	},
}

var serversDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return updateConfig(cmd, func(c *mcpclient.Config) error { return c.SetEnabled(args[0], false) },
			"Disabled server '%s'", args[0])
	},
}

var serversRefreshCmd = &cobra.Command{
	Use:   "refresh [name]",
	Short: "Connect to servers and list the tools they offer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := cli.Build(optionsFor(cmd), loggerFor(cmd))
		if err != nil {
			return err
		}
		defer s.Close()

		out := cmd.OutOrStdout()
		client := s.Client()
		if len(args) == 1 {
			tools, err := client.RefreshTools(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, t := range tools {
				fmt.Fprintf(out, "%-40s %s\n", tui.Bold(t.Name), tui.Faint(t.Tool.Description))
			}
			return nil
		}

		refreshErr := s.Refresh(cmd.Context())
		for _, t := range client.Tools() {
			fmt.Fprintf(out, "%-40s %s\n", tui.Bold(t.Name), tui.Faint(t.Tool.Description))
		}
		return refreshErr
	},
}

func init() {
	rootCmd.AddCommand(serversCmd)
	serversCmd.AddCommand(serversListCmd, serversAddCmd, serversRemoveCmd, serversEnableCmd, serversDisableCmd, serversRefreshCmd)

	serversListCmd.Flags().Bool("discover", false, "Connect to enabled servers and count their tools")
	serversAddCmd.Flags().String("description", "", "Human readable description")
	serversAddCmd.Flags().StringArray("env", nil, "Environment variable KEY=VALUE (repeatable, ${VAR} is expanded at launch)")
	serversAddCmd.Flags().Bool("disabled", false, "Declare the server without enabling it")
	// Everything after <name> belongs to the launch command.
	serversAddCmd.Flags().SetInterspersed(false)
}

func loadConfig(cmd *cobra.Command) (*mcpclient.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return cli.LoadConfig(path)
}

func updateConfig(cmd *cobra.Command, change func(*mcpclient.Config) error, format string, args ...any) error {
	config, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := change(config); err != nil {
		return err
	}
	if err := config.Save(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tui.Success(fmt.Sprintf(format, args...)))
	return nil
}

func enabledLabel(enabled bool) string {
	if enabled {
		return "enabled"
	}
	return "disabled"
}

func launchLine(s mcpclient.ServerConfig) string {
	return strings.TrimSpace(s.Command + " " + strings.Join(s.Args, " "))
}
