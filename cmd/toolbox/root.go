package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/toolbox/internal/cli"
	"github.com/aretw0/toolbox/internal/presentation/tui"
	"github.com/spf13/cobra"
)

// errCapabilityFailed ends a command whose capability returned a failure result.
// The result has already been printed.
var errCapabilityFailed = errors.New("capability failed")

var rootCmd = &cobra.Command{
	Use:   "toolbox",
	Short: "Toolbox runs agent capabilities and external MCP tools",
	Long: `Toolbox exposes a sandboxed set of capabilities (shell, files, search, web fetch,
memory) plus the tools of any MCP servers declared in its configuration file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	sc := cli.NewSignalContext(context.Background())
	defer sc.Cancel()

	err := rootCmd.ExecuteContext(sc)
	if errors.Is(err, errCapabilityFailed) {
		sc.Cancel()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.Error("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringP("config", "c", cli.DefaultConfigPath, "Server configuration file (.yaml, .json or .toml)")
	flags.String("scripts", "scripts.yaml", "Allow-listed local scripts exposed as capabilities (missing file means none)")
	flags.String("output-root", "", "Root directory for sandboxed output (default $TOOLBOX_OUTPUT_ROOT or ./toolbox-output)")
	flags.String("memory", "", "Memory store: memory, file:<dir>, sqlite:<path> or redis://host:port/db")
	flags.Bool("redact-secrets", true, "Mask credentials in remembered notes before storing them")
	flags.Bool("confirm", true, "Ask before running dangerous capabilities (overridden by $TOOLBOX_CONFIRM)")
	flags.String("log-level", "", "Log level (debug, info, warn, error); empty disables logging")
	flags.Bool("log-json", false, "Emit logs as JSON")
}

func loggerFor(cmd *cobra.Command) *slog.Logger {
	level, _ := cmd.Flags().GetString("log-level")
	jsonFormat, _ := cmd.Flags().GetBool("log-json")
	return cli.NewLogger(level, jsonFormat)
}

func optionsFor(cmd *cobra.Command) cli.Options {
	config, _ := cmd.Flags().GetString("config")
	scripts, _ := cmd.Flags().GetString("scripts")
	root, _ := cmd.Flags().GetString("output-root")
	memory, _ := cmd.Flags().GetString("memory")
	redact, _ := cmd.Flags().GetBool("redact-secrets")
	confirm, _ := cmd.Flags().GetBool("confirm")
	return cli.Options{
		ConfigPath:  config,
		ScriptsPath: scripts,
		OutputRoot:  root,
		Memory:      memory,
		MemoryKey:   os.Getenv(cli.EnvMemoryKey),
		Redact:      redact,
		Confirm:     confirm,
		In:          cmd.InOrStdin(),
		Out:         cmd.ErrOrStderr(),
	}
}

// startSession builds the toolbox and discovers external tools. Discovery
// failures are reported but do not abort the command.
func startSession(cmd *cobra.Command, opts cli.Options) (*cli.Session, error) {
	logger := loggerFor(cmd)
	s, err := cli.Build(opts, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Start(cmd.Context()); err != nil {
		fmt.Fprintln(cmd.ErrOrStderr(), tui.Faint("Some servers failed discovery: "+err.Error()))
	}
	return s, nil
}
