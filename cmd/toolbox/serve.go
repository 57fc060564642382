package main

import (
	"github.com/aretw0/toolbox/internal/logging"
	httpadapter "github.com/aretw0/toolbox/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	Long: `Serves the capability registry over HTTP:

  GET  /healthz   liveness
  GET  /tools     capability definitions
  POST /dispatch  run a capability
  GET  /servers   external server status
  GET  /metrics   Prometheus metrics

Confirmation prompts are disabled; callers are expected to gate dangerous capabilities.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		level, _ := cmd.Flags().GetString("log-level")
		if level == "" {
			level = "info"
		}
		logger := logging.NewJSON(cmd.ErrOrStderr(), logging.ParseLevel(level))

		opts := optionsFor(cmd)
		opts.Headless = true
		opts.Watch = true
		opts.Metrics = true

		s, err := buildAndStart(cmd, opts, logger)
		if err != nil {
			return err
		}
		defer s.Close()

		handler := httpadapter.NewHandler(s,
			httpadapter.WithOutputRoot(s.OutputRoot()),
			httpadapter.WithServers(func() []httpadapter.ServerStatus {
				var out []httpadapter.ServerStatus
				for _, info := range s.Servers() {
					out = append(out, httpadapter.ServerStatus{
						Name:        info.Name,
						Description: info.Description,
						Enabled:     info.Enabled,
						Connected:   info.Connected,
						Tools:       info.Tools,
					})
				}
				return out
			}),
			httpadapter.WithMetrics(s.Metrics.Handler()),
			httpadapter.WithLogger(logger),
		)
		return httpadapter.Serve(cmd.Context(), addr, handler, logger)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8080", "Address to listen on")
}
