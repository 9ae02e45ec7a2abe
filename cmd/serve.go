package cmd

import (
	"context"
	"fmt"

	"mcpaggregator/internal/app"

	"github.com/spf13/cobra"
)

// serveDebug enables verbose logging across the application.
var serveDebug bool

// serveYolo disables the denylist for destructive tool calls.
var serveYolo bool

// serveConfigPath specifies a custom configuration directory path. When
// set, disables layered configuration and loads config.yaml from this
// single directory instead.
var serveConfigPath string

// serveCmd starts the aggregating proxy server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the aggregating MCP proxy server",
	Long: `Starts the aggregating proxy: connects to every configured upstream MCP
server, builds the federated tool/resource/prompt namespace, and serves it to
downstream clients over the streamable-HTTP and SSE transports. This command
does not start a stdio transport.

Configuration:
  By default, configuration loads from the user config directory overridden
  by a project-local .mcpaggregator/config.yaml, if present.

  Use --config-path to load from a single directory's config.yaml instead,
  disabling layered loading.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

// runServe is the entry point for the serve command.
func runServe(cmd *cobra.Command, args []string) error {
	cfg := app.NewConfig(serveDebug, serveYolo, serveConfigPath)

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().BoolVar(&serveYolo, "yolo", false, "Disable the destructive-tool denylist (use with caution)")
	serveCmd.Flags().StringVar(&serveConfigPath, "config-path", "", "Custom configuration directory path (disables layered config)")
}
