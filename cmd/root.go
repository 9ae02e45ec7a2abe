package cmd

import (
	"errors"
	"os"

	"mcpaggregator/internal/errs"

	"github.com/spf13/cobra"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates an upstream demanded OAuth authorization.
	ExitCodeAuthRequired = 2
	// ExitCodeConfigError indicates the configuration failed to load or validate.
	ExitCodeConfigError = 3
)

// rootCmd is the entry point when the binary is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "mcpaggregator",
	Short: "Run an aggregating MCP proxy over many upstream servers",
	Long: `mcpaggregator presents a single MCP server to downstream clients while
maintaining connections to many upstream MCP servers and federating their
tools, resources, and prompts into one namespace.`,
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "mcpaggregator version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
func getExitCode(err error) int {
	var oauthRequired *errs.OAuthRequiredError
	if errors.As(err, &oauthRequired) {
		return ExitCodeAuthRequired
	}

	var configErr *errs.ConfigError
	if errors.As(err, &configErr) {
		return ExitCodeConfigError
	}

	return ExitCodeError
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
}
