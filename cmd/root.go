package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"chapterbase/internal/app"
	"chapterbase/pkg/oauth"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates there is no session, or the API rejected it.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates the OAuth flow failed.
	ExitCodeAuthFailed = 3
)

// ErrNotLoggedIn is returned by commands that need a session when none is stored.
var ErrNotLoggedIn = errors.New("not logged in: run 'chapterbase auth login'")

// Global flags
var (
	configPath string
	debug      bool
)

// rootCmd represents the base command for the chapterbase application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "chapterbase",
	Short: "Sign in to chapter-base and call its API",
	Long: `chapterbase manages your chapter-base session.

It signs you in with the OAuth 2.0 authorization code flow and PKCE,
keeps the resulting tokens in ~/.config/chapterbase/session.json and
attaches them to every API request it makes or proxies.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "chapterbase version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(getExitCode(err))
	}
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	switch {
	case err == nil:
		return ExitCodeSuccess
	case errors.Is(err, ErrNotLoggedIn), errors.Is(err, oauth.ErrAuthorizationFailure):
		return ExitCodeAuthRequired
	case oauth.IsFlowError(err):
		return ExitCodeAuthFailed
	default:
		return ExitCodeError
	}
}

// newApplication bootstraps the application from the global flags.
func newApplication() (*app.Application, error) {
	application, err := app.NewApplication(app.NewConfig(debug, configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize chapterbase: %w", err)
	}
	return application, nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config-path", "", "Configuration directory (default ~/.config/chapterbase)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCmd())
}
