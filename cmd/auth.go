package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
)

var authQuiet bool

// authOut receives progress output of the auth commands.
var authOut io.Writer = os.Stdout

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage your chapter-base session",
	Long: `Manage the chapter-base session used by chapterbase commands.

Examples:
  chapterbase auth login               # Sign in with your browser
  chapterbase auth login --no-browser  # Print the sign-in URL instead
  chapterbase auth status              # Show the current session
  chapterbase auth whoami              # Show who you are signed in as
  chapterbase auth logout              # Remove the stored session`,
}

// authLogoutCmd represents the auth logout command
var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored session",
	Long: `Remove the stored tokens and any unfinished login.

The next command that needs the API will require 'chapterbase auth login'.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

// authPrint prints output only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrint(format string, args ...interface{}) {
	if !authQuiet {
		fmt.Fprintf(authOut, format, args...)
	}
}

// authPrintln prints a line only if the --quiet flag is not set.
// Use this for progress messages and non-essential output.
func authPrintln(a ...interface{}) {
	if !authQuiet {
		fmt.Fprintln(authOut, a...)
	}
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authWhoamiCmd)

	authCmd.PersistentFlags().BoolVarP(&authQuiet, "quiet", "q", false, "Suppress non-essential output")
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	wasLoggedIn := application.Store.IsAuthenticated()
	if err := application.Controller.Logout(); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}

	if wasLoggedIn {
		authPrint("%s Logged out.\n", text.FgGreen.Sprint("✓"))
	} else {
		authPrintln("No stored session.")
	}
	return nil
}
