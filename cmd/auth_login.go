package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"chapterbase/internal/app"
	"chapterbase/internal/login"
	"chapterbase/pkg/oauth"
)

// Login-specific flags
var (
	loginNoBrowser bool
	loginForce     bool
	loginTimeout   time.Duration
)

// authLoginCmd represents the auth login command
var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to chapter-base",
	Long: `Sign in to chapter-base with your browser.

The command starts a local server on the redirect URI (by default
http://localhost:3000), opens the chapter-base sign-in page and waits
until the browser comes back with an authorization code. The code is
exchanged once; if anything fails, run the command again.

Examples:
  chapterbase auth login               # Sign in with your browser
  chapterbase auth login --no-browser  # Print the sign-in URL instead
  chapterbase auth login --force       # Sign in again, replacing the session`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

func init() {
	authLoginCmd.Flags().BoolVar(&loginNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
	authLoginCmd.Flags().BoolVar(&loginForce, "force", false, "Sign in even if a session exists")
	authLoginCmd.Flags().DurationVar(&loginTimeout, "timeout", 0, "How long to wait for the browser (default from config, 10m)")
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	if application.Controller.State() == login.StateAuthenticated {
		if !loginForce {
			authPrint("%s Already logged in. Use --force to sign in again.\n", text.FgGreen.Sprint("✓"))
			return nil
		}
		if err := application.Controller.Logout(); err != nil {
			return fmt.Errorf("failed to clear previous session: %w", err)
		}
	}

	timeout := loginTimeout
	if timeout == 0 {
		timeout = application.Settings.Auth.CallbackTimeout
	}
	if timeout == 0 {
		timeout = login.CallbackTimeout
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	navigator := &login.BrowserNavigator{Out: authOut, Disabled: loginNoBrowser}
	result, err := performLogin(ctx, application, navigator)
	if err != nil {
		return err
	}

	if result.State != login.StateAuthenticated {
		return fmt.Errorf("login failed: %w", result.Err)
	}

	authPrint("%s Logged in to chapter-base.\n", text.FgGreen.Sprint("✓"))
	if pair, ok := application.Store.LoadTokens(); ok {
		if claims, err := oauth.ParseIDTokenClaims(pair.IDToken); err == nil && claims.Email != "" {
			authPrint("  Signed in as %s\n", claims.Email)
		}
	}
	return nil
}

// performLogin runs one login: the entry page load that redirects to the
// authorization endpoint, then the wait for the browser to load the
// redirect URI with the authorization response.
func performLogin(ctx context.Context, application *app.Application, navigator *login.BrowserNavigator) (login.Result, error) {
	callbackServer, err := application.NewCallbackServer()
	if err != nil {
		return login.Result{}, err
	}
	if err := callbackServer.Start(ctx); err != nil {
		return login.Result{}, err
	}
	defer callbackServer.Stop()

	entryURL, err := url.Parse(callbackServer.URL())
	if err != nil {
		return login.Result{}, err
	}

	authPrintln("Opening browser for authentication...")
	entry := login.NewStaticPage(entryURL, navigator.Navigate)
	result := application.Controller.Evaluate(ctx, entry)
	if result.State != login.StateRedirecting {
		return result, nil
	}

	var s *spinner.Spinner
	if !authQuiet {
		s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
		s.Writer = authOut
		s.Suffix = " Waiting for you to sign in..."
		s.Start()
		defer s.Stop()
	}

	result, err = callbackServer.WaitForResult(ctx)
	if err != nil {
		if s != nil {
			s.FinalMSG = text.FgRed.Sprint("Sign-in was not completed") + "\n"
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return login.Result{}, fmt.Errorf("timed out waiting for the browser to return to %s", callbackServer.URL())
		}
		return login.Result{}, err
	}
	return result, nil
}
