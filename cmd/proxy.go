package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"chapterbase/internal/app"
	"chapterbase/internal/login"
	"chapterbase/internal/transport"
	"chapterbase/pkg/logging"
)

// Proxy-specific flags
var (
	proxyListen    string
	proxyNoBrowser bool
)

// proxyCmd represents the proxy command
var proxyCmd = &cobra.Command{
	Use:   "proxy",
	Short: "Serve the chapter-base API locally with the session attached",
	Long: `Run a local reverse proxy to the chapter-base API.

Requests to the proxy are forwarded with the stored access token. The
login callback server runs alongside it on the redirect URI, so opening
that URI in a browser signs you in. When the API answers 401 the session
is cleared and the browser is sent to sign in again.

The proxy also serves /healthz and Prometheus metrics on /metrics. When
started by systemd it reports readiness with sd_notify.

Examples:
  chapterbase proxy
  chapterbase proxy --listen localhost:9090 --no-browser`,
	Args: cobra.NoArgs,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(proxyCmd)

	proxyCmd.Flags().StringVar(&proxyListen, "listen", "", "Address to listen on (default from config, localhost:8080)")
	proxyCmd.Flags().BoolVar(&proxyNoBrowser, "no-browser", false, "Print the sign-in URL instead of opening a browser")
}

func runProxy(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return serveProxy(ctx, application, proxyOptions{
		listen:    proxyListen,
		navigator: &login.BrowserNavigator{Out: cmd.ErrOrStderr(), Disabled: proxyNoBrowser},
		notify:    true,
	})
}

type proxyOptions struct {
	listen    string
	navigator *login.BrowserNavigator
	notify    bool
}

// serveProxy runs the API proxy and the callback server until ctx is done.
func serveProxy(ctx context.Context, application *app.Application, opts proxyOptions) error {
	listen := opts.listen
	if listen == "" {
		listen = application.Settings.Proxy.Listen
	}

	callbackServer, err := application.NewCallbackServer()
	if err != nil {
		return err
	}
	if err := callbackServer.Start(ctx); err != nil {
		return err
	}
	defer callbackServer.Stop()

	if application.Settings.Session.Watch {
		err := application.Store.Watch(ctx, func() {
			logging.Info("Proxy", "Session changed on disk, authenticated=%t", application.Store.IsAuthenticated())
		})
		if err != nil {
			logging.Warn("Proxy", "Session changes by other processes will not be picked up: %v", err)
		}
	}

	loginURL := callbackServer.URL()
	auth := transport.NewAuthenticator(application.Store, transport.WithOnUnauthorized(func() {
		logging.Info("Proxy", "Session rejected by the API, sending the browser to %s", loginURL)
		if opts.navigator != nil {
			_ = opts.navigator.Navigate(loginURL)
		}
	}))

	proxy, err := transport.NewProxy(application.Settings.API.BaseURL, application.Store, auth)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              listen,
		Handler:           proxy.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info("Proxy", "Proxying %s to %s", listen, proxy.Target())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	if !application.Store.IsAuthenticated() {
		logging.Warn("Proxy", "Not logged in; open %s to sign in", loginURL)
	}

	if opts.notify {
		if sent, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
			logging.Warn("Proxy", "Failed to notify systemd: %v", err)
		} else if sent {
			logging.Debug("Proxy", "Notified systemd of readiness")
		}
	}

	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			return fmt.Errorf("proxy server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	if opts.notify {
		_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop proxy: %w", err)
	}
	logging.Info("Proxy", "Proxy stopped")
	return nil
}
