package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"chapterbase/internal/transport"
)

// maxParallelRequests bounds how many paths api get fetches at once.
const maxParallelRequests = 4

// apiCmd represents the api command group
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Call the chapter-base API with the current session",
	Long: `Call the chapter-base API. Every request carries the stored access
token. When the API answers 401 the session is cleared and you need to
sign in again with 'chapterbase auth login'.

Examples:
  chapterbase api get /chapters
  chapterbase api get /chapters /members`,
}

// apiGetCmd represents the api get command
var apiGetCmd = &cobra.Command{
	Use:   "get <path>...",
	Short: "GET one or more API paths and print the responses",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runAPIGet,
}

func init() {
	rootCmd.AddCommand(apiCmd)
	apiCmd.AddCommand(apiGetCmd)
}

func runAPIGet(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}
	if !application.Store.IsAuthenticated() {
		return ErrNotLoggedIn
	}

	client := application.HTTPClient(transport.WithOnUnauthorized(func() {
		fmt.Fprintln(cmd.ErrOrStderr(), "Session expired or revoked. Run 'chapterbase auth login' to sign in again.")
	}))

	bodies, err := fetchAll(cmd.Context(), client, application.Settings.API.BaseURL, args)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, body := range bodies {
		fmt.Fprintln(out, formatBody(body))
	}
	return nil
}

// fetchAll GETs every path relative to baseURL concurrently and returns the
// bodies in the order of paths.
func fetchAll(ctx context.Context, client *http.Client, baseURL string, paths []string) ([][]byte, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	bodies := make([][]byte, len(paths))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRequests)

	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			body, err := fetch(ctx, client, resolvePath(base, path))
			if err != nil {
				return err
			}
			bodies[i] = body
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return bodies, nil
}

func fetch(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", target, err)
	}
	defer resp.Body.Close()

	if err := transport.CheckResponse(resp); err != nil {
		return nil, err
	}
	return io.ReadAll(resp.Body)
}

// resolvePath joins path onto the base URL's path.
func resolvePath(base *url.URL, path string) string {
	u := *base
	ref, err := url.Parse(path)
	if err != nil {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(path, "/")
		return u.String()
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	u.RawQuery = ref.RawQuery
	return u.String()
}

// formatBody indents JSON bodies and returns anything else unchanged.
func formatBody(body []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, body, "", "  "); err != nil {
		return string(body)
	}
	return buf.String()
}

