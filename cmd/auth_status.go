package cmd

import (
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"chapterbase/internal/session"
)

// authStatusCmd represents the auth status command
var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	Long: `Show whether a session is stored, when it was created and when its
access token expires. Token values are never printed.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	info := application.Store.Info()
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendRows(statusRows(application.Store.IsAuthenticated(), info, time.Now()))
	t.AppendRow(table.Row{"Session file", application.Store.Path()})
	t.AppendRow(table.Row{"API", application.Settings.API.BaseURL})
	t.Render()
	return nil
}

// statusRows renders the session facts shown by auth status.
func statusRows(authenticated bool, info session.Info, now time.Time) []table.Row {
	if !authenticated {
		rows := []table.Row{{"Status", text.FgYellow.Sprint("Not logged in")}}
		if info.LoginInFlight {
			rows = append(rows, table.Row{"Login", "started, waiting for the browser"})
		}
		return rows
	}

	rows := []table.Row{
		{"Status", text.FgGreen.Sprint("Logged in")},
		{"Session", info.ID},
	}
	if !info.CreatedAt.IsZero() {
		rows = append(rows, table.Row{"Created", info.CreatedAt.Local().Format(time.RFC3339)})
	}
	if !info.ExpiresAt.IsZero() {
		expires := info.ExpiresAt.Local().Format(time.RFC3339)
		if now.After(info.ExpiresAt) {
			expires = text.FgRed.Sprint(expires + " (expired)")
		} else {
			expires += " (in " + info.ExpiresAt.Sub(now).Round(time.Minute).String() + ")"
		}
		rows = append(rows, table.Row{"Expires", expires})
	}
	refresh := "no"
	if info.HasRefreshToken {
		refresh = "yes"
	}
	rows = append(rows, table.Row{"Refresh token", refresh})
	return rows
}
