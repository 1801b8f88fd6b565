package cmd

import (
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"chapterbase/pkg/oauth"
)

// authWhoamiCmd represents the auth whoami command
var authWhoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show who you are signed in as",
	Long: `Show the identity in the stored ID token: subject, email and phone
number. The token is decoded locally and not verified.`,
	Args: cobra.NoArgs,
	RunE: runAuthWhoami,
}

func runAuthWhoami(cmd *cobra.Command, args []string) error {
	application, err := newApplication()
	if err != nil {
		return err
	}

	pair, ok := application.Store.LoadTokens()
	if !ok {
		return ErrNotLoggedIn
	}

	claims, err := oauth.ParseIDTokenClaims(pair.IDToken)
	if err != nil {
		return fmt.Errorf("failed to read identity: %w", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendRows(whoamiRows(claims))
	t.Render()
	return nil
}

func whoamiRows(claims *oauth.IDTokenClaims) []table.Row {
	rows := []table.Row{{"Subject", claims.Subject}}
	if claims.Email != "" {
		rows = append(rows, table.Row{"Email", claims.Email})
	}
	if claims.PhoneNumber != "" {
		rows = append(rows, table.Row{"Phone", claims.PhoneNumber})
	}
	if claims.Issuer != "" {
		rows = append(rows, table.Row{"Issuer", claims.Issuer})
	}
	if claims.Expiry > 0 {
		rows = append(rows, table.Row{"ID token expires", claims.ExpiresAt().Local().Format(time.RFC3339)})
	}
	return rows
}
