package main

import (
	"fmt"
	"strings"

	"github.com/juju/clock"
	"github.com/spf13/cobra"

	"github.com/ledgerline/billing/internal/auth"
	"github.com/ledgerline/billing/internal/domain"
)

var tokenCmd = &cobra.Command{
	Use:     "token",
	Short:   "Mint a signed token for scripting against the API",
	Example: `  curl -H "Authorization: Bearer $(server token --roles ADMIN,USER)" localhost:8080/invoices`,
	RunE:    runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().String("subject", "admin", "Token subject")
	tokenCmd.Flags().StringSlice("roles", []string{domain.RoleUser}, "Roles carried by the token")
	tokenCmd.Flags().Bool("refresh", false, "Mint a refresh token instead of an access token")
}

func runToken(cmd *cobra.Command, args []string) error {
	subject, _ := cmd.Flags().GetString("subject")
	roles, _ := cmd.Flags().GetStringSlice("roles")
	refresh, _ := cmd.Flags().GetBool("refresh")

	for i, r := range roles {
		roles[i] = strings.ToUpper(strings.TrimSpace(r))
	}
	kind := auth.KindAccess
	if refresh {
		kind = auth.KindRefresh
	}

	tokens := auth.NewTokens(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL, clock.WallClock)
	tok, err := tokens.Issue(subject, roles, kind)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
