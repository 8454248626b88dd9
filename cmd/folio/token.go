package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/eringen/folio/identity"
)

func newTokenCmd(g *globals) *cobra.Command {
	var (
		id  identity.Identity
		ttl time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for scripted API access",
		Long: `Issue a signed bearer token for the given identity.

The token is signed with session_secret and is accepted in an
"Authorization: Bearer <token>" header in place of a session cookie.

Examples:
  # Token for the admin
  folio token --email admin@example.com

  # Short-lived token for a GitHub login
  folio token --login octocat --ttl 1h`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := g.load(cmd)
			if err != nil {
				return err
			}
			if cfg.SessionSecret == "" {
				return errors.New("session_secret is required")
			}
			if id.IsZero() {
				return errors.New("one of --name, --login or --email is required")
			}
			if ttl == 0 {
				ttl = cfg.TokenTTL
			}
			token, err := identity.IssueToken(id, []byte(cfg.SessionSecret), ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&id.Name, "name", "", "display name")
	cmd.Flags().StringVar(&id.Login, "login", "", "provider login")
	cmd.Flags().StringVar(&id.Email, "email", "", "email address")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default: token_ttl from config)")
	return cmd
}
