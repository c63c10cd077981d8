package main

import (
	"docqa-go/internal/handler"
	"docqa-go/pkg/token"
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCmd(root *rootOptions) *cobra.Command {
	var scopes []string
	cmd := &cobra.Command{
		Use:   "token <client>",
		Short: "Mint an API token signed with the configured secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig()
			if err != nil {
				return err
			}
			if cfg.Auth.Secret == "" {
				return fmt.Errorf("auth.secret is not configured")
			}
			tok, err := token.NewJWTManager(cfg.Auth.Secret, cfg.Auth.TokenExpireHours).GenerateToken(args[0], scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&scopes, "scope", []string{handler.ScopeAsk, handler.ScopeIngest}, "scopes granted to the token")
	return cmd
}
