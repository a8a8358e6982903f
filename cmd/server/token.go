package main

import (
	"errors"
	"fmt"

	"github.com/openmined/syftupload/internal/server/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd() *cobra.Command {
	var subject string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for an uploader",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cfg.Auth.Enabled {
				return errors.New("auth is disabled, set auth.enabled to issue tokens")
			}
			if err := cfg.Auth.Validate(); err != nil {
				return err
			}

			token, err := auth.NewAuthService(&cfg.Auth).IssueAccessToken(subject)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVarP(&subject, "subject", "s", "", "Subject the token is issued to")
	cmd.MarkFlagRequired("subject")
	return cmd
}
