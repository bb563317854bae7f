package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/quelio/engine/accounting"
	"github.com/quelio/engine/credentials"
	"github.com/quelio/engine/kelio"
	"github.com/quelio/engine/logger"
)

func newFetchCmd(a *app) *cobra.Command {
	var (
		user     string
		password string
		format   string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Log into the portal and print the current report",
		Long: `Logs into the configured portal, downloads the recent punches and prints
the weekly report. The password comes from --password, or from the OS
keyring entry written by "quelio credentials set".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.KelioURL == "" {
				return errors.New("kelio_url is not configured")
			}
			if password == "" {
				stored, err := credentials.GetPassword(user)
				if errors.Is(err, credentials.ErrNotFound) {
					return fmt.Errorf("no password for %s: pass --password or run \"quelio credentials set --user %s\"", user, user)
				}
				if err != nil {
					return err
				}
				password = stored
			}

			loc, err := a.cfg.Location()
			if err != nil {
				return err
			}
			client := kelio.NewClient(a.cfg.KelioURL,
				kelio.WithTimeout(a.cfg.UpstreamTimeout.Duration),
				kelio.WithLogger(logger.Logger),
			)

			ctx := cmd.Context()
			session, err := client.Login(ctx, user, password)
			if err != nil {
				return fmt.Errorf("portal login: %w", err)
			}
			fragments, err := client.FetchAllHours(ctx, session)
			if err != nil {
				return fmt.Errorf("fetching hours: %w", err)
			}
			logger.Debug("fetched hours", "user", user, "pages", len(fragments))

			report, err := accounting.Accountant{Rules: a.cfg.Rules, Location: loc}.Compute(accounting.Merge(fragments...), time.Now())
			if err != nil {
				return err
			}
			return writeReport(cmd.OutOrStdout(), report, format)
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "Portal username")
	cmd.Flags().StringVar(&password, "password", "", "Portal password (default: OS keyring)")
	cmd.Flags().StringVar(&format, "format", formatText, "Output format: text, json")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
