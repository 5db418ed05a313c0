package main

import (
	"errors"
	"fmt"

	"sheetexpense/internal/amqp"
	"sheetexpense/internal/auth"
	"sheetexpense/internal/backend"
	"sheetexpense/internal/core"
	"sheetexpense/internal/log"
	"sheetexpense/internal/services"

	"github.com/spf13/cobra"
)

func (a *app) resyncCmd() *cobra.Command {
	var userID int64
	var year int
	var month string
	var publish bool
	cmd := &cobra.Command{
		Use:   "resync",
		Short: "Re-assert Summary formulas for a user's year",
		Long: `Rewrites the Summary rows of one year, or a single month with --month.
With --publish the request is queued for the worker instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if userID <= 0 {
				return errors.New("--user is required")
			}
			if err := core.ValidateYear(year); err != nil {
				return err
			}
			if month != "" {
				idx, err := core.ParseMonth(month)
				if err != nil {
					return err
				}
				if month, err = core.MonthName(idx); err != nil {
					return err
				}
			}
			cfg := a.config()

			if publish {
				if cfg.AMQPURL == "" {
					return errors.New("--publish needs AMQP_URL")
				}
				client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
				if err != nil {
					return err
				}
				defer client.Close()
				ev := amqp.NewEvent(amqp.EventResyncRequested, userID, year, month)
				if err := client.Publish(cmd.Context(), ev); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Queued resync %s\n", ev.ID)
				return nil
			}

			repo, err := a.openStorage(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			wb, err := backend.NewFactory(a.logger.Logger).CreateBackend(cmd.Context(), backend.Config{Type: backend.GoogleBackend})
			if err != nil {
				return err
			}
			provider := auth.NewProvider(auth.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				RedirectURL:  cfg.GoogleRedirectURI,
			})
			slogger := a.logger.Logger
			guard := auth.NewGuard(repo, wb.Connector, provider, slogger)
			resyncer := services.NewResyncer(guard, repo, services.NewSummarySync(slogger), slogger)
			if err := resyncer.Resync(cmd.Context(), userID, year, month); err != nil {
				return fmt.Errorf("resync: %w", err)
			}
			a.logger.Info("Summary re-asserted", log.FieldUserID, userID, log.FieldYear, year, log.FieldMonth, month)
			fmt.Fprintln(cmd.OutOrStdout(), "Summary re-asserted")
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 0, "user id")
	cmd.Flags().IntVar(&year, "year", 0, "spreadsheet year")
	cmd.Flags().StringVar(&month, "month", "", "month name or number (default: all months)")
	cmd.Flags().BoolVar(&publish, "publish", false, "queue the resync for the worker")
	return cmd
}
