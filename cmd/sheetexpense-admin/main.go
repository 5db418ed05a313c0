package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"sheetexpense/internal/cli"
	"sheetexpense/internal/config"
	"sheetexpense/internal/log"
	"sheetexpense/internal/storage"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	logger  *log.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}
	root := &cobra.Command{
		Use:           "sheetexpense-admin",
		Short:         "Maintenance commands for sheetexpense",
		Long:          `Apply database migrations, bootstrap a login from the terminal and re-assert Summary formulas.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.initConfig(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default: ./sheetexpense.yaml)")
	root.PersistentFlags().String("database-url", "", "database URL (overrides DATABASE_URL)")
	root.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	_ = a.v.BindPFlag("database_url", root.PersistentFlags().Lookup("database-url"))
	_ = a.v.BindPFlag("log_level", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(a.migrateCmd())
	root.AddCommand(a.loginCmd())
	root.AddCommand(a.resyncCmd())
	return root
}

func main() {
	cli.LoadEnvFile()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func (a *app) initConfig(cmd *cobra.Command) error {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.AddConfigPath(".")
		a.v.SetConfigName("sheetexpense")
		a.v.SetConfigType("yaml")
	}
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("failed to read config: %w", err)
		}
	}

	level, err := log.ParseLevel(a.v.GetString("log_level"))
	if err != nil {
		return err
	}
	a.logger = log.NewText(cmd.ErrOrStderr(), level, log.ComponentAdmin)
	log.SetDefault(a.logger)
	return nil
}

// config layers viper values (flags, config file, environment) over the
// service configuration.
func (a *app) config() *config.Config {
	cfg := config.Load()
	if v := a.v.GetString("database_url"); v != "" {
		cfg.DatabaseURL = v
	}
	for key, dst := range map[string]*string{
		"google_client_id":     &cfg.GoogleClientID,
		"google_client_secret": &cfg.GoogleClientSecret,
		"amqp_url":             &cfg.AMQPURL,
	} {
		if v := a.v.GetString(key); v != "" {
			*dst = v
		}
	}
	return cfg
}

func (a *app) openStorage(ctx context.Context, cfg *config.Config) (*storage.Repository, error) {
	repo, err := storage.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return repo, nil
}
