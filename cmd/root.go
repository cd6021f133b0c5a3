// Package cmd defines the CLI commands of the seimas executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/2448334/seimas-scraper/internal/app"
	"github.com/2448334/seimas-scraper/internal/config"
	"github.com/2448334/seimas-scraper/internal/logging"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App is what commands need from the service container; tests inject a fake.
type App interface {
	Close()
	GetLogger() *zap.Logger
	GetCrawler() app.Crawler
	Migrate(ctx context.Context) error
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgFile string) (App, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(logging.Config{Development: cfg.Logging.Development, Level: cfg.Logging.Level})
	if err != nil {
		return nil, err
	}
	return app.NewApp(ctx, cfg, logger)
}

// newRootCmd builds the command tree. The returned func closes the app a command
// opened and is safe to call when none was; cobra skips post-run hooks once RunE
// fails, so callers close through it instead.
func newRootCmd() (*cobra.Command, func()) {
	var (
		cfgFile string
		opened  App
	)
	cmd := &cobra.Command{
		Use:   "seimas",
		Short: "Loads the Lithuanian Seimas open data feeds into PostgreSQL.",
		Long: `seimas harvests parliamentary terms, members, sessions, meetings, votes,
registrations and meeting documents from the Seimas XML feeds. Every write is an
idempotent upsert, so any crawl can be re-run to fill in or refresh data.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			opened = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); SEIMAS_* environment variables override it")
	cmd.AddCommand(newCrawlCmd(), newMigrateCmd())

	closeApp := func() {
		if opened != nil {
			opened.Close()
			opened = nil
		}
	}
	return cmd, closeApp
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute runs the CLI until it finishes or the process is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	root, closeApp := newRootCmd()
	err := root.ExecuteContext(ctx)
	closeApp()
	stop()
	if err != nil {
		os.Exit(1)
	}
}
