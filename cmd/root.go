// Package cmd defines and implements the CLI commands for the listing-extractor executable.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/listing-extractor/internal/api"
	"github.com/JakeFAU/listing-extractor/internal/app"
	"github.com/JakeFAU/listing-extractor/internal/browser"
	"github.com/JakeFAU/listing-extractor/internal/config"
	"github.com/JakeFAU/listing-extractor/internal/logging"
	pkgconfig "github.com/JakeFAU/listing-extractor/pkg/config"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// newApp is the application factory. It's a variable so tests can swap in memory-only
// services.
var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app.App, error) {
	return app.New(ctx, cfg, logger)
}

// newLauncher starts browsers for scrape and zones. nil uses Chrome.
var newLauncher browser.Launcher

// newRootCmd creates and configures the root command. Config keys and subcommand flags are
// registered on v. The returned shutdown stops the operator server and closes the services;
// it must run after Execute whether or not the command failed.
func newRootCmd(v *viper.Viper) (*cobra.Command, func()) {
	var cfgFile string
	var appInstance *app.App
	var stopServer context.CancelFunc
	var serverDone chan struct{}

	cmd := &cobra.Command{
		Use:   "listing-extractor",
		Short: "Extracts real-estate listings and zoning codes from rendered web pages.",
		Long: `listing-extractor drives a headless browser through listing index pages,
extracts each listing's fields under bounded retries, stores the records and
labels them by price density. It can also scrape municipal zoning codes.`,
		SilenceUsage: true,

		// Config is loaded, the logger built and the services injected before any
		// subcommand runs.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Flags bound on v take precedence over the file and the environment.
			if err := pkgconfig.InitConfig(v, cfgFile, zap.L()); err != nil {
				return err
			}
			cfg, err := config.Load(v)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			logger, err := logging.New(cfg.Logging.Development)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)

			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			appInstance = a
			ctx := context.WithValue(cmd.Context(), appKey, a)

			if cfg.Metrics.Addr != "" {
				srv := api.NewServer(a.Documents, func() any { return a.Progress.Snapshot() }, logger.Named("api"))
				var serverCtx context.Context
				serverCtx, stopServer = context.WithCancel(ctx)
				serverDone = make(chan struct{})
				go func() {
					defer close(serverDone)
					if err := srv.Serve(serverCtx, cfg.Metrics.Addr); err != nil {
						logger.Error("HTTP server failed", zap.Error(err))
					}
				}()
			}

			cmd.SetContext(ctx)
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ., /etc/listing-extractor/ and $HOME/.listing-extractor)")

	cmd.AddCommand(newScrapeCmd(v))
	cmd.AddCommand(newAnalyzeCmd())
	cmd.AddCommand(newZonesCmd())

	shutdown := func() {
		if stopServer != nil {
			stopServer()
			<-serverDone
		}
		if appInstance == nil {
			return
		}
		appInstance.Close()
		if err := appInstance.Logger.Sync(); err != nil && !errors.Is(err, syscall.ENOTTY) && !errors.Is(err, syscall.EINVAL) {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", err)
		}
	}
	return cmd, shutdown
}

func resolveApp(ctx context.Context) (*app.App, error) {
	appInstance, ok := ctx.Value(appKey).(*app.App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	root, shutdown := newRootCmd(viper.New())
	err := root.ExecuteContext(ctx)
	shutdown()
	if err != nil {
		zap.L().Error("Command execution failed", zap.Error(err))
		stop()
		os.Exit(1)
	}
}
