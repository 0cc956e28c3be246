// Package cmd defines and implements the CLI commands for the castcrawler executable.
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

	"github.com/JakeFAU/castcrawler/internal/app"
	"github.com/JakeFAU/castcrawler/internal/config"
	"github.com/JakeFAU/castcrawler/internal/logging"
	"github.com/JakeFAU/castcrawler/internal/publisher"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands will use.
// This allows us to inject a fake app during tests.
type App interface {
	Close() error
	GetConfig() config.Config
	GetLogger() *zap.Logger
	GetStore() storage.Store
	GetBlobs() storage.BlobStore
	GetPublisher() publisher.Publisher
}

// newApp is the application factory. It's a variable so tests can replace it.
var newApp = func(ctx context.Context, cfgPath string) (App, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return a, nil
}

// rootCommand is the cobra root plus the services its pre-run hook opened.
type rootCommand struct {
	*cobra.Command
	app App
}

// newRootCmd creates and configures the root command.
func newRootCmd() *rootCommand {
	var cfgFile string
	root := &rootCommand{}

	root.Command = &cobra.Command{
		Use:   "castcrawler",
		Short: "Crawl a movie's cast and rank the titles its actors share.",
		Long: `castcrawler starts from one movie page, follows its full cast listing
to every actor's filmography and records one (actor, title) pair per credit.
The recommend and plot commands turn those pairs into a ranking of the
movies that share the most actors with the seed.`,
		SilenceUsage: true,

		// Build the services once and hand them to the subcommand through the context.
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := newApp(cmd.Context(), cfgFile)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			root.app = appInstance
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, JSON or TOML); env vars use the CASTCRAWLER_ prefix")

	root.AddCommand(newCrawlCmd())
	root.AddCommand(newRecommendCmd())
	root.AddCommand(newPlotCmd())
	root.AddCommand(newServeCmd())

	return root
}

// ExecuteContext runs the command tree and then closes the services, whether
// or not the subcommand succeeded. Cobra skips post-run hooks on error.
func (r *rootCommand) ExecuteContext(ctx context.Context) error {
	err := r.Command.ExecuteContext(ctx)
	if r.app != nil {
		if cerr := r.app.Close(); cerr != nil {
			fmt.Fprintf(r.ErrOrStderr(), "shutdown: %v\n", cerr)
		}
		r.app = nil
	}
	return err //nolint:wrapcheck
}

// Execute is the main entry point. SIGINT and SIGTERM cancel the command context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}
