// The Temporal worker running scheduled ingestion.
package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	sdkworker "go.temporal.io/sdk/worker"
	"go.uber.org/fx"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/newsroom/internal/app"
	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/migrations"
	"github.com/jdholdren/newsroom/internal/worker"
)

type config struct {
	App app.Config

	TemporalHostPort  string `env:"TEMPORAL_HOST_PORT, required"`
	TemporalNamespace string `env:"TEMPORAL_NAMESPACE, default=default"`
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}
	// Temporal retries the fetch activity itself
	cfg.App.FetchRetries = 0

	slog.SetDefault(logger.New(os.Stdout, cfg.App.LoggerFormat, cfg.App.LogLevel))

	dbx, err := database.Open(cfg.App.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}

	deps, err := app.Build(cfg.App, dbx)
	if err != nil {
		log.Fatalf("error building pipeline: %s", err)
	}

	// Retry until temporal is ready
	var c client.Client
	if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
		cli, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalHostPort,
			Namespace: cfg.TemporalNamespace,
		})
		if err != nil {
			return retry.RetryableError(err)
		}
		c = cli

		return nil
	}); err != nil {
		log.Fatalln("Unable to create Temporal client:", err)
	}
	defer c.Close()

	if err := worker.EnsureNamespace(ctx, c.WorkflowService(), cfg.TemporalNamespace); err != nil {
		log.Fatalf("error ensuring namespace: %s", err)
	}

	fx.New(
		fx.Supply(
			fx.Annotate(ctx, fx.As(new(context.Context))),
			fx.Annotate(c, fx.As(new(client.Client))),
			fx.Annotate(deps.Registry, fx.As(new(worker.Sources))),
			fx.Annotate(deps.Fetcher, fx.As(new(worker.SourceFetcher))),
			fx.Annotate(deps.Pipeline, fx.As(new(worker.Processor))),
		),
		worker.Module,
		fx.Invoke(func(sdkworker.Worker) {}), // Start the worker
	).Run()
}
