// The admin API.
//
// When a Temporal host is configured runs are handed to the worker, otherwise
// the pipeline runs in this process on a fixed interval.
package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"syscall"
	"time"

	"github.com/oklog/run"
	"github.com/sethvargo/go-envconfig"
	"github.com/sethvargo/go-retry"
	"go.temporal.io/sdk/client"
	_ "golang.org/x/crypto/x509roots/fallback"

	"github.com/jdholdren/newsroom/internal/api"
	"github.com/jdholdren/newsroom/internal/app"
	"github.com/jdholdren/newsroom/internal/database"
	"github.com/jdholdren/newsroom/internal/logger"
	"github.com/jdholdren/newsroom/internal/migrations"
	"github.com/jdholdren/newsroom/internal/newsroom"
	"github.com/jdholdren/newsroom/internal/worker"
)

type config struct {
	App app.Config

	Port         int           `env:"PORT, default=4444"`
	AdminToken   string        `env:"ADMIN_TOKEN, required"`
	CorsHeader   string        `env:"CORS_HEADER, default=*"`
	WriteTimeout time.Duration `env:"WRITE_TIMEOUT, default=10m"`

	// Left empty to run the schedule in process
	TemporalHostPort  string        `env:"TEMPORAL_HOST_PORT"`
	TemporalNamespace string        `env:"TEMPORAL_NAMESPACE, default=default"`
	Interval          time.Duration `env:"INGEST_INTERVAL, default=15m"`
}

func main() {
	ctx := context.Background()

	// Parse the config
	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		log.Fatalf("error parsing config: %s", err)
	}

	slog.SetDefault(logger.New(os.Stdout, cfg.App.LoggerFormat, cfg.App.LogLevel))

	dbx, err := database.Open(cfg.App.Database)
	if err != nil {
		log.Fatalf("error opening database: %s", err)
	}
	defer dbx.Close()

	// Run all migrations
	if err := migrations.Run(dbx); err != nil {
		log.Fatalf("error running migrations: %s", err)
	}

	deps, err := app.Build(cfg.App, dbx)
	if err != nil {
		log.Fatalf("error building pipeline: %s", err)
	}

	var (
		g        run.Group
		ingester api.Ingester = api.IngestFunc(deps.Pipeline.Run)
	)
	g.Add(run.SignalHandler(ctx, os.Interrupt, syscall.SIGTERM))

	if cfg.TemporalHostPort != "" {
		// Retry until temporal is ready
		var temporalCli client.Client
		if err := retry.Fibonacci(ctx, 1*time.Second, func(ctx context.Context) error {
			c, err := client.Dial(client.Options{
				HostPort:  cfg.TemporalHostPort,
				Namespace: cfg.TemporalNamespace,
			})
			if err != nil {
				return retry.RetryableError(err)
			}
			temporalCli = c

			return nil
		}); err != nil {
			log.Fatalln("Unable to create Temporal client:", err)
		}
		defer temporalCli.Close()

		ingester = api.IngestFunc(func(ctx context.Context) (newsroom.Report, error) {
			return worker.TriggerIngest(ctx, temporalCli)
		})
	} else {
		// No worker around, so the schedule lives here
		scheduleCtx, cancel := context.WithCancel(ctx)
		g.Add(func() error {
			slog.Info("running ingestion in process", "interval", cfg.Interval)
			return deps.Pipeline.RunEvery(scheduleCtx, cfg.Interval)
		}, func(error) {
			cancel()
		})
	}

	srvr := api.NewServer(api.ServerConfig{
		Port:         cfg.Port,
		AdminToken:   cfg.AdminToken,
		CorsHeader:   cfg.CorsHeader,
		WriteTimeout: cfg.WriteTimeout,
	}, deps.Repo, deps.Registry, ingester, deps.Metrics.Handler())
	g.Add(func() error {
		slog.Info("starting admin server", "port", cfg.Port)
		if err := srvr.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}, func(error) {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srvr.Shutdown(shutdownCtx); err != nil {
			slog.Error("error shutting down server", "error", err)
		}
	})

	if err := g.Run(); err != nil {
		var sigErr run.SignalError
		if !errors.As(err, &sigErr) {
			slog.Error("exiting", "error", err)
			os.Exit(1)
		}
	}
	slog.Info("shut down")
}
