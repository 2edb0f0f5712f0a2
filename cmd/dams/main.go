package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"dams/internal/apiclient"
	"dams/internal/cli"
	"dams/internal/cloudinary"
	"dams/internal/config"
	"dams/internal/session"
	"dams/internal/store"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "dams: invalid configuration:\n%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, cfg, os.Args[1:])
	stop()
	os.Exit(code)
}

func run(ctx context.Context, cfg config.App, args []string) int {
	logger := log.New(io.Discard, "", 0)
	if cfg.Verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	storage, closeStorage, err := openStorage(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dams: session storage: %v\n", err)
		return 1
	}
	defer closeStorage()

	sess := session.New(storage, logger)
	sess.Load(ctx)

	reg := prometheus.NewRegistry()
	client := apiclient.New(apiclient.Options{
		BaseURL:  cfg.APIBaseURL,
		Timeout:  cfg.HTTPTimeout,
		Tokens:   sess,
		CacheTTL: cfg.CacheTTL,
		Logger:   logger,
		Metrics:  apiclient.NewMetrics(reg),
	})

	var photos *cloudinary.Client
	if cfg.CloudinaryConfigured() {
		photos = cloudinary.New(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret, cfg.CloudinaryFolder)
	}

	app := &cli.App{
		Session:    sess,
		Client:     client,
		Photos:     photos,
		PageSize:   cfg.PageSize,
		PhotoHosts: cfg.PhotoHosts,
		In:         os.Stdin,
		Out:        os.Stdout,
	}
	err = app.Run(ctx, args)
	if cfg.Verbose {
		logRequestStats(logger, reg)
	}
	switch {
	case err == nil:
		return 0
	case errors.Is(err, cli.ErrUsage):
		fmt.Fprintf(os.Stderr, "dams: %v\n", err)
		return 2
	default:
		fmt.Fprintf(os.Stderr, "dams: %v\n", err)
		return 1
	}
}

// openStorage picks the durable session backend named in the config.
func openStorage(ctx context.Context, cfg config.App) (store.Storage, func(), error) {
	noop := func() {}
	switch cfg.SessionBackend {
	case config.BackendMemory:
		return store.NewMemory(), noop, nil
	case config.BackendRedis:
		r := store.NewRedis(cfg.RedisAddr)
		if !r.Healthy(ctx) {
			_ = r.Close()
			return nil, noop, fmt.Errorf("redis at %s is not reachable", cfg.RedisAddr)
		}
		return r, func() { _ = r.Close() }, nil
	case config.BackendPostgres:
		pg, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, noop, err
		}
		return pg, func() { _ = pg.Close() }, nil
	default:
		return store.NewFile(cfg.SessionPath), noop, nil
	}
}

// logRequestStats summarises the client metrics gathered during this run.
func logRequestStats(logger *log.Logger, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		logger.Printf("[metrics] gather failed: %v", err)
		return
	}
	for _, mf := range families {
		if mf.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := ""
			for _, lp := range m.GetLabel() {
				labels += fmt.Sprintf(" %s=%s", lp.GetName(), lp.GetValue())
			}
			logger.Printf("[metrics] %s%s value=%v", mf.GetName(), labels, m.GetCounter().GetValue())
		}
	}
}
