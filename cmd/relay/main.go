package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"orderrelay/internal/api"
	"orderrelay/internal/buildinfo"
	"orderrelay/internal/config"
	"orderrelay/internal/diff"
	"orderrelay/internal/directory"
	"orderrelay/internal/metrics"
	"orderrelay/internal/notify"
	"orderrelay/internal/poller"
	"orderrelay/internal/remote"
	"orderrelay/internal/snapshot"
	"orderrelay/internal/store"
)

func main() {
	flags := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	configPath := flags.StringP("config", "c", os.Getenv("CONFIG_FILE"), "path to a YAML config file")
	if err := flags.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath, os.Getenv)
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.SlogLevel()}))
	slog.SetDefault(logger)
	metrics.RegisterDefault()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	client, err := remote.New(remote.Config{
		BaseURL:    cfg.APIBaseURL,
		APIKey:     cfg.APIKey,
		PageSize:   cfg.PageSize,
		MaxRetries: cfg.MaxRetries,
		Timeout:    cfg.HTTPTimeout,
		RateRPS:    cfg.RateRPS,
		RateBurst:  cfg.RateBurst,
		Logger:     logger,
	})
	if err != nil {
		return err
	}

	loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	dir, err := directory.Load(loadCtx, client)
	cancel()
	if err != nil {
		return err
	}
	logger.Info("engineer directory loaded", "engineers", dir.Len())

	var journal store.Store
	if cfg.DatabaseURL == "" {
		journal = store.NewMemory()
	} else {
		pg, err := store.NewPostgres(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() { _ = pg.Close() }()
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		journal = pg
	}

	var broker notify.EventBroker = notify.NewBroker()
	if cfg.RedisURL != "" {
		rb, err := notify.NewRedisBroker(cfg.RedisURL, logger)
		if err != nil {
			logger.Warn("redis broker unavailable, using in-memory broker", "error", err)
		} else {
			defer func() { _ = rb.Close() }()
			broker = rb
		}
	}

	channels, err := notify.ParseChannels(cfg.NotifyChannels, cfg.TelegramChatIDs, notify.ChannelOptions{
		TelegramToken: cfg.TelegramToken,
		TelegramAPI:   cfg.TelegramAPIURL,
		WebhookSecret: cfg.WebhookSecret,
		Broker:        broker,
	})
	if err != nil {
		return err
	}
	fanout := notify.NewFanout(channels, journal, logger)

	srv := &api.Server{
		Remote:    client,
		Directory: dir,
		Store:     journal,
		Broker:    broker,
		Config:    cfg,
		Logger:    logger,
	}

	if fanout.Len() > 0 {
		snap := snapshot.NewMemory()
		p, err := poller.New(poller.Config{Interval: cfg.PollInterval}, client, diff.NewEngine(dir), snap, fanout, logger)
		if err != nil {
			return err
		}
		srv.Poller, srv.Snapshot, srv.Retrier = p, snap, fanout
		go p.Run(ctx)
		logger.Info("order polling started", "interval", cfg.PollInterval, "channels", fanout.Channels())
	} else {
		logger.Info("no notification channels configured, polling disabled")
	}

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	logger.Info("relay listening", "addr", httpSrv.Addr, "build", buildinfo.Info())
	if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
