package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"CryptoScreener/internal/api"
	"CryptoScreener/internal/cache"
	"CryptoScreener/internal/collector"
	"CryptoScreener/internal/config"
	"CryptoScreener/internal/logger"
	"CryptoScreener/internal/metrics"
	"CryptoScreener/internal/model"
	"CryptoScreener/internal/notifier"
	"CryptoScreener/internal/recorder"
	"CryptoScreener/internal/scanner"
	"CryptoScreener/internal/scheduler"
)

func main() {
	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "path to the YAML config file")
	once := flag.Bool("once", false, "run a single scan, print the table and exit")
	mock := flag.Bool("mock", false, "use generated demo data instead of an exchange")
	signals := flag.String("signals", "", "comma separated signals to show with -once (default all)")
	trends := flag.String("trends", "", "comma separated trends to show with -once (default all)")
	sortBy := flag.String("sort", "", "order of the -once table: symbol, price or gap")
	detail := flag.String("detail", "", "print the EMA chart of one symbol and exit")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *mock {
		cfg.Exchange.ID = "mock"
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config validation: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format, Output: cfg.Log.Output})
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	log.Info().Str("exchange", cfg.Exchange.ID).Msg("CryptoScreener starting")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, closeCache := initCache(ctx, cfg, log)
	defer closeCache()

	provider, err := collector.New(collector.Options{
		Exchange:  cfg.Exchange.ID,
		BaseURL:   cfg.Exchange.BaseURL,
		Settle:    cfg.Exchange.Settle,
		ProxyURL:  cfg.Proxy,
		Timeout:   cfg.Exchange.Timeout,
		RateLimit: cfg.Exchange.RateLimit,
		Burst:     cfg.Exchange.Burst,
		Cache:     store,
		ListTTL:   cfg.Cache.ListTTL,
		BarsTTL:   cfg.Cache.BarsTTL,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("init provider")
	}

	rec := metrics.New(prometheus.NewRegistry())
	sc := scanner.New(provider,
		scanner.WithWorkers(cfg.Scan.Workers),
		scanner.WithLogger(log),
		scanner.WithMetrics(rec),
	)
	params := cfg.ScanParameters()

	switch {
	case *detail != "":
		if err := runDetail(ctx, sc, params, strings.ToUpper(*detail)); err != nil {
			log.Fatal().Err(err).Msg("detail")
		}
		return
	case *once:
		if err := runOnce(ctx, sc, params, *signals, *trends, *sortBy, log); err != nil {
			log.Fatal().Err(err).Msg("scan")
		}
		return
	}

	runService(ctx, cfg, sc, params, rec, log)
}

func runService(ctx context.Context, cfg *config.Config, sc *scanner.Scanner, params model.ScanParameters, m *metrics.Recorder, log zerolog.Logger) {
	var journal recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
		} else {
			journal = sr
		}
	}
	defer journal.Close()

	var (
		sender scheduler.Sender
		tn     *notifier.TelegramNotifier
	)
	if cfg.TelegramEnabled() {
		var err error
		tn, err = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		if err != nil {
			log.Fatal().Err(err).Msg("init telegram notifier")
		}
		sender = tn
	}

	sched := scheduler.NewScheduler(ctx, sc, params, sender, journal, log)
	if err := sched.Register(cfg.Schedule.ScanCron); err != nil {
		log.Fatal().Err(err).Msg("register cron tasks")
	}
	if cfg.Schedule.ScanCron == "" {
		log.Info().Msg("scheduled scans disabled")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	srv := api.NewServer(cfg.HTTP.Addr, api.NewHandler(sched, journal), m.Handler(), log)
	srv.Start()

	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, scanning now")
		go sched.RunNow()
	}

	log.Info().Msg("CryptoScreener is running. Press Ctrl+C to stop.")
	<-ctx.Done()

	log.Info().Msg("shutdown signal received, stopping...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("stop http server")
	}
}

func runOnce(ctx context.Context, sc *scanner.Scanner, params model.ScanParameters, signals, trends, sortBy string, log zerolog.Logger) error {
	sigFilter, err := parseList(signals, model.AllSignals(), model.ParseSignal)
	if err != nil {
		return err
	}
	trendFilter, err := parseList(trends, model.AllTrends(), model.ParseTrend)
	if err != nil {
		return err
	}
	key, err := scanner.ParseSortKey(sortBy)
	if err != nil {
		return err
	}

	rs, err := sc.Scan(ctx, params, func(p scanner.Progress) {
		ev := log.Debug()
		if p.Err != nil {
			ev = log.Warn().Err(p.Err)
		}
		ev.Int("done", p.Done).Int("total", p.Total).Str("symbol", p.Symbol).Msg("scan progress")
	})
	if err != nil {
		return err
	}
	if rs.Partial {
		log.Warn().Int("records", rs.Len()).Msg("scan interrupted, showing partial results")
	}

	view := rs.Filter(sigFilter, trendFilter).Sorted(key)
	if err := notifier.WriteTable(os.Stdout, view); err != nil {
		return err
	}
	return notifier.WriteSummary(os.Stdout, rs)
}

func runDetail(ctx context.Context, sc *scanner.Scanner, params model.ScanParameters, symbol string) error {
	chart, err := sc.Detail(ctx, params, symbol)
	if err != nil {
		return err
	}
	return notifier.WriteChart(os.Stdout, chart)
}

func initCache(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.BytesCache, func()) {
	switch cfg.Cache.Backend {
	case "redis":
		rc := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
			Prefix:   cfg.Cache.Redis.Prefix,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		defer cancel()
		if err := rc.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Cache.Redis.Addr).Msg("redis unavailable, falling back to memory cache")
			_ = rc.Close()
			return cache.NewTTLCache(), func() {}
		}
		return rc, func() { _ = rc.Close() }
	case "memory":
		return cache.NewTTLCache(), func() {}
	default:
		return nil, func() {}
	}
}

// parseList turns a comma separated flag into values; empty selects all.
func parseList[T any](raw string, all []T, parse func(string) (T, error)) ([]T, error) {
	if strings.TrimSpace(raw) == "" {
		return all, nil
	}
	var out []T
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parse(strings.ToUpper(part))
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
