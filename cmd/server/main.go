package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/olyamironova/oms-engine/internal/adapter/cache"
	"github.com/olyamironova/oms-engine/internal/adapter/in_memory"
	"github.com/olyamironova/oms-engine/internal/adapter/pebblestore"
	"github.com/olyamironova/oms-engine/internal/adapter/pg"
	"github.com/olyamironova/oms-engine/internal/adapter/sim"
	"github.com/olyamironova/oms-engine/internal/adapter/wsfeed"
	"github.com/olyamironova/oms-engine/internal/api/grpc"
	"github.com/olyamironova/oms-engine/internal/api/http"
	"github.com/olyamironova/oms-engine/internal/api/ops"
	"github.com/olyamironova/oms-engine/internal/config"
	"github.com/olyamironova/oms-engine/internal/core"
	"github.com/olyamironova/oms-engine/internal/domain"
	"github.com/olyamironova/oms-engine/internal/logging"
	"github.com/olyamironova/oms-engine/internal/port"
)

func main() {
	envPath := flag.String("env", "", "path to a .env file")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*envPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger, err := logging.New(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting", zap.Any("server", cfg.Server), zap.String("storage", cfg.Storage.Backend), zap.Stringer("feed", cfg.Feed))
	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	base, err := domain.InstrumentBySymbol(cfg.Simulation.BaseInstrument)
	if err != nil {
		return err
	}
	pair, err := domain.ParsePair(cfg.Simulation.Pair)
	if err != nil {
		return err
	}
	balances, err := cfg.Simulation.ParseBalances()
	if err != nil {
		return err
	}

	clock := domain.NewClockAt(cfg.Simulation.StartStep)
	ex, closeExchange, err := openExchange(ctx, cfg, clock, pair, logger)
	if err != nil {
		return err
	}
	defer closeExchange()

	portfolio := core.NewPortfolio(base, clock)
	portfolio.AddExchange(ex)
	for _, q := range balances {
		portfolio.AddWallet(core.NewWallet(ex, q))
	}

	repo, err := openRepository(ctx, cfg.Storage)
	if err != nil {
		return err
	}
	defer repo.Close(context.Background())

	checks := []ops.Check{{
		Name: "price",
		Fn: func(context.Context) error {
			_, err := ex.QuotePrice(pair)
			return err
		},
	}}
	if pinger, ok := repo.(interface{ Ping(context.Context) error }); ok {
		checks = append(checks, ops.Check{Name: "postgres", Fn: pinger.Ping})
	}
	var c port.Cache = in_memory.NewCache()
	if cfg.Cache.Enabled {
		rc := cache.NewRedisCache(cfg.Cache.Addr, cfg.Cache.Password, cfg.Cache.DB, cfg.Cache.TTL, cfg.Cache.Namespace)
		defer rc.Close()
		if err := rc.Ping(ctx); err != nil {
			logger.Warn("redis unreachable, continuing", zap.String("addr", cfg.Cache.Addr), zap.Error(err))
		}
		checks = append(checks, ops.Check{Name: "redis", Fn: rc.Ping})
		c = rc
	}

	eng := core.NewEngine(portfolio,
		core.WithRepository(repo),
		core.WithCache(c, cfg.Cache.TTL),
		core.WithLogger(logger.Named("engine")),
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return http.NewHTTPServer(eng, logger.Named("http"), cfg.Server.RateLimit, cfg.Server.CORSOrigins).Run(ctx, cfg.Server.HTTPAddr)
	})
	g.Go(func() error {
		return grpc.NewGRPCServer(eng, logger.Named("grpc")).Run(ctx, cfg.Server.GRPCAddr)
	})
	g.Go(func() error {
		return ops.NewServer(eng, logger.Named("ops"), checks...).Run(ctx, cfg.Server.OpsAddr)
	})
	g.Go(func() error {
		return drive(ctx, eng, cfg.Simulation.Steps, cfg.Simulation.Interval, logger)
	})
	return g.Wait()
}

func openExchange(ctx context.Context, cfg config.Config, clock *domain.Clock, pair domain.TradingPair,
	logger *zap.Logger) (port.Exchange, func(), error) {
	if cfg.Feed.URL != "" {
		feed, err := wsfeed.Dial(ctx, wsfeed.Config{
			Name:      cfg.Simulation.Exchange,
			URL:       cfg.Feed.URL,
			APIKey:    cfg.Feed.APIKey,
			APISecret: cfg.Feed.APISecret,
			Pairs:     []domain.TradingPair{pair},
			Window:    cfg.Feed.Window,
		}, logger.Named("feed"))
		if err != nil {
			return nil, nil, err
		}
		return feed, func() { _ = feed.Close() }, nil
	}

	ex := sim.New(cfg.Simulation.Exchange, clock)
	if cfg.Simulation.PriceFile == "" {
		logger.Warn("no price file, the simulated exchange has no quotes", zap.String("pair", pair.String()))
		return ex, func() {}, nil
	}
	if err := ex.LoadFile(pair, cfg.Simulation.PriceFile); err != nil {
		return nil, nil, err
	}
	return ex, func() {}, nil
}

func openRepository(ctx context.Context, cfg config.Storage) (port.Repository, error) {
	switch cfg.Backend {
	case "memory":
		return in_memory.NewMemoryRepo(), nil
	case "pg":
		repo, err := pg.NewPgRepo(ctx, cfg.PGDSN)
		if err != nil {
			return nil, err
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close(ctx)
			return nil, err
		}
		return repo, nil
	case "pebble":
		return pebblestore.Open(cfg.PebblePath)
	}
	return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

// drive evaluates one step per interval until steps have elapsed or ctx is
// done. The servers keep running after the episode ends.
func drive(ctx context.Context, eng *core.Engine, steps int, interval time.Duration, logger *zap.Logger) error {
	clock := eng.Portfolio().Clock()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for n := 0; n < steps; n++ {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := eng.Step(ctx); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		clock.Advance()
	}
	logger.Info("episode finished",
		zap.Int("steps", steps),
		zap.Int64("step", clock.Step()),
		zap.String("net_worth", eng.NetWorth().String()),
	)
	return nil
}
