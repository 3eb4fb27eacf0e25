package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/auth"
	"github.com/iurnickita/topuprouter/internal/config"
	"github.com/iurnickita/topuprouter/internal/eliteclient"
	"github.com/iurnickita/topuprouter/internal/g2gclient"
	"github.com/iurnickita/topuprouter/internal/handler"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/logger"
	"github.com/iurnickita/topuprouter/internal/mapping"
	"github.com/iurnickita/topuprouter/internal/metrics"
	"github.com/iurnickita/topuprouter/internal/pricing"
	"github.com/iurnickita/topuprouter/internal/router"
	"github.com/iurnickita/topuprouter/internal/store"
	"github.com/iurnickita/topuprouter/internal/tracker"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.GetConfig()
	if err != nil {
		return err
	}

	zaplog, err := logger.NewZapLog(cfg.Logger)
	if err != nil {
		return err
	}
	defer zaplog.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := store.NewStore(cfg.Store)
	if err != nil {
		return err
	}
	defer store.Close()

	sink, err := audit.NewSink(cfg.Audit, zaplog)
	if err != nil {
		return err
	}
	defer sink.Close()

	source, err := mapping.NewSource(ctx, cfg.Mapping)
	if err != nil {
		return err
	}

	g2g := g2gclient.NewClient(cfg.G2G, cfg.Upstream)
	lapak := lapakclient.NewClient(cfg.Lapak, cfg.Upstream)
	elite := eliteclient.NewClient(cfg.Elite, cfg.Upstream)
	quoter := pricing.NewQuoter(pricing.Config{
		LapakCountries: cfg.Lapak.CountryCodes,
		LapakCurrency:  cfg.Lapak.Currency,
		EliteCurrency:  cfg.Elite.Currency,
	}, lapak, elite)

	pool := tracker.NewPool(cfg.Tracker, store, sink, g2g, lapak, elite, zaplog)
	router := router.NewRouter(store, sink, source, quoter, g2g, lapak, elite, pool, zaplog)
	auth := auth.NewAuth(cfg.Auth)
	metrics.Register()

	// заказы, оставшиеся с прошлого запуска
	if _, err := pool.Reconcile(ctx); err != nil {
		return err
	}

	h := handler.NewHandler(cfg.Handler, router, pool, sink, auth, zaplog)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Serve(gctx, cfg.Handler, h, zaplog)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Handler.ShutdownTimeout)
		defer cancel()
		if err := pool.Shutdown(shutdownCtx); err != nil {
			zaplog.Info("trackers shutdown", zap.Error(err))
		}
		return nil
	})
	return g.Wait()
}
