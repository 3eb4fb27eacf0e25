package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/iurnickita/topuprouter/internal/audit"
	"github.com/iurnickita/topuprouter/internal/auth"
	"github.com/iurnickita/topuprouter/internal/handler/config"
	"github.com/iurnickita/topuprouter/internal/lapakclient"
	"github.com/iurnickita/topuprouter/internal/logger"
	"github.com/iurnickita/topuprouter/internal/model"
	"github.com/iurnickita/topuprouter/internal/router"
	"github.com/iurnickita/topuprouter/internal/tracker"
)

type Router interface {
	Route(ctx context.Context, event model.DeliveryEvent) router.Outcome
}

type Trackers interface {
	HandleLapakCallback(ctx context.Context, status lapakclient.OrderStatus) error
	Live() []tracker.Task
	Reconcile(ctx context.Context) (int, error)
}

// Serve обслуживает HTTP до отмены ctx, затем останавливает сервер
func Serve(ctx context.Context, cfg config.Config, h http.Handler, zaplog *zap.Logger) error {
	srv := &http.Server{
		Addr:              cfg.ServerAddr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		timeout := cfg.ShutdownTimeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			zaplog.Info("http shutdown", zap.Error(err))
		}
	}()

	zaplog.Info("http server started", zap.String("addr", cfg.ServerAddr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type handler struct {
	cfg      config.Config
	router   Router
	trackers Trackers
	sink     audit.Sink
	auth     auth.Auth
	zaplog   *zap.Logger
}

func NewHandler(cfg config.Config,
	router Router,
	trackers Trackers,
	sink audit.Sink,
	auth auth.Auth,
	zaplog *zap.Logger) http.Handler {
	h := &handler{
		cfg:      cfg,
		router:   router,
		trackers: trackers,
		sink:     sink,
		auth:     auth,
		zaplog:   zaplog,
	}
	return h.newRouter()
}

func (h *handler) newRouter() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/g2g", h.hello)
	r.Post("/g2g", logger.RequestLogMdlw(h.webhook, h.zaplog))

	// адреса уведомлений, зарегистрированные в lapakgaming
	r.Route("/lpk", func(r chi.Router) {
		r.Post("/order", logger.RequestLogMdlw(h.lapakOrder, h.zaplog))
		r.Post("/product", logger.RequestLogMdlw(h.lapakProduct, h.zaplog))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(logger.Middleware(h.zaplog))
		r.Get("/audit", h.auth.Middleware(h.auditList))
		r.Get("/audit/{index}", h.auth.Middleware(h.auditGet))
		r.Get("/trackers", h.auth.Middleware(h.trackersLive))
		r.Post("/trackers/reconcile", h.auth.Middleware(h.trackersReconcile))
	})

	r.Handle("/metrics", promhttp.Handler())
	return r
}

func (h *handler) hello(w http.ResponseWriter, r *http.Request) {
	w.Write([]byte("Hello from G2G webhook"))
}
