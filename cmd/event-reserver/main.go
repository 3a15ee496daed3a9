package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventReserver/internal/broker/rabbitmq"
	"eventReserver/internal/config"
	"eventReserver/internal/http-server/handlers/event/createEvent"
	"eventReserver/internal/http-server/handlers/event/getAllEvents"
	"eventReserver/internal/http-server/handlers/event/getEventAvailability"
	"eventReserver/internal/http-server/handlers/reservation/cancelReservation"
	"eventReserver/internal/http-server/handlers/reservation/confirmReservation"
	"eventReserver/internal/http-server/handlers/reservation/createHold"
	"eventReserver/internal/http-server/middleware/auth"
	"eventReserver/internal/http-server/middleware/mwlogger"
	"eventReserver/internal/lib/logger/handlers/slogpretty"
	"eventReserver/internal/lib/logger/sl"
	"eventReserver/internal/lib/readiness"
	"eventReserver/internal/metrics"
	"eventReserver/internal/models"
	"eventReserver/internal/reservation"
	"eventReserver/internal/storage/memory"
	"eventReserver/internal/storage/postgres"
	"eventReserver/internal/sweeper"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

// store is what both ledger drivers provide.
type store interface {
	reservation.Ledger
	sweeper.Purger
	createEvent.EventCreator
	getAllEvents.EventsGetter
	Close() error
}

type publisher interface {
	Publish(ctx context.Context, event models.ReservationEvent) error
	Close() error
}

// app holds what the background initialization produced.
type app struct {
	store     store
	publisher publisher
	sweeper   *sweeper.Sweeper
	metrics   *metrics.Metrics
}

func main() {
	cfg := config.MustLoad()

	log := setupLogger(cfg.Env)

	log.Info("starting event reserver", slog.String("env", cfg.Env))
	log.Debug("debug messages are enabled")

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gate := readiness.New()

	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(mwlogger.New(log))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Get("/readyz", gate.ReadyzHandler())
	router.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	router.Mount("/", gate)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// The listener comes up first so liveness answers while the store
	// is still being reached.
	serveErr := make(chan error, 1)
	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	initCtx, cancelInit := context.WithCancel(ctx)
	defer cancelInit()

	// ready always receives exactly once, nil when initialization failed.
	ready := make(chan *app, 1)
	go func() {
		a, err := initialize(initCtx, log, cfg, reg)
		if err != nil {
			log.Error("initialization failed, service stays not ready", sl.Err(err))
			gate.Fail(err)
			ready <- nil
			return
		}

		gate.Serve(newAPIRouter(log, a, cfg))
		log.Info("service is ready")

		ready <- a
	}()

	select {
	case <-ctx.Done():
		log.Info("application stopping", slog.String("reason", context.Cause(ctx).Error()))
	case err := <-serveErr:
		log.Error("failed to start server", sl.Err(err))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("failed to shutdown server", sl.Err(err))
	}

	cancelInit()

	a, err := awaitInit(shutdownCtx, ready)
	switch {
	case err != nil:
		log.Error("initialization did not finish before shutdown", sl.Err(err))
	case a != nil:
		a.close(shutdownCtx, log)
	}

	log.Info("application stopped")
}

// awaitInit waits for the initialization goroutine so that resources it
// opened late are still closed.
func awaitInit(ctx context.Context, ready <-chan *app) (*app, error) {
	select {
	case a := <-ready:
		return a, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// initialize connects the ledger, the audit publisher and the sweeper.
func initialize(ctx context.Context, log *slog.Logger, cfg *config.Config, reg prometheus.Registerer) (*app, error) {
	const op = "main.initialize"

	st, err := openStore(ctx, log, &cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var pub publisher = rabbitmq.Nop{}
	if cfg.Broker.Enabled {
		p, err := rabbitmq.Dial(cfg.Broker.URL, cfg.Broker.Exchange)
		if err != nil {
			_ = st.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		pub = p
		log.Info("audit publisher connected", slog.String("exchange", cfg.Broker.Exchange))
	}

	m, err := metrics.New(reg)
	if err != nil {
		_ = st.Close()
		_ = pub.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sw := sweeper.New(log, st, cfg.Reservation.SweepInterval,
		sweeper.WithPublisher(pub),
		sweeper.WithObserver(m),
	)
	if err = sw.Start(); err != nil {
		_ = st.Close()
		_ = pub.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &app{store: st, publisher: pub, sweeper: sw, metrics: m}, nil
}

func openStore(ctx context.Context, log *slog.Logger, dbCfg *config.Database) (store, error) {
	switch dbCfg.Driver {
	case driverMemory:
		log.Warn("using in-memory ledger, data is lost on restart")
		return memory.New(), nil
	case driverPostgres:
		st, err := postgres.InitDB(ctx, dbCfg)
		if err != nil {
			return nil, err
		}
		if err = st.Migrate(ctx); err != nil {
			_ = st.Close()
			return nil, err
		}
		log.Info("postgres ledger ready", slog.String("host", dbCfg.Host), slog.String("dbname", dbCfg.DBName))
		return st, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", dbCfg.Driver)
	}
}

func newAPIRouter(log *slog.Logger, a *app, cfg *config.Config) http.Handler {
	svc := reservation.New(log, a.store,
		reservation.WithHoldDuration(cfg.Reservation.HoldDuration),
		reservation.WithPublisher(a.publisher),
		reservation.WithRecorder(a.metrics),
	)

	authenticate := auth.New(log, []byte(cfg.Auth.JWTSecret))

	router := chi.NewRouter()

	router.Get("/events", getAllEvents.New(log, a.store))
	router.Get("/events/{id}", getEventAvailability.New(log, svc))

	router.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/events", createEvent.New(log, a.store))
		r.Post("/events/{id}/hold", createHold.New(log, svc))
		r.Post("/reservations/{id}/confirm", confirmReservation.New(log, svc))
		r.Post("/reservations/{id}/cancel", cancelReservation.New(log, svc))
	})

	return router
}

func (a *app) close(ctx context.Context, log *slog.Logger) {
	a.sweeper.Stop(ctx)

	if err := a.publisher.Close(); err != nil {
		log.Error("failed to close audit publisher", sl.Err(err))
	}

	if err := a.store.Close(); err != nil {
		log.Error("failed to close storage", sl.Err(err))
	}

	log.Info("storage closed")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	h := opts.NewPrettyHandler(os.Stdout)

	return slog.New(h)
}
