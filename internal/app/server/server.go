package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"google.golang.org/api/iterator"

	"opsdesk/internal/domain/attendance"
	"opsdesk/internal/domain/audit"
	"opsdesk/internal/domain/auth"
	"opsdesk/internal/domain/geo"
	"opsdesk/internal/domain/ledger"
	"opsdesk/internal/domain/location"
	"opsdesk/internal/domain/reports"
	"opsdesk/internal/domain/staff"
	"opsdesk/internal/platform/clock"
	"opsdesk/internal/platform/config"
	"opsdesk/internal/platform/db"
	"opsdesk/internal/platform/docstore"
	"opsdesk/internal/platform/jobs"
	"opsdesk/internal/platform/metrics"
	"opsdesk/internal/transport/http/api"
	attendancehandler "opsdesk/internal/transport/http/handlers/attendance"
	audithandler "opsdesk/internal/transport/http/handlers/audit"
	authhandler "opsdesk/internal/transport/http/handlers/auth"
	ledgerhandler "opsdesk/internal/transport/http/handlers/ledger"
	reportshandler "opsdesk/internal/transport/http/handlers/reports"
	staffhandler "opsdesk/internal/transport/http/handlers/staff"
	"opsdesk/internal/transport/http/middleware"
)

type auditTrail interface {
	audit.Recorder
	audit.Lister
}

// stores is one persistence backend's set of collaborators.
type stores struct {
	users       auth.StoreAPI
	staff       staff.StoreAPI
	attendance  attendance.StoreAPI
	ledger      ledger.StoreAPI
	audit       auditTrail
	idempotency middleware.IdempotencyStore
	pool        *pgxpool.Pool
	ping        func(context.Context) error
	close       func()
}

type App struct {
	Config  config.Config
	Router  http.Handler
	Jobs    *jobs.Service
	Metrics *metrics.Collector
	stores  stores
}

// Presets builds the named work locations from configuration.
func Presets(cfg config.Config) location.Presets {
	site := func(s config.Site) geo.Target {
		return geo.Target{Name: s.Name, Lat: s.Lat, Lng: s.Lng, AllowedRadiusMeters: s.RadiusMeters}
	}
	presets := location.Presets{
		location.KindHeadOffice: site(cfg.HeadOffice),
		location.KindField:      site(cfg.Field),
	}
	if cfg.Factory.Lat != 0 || cfg.Factory.Lng != 0 {
		presets[location.KindFactory] = site(cfg.Factory)
	}
	return presets
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	switch cfg.StoreBackend {
	case config.BackendPostgres:
		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return stores{}, fmt.Errorf("db connect: %w", err)
		}
		if cfg.RunMigrations {
			if err := db.Migrate(ctx, pool, cfg.MigrationsDir); err != nil {
				pool.Close()
				return stores{}, fmt.Errorf("migrations: %w", err)
			}
		}
		return stores{
			users:       auth.NewStore(pool),
			staff:       staff.NewStore(pool),
			attendance:  attendance.NewStore(pool),
			ledger:      ledger.NewStore(pool),
			audit:       audit.New(pool),
			idempotency: middleware.NewIdempotencyStore(pool),
			pool:        pool,
			ping:        pool.Ping,
			close:       pool.Close,
		}, nil
	case config.BackendFirestore:
		client, err := docstore.Connect(ctx, cfg)
		if err != nil {
			return stores{}, fmt.Errorf("firestore connect: %w", err)
		}
		return stores{
			users:       auth.NewFirestoreStore(client),
			staff:       staff.NewFirestoreStore(client),
			attendance:  attendance.NewFirestoreStore(client),
			ledger:      ledger.NewFirestoreStore(client),
			audit:       audit.Nop{},
			idempotency: middleware.NewMemoryIdempotencyStore(),
			ping:        func(ctx context.Context) error { return pingFirestore(ctx, client) },
			close: func() {
				if err := client.Close(); err != nil {
					slog.Warn("firestore close failed", "err", err)
				}
			},
		}, nil
	case config.BackendMemory:
		slog.Warn("using in-memory store; data is lost on restart")
		return stores{
			users:       auth.NewMemoryStore(),
			staff:       staff.NewMemoryStore(),
			attendance:  attendance.NewMemoryStore(),
			ledger:      ledger.NewMemoryStore(),
			audit:       &audit.Memory{},
			idempotency: middleware.NewMemoryIdempotencyStore(),
			ping:        func(context.Context) error { return nil },
			close:       func() {},
		}, nil
	}
	return stores{}, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func pingFirestore(ctx context.Context, client *firestore.Client) error {
	iter := client.Collection("staff").Limit(1).Documents(ctx)
	defer iter.Stop()
	if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
		return err
	}
	return nil
}

// New wires the configured backend, domain services and HTTP router.
func New(ctx context.Context, cfg config.Config, clk clock.Clock) (*App, error) {
	if clk == nil {
		clk = clock.System()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	officeStart, err := attendance.ParseTimeOfDay(cfg.OfficeStart)
	if err != nil {
		return nil, err
	}

	st, err := openStores(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.RunSeed {
		if err := db.Seed(ctx, st.users, cfg); err != nil {
			st.close()
			return nil, fmt.Errorf("seed: %w", err)
		}
	}

	collector := metrics.New()
	staffSvc := staff.NewService(st.staff, Presets(cfg), clk)
	attendanceSvc := attendance.NewService(st.attendance, attendance.NewGate(clk, officeStart, loc), collector)
	ledgerSvc := ledger.NewService(st.ledger, clk)
	reportsSvc := reports.NewService(ledgerSvc, attendanceSvc, staffSvc, clk, loc, cfg.ReportsDir)
	jobsSvc := jobs.New(st.pool, attendanceSvc, staffSvc, reportsSvc, clk, cfg.AbsenceInterval)
	perms := auth.StaticPermissions{}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(collector))
	router.Use(middleware.Recoverer)
	router.Use(middleware.SecureHeaders(cfg.Environment == "production"))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))
	router.Use(middleware.Auth(cfg.JWTSecret))
	router.Use(middleware.RateLimit(cfg.RateLimitPerMinute, time.Minute))
	router.Use(middleware.SensitiveMutationRateLimit(cfg.RateLimitPerMinute, time.Minute))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := st.ping(ctx); err != nil {
			http.Error(w, "store not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.With(middleware.RequirePermission(auth.PermSystemMaintenance, perms)).Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, collector.Snapshot(), middleware.GetRequestID(r.Context()))
		})
	}

	router.Route("/api/v1", func(r chi.Router) {
		authhandler.NewHandler(st.users, cfg.JWTSecret, cfg.TokenTTL).RegisterRoutes(r)
		staffhandler.NewHandler(staffSvc, perms).RegisterRoutes(r)
		attendancehandler.NewHandler(attendanceSvc, staffSvc, jobsSvc, st.audit, perms, clk, cfg.SamplingWindow, cfg.SampleTimeout).RegisterRoutes(r)
		ledgerhandler.NewHandler(ledgerSvc, staffSvc, st.audit, st.idempotency, perms).RegisterRoutes(r)
		reportshandler.NewHandler(reportsSvc, perms).RegisterRoutes(r)
		audithandler.NewHandler(st.audit, perms).RegisterRoutes(r)

		r.With(middleware.RequirePermission(auth.PermSystemMaintenance, perms)).Get("/system/jobs", func(w http.ResponseWriter, r *http.Request) {
			api.Success(w, jobsSvc.Recent(), middleware.GetRequestID(r.Context()))
		})
	})

	return &App{Config: cfg, Router: router, Jobs: jobsSvc, Metrics: collector, stores: st}, nil
}

func (a *App) Close() {
	a.stores.close()
}

func Run() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := New(ctx, cfg, nil)
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	defer app.Close()
	app.Jobs.Start(ctx)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("server shutdown failed", "err", err)
		}
	}()

	log.Printf("opsdesk server listening on %s (store=%s)", cfg.Addr, cfg.StoreBackend)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("server failed: %v", err)
	}
}
