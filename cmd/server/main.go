package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	_ "github.com/lib/pq"

	"github.com/qz-yi/Satha-Choice-sub000/internal/config"
	"github.com/qz-yi/Satha-Choice-sub000/internal/dispatch"
	httpapi "github.com/qz-yi/Satha-Choice-sub000/internal/http"
	"github.com/qz-yi/Satha-Choice-sub000/internal/ingest"
	"github.com/qz-yi/Satha-Choice-sub000/internal/logging"
	"github.com/qz-yi/Satha-Choice-sub000/internal/models"
	"github.com/qz-yi/Satha-Choice-sub000/internal/orders"
	"github.com/qz-yi/Satha-Choice-sub000/internal/payments"
	"github.com/qz-yi/Satha-Choice-sub000/internal/presence"
	"github.com/qz-yi/Satha-Choice-sub000/internal/settings"
	"github.com/qz-yi/Satha-Choice-sub000/internal/storage"
	"github.com/qz-yi/Satha-Choice-sub000/internal/wallet"
)

func main() {
	cfg, err := config.LoadServerConfig()
	if err != nil {
		logging.NewLogger("error").Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.LogLevel)

	var (
		store  storage.RequestStore
		dir    storage.DriverDirectory
		ledger wallet.Ledger
	)
	if cfg.PGDSN != "" {
		ps, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connect failed", "error", err)
			os.Exit(1)
		}
		if cfg.RunMigrations {
			if err := runMigrations(ps.DB()); err != nil {
				logger.Error("migration failed", "error", err)
				os.Exit(1)
			}
			logger.Info("migrations applied")
		}
		store = ps
		dir = storage.NewPostgresDriverDirectory(ps)
		ledger = wallet.NewPostgresLedger(ps.DB())
	} else {
		memDir := storage.NewMemoryDriverDirectory()
		store = storage.NewMemoryRequestStore()
		dir = memDir
		// Keep the cached driver balance in lockstep with the ledger.
		ledger = wallet.NewMemoryLedger(func(ctx context.Context, ownerType models.OwnerType, ownerID string, balance int64) {
			if ownerType != models.OwnerDriver {
				return
			}
			if _, err := memDir.Update(ctx, ownerID, storage.DriverPatch{WalletBalance: &balance}); err != nil && !errors.Is(err, storage.ErrNotFound) {
				logger.Warn("balance projection failed", "driver_id", ownerID, "error", err)
			}
		})
		logger.Warn("PG_DSN not set; using in-memory storage")
	}

	var pres presence.Registry
	if cfg.RedisAddr != "" {
		pres = presence.NewRedisRegistry(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		pres = presence.NewMemoryRegistry()
	}

	var producer *ingest.Producer
	if len(cfg.KafkaBrokers) > 0 {
		producer = ingest.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
	}

	var stripeClient *payments.StripeClient
	if os.Getenv("STRIPE_API_KEY") != "" {
		stripeClient = payments.NewStripeClient()
	}

	tuning := settings.New(cfg.CommissionAmount)
	registry := dispatch.NewSessionRegistry()
	rooms := dispatch.NewRoomRouter(logger)
	broadcaster := dispatch.NewBroadcaster(registry, dir, store, logger)
	svc := &orders.Service{
		Store:    store,
		Drivers:  dir,
		Ledger:   ledger,
		Settings: tuning,
		Events:   rooms,
		Logger:   logger,
	}
	gateway := &dispatch.Gateway{
		Registry:      registry,
		Rooms:         rooms,
		Broadcaster:   broadcaster,
		Orders:        svc,
		Presence:      pres,
		Store:         store,
		Locations:     producer,
		MinMoveMeters: cfg.MinMoveMeters,
		Logger:        logger,
	}

	api := httpapi.NewServer(logger, httpapi.Deps{
		Orders:   svc,
		Store:    store,
		Drivers:  dir,
		Ledger:   ledger,
		Settings: tuning,
		Gateway:  gateway,
		Stripe:   stripeClient,
	})

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      api,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("dispatch api listening", "addr", cfg.HTTPAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", "error", err)
			os.Exit(1)
		}
	}
}

func runMigrations(db *sql.DB) error {
	b, err := os.ReadFile(filepath.Join("migrations", "001_init.sql"))
	if err != nil {
		return err
	}
	_, err = db.Exec(string(b))
	return err
}
