package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/gin-gonic/gin"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"loanledger/internal/app"
	"loanledger/internal/clock"
	"loanledger/internal/config"
	"loanledger/internal/handlers"
	"loanledger/internal/migrations"
	"loanledger/internal/repositories"
	"loanledger/internal/services"
	"loanledger/internal/store"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := app.NewLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	recordStore, closeStore, err := openStore(cfg.Storage, log)
	if err != nil {
		return err
	}
	defer closeStore()

	clk, err := newClock(cfg.Clock)
	if err != nil {
		return err
	}

	ledger, err := services.NewLedger(recordStore, clk, services.LedgerOptions{
		LoansCollection:     cfg.Storage.LoansCollection,
		PenaltiesCollection: cfg.Storage.PenaltiesCollection,
		DailyPenaltyRate:    cfg.Ledger.DailyPenaltyRate,
		CurrencyLocale:      cfg.Ledger.CurrencyLocale,
	}, log)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	var bookRepo repositories.BookRepository
	if cfg.Catalog.Enabled() {
		db, err := openCatalog(ctx, cfg.Catalog, log)
		if err != nil {
			return err
		}
		bookRepo = repositories.NewBookRepository(db)
	} else {
		log.Info("catalog disabled, borrow requests must carry a title")
	}

	libraryService := services.NewLibraryService(ledger, bookRepo, clk, services.LibraryOptions{
		DefaultLoanDays:          cfg.Ledger.DefaultLoanDays,
		ApproachingThresholdDays: cfg.Ledger.ApproachingThresholdDays,
	}, log)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestLogger(log))
	handlers.RegisterRoutes(router, libraryService, log)

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting server",
			slog.String("addr", srv.Addr),
			slog.String("storage", cfg.Storage.Driver),
			slog.Bool("test_mode", cfg.Clock.TestMode),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func openStore(cfg config.StorageConfig, log *slog.Logger) (store.RecordStore, func(), error) {
	switch cfg.Driver {
	case config.DriverBolt:
		st, err := store.OpenBolt(cfg.BoltPath, cfg.BoltTimeout, log)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {
			if err := st.Close(); err != nil {
				log.Error("close bolt store", slog.String("error", err.Error()))
			}
		}, nil
	default:
		st, err := store.NewFileStore(cfg.DataDir, store.Options{
			AdvisoryLock: cfg.AdvisoryLock,
			Retries:      cfg.SaveRetries,
			RetryDelay:   cfg.RetryDelay,
		}, log)
		if err != nil {
			return nil, nil, err
		}
		return st, func() {}, nil
	}
}

func newClock(cfg config.ClockConfig) (clock.Clock, error) {
	if !cfg.TestMode {
		return clock.System{}, nil
	}
	clk := clock.NewManual()
	if cfg.Date != "" {
		if err := clk.SetDate(cfg.Date); err != nil {
			return nil, err
		}
	}
	return clk, nil
}

func openCatalog(ctx context.Context, cfg config.CatalogConfig, log *slog.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect catalog database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get generic DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if cfg.Migrate {
		if err := migrations.Up(ctx, sqlDB, log); err != nil {
			return nil, err
		}
	}
	return db, nil
}
