package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/govalues/money"
	"golang.org/x/sync/errgroup"

	"github.com/tinoosan/cashflow/internal/config"
	"github.com/tinoosan/cashflow/internal/date"
	"github.com/tinoosan/cashflow/internal/httpapi"
	"github.com/tinoosan/cashflow/internal/jobs"
	"github.com/tinoosan/cashflow/internal/ledger"
	"github.com/tinoosan/cashflow/internal/schedule"
	"github.com/tinoosan/cashflow/internal/service/account"
	"github.com/tinoosan/cashflow/internal/service/materializer"
	"github.com/tinoosan/cashflow/internal/service/movement"
	"github.com/tinoosan/cashflow/internal/service/recurring"
	"github.com/tinoosan/cashflow/internal/storage"
	"github.com/tinoosan/cashflow/internal/storage/memory"
	pgstore "github.com/tinoosan/cashflow/internal/storage/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	logger := buildLogger(cfg.Log)
	slog.SetDefault(logger)

	loc, err := cfg.Location()
	if err != nil {
		logger.Error("invalid timezone", "err", err)
		os.Exit(1)
	}

	store, closeFn, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("storage init failed", "err", err)
		os.Exit(1)
	}
	defer closeFn()

	clock := date.SystemClock(loc)
	calc := schedule.NewCalculator(cfg.Schedule.HorizonMonths)
	moves := movement.New(store, clock, logger, movement.WithPageSize(cfg.Jobs.PageSize))
	recur := recurring.New(store, moves, calc, clock)
	mat := materializer.New(store, moves, calc, clock, logger, cfg.Jobs.PageSize)
	runner := jobs.NewRunner(mat, moves, cfg.Jobs.Interval, logger)

	api := httpapi.New(httpapi.Services{
		Accounts:  account.New(store, store, cfg.Ledger.DefaultCurrency),
		Movements: moves,
		Recurring: recur,
		Jobs:      runner,
		Store:     store,
	}, httpapi.Auth{
		Secret:   cfg.Auth.JWTSecret,
		Issuer:   cfg.Auth.Issuer,
		Audience: cfg.Auth.Audience,
	}, logger)

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           api.Handler(),
		ReadTimeout:       5 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("cashflow service listening", "addr", srv.Addr, "timezone", loc.String())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	if cfg.Jobs.Enabled {
		g.Go(func() error { return runner.Run(gctx) })
	} else {
		logger.Info("background jobs disabled; use POST /v1/jobs/* to trigger them")
	}
	g.Go(func() error {
		<-gctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctxShutdown); err != nil {
			logger.Error("server shutdown error", "err", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		logger.Error("server error", "err", err)
	}
}

// openStore picks postgres when database.url is set, else the in-memory store.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (storage.Store, func(), error) {
	if dsn := strings.TrimSpace(cfg.Database.URL); dsn != "" {
		pg, err := pgstore.Open(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := pg.Migrate(ctx); err != nil {
			pg.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		if cfg.Dev.Seed {
			user, accs, err := pg.SeedDev(ctx, cfg.Ledger.DefaultCurrency)
			if err != nil {
				logger.Error("dev seed failed", "err", err)
			} else {
				logDevSeed(logger, "postgres", user, accs)
			}
		}
		logger.Info("storage backend: postgres")
		return pg, pg.Close, nil
	}

	store := memory.New()
	if cfg.Dev.Seed {
		user, accs, err := seedMemory(store, cfg.Ledger.DefaultCurrency)
		if err != nil {
			return nil, nil, err
		}
		logDevSeed(logger, "memory", user, accs)
	}
	logger.Info("storage backend: memory")
	return store, func() {}, nil
}

func seedMemory(store *memory.Store, currency string) (ledger.User, []ledger.Account, error) {
	zero, err := money.NewAmountFromMinorUnits(currency, 0)
	if err != nil {
		return ledger.User{}, nil, fmt.Errorf("dev seed: %w", err)
	}
	user := ledger.User{ID: uuid.New()}
	store.SeedUser(user)
	accs := []ledger.Account{
		{ID: uuid.New(), OwnerID: user.ID, Name: "Cash", Type: "cash", Platform: "Wallet", Currency: zero.Curr().Code(), InitialBalance: zero, CurrentBalance: zero, Active: true},
		{ID: uuid.New(), OwnerID: user.ID, Name: "Bank", Type: "bank", Platform: "Bank", Currency: zero.Curr().Code(), InitialBalance: zero, CurrentBalance: zero, Active: true},
	}
	for _, a := range accs {
		store.SeedAccount(a)
	}
	return user, accs, nil
}

// logDevSeed emits the seeded IDs for easy copy/paste.
func logDevSeed(l *slog.Logger, backend string, user ledger.User, accs []ledger.Account) {
	ids := map[string]string{}
	for _, a := range accs {
		ids[a.Type+"_account_id"] = a.ID.String()
	}
	l.Info("DEV seed ("+backend+")", "user_id", user.ID.String(), "ids", ids)
}

// parseLogLevel maps config values to slog.Leveler
func parseLogLevel(s string) slog.Leveler {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error", "err":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildLogger(c config.LogConfig) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLogLevel(c.Level)}
	if strings.EqualFold(c.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
