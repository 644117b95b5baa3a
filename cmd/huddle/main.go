// Huddle — multi-tenant meeting notes backend
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

	"github.com/d9705996/huddle/internal/account"
	huddleapi "github.com/d9705996/huddle/internal/api"
	"github.com/d9705996/huddle/internal/api/handler"
	"github.com/d9705996/huddle/internal/api/middleware"
	"github.com/d9705996/huddle/internal/auth"
	"github.com/d9705996/huddle/internal/cache"
	"github.com/d9705996/huddle/internal/company"
	"github.com/d9705996/huddle/internal/config"
	"github.com/d9705996/huddle/internal/db"
	"github.com/d9705996/huddle/internal/health"
	"github.com/d9705996/huddle/internal/invite"
	"github.com/d9705996/huddle/internal/label"
	"github.com/d9705996/huddle/internal/mail"
	"github.com/d9705996/huddle/internal/meeting"
	"github.com/d9705996/huddle/internal/member"
	"github.com/d9705996/huddle/internal/observability"
	"github.com/d9705996/huddle/internal/seed"
	"github.com/d9705996/huddle/internal/storage"
	"github.com/d9705996/huddle/internal/summary"
	"github.com/d9705996/huddle/internal/usergroup"
	"github.com/d9705996/huddle/internal/version"
	"github.com/d9705996/huddle/internal/worker"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func run() error {
	// A missing .env is fine; variables already set in the environment win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability -------------------------------------------------------
	obs, log, err := observability.New(ctx, &observability.Config{
		ServiceName:    "huddle",
		ServiceVersion: version.Version,
		Environment:    cfg.App.Env,
		LogLevel:       cfg.Log.Level,
		LogFormat:      cfg.Log.Format,
		OTLPEndpoint:   cfg.OTel.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init observability: %w", err)
	}
	defer obs.Shutdown(context.Background())
	slog.SetDefault(log)
	log.Info("starting huddle", "version", version.Version, "commit", version.Commit, "db_driver", cfg.DB.Driver, "env", cfg.App.Env)

	// --- Database ------------------------------------------------------------
	// db.New runs migrations (AutoMigrate for SQLite, golang-migrate for
	// Postgres). The pool is non-nil only for postgres and backs River.
	gormDB, pool, err := db.New(ctx, &cfg.DB)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if pool != nil {
		defer pool.Close()
	}
	log.Info("database ready", "driver", cfg.DB.Driver)

	if err := seed.EnsureOwner(ctx, gormDB, seed.OwnerOptions{
		Email:    cfg.App.SeedEmail,
		Password: cfg.App.SeedPassword,
	}, log); err != nil {
		return fmt.Errorf("seed owner: %w", err)
	}

	// --- Infrastructure ------------------------------------------------------
	kv, err := cache.New(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer kv.Close()
	if err := kv.Ping(ctx); err != nil {
		// /ready reports it; the process still starts.
		log.Warn("redis unreachable at startup", "err", err)
	}

	store, err := storage.New(storage.Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Region:        cfg.Storage.Region,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBucket:  cfg.Storage.PublicBucket,
		PrivateBucket: cfg.Storage.PrivateBucket,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}

	sender, err := mail.New(mail.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
	}, log)
	if err != nil {
		return fmt.Errorf("create mailer: %w", err)
	}

	llm := summary.NewOpenAI(summary.OpenAIConfig{
		APIKey:      cfg.AI.APIKey,
		BaseURL:     cfg.AI.APIBase,
		Model:       cfg.AI.Model,
		MaxTokens:   cfg.AI.MaxTokens,
		Temperature: cfg.AI.Temperature,
	})
	engine := summary.NewEngine(llm, log,
		summary.WithMeter(obs.Meter(summary.InstrumentationName)),
		summary.WithTracer(obs.Tracer(summary.InstrumentationName)),
	)

	// --- Worker queue --------------------------------------------------------
	if pool != nil {
		if err := worker.MigrateRiver(ctx, pool); err != nil {
			return fmt.Errorf("river migrations: %w", err)
		}
		log.Info("river migrations applied")
	}

	wq, err := worker.New(ctx, pool, cfg.DB.Driver, cfg.Worker.Concurrency, invite.NewExpirer(gormDB, log), log)
	if err != nil {
		return fmt.Errorf("create worker: %w", err)
	}
	if err := wq.Start(ctx); err != nil {
		return fmt.Errorf("start worker: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := wq.Stop(stopCtx); err != nil {
			log.Error("worker stop error", "err", err)
		}
	}()

	// --- Services ------------------------------------------------------------
	issuer := auth.NewIssuer(cfg.JWT.Secret, cfg.JWT.RefreshSecret, cfg.JWT.AccessTTL, cfg.JWT.RefreshTTL)
	accounts := account.NewService(gormDB, issuer, kv, sender, store, account.Config{
		Production:    cfg.App.Production(),
		AllowedEmails: cfg.App.AllowedEmails,
	}, log)
	invites := invite.NewService(gormDB, sender, wq, accounts, cfg.App.ClientURL, log)
	notes := meeting.NewService(gormDB, sender, store, kv, engine, cfg.App.ClientURL, log)

	// --- HTTP routes ---------------------------------------------------------
	mux := http.NewServeMux()
	huddleapi.RegisterRoutes(mux, huddleapi.Handlers{
		Health: health.New(
			health.Check{Name: "database", Pinger: db.NewPinger(gormDB)},
			health.Check{Name: "redis", Pinger: kv},
		),
		Auth:       handler.NewAuthHandler(accounts, log),
		Users:      handler.NewUserHandler(accounts, log),
		Companies:  handler.NewCompanyHandler(company.NewService(gormDB, store, log), log),
		Members:    handler.NewMemberHandler(member.NewService(gormDB, log), log),
		Invites:    handler.NewInviteHandler(invites, log),
		Labels:     handler.NewLabelHandler(label.NewService(gormDB), log),
		UserGroups: handler.NewUserGroupHandler(usergroup.NewService(gormDB), log),
		Meetings:   handler.NewMeetingHandler(notes, log),
		Tokens:     issuer,
		Active:     accounts,
		Log:        log,
	})
	// Prometheus metrics endpoint
	mux.Handle("GET /metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      middleware.Instrument(obs.Meter(middleware.InstrumentationName), log)(mux),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Start server --------------------------------------------------------
	log.Info("http server listening", "addr", srv.Addr)
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	log.Info("server stopped cleanly")
	return nil
}
