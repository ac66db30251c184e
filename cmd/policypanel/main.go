package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/policypanel/internal/adapter/driven/dataset"
	githubadapter "github.com/ericfisherdev/policypanel/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/policypanel/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/policypanel/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/policypanel/internal/adapter/driving/web"
	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/config"
	"github.com/ericfisherdev/policypanel/internal/metrics"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on malformed env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"db_path", cfg.DBPath,
		"repo", cfg.Repo.FullName(),
		"branch", cfg.Repo.Branch,
		"session_persistence", cfg.SecretKey != nil,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open database (dual reader/writer with WAL mode).
	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			slog.Error("error closing database", "error", closeErr)
		}
	}()
	slog.Info("database opened", "path", cfg.DBPath)

	// 4. Run migrations on writer connection.
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		return err
	}

	// 5. Metrics.
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(registry)

	// 6. Repository target, with stored overrides applied.
	targets := application.NewRepoTargetProvider(cfg.Repo)
	settingsSvc := application.NewRepoSettingsService(sqliteadapter.NewRepoSettingsRepo(db), targets, cfg.Repo)
	if _, err := settingsSvc.Load(ctx); err != nil {
		return err
	}

	// 7. GitHub client and session. The client reads the token from the
	// credential manager, which in turn verifies tokens through the client.
	var creds *application.CredentialManager
	ghClient, err := githubadapter.NewClient(
		githubadapter.TokenFunc(func() string { return creds.Token() }),
		targets,
		cfg.GitHubAPIURL,
	)
	if err != nil {
		return err
	}
	creds = application.NewCredentialManager(ghClient,
		application.WithSessionStore(sqliteadapter.NewSessionRepo(db, cfg.SecretKey)),
		application.WithSessionTTL(cfg.SessionTTL),
		application.WithSessionObserver(collector),
	)
	defer creds.Close()

	if err := creds.Resume(ctx); err != nil {
		slog.Warn("could not resume session", "error", err)
	}
	if cfg.GitHubToken != "" && !creds.IsAuthenticated() {
		if err := creds.SetToken(ctx, cfg.GitHubToken); err != nil {
			slog.Warn("ignoring POLICYPANEL_GITHUB_TOKEN", "error", err)
		}
	}

	// 8. Application services.
	tables := application.NewTableRegistry(cfg.TableAPath, cfg.TableBPath)
	store := application.NewSessionAwareStore(ghClient, creds, collector)
	sanitizer := application.NewInputSanitizer()
	engine := application.NewRowMutationEngine(store, sanitizer, tables, creds,
		application.WithMutationObserver(collector),
	)
	comparator := application.NewValueComparator()
	healthSvc := application.NewHealthService(db, creds, targets)

	var source *dataset.Source
	if cfg.DataDir != "" {
		source = dataset.NewDir(cfg.DataDir, cfg.TableAPath, cfg.TableBPath)
	} else {
		source = dataset.NewEmbedded()
	}
	source.Preload(ctx)

	// 9. HTTP: API, GUI and metrics on one mux.
	limiter := httphandler.NewRateLimiter(httphandler.PerMinute(cfg.MutationRate))
	defer limiter.Stop()

	mux := http.NewServeMux()
	apiHandler := httphandler.NewHandler(creds, settingsSvc, tables, source, engine, comparator, healthSvc, slog.Default())
	httphandler.Register(mux, apiHandler, limiter)

	webHandler := webhandler.NewHandler(creds, source, engine, comparator, sanitizer, slog.Default())
	webhandler.RegisterRoutes(mux, webHandler, limiter.Middleware)

	mux.Handle("GET /metrics", metrics.Handler(registry))

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           httphandler.Wrap(mux, slog.Default()),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
			stop()
		}
	}()

	slog.Info("policypanel started",
		"listen_addr", cfg.ListenAddr,
		"authenticated", creds.IsAuthenticated(),
	)

	// 10. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
