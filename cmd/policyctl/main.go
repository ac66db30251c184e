package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/policypanel/internal/adapter/driven/dataset"
	githubadapter "github.com/ericfisherdev/policypanel/internal/adapter/driven/github"
	sqliteadapter "github.com/ericfisherdev/policypanel/internal/adapter/driven/sqlite"
	"github.com/ericfisherdev/policypanel/internal/application"
	"github.com/ericfisherdev/policypanel/internal/cli"
	"github.com/ericfisherdev/policypanel/internal/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Service logs stay off the terminal unless asked for.
	level := slog.LevelWarn
	if os.Getenv("POLICYCTL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	cmd := cli.NewRootCommand(newApp)
	if err := cmd.ExecuteContext(ctx); err != nil {
		format, _ := cmd.PersistentFlags().GetString("format")
		(&cli.OutputFormatter{Format: format, Writer: os.Stderr}).Error(err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}

// newApp wires the services the commands use. The session is shared with the
// server through the same database when POLICYPANEL_SECRET_KEY is set.
func newApp(ctx context.Context) (*cli.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	db, err := sqliteadapter.NewDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}
	if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
		_ = db.Close()
		return nil, err
	}

	targets := application.NewRepoTargetProvider(cfg.Repo)
	settings := application.NewRepoSettingsService(sqliteadapter.NewRepoSettingsRepo(db), targets, cfg.Repo)
	if _, err := settings.Load(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	var creds *application.CredentialManager
	ghClient, err := githubadapter.NewClient(
		githubadapter.TokenFunc(func() string { return creds.Token() }),
		targets,
		cfg.GitHubAPIURL,
	)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	creds = application.NewCredentialManager(ghClient,
		application.WithSessionStore(sqliteadapter.NewSessionRepo(db, cfg.SecretKey)),
		application.WithSessionTTL(cfg.SessionTTL),
	)
	if err := creds.Resume(ctx); err != nil {
		slog.Warn("could not resume session", "error", err)
	}
	if cfg.GitHubToken != "" && !creds.IsAuthenticated() {
		if _, err := creds.Login(ctx, cfg.GitHubToken); err != nil {
			slog.Warn("ignoring POLICYPANEL_GITHUB_TOKEN", "error", err)
		}
	}

	tables := application.NewTableRegistry(cfg.TableAPath, cfg.TableBPath)
	engine := application.NewRowMutationEngine(
		application.NewSessionAwareStore(ghClient, creds, nil),
		application.NewInputSanitizer(),
		tables,
		creds,
	)

	var source *dataset.Source
	if cfg.DataDir != "" {
		source = dataset.NewDir(cfg.DataDir, cfg.TableAPath, cfg.TableBPath)
	} else {
		source = dataset.NewEmbedded()
	}

	return &cli.App{
		Creds:      creds,
		Settings:   settings,
		Tables:     tables,
		Source:     source,
		Engine:     engine,
		Comparator: application.NewValueComparator(),
		Close: func() {
			creds.Close()
			if err := db.Close(); err != nil {
				slog.Warn("error closing database", "error", err)
			}
		},
	}, nil
}
