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

	"github.com/catalog-reviews/internal/application/auth"
	"github.com/catalog-reviews/internal/config"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/infrastructure/dynamo"
	jwtinfra "github.com/catalog-reviews/internal/infrastructure/jwt"
	"github.com/catalog-reviews/internal/infrastructure/memory"
	"github.com/catalog-reviews/internal/infrastructure/notify"
	"github.com/catalog-reviews/internal/infrastructure/smtp"
	"github.com/catalog-reviews/internal/infrastructure/sns"
	"github.com/catalog-reviews/internal/pkg/confirmcode"
	transporthttp "github.com/catalog-reviews/internal/transport/http"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("no .env file found, reading from environment")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := buildDeps(ctx, cfg)
	if err != nil {
		slog.Error("build dependencies", "err", err)
		os.Exit(1)
	}

	router := transporthttp.NewRouter(ctx, cfg, deps)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.AppPort),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("server starting", "port", cfg.AppPort, "env", cfg.AppEnv, "store", cfg.StoreBackend, "notifier", cfg.Notifier)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()

	slog.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "err", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func newLogger(cfg *config.Config) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}

func buildDeps(ctx context.Context, cfg *config.Config) (*transporthttp.Deps, error) {
	deps := &transporthttp.Deps{}

	switch cfg.StoreBackend {
	case config.BackendMemory:
		slog.Warn("using in-memory store, data is lost on restart")
		store := memory.NewStore()
		deps.UserRepo = store.Users()
		deps.TitleRepo = store.Titles()
		deps.ReviewRepo = store.Reviews()
		deps.CommentRepo = store.Comments()
	default:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("dynamodb client: %w", err)
		}
		// Creates the tables if they don't exist.
		dynamo.Bootstrap(ctx, client, cfg.DynamoTables)

		users := dynamo.NewUserRepo(client, cfg.DynamoTables.Users, cfg.DynamoTables.UserUniques)
		deps.UserRepo = users
		deps.TitleRepo = dynamo.NewTitleRepo(client, cfg.DynamoTables.Titles)
		deps.ReviewRepo = dynamo.NewReviewRepo(client, cfg.DynamoTables.Reviews, cfg.DynamoTables.Titles)
		deps.CommentRepo = dynamo.NewCommentRepo(client, cfg.DynamoTables.Comments, cfg.DynamoTables.Reviews)
		deps.Ready = func(ctx context.Context) error {
			// A miss proves the table answers.
			_, err := users.Get(ctx, "readiness-check")
			if err == nil || errors.Is(err, domain.ErrNotFound) {
				return nil
			}
			return err
		}
	}

	codes, err := confirmcode.New(cfg.CodeSecret, cfg.CodeSecretFallbacks, confirmcode.WithTTL(cfg.CodeTTL))
	if err != nil {
		return nil, fmt.Errorf("confirmation codes: %w", err)
	}
	deps.Codes = codes

	tokens, err := jwtinfra.NewProvider(cfg)
	if err != nil {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("jwt provider: %w", err)
		}
		slog.Warn("JWT keys not available, signing with an ephemeral key", "err", err)
		if tokens, err = jwtinfra.NewEphemeralProvider(cfg.JWTExpiry); err != nil {
			return nil, fmt.Errorf("ephemeral jwt provider: %w", err)
		}
	}
	deps.Tokens = tokens

	notifier, err := newNotifier(cfg)
	if err != nil {
		return nil, err
	}
	deps.Notifier = notifier
	return deps, nil
}

func newNotifier(cfg *config.Config) (auth.Notifier, error) {
	switch cfg.Notifier {
	case config.NotifierSNS:
		n, err := sns.NewTopicNotifier(cfg)
		if err != nil {
			return nil, fmt.Errorf("sns notifier: %w", err)
		}
		return n, nil
	case config.NotifierLog:
		return notify.Log{}, nil
	default:
		return smtp.NewMailer(cfg), nil
	}
}
