// Command skald is the entry point for the skald voice assistant server.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/skald-ai/skald/internal/assistant"
	"github.com/skald-ai/skald/internal/assistant/answer"
	"github.com/skald-ai/skald/internal/assistant/answercache"
	"github.com/skald-ai/skald/internal/assistant/executor"
	"github.com/skald-ai/skald/internal/assistant/intent"
	"github.com/skald-ai/skald/internal/config"
	"github.com/skald-ai/skald/internal/health"
	"github.com/skald-ai/skald/internal/notes"
	"github.com/skald-ai/skald/internal/observe"
	"github.com/skald-ai/skald/internal/resilience"
	"github.com/skald-ai/skald/internal/server"
	"github.com/skald-ai/skald/pkg/provider/calendar/googlecal"
	"github.com/skald-ai/skald/pkg/provider/llm"
	"github.com/skald-ai/skald/pkg/provider/llm/anyllm"
	"github.com/skald-ai/skald/pkg/provider/llm/openai"
	"github.com/skald-ai/skald/pkg/provider/token"
)

// googleTokenEndpoint is the default OAuth token endpoint for calendar
// access tokens.
const googleTokenEndpoint = "https://oauth2.googleapis.com/token"

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "skald: config file %q not found\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "skald: %v\n", err)
		}
		return 1
	}

	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("skald starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metrics provider with a Prometheus exporter behind /metrics.
	metricsShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{ServiceName: "skald"})
	if err != nil {
		slog.Error("failed to initialise metrics", "err", err)
		return 1
	}
	defer func() {
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsShutdown(shCtx); err != nil {
			slog.Warn("metrics shutdown error", "err", err)
		}
	}()

	llmProvider, err := buildLLM(cfg.Providers.LLM)
	if err != nil {
		slog.Error("failed to build LLM provider", "err", err)
		return 1
	}

	tokens, err := buildTokens(cfg.Providers.Token)
	if err != nil {
		slog.Error("failed to build token provider", "err", err)
		return 1
	}

	var calOpts []googlecal.Option
	if cfg.Providers.Calendar.BaseURL != "" {
		calOpts = append(calOpts, googlecal.WithBaseURL(cfg.Providers.Calendar.BaseURL))
	}
	if cfg.Providers.Calendar.Timeout > 0 {
		calOpts = append(calOpts, googlecal.WithTimeout(cfg.Providers.Calendar.Timeout))
	}
	cal := googlecal.New(calOpts...)

	var cacheOpts []answercache.Option
	if cfg.Assistant.Cache.TTL > 0 {
		cacheOpts = append(cacheOpts, answercache.WithTTL(cfg.Assistant.Cache.TTL))
	}
	if cfg.Assistant.Cache.Capacity > 0 {
		cacheOpts = append(cacheOpts, answercache.WithCapacity(cfg.Assistant.Cache.Capacity))
	}

	asst := assistant.New(assistant.Config{
		Classifier: intent.NewClassifier(llmProvider),
		Answers:    answer.NewGenerator(llmProvider),
		Executor:   executor.New(cal, tokens),
		Cache:      answercache.New(cacheOpts...),
	})

	checks := health.New()
	checks.Add("llm", func(context.Context) error {
		if cfg.Providers.LLM.Primary.Model == "" {
			return errors.New("no model configured for the primary LLM backend")
		}
		return nil
	})

	noteStore, storeClose, err := buildNoteStore(ctx, cfg.Notes, checks)
	if err != nil {
		slog.Error("failed to build note store", "err", err)
		return 1
	}
	defer storeClose()

	srv := server.New(server.Config{
		ListenAddr: cfg.Server.ListenAddr,
		Assistant:  asst,
		SafetyMode: cfg.Assistant.SafetyModeEnabled(),
		Notes:      notes.NewGenerator(llmProvider),
		NoteStore:  noteStore,
		Health:     checks,
	})

	slog.Info("server ready")
	if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// buildLLM constructs the primary backend plus any configured fallbacks and
// wraps them in a failover group.
func buildLLM(cfg config.LLMConfig) (llm.Provider, error) {
	primary, err := buildBackend(cfg.Primary)
	if err != nil {
		return nil, fmt.Errorf("primary: %w", err)
	}
	if len(cfg.Fallbacks) == 0 {
		return primary, nil
	}

	group := resilience.NewLLM(cfg.Primary.Name, primary, resilience.FallbackConfig{})
	for i, entry := range cfg.Fallbacks {
		fb, err := buildBackend(entry)
		if err != nil {
			return nil, fmt.Errorf("fallbacks[%d]: %w", i, err)
		}
		group.AddFallback(entry.Name, fb)
	}
	return group, nil
}

// buildBackend constructs a single LLM backend. OpenAI uses the native SDK
// client; everything else goes through the any-llm bridge.
func buildBackend(entry config.ProviderEntry) (llm.Provider, error) {
	if entry.Name == "openai" {
		var opts []openai.Option
		if entry.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(entry.BaseURL))
		}
		return openai.New(entry.APIKey, entry.Model, opts...)
	}

	var opts []anyllmlib.Option
	if entry.APIKey != "" {
		opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
	}
	if entry.BaseURL != "" {
		opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
	}
	return anyllm.New(entry.Name, entry.Model, opts...)
}

// buildTokens constructs the calendar token provider: an OAuth refresher
// when configured, otherwise a static token (possibly empty, in which case
// calendar operations report the calendar as not connected).
func buildTokens(cfg config.TokenConfig) (token.Provider, error) {
	if cfg.OAuth == nil {
		return &token.Static{AccessToken: cfg.AccessToken}, nil
	}

	endpoint := cfg.OAuth.TokenURL
	if endpoint == "" {
		endpoint = googleTokenEndpoint
	}
	return token.NewRefresher(token.RefresherConfig{
		Endpoint:     endpoint,
		ClientID:     cfg.OAuth.ClientID,
		ClientSecret: cfg.OAuth.ClientSecret,
		RefreshToken: cfg.OAuth.RefreshToken,
	})
}

// buildNoteStore returns a Postgres-backed store when a DSN is configured,
// otherwise an in-memory store. A database store registers a readiness check.
func buildNoteStore(ctx context.Context, cfg config.NotesConfig, checks *health.Handler) (notes.Store, func(), error) {
	if cfg.PostgresDSN == "" {
		return notes.NewMemStore(), func() {}, nil
	}

	pool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect postgres: %w", err)
	}

	store := notes.NewPostgresStore(pool)
	if err := store.Migrate(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}

	checks.Add("notes-db", pool.Ping)
	return store, pool.Close, nil
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
