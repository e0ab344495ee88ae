package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/miradorstack/mirador-investigator/internal/agents"
	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/engine"
	"github.com/miradorstack/mirador-investigator/internal/llm"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
	"github.com/miradorstack/mirador-investigator/internal/repo"
	"github.com/miradorstack/mirador-investigator/internal/router"
	"github.com/miradorstack/mirador-investigator/internal/services"
	"github.com/miradorstack/mirador-investigator/internal/store"
	"github.com/miradorstack/mirador-investigator/internal/tracing"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// app holds the long-lived components shared by every command.
type app struct {
	cfg          *config.Config
	logger       *slog.Logger
	cache        cache.Provider
	store        *store.SQLiteStore
	router       *router.Router
	tracing      *tracing.Provider
	orchestrator *engine.Orchestrator
	runner       *engine.Runner
	service      *services.IncidentService
}

func newLogger(cfg *config.Config) *slog.Logger {
	return utils.NewLogger(utils.LogOptions{
		Level:      cfg.Logging.Level,
		JSON:       cfg.Logging.JSON,
		File:       cfg.Logging.File,
		MaxSizeMB:  cfg.Logging.MaxSizeMB,
		MaxBackups: cfg.Logging.MaxBackups,
	})
}

// buildApp wires configuration into a ready orchestrator. The caller owns
// the returned app and must Close it.
func buildApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger, cache: cache.NoopProvider{}}

	if cfg.Cache.Enabled {
		provider, err := cache.NewLRUProvider(cache.LRUConfig{Size: cfg.Cache.Size, TTL: cfg.Cache.TTL})
		if err != nil {
			logger.Warn("result cache unavailable", slog.Any("error", err))
		} else {
			a.cache = provider
		}
	}

	st, err := store.NewSQLiteStore(cfg.Store.Path)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open store: %w", err)
	}
	a.store = st
	pingCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	err = st.Ping(pingCtx)
	cancel()
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("store not reachable: %w", err)
	}

	policy, err := router.LoadPolicy(cfg.Routing.PolicyPath)
	if err != nil {
		a.Close()
		return nil, err
	}
	if policy.DefaultRegion == "" {
		policy.DefaultRegion = cfg.Routing.DefaultRegion
	}
	a.router = router.New(policy)

	tp, err := tracing.NewProvider(tracing.Config{
		Enabled:  cfg.Tracing.Enabled,
		Endpoint: cfg.Tracing.Endpoint,
		Insecure: cfg.Tracing.Insecure,
		Version:  Version,
	}, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("init tracing: %w", err)
	}
	a.tracing = tp

	client, err := inferenceClient(cfg, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	budgets := func(stage string) agents.Budget {
		b := cfg.Inference.Budget(stage)
		return agents.Budget{MaxTokens: b.MaxTokens, Temperature: b.Temperature}
	}
	stageOpts := agents.Options{Client: client, Budgets: budgets, Logger: logger}

	analysisOpts := agents.AnalysisOptions{
		Options:        stageOpts,
		Miner:          patterns.NewMiner(logger, st),
		Lookback:       cfg.LogQuery.Lookback,
		Lookahead:      cfg.LogQuery.Lookahead,
		MaxConcurrency: cfg.LogQuery.MaxConcurrentQueries,
	}
	logs := repo.NewLogQueryClient(cfg.LogQuery.BaseURL, cfg.LogQuery.QueryPath, cfg.LogQuery.Timeout, a.cache, cfg.Cache.TTL)
	if logs.Enabled() {
		analysisOpts.Logs = logs
	} else {
		logger.Warn("log query endpoint not configured; analysis will run without evidence")
	}

	opts := engine.Options{
		Stages: engine.Stages{
			Triage:      agents.NewTriage(stageOpts),
			Analysis:    agents.NewAnalysis(analysisOpts),
			Diagnosis:   agents.NewDiagnosis(stageOpts),
			Remediation: agents.NewRemediation(stageOpts),
		},
		Router:                           a.router,
		Checkpoints:                      st,
		Logger:                           logger,
		Tracer:                           tp.Tracer("github.com/miradorstack/mirador-investigator/internal/engine"),
		AlwaysInvestigateOperatorQueries: cfg.Policy.AlwaysInvestigateOperatorQueries,
		DryRun:                           cfg.Execution.DryRun,
	}
	if cfg.IssueTracker.Token != "" {
		opts.Issues = repo.NewIssueTrackerClient(cfg.IssueTracker.BaseURL, cfg.IssueTracker.Token, cfg.IssueTracker.Labels, cfg.IssueTracker.Timeout)
	}
	if cfg.Execution.WebhookURL != "" {
		opts.Executor = repo.NewWebhookExecutor(cfg.Execution.WebhookURL, cfg.Execution.Timeout)
	}

	orch, err := engine.New(opts)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build orchestrator: %w", err)
	}
	a.orchestrator = orch
	a.runner = engine.NewRunner(orch, cfg.Workers.MaxConcurrent, logger)
	a.service = services.NewIncidentService(logger, a.runner, orch, st, a.cache, 0)
	return a, nil
}

func inferenceClient(cfg *config.Config, logger *slog.Logger) (llm.Client, error) {
	if cfg.Inference.Provider != "anthropic" {
		return nil, fmt.Errorf("unsupported inference provider %q", cfg.Inference.Provider)
	}
	if cfg.Inference.APIKey == "" {
		logger.Warn("inference API key not set; relying on the SDK environment")
	}
	base, err := llm.NewAnthropicClient(llm.AnthropicOptions{
		APIKey:  cfg.Inference.APIKey,
		BaseURL: cfg.Inference.BaseURL,
		Model:   cfg.Inference.Model,
		Timeout: cfg.Inference.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("init inference client: %w", err)
	}
	logger.Info("inference client ready", slog.String("provider", cfg.Inference.Provider), slog.String("model", base.Model()))
	return llm.NewRetrying(base, llm.RetryPolicy{
		MaxAttempts:    cfg.Inference.MaxAttempts,
		InitialBackoff: cfg.Inference.InitialBackoff,
		MaxBackoff:     cfg.Inference.MaxBackoff,
	}, logger), nil
}

// watchPolicy reloads the routing policy until ctx ends, when enabled.
func (a *app) watchPolicy(ctx context.Context) {
	if !a.cfg.Routing.Watch || a.cfg.Routing.PolicyPath == "" {
		return
	}
	w, err := router.NewWatcher(a.router, a.cfg.Routing.PolicyPath, a.logger)
	if err != nil {
		a.logger.Warn("routing policy watcher disabled", slog.Any("error", err))
		return
	}
	go func() {
		if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warn("routing policy watcher exited", slog.Any("error", err))
		}
	}()
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() {
	if a.tracing != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		if err := a.tracing.Shutdown(ctx); err != nil {
			a.logger.Warn("tracing shutdown", slog.Any("error", err))
		}
		cancel()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("store close", slog.Any("error", err))
		}
	}
	if a.cache != nil {
		_ = a.cache.Close()
	}
}
