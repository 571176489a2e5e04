// Command pipelinedemo wires every component together and runs one
// five-phase pipeline end to end against the scripted stub providers.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aigenflow/pipeline/pkg/cache"
	"github.com/aigenflow/pipeline/pkg/config"
	"github.com/aigenflow/pipeline/pkg/core"
	"github.com/aigenflow/pipeline/pkg/logging"
	"github.com/aigenflow/pipeline/pkg/orchestrator"
	"github.com/aigenflow/pipeline/pkg/phase"
	"github.com/aigenflow/pipeline/pkg/provider"
	"github.com/aigenflow/pipeline/pkg/resilience"
	"github.com/aigenflow/pipeline/pkg/summarizer"
	"github.com/aigenflow/pipeline/pkg/telemetry"
	"github.com/aigenflow/pipeline/pkg/template"
	"github.com/aigenflow/pipeline/pkg/tokens"

	"github.com/aigenflow/pipeline/providers/chatgpt"
	"github.com/aigenflow/pipeline/providers/claude"
	"github.com/aigenflow/pipeline/providers/gemini"
	"github.com/aigenflow/pipeline/providers/perplexity"
)

func main() {
	logger := logging.New("pipelinedemo")

	cfg := config.Default()
	if path := os.Getenv("PIPELINE_CONFIG_FILE"); path != "" {
		if err := cfg.WithLogger(logger).LoadFromFile(path); err != nil {
			logger.Error("failed to load config file", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		logger.Error("failed to load config from environment", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", map[string]interface{}{"error": err.Error()})
		os.Exit(1)
	}

	registry := provider.NewRegistry()
	registry.Register(claude.Tag, claude.New())
	registry.Register(gemini.Tag, gemini.New())
	registry.Register(chatgpt.Tag, chatgpt.New())
	registry.Register(perplexity.Tag, perplexity.New())

	telemetryProvider := telemetry.NoOp("pipelinedemo")
	if os.Getenv("PIPELINE_TELEMETRY_STDOUT") == "true" {
		var err error
		telemetryProvider, err = telemetry.NewStdout("pipelinedemo")
		if err != nil {
			logger.Error("failed to initialize telemetry", map[string]interface{}{"error": err.Error()})
			os.Exit(1)
		}
		defer telemetryProvider.Shutdown(context.Background())
	}

	chain := resilience.NewChain(resilience.Config{
		ProviderOrder:           cfg.Fallback.ProviderOrder,
		MaxRetries:              cfg.Fallback.MaxRetries,
		MaxFallbacks:            cfg.Fallback.MaxFallbacks,
		CircuitBreakerEnabled:   cfg.Fallback.CircuitBreakerEnabled,
		CircuitBreakerThreshold: cfg.Fallback.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   cfg.Fallback.CircuitBreakerTimeout,
	}, registry.Senders(), logger)

	counter := tokens.NewCounter()
	costCalc := tokens.NewCostCalculator(nil)
	tracker := tokens.NewTracker(tokens.BudgetConfig{
		DailyBudget:     cfg.Budget.DailyBudget,
		WeeklyBudget:    cfg.Budget.WeeklyBudget,
		MonthlyBudget:   cfg.Budget.MonthlyBudget,
		AlertThresholds: cfg.Budget.AlertThresholds,
	})

	router := provider.NewRouter(registry).
		WithTimeoutSeconds(cfg.TimeoutSeconds).
		WithFallback(chain).
		WithTokenTracking(counter, costCalc, tracker).
		WithTelemetry(telemetryProvider)

	if cfg.Cache.Enabled {
		var cacheMgr *cache.Manager
		if cfg.Cache.RedisURL != "" {
			redisStore, err := cache.NewRedisStore(cfg.Cache.RedisURL, cfg.Cache.RedisNamespace, logger)
			if err != nil {
				logger.Warn("redis cache unavailable, falling back to filesystem cache", map[string]interface{}{"error": err.Error()})
			} else {
				cacheMgr = cache.NewManagerWithBackend(redisStore, cache.WithTTL(cfg.Cache.TTL))
			}
		}
		if cacheMgr == nil {
			cacheRoot := cfg.Cache.Root
			if cacheRoot == "" {
				cacheRoot = cache.DefaultRoot()
			}
			cacheMgr = cache.NewManager(cacheRoot, logger, cache.WithTTL(cfg.Cache.TTL))
		}
		router = router.WithCache(cacheMgr)
	}

	renderer := buildTemplates()

	executors := make(map[int]*phase.Executor, 5)
	for phaseNum, tasks := range provider.PhaseTasks {
		exec := phase.NewExecutor(phaseNum, tasks, router, renderer, logger)
		if phaseNum == 2 && cfg.Batch.Enabled {
			exec.EnableBatch(cfg.Batch.MaxBatchSize)
		}
		executors[phaseNum] = exec
	}

	summ := summarizer.New(router, counter, summarizer.Config{
		Enabled:              cfg.Summary.Enabled,
		TargetReductionRatio: cfg.Summary.TargetReductionRatio,
		ProviderTag:          cfg.Summary.ProviderTag,
		MaxRetries:           cfg.Summary.MaxRetries,
		PreserveSections:     summarizer.DefaultConfig().PreserveSections,
	}, logger)

	orch := orchestrator.New(executors, summ, tracker, logger)

	sess, err := orch.RunPipeline(context.Background(), orchestrator.Config{
		Session: core.SessionConfig{
			Topic:          envOr("PIPELINE_TOPIC", "A subscription box for rare houseplants"),
			DocType:        core.DocTypeBizPlan,
			Language:       envOr("PIPELINE_LANGUAGE", "en"),
			TemplateTag:    "default",
			OutputDir:      cfg.OutputDir,
			MaxRetries:     cfg.MaxRetries,
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		SummarizationEnabled: cfg.Summary.Enabled,
		SummarizeThreshold:   cfg.Summary.ThresholdRatio,
	})
	if err != nil {
		logger.Error("pipeline run failed", map[string]interface{}{"error": err.Error(), "session_id": sess.ID})
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(sess, "", "  ")
	fmt.Println(string(out))
	fmt.Fprintf(os.Stderr, "session %s finished in state %s\n", sess.ID, sess.State)
}

func buildTemplates() *template.Store {
	store := template.NewStore()
	for phaseNum, tasks := range provider.PhaseTasks {
		for _, task := range tasks {
			name := fmt.Sprintf("phase_%d/%s", phaseNum, task)
			store.Register(name, fmt.Sprintf("[%s] %%s", task))
		}
	}
	return store
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
