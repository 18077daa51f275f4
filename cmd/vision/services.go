package main

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hyperengineering/vision/internal/archive"
	"github.com/hyperengineering/vision/internal/checkout"
	"github.com/hyperengineering/vision/internal/config"
	"github.com/hyperengineering/vision/internal/dashboard"
	"github.com/hyperengineering/vision/internal/llm"
	"github.com/hyperengineering/vision/internal/onboarding"
	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/streak"
)

// defaultOpenAIModel replaces the Cohere default when the provider is openai.
const defaultOpenAIModel = "gpt-4o-mini"

// services holds everything built from the configuration.
type services struct {
	store      *store.SQLiteStore
	generator  *planner.Generator
	advisor    *planner.Advisor
	streak     *streak.Tracker
	dashboards *dashboard.Manager
	onboarding *onboarding.Controller
	archive    archive.Archiver
	checkout   *checkout.Client
}

// newCompleter returns the configured text-generation client, or nil when the
// provider's credential is missing (degraded mode).
func newCompleter(cfg config.LLMConfig) llm.Completer {
	key := cfg.APIKey()
	if key == "" {
		return nil
	}
	if cfg.Provider == "openai" {
		model, baseURL := cfg.Model, cfg.BaseURL
		if model == llm.DefaultCohereModel {
			model = defaultOpenAIModel
		}
		if strings.Contains(baseURL, "cohere.com") {
			baseURL = ""
		}
		return llm.NewOpenAI(key, baseURL, model)
	}
	return llm.NewCohere(key, cfg.BaseURL, cfg.Model, llm.WithClientName(cfg.ClientName))
}

func plannerConfig(cfg config.LLMConfig) planner.Config {
	return planner.Config{
		GenerateTemperature:    cfg.GenerateTemperature,
		RecalculateTemperature: cfg.RecalculateTemperature,
		ChatTemperature:        cfg.ChatTemperature,
		MaxTokens:              cfg.MaxTokens,
		GenerateDelay:          time.Duration(cfg.GenerateMockDelay),
		RecalculateDelay:       time.Duration(cfg.RecalculateMockDelay),
		ChatDelay:              time.Duration(cfg.ChatMockDelay),
	}
}

// buildServices opens the store and wires the domain services.
// The caller owns the returned store and must close it.
func buildServices(cfg *config.Config, logger *slog.Logger) (*services, error) {
	db, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return nil, err
	}

	loc, err := cfg.Streak.Location()
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("streak timezone: %w", err)
	}

	arch, err := archive.New(cfg.Archive)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("archive: %w", err)
	}

	completer := newCompleter(cfg.LLM)
	if completer == nil {
		logger.Warn("no LLM credential configured, running in degraded mode",
			"provider", cfg.LLM.Provider,
			"mode", "degraded",
		)
	}
	pcfg := plannerConfig(cfg.LLM)
	gen := planner.NewGenerator(completer, pcfg, logger)
	tracker := streak.NewTracker(db, loc, logger)

	return &services{
		store:     db,
		generator: gen,
		advisor:   planner.NewAdvisor(completer, pcfg, logger),
		streak:    tracker,
		dashboards: dashboard.NewManager(db, gen, tracker,
			dashboard.Policy{UnlockThreshold: cfg.Plan.UnlockThreshold}, logger),
		onboarding: onboarding.NewController(db, gen, arch, logger),
		archive:    arch,
		checkout:   checkout.New(cfg.Checkout, checkout.WithLogger(logger)),
	}, nil
}
