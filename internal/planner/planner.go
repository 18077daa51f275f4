// Package planner turns goals and onboarding context into 52-week strategic plans.
//
// Generation and recalculation call an external text-generation service through
// llm.Completer. When no completer is configured the planner runs in degraded mode:
// it returns deterministic placeholder output after an artificial delay and logs a
// warning on every call. Degraded output is never an error.
package planner

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/hyperengineering/vision/internal/llm"
	"github.com/hyperengineering/vision/internal/types"
)

const recalculateMessage = "Recalcular rota do plano estratégico."

// Config holds the generation parameters.
type Config struct {
	GenerateTemperature    float64
	RecalculateTemperature float64
	ChatTemperature        float64
	MaxTokens              int
	GenerateDelay          time.Duration
	RecalculateDelay       time.Duration
	ChatDelay              time.Duration
}

// DefaultConfig returns the production generation parameters.
func DefaultConfig() Config {
	return Config{
		GenerateTemperature:    0.3,
		RecalculateTemperature: 0.4,
		ChatTemperature:        0.7,
		MaxTokens:              4000,
		GenerateDelay:          3 * time.Second,
		RecalculateDelay:       2 * time.Second,
		ChatDelay:              time.Second,
	}
}

// Generator implements plan generation and recalculation.
type Generator struct {
	llm    llm.Completer
	cfg    Config
	logger *slog.Logger
}

// NewGenerator creates a Generator. A nil completer selects degraded mode.
func NewGenerator(c llm.Completer, cfg Config, logger *slog.Logger) *Generator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{llm: c, cfg: cfg, logger: logger.With("component", "planner")}
}

// Degraded reports whether the generator returns placeholder plans.
func (g *Generator) Degraded() bool {
	return g.llm == nil
}

// ModelName returns the backing model, or "mock" in degraded mode.
func (g *Generator) ModelName() string {
	if g.llm == nil {
		return "mock"
	}
	return g.llm.ModelName()
}

// Generate produces a new StrategicPlan for goal. pc may be nil.
// Failures are returned as *GenerationError.
func (g *Generator) Generate(ctx context.Context, goal string, pc *types.OnboardingContext) (*types.StrategicPlan, error) {
	goal = strings.TrimSpace(goal)
	if goal == "" {
		return nil, &GenerationError{Err: ErrEmptyGoal}
	}

	if g.Degraded() {
		g.logger.Warn("no LLM credential configured, returning placeholder plan",
			"action", "generate",
			"mode", "degraded",
		)
		if err := wait(ctx, g.cfg.GenerateDelay); err != nil {
			return nil, &GenerationError{Err: err}
		}
		return mockPlan(goal), nil
	}

	start := time.Now()
	text, err := g.llm.Complete(ctx, llm.Request{
		Preamble:    generatePreamble(pc),
		Message:     goal,
		Temperature: g.cfg.GenerateTemperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return nil, &GenerationError{Err: err}
	}

	plan, err := parsePlan(text, goal)
	if err != nil {
		g.logger.Error("generated plan rejected",
			"action", "generate",
			"error", err,
			"response_bytes", len(text),
		)
		return nil, &GenerationError{Err: err}
	}

	g.logger.Info("plan generated",
		"action", "generate",
		"model", g.llm.ModelName(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return plan, nil
}

// RecalcRequest is the input of Recalculate.
type RecalcRequest struct {
	Current types.StrategicPlan
	// CompletedWeeks holds 0-based week indices.
	CompletedWeeks []int
	Context        *types.OnboardingContext
	// NewGoal replaces the current goal when non-empty.
	NewGoal string
	// ContextDelta is free text describing what changed.
	ContextDelta string
}

// EffectiveGoal is NewGoal when set, otherwise the current plan's goal.
func (r RecalcRequest) EffectiveGoal() string {
	if g := strings.TrimSpace(r.NewGoal); g != "" {
		return g
	}
	return r.Current.Goal
}

// Recalculate regenerates the plan against a new goal or context delta while
// keeping completed weeks. Failures are returned as *RecalculationError.
func (g *Generator) Recalculate(ctx context.Context, req RecalcRequest) (*types.StrategicPlan, error) {
	if n := len(req.Current.WeeklyTactics); n != types.WeeksPerPlan {
		return nil, &RecalculationError{Err: fmt.Errorf("%w: current plan has %d weekly tactics", ErrMalformedPlan, n)}
	}

	if g.Degraded() {
		g.logger.Warn("no LLM credential configured, returning plan unchanged",
			"action", "recalculate",
			"mode", "degraded",
		)
		if err := wait(ctx, g.cfg.RecalculateDelay); err != nil {
			return nil, &RecalculationError{Err: err}
		}
		return clonePlan(req.Current), nil
	}

	goal := req.EffectiveGoal()
	completed := completedIndices(req.CompletedWeeks)

	start := time.Now()
	text, err := g.llm.Complete(ctx, llm.Request{
		Preamble:    recalculatePreamble(req, goal, completed),
		Message:     recalculateMessage,
		Temperature: g.cfg.RecalculateTemperature,
		MaxTokens:   g.cfg.MaxTokens,
	})
	if err != nil {
		return nil, &RecalculationError{Err: err}
	}

	plan, err := parsePlan(stripCodeFences(text), goal)
	if err != nil {
		g.logger.Error("recalculated plan rejected",
			"action", "recalculate",
			"error", err,
			"response_bytes", len(text),
		)
		return nil, &RecalculationError{Err: err}
	}

	// Completed weeks must keep a title
	for _, idx := range completed {
		if strings.TrimSpace(plan.WeeklyTactics[idx].Title) == "" {
			plan.WeeklyTactics[idx] = req.Current.WeeklyTactics[idx]
		}
	}

	g.logger.Info("plan recalculated",
		"action", "recalculate",
		"model", g.llm.ModelName(),
		"completed_weeks", len(completed),
		"goal_changed", goal != req.Current.Goal,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return plan, nil
}

// completedIndices returns the sorted, de-duplicated in-range indices.
func completedIndices(in []int) []int {
	seen := make(map[int]bool, len(in))
	out := make([]int, 0, len(in))
	for _, idx := range in {
		if idx < 0 || idx >= types.WeeksPerPlan || seen[idx] {
			continue
		}
		seen[idx] = true
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

func clonePlan(p types.StrategicPlan) *types.StrategicPlan {
	out := p
	out.Quarters = cloneQuarters(p.Quarters)
	out.MonthlyFocus = append([]string(nil), p.MonthlyFocus...)
	out.WeeklyTactics = append([]types.Tactic(nil), p.WeeklyTactics...)
	return &out
}

func cloneQuarters(q types.Quarters) types.Quarters {
	return types.Quarters{
		Q1: append([]string(nil), q.Q1...),
		Q2: append([]string(nil), q.Q2...),
		Q3: append([]string(nil), q.Q3...),
		Q4: append([]string(nil), q.Q4...),
	}
}

// wait blocks for d or until ctx is done.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
