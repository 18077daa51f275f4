// Package onboarding implements the six-step business profile form and the
// submission that turns it into the user's active plan.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hyperengineering/vision/internal/archive"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
)

var (
	ErrFirstStep = errors.New("already at the first step")
	ErrLastStep  = errors.New("already at the last step")
)

// Store is the persistence the onboarding flow needs.
type Store interface {
	GetDraft(ctx context.Context, userID string) (*types.OnboardingDraft, error)
	SaveDraft(ctx context.Context, draft types.OnboardingDraft) error
	DeleteDraft(ctx context.Context, userID string) error
	GetPlan(ctx context.Context, userID, planID string) (*types.PlanWithTactics, error)
	ReplaceActivePlan(ctx context.Context, userID string, planCtx *types.OnboardingContext, plan types.StrategicPlan) (*store.ReplaceResult, error)
}

// Generator produces a plan from a goal and business context.
type Generator interface {
	Generate(ctx context.Context, goal string, pc *types.OnboardingContext) (*types.StrategicPlan, error)
}

// Archiver stores a copy of a replaced plan.
type Archiver interface {
	ArchivePlan(ctx context.Context, plan *types.PlanWithTactics) (string, error)
}

// State is the draft as seen by the form.
type State struct {
	Step int                     `json:"step"`
	Data types.OnboardingContext `json:"data"`
	// Missing lists the JSON names of required fields still empty on this step.
	Missing    []string `json:"missing"`
	CanAdvance bool     `json:"can_advance"`
}

func stateOf(d *types.OnboardingDraft) *State {
	s := &State{Step: d.Step, Data: d.Data, Missing: []string{}}
	err := CheckStep(d.Step, d.Data)
	var serr *StepError
	if errors.As(err, &serr) {
		s.Missing = serr.Fields
	}
	s.CanAdvance = err == nil
	return s
}

// Controller drives the onboarding flow of any user.
type Controller struct {
	store    Store
	gen      Generator
	archiver Archiver
	logger   *slog.Logger
}

// NewController creates a Controller. archiver may be nil.
func NewController(s Store, gen Generator, archiver Archiver, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		store:    s,
		gen:      gen,
		archiver: archiver,
		logger:   logger.With("component", "onboarding"),
	}
}

func (c *Controller) draft(ctx context.Context, userID string) (*types.OnboardingDraft, error) {
	d, err := c.store.GetDraft(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return &types.OnboardingDraft{
			UserID: userID,
			Step:   1,
			Data:   types.OnboardingContext{MainBottleneck: types.BottleneckList{}},
		}, nil
	}
	if err != nil {
		return nil, err
	}
	if d.Step < 1 || d.Step > Steps {
		d.Step = 1
	}
	return d, nil
}

// Load returns the user's draft, starting a new one when none exists.
// seedGoal fills the goal of a draft that has none and is persisted.
func (c *Controller) Load(ctx context.Context, userID, seedGoal string) (*State, error) {
	d, err := c.draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	if seed := strings.TrimSpace(seedGoal); seed != "" && strings.TrimSpace(d.Data.Goal) == "" {
		d.Data.Goal = seed
		if err := c.store.SaveDraft(ctx, *d); err != nil {
			return nil, err
		}
	}
	return stateOf(d), nil
}

// Save replaces the draft's answers without moving between steps.
func (c *Controller) Save(ctx context.Context, userID string, data types.OnboardingContext) (*State, error) {
	d, err := c.draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	if data.MainBottleneck == nil {
		data.MainBottleneck = types.BottleneckList{}
	}
	d.Data = data
	if err := c.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return stateOf(d), nil
}

// Next advances one step when the current step's required fields are filled.
func (c *Controller) Next(ctx context.Context, userID string) (*State, error) {
	d, err := c.draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.Step >= Steps {
		return nil, ErrLastStep
	}
	if err := CheckStep(d.Step, d.Data); err != nil {
		return nil, err
	}
	d.Step++
	if err := c.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return stateOf(d), nil
}

// Back returns to the previous step. Answers are kept.
func (c *Controller) Back(ctx context.Context, userID string) (*State, error) {
	d, err := c.draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	if d.Step <= 1 {
		return nil, ErrFirstStep
	}
	d.Step--
	if err := c.store.SaveDraft(ctx, *d); err != nil {
		return nil, err
	}
	return stateOf(d), nil
}

// Submit generates a plan from the saved draft and makes it the active plan.
func (c *Controller) Submit(ctx context.Context, userID string) (*store.ReplaceResult, error) {
	d, err := c.draft(ctx, userID)
	if err != nil {
		return nil, err
	}
	return c.SubmitContext(ctx, userID, d.Data)
}

// SubmitContext validates data, generates a plan and replaces the active plan.
//
// Nothing is written when validation or generation fails. After the plan is
// stored the draft is deleted and the replaced plan, if any, is archived;
// failures of those two steps are logged and do not fail the submission.
func (c *Controller) SubmitContext(ctx context.Context, userID string, data types.OnboardingContext) (*store.ReplaceResult, error) {
	if err := CheckAll(data); err != nil {
		return nil, err
	}

	plan, err := c.gen.Generate(ctx, data.Goal, &data)
	if err != nil {
		return nil, err
	}
	// A cancelled request must not leave a plan behind.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result, err := c.store.ReplaceActivePlan(ctx, userID, &data, *plan)
	if err != nil {
		return nil, fmt.Errorf("store plan: %w", err)
	}
	c.logger.Info("plan created",
		"action", "submit",
		"user_id", userID,
		"plan_id", result.Plan.Plan.ID,
		"replaced", result.PreviousPlanID,
	)

	if err := c.store.DeleteDraft(ctx, userID); err != nil {
		c.logger.Warn("draft cleanup failed", "user_id", userID, "error", err)
	}
	if result.PreviousPlanID != "" {
		c.archivePrevious(ctx, userID, result.PreviousPlanID)
	}
	return result, nil
}

func (c *Controller) archivePrevious(ctx context.Context, userID, planID string) {
	if c.archiver == nil {
		return
	}
	prev, err := c.store.GetPlan(ctx, userID, planID)
	if err != nil {
		c.logger.Warn("archive skipped", "plan_id", planID, "error", err)
		return
	}
	key, err := c.archiver.ArchivePlan(ctx, prev)
	if errors.Is(err, archive.ErrNotConfigured) {
		return
	}
	if err != nil {
		c.logger.Warn("archive failed", "plan_id", planID, "error", err)
		return
	}
	c.logger.Info("plan archived", "plan_id", planID, "key", key)
}
