// Package dashboard holds the per-user working state of the active plan.
//
// A Controller keeps the plan rows and the set of completed week indices in
// memory and projects them into a View. Mutations are applied optimistically
// and rolled back in full when the store write fails. Mutations of one
// controller are serialized; views may be read concurrently.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hyperengineering/vision/internal/planner"
	"github.com/hyperengineering/vision/internal/store"
	"github.com/hyperengineering/vision/internal/types"
	"golang.org/x/sync/errgroup"
)

var (
	ErrWeekOutOfRange = errors.New("week index out of range")
	ErrTacticNotFound = errors.New("tactic not found")
	ErrEmptyTitle     = errors.New("tactic title cannot be empty")
	// ErrPlanChanged means the active plan was replaced outside this controller.
	// The cached state is dropped; the next call loads the new plan.
	ErrPlanChanged = errors.New("active plan changed")
)

// Store is the persistence the controller needs.
type Store interface {
	GetActivePlan(ctx context.Context, userID string) (*types.PlanWithTactics, error)
	SetTacticStatus(ctx context.Context, planID string, week int, status types.TacticStatus) (*types.TacticRecord, error)
	UpdateTacticText(ctx context.Context, planID, tacticID, title, description string) (*types.TacticRecord, error)
	ApplyRecalculation(ctx context.Context, userID, planID string, plan types.StrategicPlan) (*types.PlanWithTactics, error)
}

// Recalculator regenerates a plan around completed weeks.
type Recalculator interface {
	Recalculate(ctx context.Context, req planner.RecalcRequest) (*types.StrategicPlan, error)
}

// StreakToucher records daily activity.
type StreakToucher interface {
	Touch(ctx context.Context, userID string) (*types.Streak, error)
}

// Controller is the dashboard state of one user.
type Controller struct {
	userID string
	store  Store
	recalc Recalculator
	streak StreakToucher
	policy Policy
	now    func() time.Time
	logger *slog.Logger

	// mutate serializes toggle, edit and recalculate for this user.
	mutate sync.Mutex

	mu        sync.RWMutex
	plan      *types.PlanWithTactics
	completed map[int]bool
	streakVal *types.Streak
}

func newController(userID string, deps *Manager) *Controller {
	return &Controller{
		userID: userID,
		store:  deps.store,
		recalc: deps.recalc,
		streak: deps.streak,
		policy: deps.policy,
		now:    deps.now,
		logger: deps.logger.With("user_id", userID),
	}
}

// Load reads the active plan and touches the streak in parallel.
// A streak failure is logged and leaves the view's streak empty.
func (c *Controller) Load(ctx context.Context) (View, error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if err := c.load(ctx, true); err != nil {
		return View{}, err
	}
	return c.View(), nil
}

func (c *Controller) load(ctx context.Context, touch bool) error {
	var (
		plan   *types.PlanWithTactics
		streak *types.Streak
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := c.store.GetActivePlan(gctx, c.userID)
		if err != nil {
			return err
		}
		plan = p
		return nil
	})
	if touch && c.streak != nil {
		g.Go(func() error {
			// Not gctx: a failed plan read must not cancel the streak write.
			s, err := c.streak.Touch(ctx, c.userID)
			if err != nil {
				c.logger.Warn("streak update failed", "error", err)
				return nil
			}
			streak = s
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.setPlanLocked(plan)
	if streak != nil {
		c.streakVal = streak
	}
	return nil
}

// setPlanLocked replaces the cached plan and rebuilds the completed set from
// the persisted statuses. Caller must hold mu.
func (c *Controller) setPlanLocked(p *types.PlanWithTactics) {
	c.plan = p
	c.completed = make(map[int]bool, len(p.Tactics))
	for _, t := range p.Tactics {
		if t.Status == types.TacticCompleted && t.WeekNumber >= 1 && t.WeekNumber <= types.WeeksPerPlan {
			c.completed[t.WeekNumber-1] = true
		}
	}
}

func (c *Controller) ensureLoaded(ctx context.Context) error {
	c.mu.RLock()
	loaded := c.plan != nil
	c.mu.RUnlock()
	if loaded {
		return nil
	}
	return c.load(ctx, false)
}

// View returns the current projection. It is the zero View before the first load.
func (c *Controller) View() View {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.plan == nil {
		return View{}
	}
	v := Project(c.plan, c.completed, c.policy, c.now())
	v.Streak = c.streakVal
	return v
}

// forgetPlanLocked drops the cached plan after the store reports it was replaced.
// Caller must hold mu.
func (c *Controller) forgetPlanLocked(planID string) error {
	c.plan = nil
	c.completed = nil
	c.logger.Warn("cached plan was replaced, dropping state", "plan_id", planID)
	return fmt.Errorf("%w: %s", ErrPlanChanged, planID)
}

// CompletedWeeks returns the sorted 0-based indices of completed weeks.
func (c *Controller) CompletedWeeks() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedIndices(c.completed)
}

func sortedIndices(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for idx, done := range set {
		if done {
			out = append(out, idx)
		}
	}
	sort.Ints(out)
	return out
}

func (c *Controller) tacticPosLocked(week int) int {
	for i, t := range c.plan.Tactics {
		if t.WeekNumber == week {
			return i
		}
	}
	return -1
}

// Toggle flips the completion of the 0-based week index.
// On a store failure the in-memory set and tactic are restored and the error returned.
func (c *Controller) Toggle(ctx context.Context, weekIndex int) (View, error) {
	if weekIndex < 0 || weekIndex >= types.WeeksPerPlan {
		return View{}, fmt.Errorf("%w: %d", ErrWeekOutOfRange, weekIndex)
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return View{}, err
	}

	c.mu.Lock()
	pos := c.tacticPosLocked(weekIndex + 1)
	if pos < 0 {
		c.mu.Unlock()
		return View{}, fmt.Errorf("%w: week %d", ErrTacticNotFound, weekIndex+1)
	}
	planID := c.plan.Plan.ID
	wasCompleted := c.completed[weekIndex]
	prevTactic := c.plan.Tactics[pos]

	next := types.TacticCompleted
	if wasCompleted {
		next = types.TacticPending
		delete(c.completed, weekIndex)
	} else {
		c.completed[weekIndex] = true
	}
	c.plan.Tactics[pos].Status = next
	c.mu.Unlock()

	updated, err := c.store.SetTacticStatus(ctx, planID, weekIndex+1, next)

	c.mu.Lock()
	if err != nil {
		if wasCompleted {
			c.completed[weekIndex] = true
		} else {
			delete(c.completed, weekIndex)
		}
		c.plan.Tactics[pos] = prevTactic
		if errors.Is(err, store.ErrPlanInactive) {
			err = c.forgetPlanLocked(planID)
			c.mu.Unlock()
			return View{}, err
		}
		c.mu.Unlock()
		c.logger.Error("toggle rolled back", "week", weekIndex+1, "error", err)
		return View{}, err
	}
	c.plan.Tactics[pos] = *updated
	c.mu.Unlock()

	c.logger.Info("tactic toggled", "week", weekIndex+1, "status", string(next))
	return c.View(), nil
}

// Edit changes a tactic's title and description without touching its status.
func (c *Controller) Edit(ctx context.Context, tacticID, title, description string) (View, error) {
	title = strings.TrimSpace(title)
	description = strings.TrimSpace(description)
	if title == "" {
		return View{}, ErrEmptyTitle
	}

	c.mutate.Lock()
	defer c.mutate.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return View{}, err
	}

	c.mu.Lock()
	pos := -1
	for i, t := range c.plan.Tactics {
		if t.ID == tacticID {
			pos = i
			break
		}
	}
	if pos < 0 {
		c.mu.Unlock()
		return View{}, fmt.Errorf("%w: %s", ErrTacticNotFound, tacticID)
	}
	planID := c.plan.Plan.ID
	prev := c.plan.Tactics[pos]
	c.plan.Tactics[pos].Title = title
	c.plan.Tactics[pos].Description = description
	c.mu.Unlock()

	updated, err := c.store.UpdateTacticText(ctx, planID, tacticID, title, description)

	c.mu.Lock()
	if err != nil {
		c.plan.Tactics[pos] = prev
		if errors.Is(err, store.ErrPlanInactive) {
			err = c.forgetPlanLocked(planID)
			c.mu.Unlock()
			return View{}, err
		}
		c.mu.Unlock()
		if errors.Is(err, store.ErrNotFound) {
			return View{}, fmt.Errorf("%w: %s", ErrTacticNotFound, tacticID)
		}
		c.logger.Error("edit rolled back", "tactic_id", tacticID, "error", err)
		return View{}, err
	}
	c.plan.Tactics[pos] = *updated
	c.mu.Unlock()

	return c.View(), nil
}

// Recalculate regenerates the plan for an optional new goal and context delta,
// persists it keeping completed weeks, and reloads the state from the store.
func (c *Controller) Recalculate(ctx context.Context, newGoal, contextDelta string) (View, error) {
	c.mutate.Lock()
	defer c.mutate.Unlock()

	if err := c.ensureLoaded(ctx); err != nil {
		return View{}, err
	}

	c.mu.RLock()
	planID := c.plan.Plan.ID
	req := planner.RecalcRequest{
		Current:        c.plan.StrategicPlan(),
		CompletedWeeks: sortedIndices(c.completed),
		Context:        c.plan.Plan.Context,
		NewGoal:        strings.TrimSpace(newGoal),
		ContextDelta:   strings.TrimSpace(contextDelta),
	}
	c.mu.RUnlock()

	next, err := c.recalc.Recalculate(ctx, req)
	if err != nil {
		return View{}, err
	}

	saved, err := c.store.ApplyRecalculation(ctx, c.userID, planID, *next)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrIncompletePlan):
			return View{}, &planner.RecalculationError{Err: err}
		case errors.Is(err, store.ErrPlanInactive):
			c.mu.Lock()
			err = c.forgetPlanLocked(planID)
			c.mu.Unlock()
		}
		return View{}, err
	}

	c.mu.Lock()
	c.setPlanLocked(saved)
	c.mu.Unlock()

	c.logger.Info("plan recalculated", "plan_id", planID, "completed_weeks", len(req.CompletedWeeks))
	return c.View(), nil
}

// Roadmap returns the quarter and month view of the active plan.
func (c *Controller) Roadmap(ctx context.Context) (Roadmap, error) {
	c.mutate.Lock()
	err := c.ensureLoaded(ctx)
	c.mutate.Unlock()
	if err != nil {
		return Roadmap{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return BuildRoadmap(c.plan), nil
}
