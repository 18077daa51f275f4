package store

import (
	"context"
	"time"

	"github.com/hyperengineering/vision/internal/types"
)

// Store defines the interface contract for all persistence operations.
// Every read and write is scoped to a single user.
type Store interface {
	// Profiles
	EnsureProfile(ctx context.Context, session types.Session) (*types.UserProfile, error)
	GetProfile(ctx context.Context, userID string) (*types.UserProfile, error)
	UpdateProfileName(ctx context.Context, userID, fullName string) (*types.UserProfile, error)
	GetStreak(ctx context.Context, userID string) (*types.Streak, error)
	UpdateStreak(ctx context.Context, userID, expectedLastActive string, next types.Streak) error

	// Plans and tactics
	GetActivePlan(ctx context.Context, userID string) (*types.PlanWithTactics, error)
	GetPlan(ctx context.Context, userID, planID string) (*types.PlanWithTactics, error)
	ReplaceActivePlan(ctx context.Context, userID string, planCtx *types.OnboardingContext, plan types.StrategicPlan) (*ReplaceResult, error)
	ApplyRecalculation(ctx context.Context, userID, planID string, plan types.StrategicPlan) (*types.PlanWithTactics, error)
	SetTacticStatus(ctx context.Context, planID string, week int, status types.TacticStatus) (*types.TacticRecord, error)
	UpdateTacticText(ctx context.Context, planID, tacticID, title, description string) (*types.TacticRecord, error)

	// Goals
	ListGoals(ctx context.Context, userID string) ([]types.Goal, error)
	CreateGoal(ctx context.Context, userID, title, description string) (*types.Goal, error)
	ToggleGoal(ctx context.Context, userID, goalID string) (*types.Goal, error)
	DeleteGoal(ctx context.Context, userID, goalID string) error

	// Onboarding drafts
	GetDraft(ctx context.Context, userID string) (*types.OnboardingDraft, error)
	SaveDraft(ctx context.Context, draft types.OnboardingDraft) error
	DeleteDraft(ctx context.Context, userID string) error
	DeleteStaleDrafts(ctx context.Context, cutoff time.Time) (int64, error)

	Ping(ctx context.Context) error
	Close() error
}

// ReplaceResult reports the outcome of ReplaceActivePlan.
// PreviousPlanID is empty when the user had no active plan.
type ReplaceResult struct {
	Plan           *types.PlanWithTactics
	PreviousPlanID string
}
