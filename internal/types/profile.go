package types

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for last-active dates.
const DateLayout = "2006-01-02"

// Session identifies the authenticated user for the duration of a request.
type Session struct {
	UserID   string
	Email    string
	FullName string
}

// UserProfile is the account-scoped aggregate.
type UserProfile struct {
	ID                    string    `json:"id"`
	Email                 string    `json:"email,omitempty"`
	FullName              string    `json:"full_name,omitempty"`
	AvatarURL             string    `json:"avatar_url,omitempty"`
	CurrentStreak         int       `json:"current_streak"`
	LongestStreak         int       `json:"longest_streak"`
	LastActiveDate        string    `json:"last_active_date,omitempty"`
	TotalCompletedTactics int       `json:"total_completed_tactics"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// Streak is the daily-activity counter of a user.
// LastActiveDate is empty when the user has never been active.
type Streak struct {
	CurrentStreak  int    `json:"current_streak"`
	LongestStreak  int    `json:"longest_streak"`
	LastActiveDate string `json:"last_active_date,omitempty"`
}

// GoalStatus represents the state of a standalone goal
type GoalStatus string

const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// IsValid reports whether s is a known goal status.
func (s GoalStatus) IsValid() bool {
	return s == GoalActive || s == GoalCompleted
}

// Toggled returns the opposite status.
func (s GoalStatus) Toggled() GoalStatus {
	if s == GoalActive {
		return GoalCompleted
	}
	return GoalActive
}

// ParseGoalStatus normalizes and validates a goal status string.
func ParseGoalStatus(input string) (GoalStatus, error) {
	s := GoalStatus(strings.TrimSpace(strings.ToLower(input)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid goal status: %q", input)
	}
	return s, nil
}

// Goal is a user-authored goal, independent of the AI plan.
type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Status      GoalStatus `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// OnboardingDraft is the persisted in-progress onboarding form.
type OnboardingDraft struct {
	UserID    string            `json:"user_id"`
	Step      int               `json:"step"`
	Data      OnboardingContext `json:"data"`
	UpdatedAt time.Time         `json:"updated_at"`
}
