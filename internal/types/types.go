package types

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Plan geometry. Quarter boundaries are fixed at weeks 1-13, 14-26, 27-39, 40-52.
const (
	WeeksPerPlan    = 52
	WeeksPerQuarter = 13
	QuartersPerPlan = 4
	MonthsPerPlan   = 12
)

// TacticStatus represents the lifecycle state of a weekly tactic
type TacticStatus string

const (
	TacticPending    TacticStatus = "pending"
	TacticInProgress TacticStatus = "in_progress"
	TacticCompleted  TacticStatus = "completed"
	TacticSkipped    TacticStatus = "skipped"
)

// IsValid reports whether s is a known tactic status.
func (s TacticStatus) IsValid() bool {
	switch s {
	case TacticPending, TacticInProgress, TacticCompleted, TacticSkipped:
		return true
	default:
		return false
	}
}

// ParseTacticStatus normalizes and validates a status string.
func ParseTacticStatus(input string) (TacticStatus, error) {
	s := TacticStatus(strings.TrimSpace(strings.ToLower(input)))
	if !s.IsValid() {
		return "", fmt.Errorf("invalid tactic status: %q", input)
	}
	return s, nil
}

// Tactic is one week's action as produced by plan generation.
type Tactic struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Quarters holds the ordered focus list of each quarter.
type Quarters struct {
	Q1 []string `json:"q1"`
	Q2 []string `json:"q2"`
	Q3 []string `json:"q3"`
	Q4 []string `json:"q4"`
}

// At returns the focus list for the 0-based quarter index.
func (q Quarters) At(i int) []string {
	switch i {
	case 0:
		return q.Q1
	case 1:
		return q.Q2
	case 2:
		return q.Q3
	case 3:
		return q.Q4
	default:
		return nil
	}
}

// StrategicPlan is the output shape of plan generation and recalculation.
// WeeklyTactics[i] is the tactic for week i+1.
type StrategicPlan struct {
	Goal          string   `json:"goal"`
	Quarters      Quarters `json:"quarters"`
	MonthlyFocus  []string `json:"monthlyFocus"`
	WeeklyTactics []Tactic `json:"weeklyTactics"`
}

// QuarterOfWeek returns the 0-based quarter index for a 1-based week number,
// or -1 when the week is outside the plan.
func QuarterOfWeek(week int) int {
	if week < 1 || week > WeeksPerPlan {
		return -1
	}
	return (week - 1) / WeeksPerQuarter
}

// QuarterWeeks returns the first and last week numbers of the 0-based quarter.
func QuarterWeeks(quarter int) (first, last int) {
	first = quarter*WeeksPerQuarter + 1
	return first, first + WeeksPerQuarter - 1
}

// PlanRecord is a persisted strategic plan (plan-level fields only).
type PlanRecord struct {
	ID           string             `json:"id"`
	UserID       string             `json:"user_id"`
	Goal         string             `json:"goal"`
	Context      *OnboardingContext `json:"context,omitempty"`
	Quarters     Quarters           `json:"quarters"`
	MonthlyFocus []string           `json:"monthly_focus"`
	IsActive     bool               `json:"is_active"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// TacticRecord is a persisted weekly tactic.
type TacticRecord struct {
	ID           string       `json:"id"`
	PlanID       string       `json:"plan_id"`
	UserID       string       `json:"user_id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	Status       TacticStatus `json:"status"`
	CompletedAt  *time.Time   `json:"completed_at,omitempty"`
	WeekNumber   int          `json:"week_number"`
	DisplayOrder int          `json:"display_order"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// PlanWithTactics is a plan joined with its tactics, ordered by week number.
type PlanWithTactics struct {
	Plan    PlanRecord     `json:"plan"`
	Tactics []TacticRecord `json:"tactics"`
}

// SortTactics orders tactics by week number, then display order.
func SortTactics(tactics []TacticRecord) {
	sort.SliceStable(tactics, func(i, j int) bool {
		if tactics[i].WeekNumber != tactics[j].WeekNumber {
			return tactics[i].WeekNumber < tactics[j].WeekNumber
		}
		return tactics[i].DisplayOrder < tactics[j].DisplayOrder
	})
}

// StrategicPlan rebuilds the generator-shaped plan from stored rows.
// Weeks without a stored row come back as empty tactics so the result always has 52 entries.
func (p PlanWithTactics) StrategicPlan() StrategicPlan {
	weekly := make([]Tactic, WeeksPerPlan)
	for _, t := range p.Tactics {
		if t.WeekNumber < 1 || t.WeekNumber > WeeksPerPlan {
			continue
		}
		weekly[t.WeekNumber-1] = Tactic{Title: t.Title, Description: t.Description}
	}
	monthly := make([]string, len(p.Plan.MonthlyFocus))
	copy(monthly, p.Plan.MonthlyFocus)
	return StrategicPlan{
		Goal:          p.Plan.Goal,
		Quarters:      p.Plan.Quarters,
		MonthlyFocus:  monthly,
		WeeklyTactics: weekly,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	LLMModel string `json:"llm_model"`
	Degraded bool   `json:"degraded"`
}
