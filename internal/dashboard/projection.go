package dashboard

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/hyperengineering/vision/internal/types"
)

// QuarterStatus is the display state of a quarter.
type QuarterStatus string

const (
	QuarterCompleted QuarterStatus = "completed"
	QuarterCurrent   QuarterStatus = "current"
	QuarterOpen      QuarterStatus = "open"
	QuarterLocked    QuarterStatus = "locked"
)

// DefaultUnlockThreshold is the completion ratio of a quarter that unlocks the next one.
const DefaultUnlockThreshold = 0.7

// Policy controls quarter unlocking.
type Policy struct {
	// UnlockThreshold is the completion ratio of quarter n-1 that unlocks quarter n.
	UnlockThreshold float64
}

// TacticView is one week in the dashboard.
type TacticView struct {
	ID          string             `json:"id"`
	WeekNumber  int                `json:"week_number"`
	WeekIndex   int                `json:"week_index"`
	Title       string             `json:"title"`
	Description string             `json:"description"`
	Status      types.TacticStatus `json:"status"`
	Completed   bool               `json:"completed"`
}

// QuarterView is a 13-week block of the plan.
type QuarterView struct {
	Number    int           `json:"number"`
	Title     string        `json:"title"`
	Focus     []string      `json:"focus"`
	Status    QuarterStatus `json:"status"`
	FirstWeek int           `json:"first_week"`
	LastWeek  int           `json:"last_week"`
	Completed int           `json:"completed"`
	Progress  int           `json:"progress"`
	Tactics   []TacticView  `json:"tactics"`
}

// View is the UI-ready projection of the active plan.
type View struct {
	PlanID         string        `json:"plan_id"`
	Goal           string        `json:"goal"`
	Progress       int           `json:"progress"`
	CompletedCount int           `json:"completed_count"`
	TotalTactics   int           `json:"total_tactics"`
	MonthlyFocus   []string      `json:"monthly_focus"`
	Quarters       []QuarterView `json:"quarters"`
	// Streak is nil when the streak could not be read.
	Streak    *types.Streak `json:"streak"`
	CreatedAt time.Time     `json:"created_at"`
}

// Progress returns round(100 * completed / total) as a percentage.
func Progress(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(completed) / float64(total)))
}

// totalTactics is the progress denominator: the tactic count when every row has a
// distinct in-range week, otherwise 52.
func totalTactics(tactics []types.TacticRecord) int {
	if len(tactics) == 0 || len(tactics) > types.WeeksPerPlan {
		return types.WeeksPerPlan
	}
	seen := make(map[int]bool, len(tactics))
	for _, t := range tactics {
		if t.WeekNumber < 1 || t.WeekNumber > types.WeeksPerPlan || seen[t.WeekNumber] {
			return types.WeeksPerPlan
		}
		seen[t.WeekNumber] = true
	}
	return len(tactics)
}

// Project builds the dashboard view. completed holds 0-based week indices.
func Project(p *types.PlanWithTactics, completed map[int]bool, policy Policy, now time.Time) View {
	v := View{
		PlanID:       p.Plan.ID,
		Goal:         p.Plan.Goal,
		MonthlyFocus: append([]string(nil), p.Plan.MonthlyFocus...),
		TotalTactics: totalTactics(p.Tactics),
		CreatedAt:    p.Plan.CreatedAt,
	}
	for idx, done := range completed {
		if done && idx >= 0 && idx < types.WeeksPerPlan {
			v.CompletedCount++
		}
	}
	v.Progress = Progress(v.CompletedCount, v.TotalTactics)

	v.Quarters = make([]QuarterView, types.QuartersPerPlan)
	for q := range v.Quarters {
		first, last := types.QuarterWeeks(q)
		focus := append([]string(nil), p.Plan.Quarters.At(q)...)
		title := fmt.Sprintf("Foco Q%d", q+1)
		if len(focus) > 0 && strings.TrimSpace(focus[0]) != "" {
			title = focus[0]
		}
		v.Quarters[q] = QuarterView{
			Number:    q + 1,
			Title:     title,
			Focus:     focus,
			FirstWeek: first,
			LastWeek:  last,
			Tactics:   []TacticView{},
		}
	}

	for _, t := range p.Tactics {
		q := types.QuarterOfWeek(t.WeekNumber)
		if q < 0 {
			continue
		}
		idx := t.WeekNumber - 1
		v.Quarters[q].Tactics = append(v.Quarters[q].Tactics, TacticView{
			ID:          t.ID,
			WeekNumber:  t.WeekNumber,
			WeekIndex:   idx,
			Title:       t.Title,
			Description: t.Description,
			Status:      t.Status,
			Completed:   completed[idx],
		})
	}

	for q := range v.Quarters {
		first, last := types.QuarterWeeks(q)
		for idx := first - 1; idx < last; idx++ {
			if completed[idx] {
				v.Quarters[q].Completed++
			}
		}
		v.Quarters[q].Progress = Progress(v.Quarters[q].Completed, types.WeeksPerQuarter)
	}

	applyUnlockPolicy(v.Quarters, policy, p.Plan.CreatedAt, now)
	return v
}

// applyUnlockPolicy sets each quarter's status.
//
// Quarter 1 is always unlocked. Quarter n unlocks when quarter n-1 reaches the
// threshold completion ratio, or when the plan is old enough to have reached
// quarter n's first week. The earliest unlocked quarter that is not fully
// completed is current; later unlocked ones are open.
func applyUnlockPolicy(quarters []QuarterView, policy Policy, createdAt, now time.Time) {
	threshold := policy.UnlockThreshold
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultUnlockThreshold
	}

	weeksElapsed := 0
	if !createdAt.IsZero() && now.After(createdAt) {
		weeksElapsed = int(now.Sub(createdAt) / (7 * 24 * time.Hour))
	}

	currentAssigned := false
	for q := range quarters {
		unlocked := q == 0
		if !unlocked {
			prev := quarters[q-1]
			ratio := float64(prev.Completed) / float64(types.WeeksPerQuarter)
			unlocked = ratio >= threshold || weeksElapsed >= q*types.WeeksPerQuarter
		}

		switch {
		case quarters[q].Completed == types.WeeksPerQuarter:
			quarters[q].Status = QuarterCompleted
		case !unlocked:
			quarters[q].Status = QuarterLocked
		case !currentAssigned:
			quarters[q].Status = QuarterCurrent
			currentAssigned = true
		default:
			quarters[q].Status = QuarterOpen
		}
	}
}
