package dashboard

import "github.com/hyperengineering/vision/internal/types"

const monthsPerQuarter = types.MonthsPerPlan / types.QuartersPerPlan

// RoadmapMonth is one month's focus.
type RoadmapMonth struct {
	Number int    `json:"number"`
	Focus  string `json:"focus"`
}

// RoadmapQuarter pairs a quarter's focus with its three months.
type RoadmapQuarter struct {
	Number int            `json:"number"`
	Focus  []string       `json:"focus"`
	Months []RoadmapMonth `json:"months"`
}

// Roadmap is the year at quarter and month granularity.
type Roadmap struct {
	PlanID   string           `json:"plan_id"`
	Goal     string           `json:"goal"`
	Quarters []RoadmapQuarter `json:"quarters"`
}

// BuildRoadmap groups the monthly foci by quarter: months 1-3 in Q1, 4-6 in Q2 and so on.
// Missing months come back with an empty focus.
func BuildRoadmap(p *types.PlanWithTactics) Roadmap {
	r := Roadmap{
		PlanID:   p.Plan.ID,
		Goal:     p.Plan.Goal,
		Quarters: make([]RoadmapQuarter, types.QuartersPerPlan),
	}
	for q := range r.Quarters {
		rq := RoadmapQuarter{
			Number: q + 1,
			Focus:  append([]string{}, p.Plan.Quarters.At(q)...),
			Months: make([]RoadmapMonth, monthsPerQuarter),
		}
		for i := range rq.Months {
			m := q*monthsPerQuarter + i
			rq.Months[i].Number = m + 1
			if m < len(p.Plan.MonthlyFocus) {
				rq.Months[i].Focus = p.Plan.MonthlyFocus[m]
			}
		}
		r.Quarters[q] = rq
	}
	return r
}
