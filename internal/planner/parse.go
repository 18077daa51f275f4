package planner

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/hyperengineering/vision/internal/types"
)

// extractJSONObject returns the first balanced {...} span of text.
// Braces inside JSON strings are ignored.
func extractJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}
	return "", fmt.Errorf("%w: unbalanced braces", ErrNoJSON)
}

// stripCodeFences removes Markdown code fence markers.
func stripCodeFences(text string) string {
	text = strings.ReplaceAll(text, "```json", "")
	text = strings.ReplaceAll(text, "```JSON", "")
	text = strings.ReplaceAll(text, "```", "")
	return strings.TrimSpace(text)
}

// parsePlan decodes and checks a generated plan.
// fallbackGoal fills in a missing goal field.
func parsePlan(text, fallbackGoal string) (*types.StrategicPlan, error) {
	raw, err := extractJSONObject(text)
	if err != nil {
		return nil, err
	}

	var plan types.StrategicPlan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPlan, err)
	}

	if err := normalizePlan(&plan, fallbackGoal); err != nil {
		return nil, err
	}
	return &plan, nil
}

// normalizePlan enforces the plan shape: 52 tactics, four non-empty quarters,
// and exactly 12 monthly foci (padded or truncated).
func normalizePlan(plan *types.StrategicPlan, fallbackGoal string) error {
	if strings.TrimSpace(plan.Goal) == "" {
		plan.Goal = fallbackGoal
	}

	if n := len(plan.WeeklyTactics); n != types.WeeksPerPlan {
		return fmt.Errorf("%w: %d weekly tactics, want %d", ErrMalformedPlan, n, types.WeeksPerPlan)
	}

	for q := 0; q < types.QuartersPerPlan; q++ {
		if !hasFocus(plan.Quarters.At(q)) {
			return fmt.Errorf("%w: quarter %d has no focus", ErrMalformedPlan, q+1)
		}
	}

	switch n := len(plan.MonthlyFocus); {
	case n > types.MonthsPerPlan:
		plan.MonthlyFocus = plan.MonthlyFocus[:types.MonthsPerPlan]
	case n < types.MonthsPerPlan:
		padded := make([]string, types.MonthsPerPlan)
		copy(padded, plan.MonthlyFocus)
		plan.MonthlyFocus = padded
	}
	return nil
}

func hasFocus(items []string) bool {
	for _, s := range items {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}
