package onboarding

import (
	"fmt"
	"strings"

	"github.com/hyperengineering/vision/internal/types"
)

// Steps is the number of onboarding steps.
const Steps = 6

// stepFields lists the required OnboardingContext fields gating each step (1-based).
// Optional fields shown on a step are not part of its gate.
var stepFields = [Steps + 1][]string{
	1: {"BusinessModel", "Niche"},
	2: {"CurrentStage", "MonthlyRevenue"},
	3: {"MainBottleneck", "TeamSize"},
	4: {"TargetAudience", "MarketingChannels"},
	5: {"InvestmentCapacity", "TimeAvailability"},
	6: {"Goal"},
}

// StepError reports the fields that keep a step from advancing.
type StepError struct {
	Step   int
	Fields []string
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d incomplete: %s", e.Step, strings.Join(e.Fields, ", "))
}

// CheckStep validates the required fields of a single step.
func CheckStep(step int, c types.OnboardingContext) error {
	if step < 1 || step > Steps {
		return fmt.Errorf("unknown onboarding step %d", step)
	}
	if err := c.ValidateFields(stepFields[step]...); err != nil {
		fields := types.InvalidFields(err)
		if fields == nil {
			return err
		}
		return &StepError{Step: step, Fields: fields}
	}
	return nil
}

// CheckAll validates the whole context and reports the first failing step.
func CheckAll(c types.OnboardingContext) error {
	for step := 1; step <= Steps; step++ {
		if err := CheckStep(step, c); err != nil {
			return err
		}
	}
	// Catches rules not covered by a step gate.
	if err := c.Validate(); err != nil {
		return &StepError{Step: Steps, Fields: types.InvalidFields(err)}
	}
	return nil
}
