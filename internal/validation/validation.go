// Package validation checks request fields before they reach the services.
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/hyperengineering/vision/internal/llm"
	"github.com/hyperengineering/vision/internal/types"
)

// Field limits, in runes.
const (
	MaxTitleLength       = 200
	MaxDescriptionLength = 2000
	MaxGoalLength        = 500
	MaxDeltaLength       = 2000
	MaxNameLength        = 120
	MaxChatLength        = 4000
	MaxChatHistory       = 40
	MaxContextFieldLen   = 1000
)

var validate = validator.New()

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{Field: field, Message: "must be valid UTF-8"}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{Field: field, Message: "must not contain null bytes"}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{Field: field, Message: "is required"}
	}
	return nil
}

// ValidateULID returns an error if the value is not a valid ULID.
// ULIDs are 26 characters using Crockford Base32 (excludes I, L, O, U).
func ValidateULID(field, value string) *ValidationError {
	if len(value) != 26 {
		return &ValidationError{Field: field, Message: "must be a valid ULID (26 characters)"}
	}
	const crockfordBase32 = "0123456789ABCDEFGHJKMNPQRSTVWXYZ"
	for _, r := range strings.ToUpper(value) {
		if !strings.ContainsRune(crockfordBase32, r) {
			return &ValidationError{Field: field, Message: "must be a valid ULID (invalid character)"}
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateIntRange returns an error if the value is outside [min, max].
func ValidateIntRange(field string, value, min, max int) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %d and %d", min, max),
		}
	}
	return nil
}

// ValidateEmail returns an error if the value is not an email address.
func ValidateEmail(field, value string) *ValidationError {
	if err := validate.Var(value, "required,email"); err != nil {
		return &ValidationError{Field: field, Message: "must be a valid email address"}
	}
	return nil
}

// ValidateDigits returns an error if a non-empty value has anything but digits.
func ValidateDigits(field, value string) *ValidationError {
	if err := validate.Var(value, "omitempty,numeric"); err != nil || strings.ContainsAny(value, ".-+") {
		return &ValidationError{Field: field, Message: "must contain only digits"}
	}
	return nil
}

// text runs the common checks on a free-text field.
func text(c *Collector, field, value string, max int, required bool) {
	if required {
		if err := ValidateRequired(field, value); err != nil {
			c.Add(err)
			return
		}
	}
	c.Add(ValidateUTF8(field, value))
	c.Add(ValidateNoNullBytes(field, value))
	c.Add(ValidateMaxLength(field, value, max))
}

// ValidateGoal checks a standalone goal.
func ValidateGoal(title, description string) []ValidationError {
	c := &Collector{}
	text(c, "title", title, MaxTitleLength, true)
	text(c, "description", description, MaxDescriptionLength, false)
	return c.Errors()
}

// ValidateTacticEdit checks a tactic title and description edit.
func ValidateTacticEdit(title, description string) []ValidationError {
	return ValidateGoal(title, description)
}

// ValidateWeekIndex checks a 0-based week index.
func ValidateWeekIndex(field string, idx int) []ValidationError {
	c := &Collector{}
	c.Add(ValidateIntRange(field, idx, 0, types.WeeksPerPlan-1))
	return c.Errors()
}

// ValidateRecalculation checks the optional new goal and context delta.
func ValidateRecalculation(newGoal, contextDelta string) []ValidationError {
	c := &Collector{}
	text(c, "new_goal", newGoal, MaxGoalLength, false)
	text(c, "context_delta", contextDelta, MaxDeltaLength, false)
	return c.Errors()
}

// ValidateProfileName checks a display name.
func ValidateProfileName(name string) []ValidationError {
	c := &Collector{}
	text(c, "full_name", name, MaxNameLength, true)
	return c.Errors()
}

// ValidateChat checks a chat message and its history.
func ValidateChat(message string, history []llm.Message) []ValidationError {
	c := &Collector{}
	text(c, "message", message, MaxChatLength, true)
	if len(history) > MaxChatHistory {
		c.Add(&ValidationError{
			Field:   "history",
			Message: fmt.Sprintf("exceeds maximum of %d messages", MaxChatHistory),
		})
		return c.Errors()
	}
	roles := []string{string(llm.RoleUser), string(llm.RoleAssistant)}
	for i, m := range history {
		field := fmt.Sprintf("history[%d]", i)
		c.Add(ValidateEnum(field+".role", string(m.Role), roles))
		text(c, field+".content", m.Content, MaxChatLength, true)
	}
	return c.Errors()
}

// ValidateCustomer checks checkout pre-fill fields.
func ValidateCustomer(name, email, document, phone string) []ValidationError {
	c := &Collector{}
	text(c, "name", name, MaxNameLength, false)
	c.Add(ValidateEmail("email", email))
	c.Add(ValidateDigits("document", document))
	c.Add(ValidateDigits("phone", phone))
	return c.Errors()
}

// ValidateOnboardingText checks the free-text fields of an onboarding draft.
// Required fields and enumerations are checked by the onboarding step gates.
func ValidateOnboardingText(oc types.OnboardingContext) []ValidationError {
	c := &Collector{}
	fields := []struct {
		name, value string
		max         int
	}{
		{"niche", oc.Niche, MaxContextFieldLen},
		{"teamSize", oc.TeamSize, MaxTitleLength},
		{"goal2026", oc.Goal, MaxGoalLength},
		{"targetAudience", oc.TargetAudience, MaxContextFieldLen},
		{"keyStrengths", oc.KeyStrengths, MaxContextFieldLen},
		{"marketingChannels", oc.MarketingChannels, MaxContextFieldLen},
		{"investmentCapacity", oc.InvestmentCapacity, MaxTitleLength},
		{"timeAvailability", oc.TimeAvailability, MaxTitleLength},
		{"competitors", oc.Competitors, MaxContextFieldLen},
		{"values", oc.Values, MaxContextFieldLen},
	}
	for _, f := range fields {
		text(c, f.name, f.value, f.max, false)
	}
	return c.Errors()
}
