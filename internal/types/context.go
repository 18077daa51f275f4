package types

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// OnboardingContextVersion is the schema version written for new context records.
const OnboardingContextVersion = 1

// ErrUnsupportedContext is returned when a stored context blob has an unknown shape.
var ErrUnsupportedContext = errors.New("unsupported onboarding context")

// Option values offered by the onboarding form.
var (
	BusinessModels  = []string{"saas", "agency", "ecommerce", "infoproduct", "freelance", "other"}
	Stages          = []string{"ideation", "validation", "growth", "consolidation"}
	Bottlenecks     = []string{"acquisition", "sales", "delivery", "hiring", "finance"}
	RevenueBrackets = []string{"0-5k", "5k-20k", "20k-100k", "100k+"}
)

// BottleneckList is the multi-select bottleneck answer.
// Legacy records stored a single string; both shapes decode.
type BottleneckList []string

// UnmarshalJSON accepts either a JSON array of strings or a single string.
func (b *BottleneckList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		if strings.TrimSpace(s) == "" {
			*b = BottleneckList{}
			return nil
		}
		*b = BottleneckList{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return err
	}
	*b = list
	return nil
}

// OnboardingContext is the business profile collected during onboarding.
// It is immutable once a plan has been generated from it.
type OnboardingContext struct {
	BusinessModel      string         `json:"businessModel" yaml:"business_model" validate:"required,oneof=saas agency ecommerce infoproduct freelance other"`
	Niche              string         `json:"niche" yaml:"niche" validate:"required"`
	CurrentStage       string         `json:"currentStage" yaml:"current_stage" validate:"required,oneof=ideation validation growth consolidation"`
	TeamSize           string         `json:"teamSize" yaml:"team_size" validate:"required"`
	MainBottleneck     BottleneckList `json:"mainBottleneck" yaml:"main_bottleneck" validate:"required,min=1,dive,oneof=acquisition sales delivery hiring finance"`
	MonthlyRevenue     string         `json:"monthlyRevenue" yaml:"monthly_revenue" validate:"required,oneof=0-5k 5k-20k 20k-100k 100k+"`
	Goal               string         `json:"goal2026" yaml:"goal" validate:"required"`
	TargetAudience     string         `json:"targetAudience" yaml:"target_audience" validate:"required"`
	KeyStrengths       string         `json:"keyStrengths" yaml:"key_strengths"`
	MarketingChannels  string         `json:"marketingChannels" yaml:"marketing_channels" validate:"required"`
	InvestmentCapacity string         `json:"investmentCapacity" yaml:"investment_capacity" validate:"required"`
	TimeAvailability   string         `json:"timeAvailability" yaml:"time_availability" validate:"required"`
	Competitors        string         `json:"competitors" yaml:"competitors"`
	Values             string         `json:"values" yaml:"values"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	// Report fields by their JSON names so errors line up with the wire format.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// Validate checks every field of the context.
func (c OnboardingContext) Validate() error {
	return validate.Struct(c)
}

// ValidateFields checks only the named struct fields (Go field names, e.g. "BusinessModel").
func (c OnboardingContext) ValidateFields(fields ...string) error {
	return validate.StructPartial(c, fields...)
}

// InvalidFields lists the JSON names of the fields that failed validation in err.
// Returns nil when err carries no field errors.
func InvalidFields(err error) []string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fe.Field())
	}
	return fields
}

// versionedContext is the stored envelope of an OnboardingContext.
type versionedContext struct {
	Version int `json:"version"`
	OnboardingContext
}

// EncodeOnboardingContext serializes the context with the current schema version.
func EncodeOnboardingContext(c OnboardingContext) ([]byte, error) {
	if c.MainBottleneck == nil {
		c.MainBottleneck = BottleneckList{}
	}
	return json.Marshal(versionedContext{Version: OnboardingContextVersion, OnboardingContext: c})
}

// DecodeOnboardingContext parses a stored context blob.
// Version 1 and the unversioned legacy shape are accepted; unknown versions
// and unknown fields are rejected with ErrUnsupportedContext.
func DecodeOnboardingContext(data []byte) (*OnboardingContext, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("{}")) {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()

	var v versionedContext
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedContext, err)
	}
	if v.Version != 0 && v.Version != OnboardingContextVersion {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedContext, v.Version)
	}
	if v.MainBottleneck == nil {
		v.MainBottleneck = BottleneckList{}
	}
	ctx := v.OnboardingContext
	return &ctx, nil
}
