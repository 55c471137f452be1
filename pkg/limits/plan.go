package limits

import (
	"slices"
	"time"
)

// Price is a plan price in BRL cents.
type Price struct {
	Monthly int64 `yaml:"monthly" json:"monthly"`
	Yearly  int64 `yaml:"yearly" json:"yearly"`
}

// Plan is a named tier of limits and features.
type Plan struct {
	ID        string    `yaml:"id" json:"id"`
	Name      string    `yaml:"name" json:"name"`
	Public    bool      `yaml:"public" json:"-"`
	TrialDays int       `yaml:"trial_days" json:"trialDays,omitempty"`
	Price     Price     `yaml:"price" json:"price"`
	Limits    Limits    `yaml:"limits" json:"limits"`
	Features  []Feature `yaml:"features" json:"features"`
}

// HasFeature reports whether f is enabled on the plan.
func (p Plan) HasFeature(f Feature) bool {
	return slices.Contains(p.Features, f)
}

// TrialEndsAt returns when a trial started at startedAt ends. Plans without
// a trial return startedAt.
func (p Plan) TrialEndsAt(startedAt time.Time) time.Time {
	if p.TrialDays <= 0 {
		return startedAt
	}
	return startedAt.AddDate(0, 0, p.TrialDays).UTC()
}
