package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// GapPolicy controls whether a numbering scheme may skip values.
type GapPolicy string

const (
	GapPolicyNoGap    GapPolicy = "NO_GAP"
	GapPolicyAllowGap GapPolicy = "ALLOW_GAP"
)

// PeriodStrategy controls how period keys are derived when the caller omits one.
type PeriodStrategy string

const (
	PeriodStrategyNone    PeriodStrategy = "NONE"
	PeriodStrategyYearly  PeriodStrategy = "YEARLY"
	PeriodStrategyMonthly PeriodStrategy = "MONTHLY"
)

// NumberingScheme represents a numbering scheme for one entity type
type NumberingScheme struct {
	ID             int64          `json:"id"`
	EntityType     string         `json:"entity_type"`
	Pattern        string         `json:"pattern"`
	GapPolicy      GapPolicy      `json:"gap_policy"`
	PeriodStrategy PeriodStrategy `json:"period_key_strategy"`
	Active         bool           `json:"active"`
	CurrentValue   int64          `json:"current_value"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// NumberingSequence tracks the last issued value for one scheme and period
type NumberingSequence struct {
	SchemeID  int64     `json:"scheme_id"`
	PeriodKey string    `json:"period_key"`
	LastValue int64     `json:"last_value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ReservedNumber is the result of a sequence reservation
type ReservedNumber struct {
	Value           int64  `json:"value"`
	FormattedNumber string `json:"formatted_number"`
}

// PeriodKey derives the period key for the scheme's strategy at the given time.
// Schemes with PeriodStrategyNone share a single unnamed period.
func (s *NumberingScheme) PeriodKey(at time.Time) string {
	switch s.PeriodStrategy {
	case PeriodStrategyYearly:
		return at.Format("2006")
	case PeriodStrategyMonthly:
		return at.Format("2006-01")
	default:
		return ""
	}
}

// Format expands the scheme's pattern for a reserved value. Supported tokens
// are {SEQ:n} for the zero-padded value and {PERIOD} for the period key;
// everything else is literal. Pure formatting, no side effects.
func (s *NumberingScheme) Format(periodKey string, value int64) string {
	out := strings.ReplaceAll(s.Pattern, "{PERIOD}", periodKey)
	for {
		start := strings.Index(out, "{SEQ")
		if start < 0 {
			break
		}
		end := strings.Index(out[start:], "}")
		if end < 0 {
			break
		}
		token := out[start : start+end+1]
		width := 0
		if colon := strings.Index(token, ":"); colon >= 0 {
			width, _ = strconv.Atoi(token[colon+1 : len(token)-1])
		}
		out = strings.Replace(out, token, fmt.Sprintf("%0*d", width, value), 1)
	}
	return out
}
