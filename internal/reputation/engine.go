// Package reputation provides the behavioral scoring rules for the platform.
// The engine is pure: it computes deltas, warnings, and eligibility from the
// counters it is given and never touches storage itself. Persistence of the
// resulting mutations is the caller's job, inside the same transaction as the
// triggering visit transition.
package reputation

import "fmt"

// EventTag identifies a behavioral event fed into the engine.
type EventTag string

const (
	EventCompleteVisit  EventTag = "complete_visit"
	EventDeclineVisit   EventTag = "decline_visit"
	EventNoShow         EventTag = "no_show"
	EventPositiveReview EventTag = "positive_review"
	EventNegativeReview EventTag = "negative_review"
)

// Warning codes surfaced to agents. Warnings are advisory and never persisted.
const (
	WarningHighDeclineRate = "high_decline_rate"
	WarningNoShow          = "no_show"
	WarningLowRanking      = "low_ranking"
)

// Ranking score bounds and the fixed per-event deltas.
const (
	MinRankingScore     = 0.0
	MaxRankingScore     = 100.0
	DefaultRankingScore = 100.0
)

// Warning is an advisory signal about an agent's standing.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Counters is the snapshot of a user's behavioral counters.
type Counters struct {
	NoShowCount          int
	DeclinedVisitsCount  int
	CompletedVisitsCount int
}

// Config holds the anti-abuse thresholds. The zero value is not usable;
// construct via DefaultConfig or from application configuration.
type Config struct {
	// NoShowThreshold is the no-show count at which a buyer is auto-flagged
	// and an agent receives a no_show warning.
	NoShowThreshold int
	// DeclineThreshold is the declined-visit count at which an agent
	// receives a high_decline_rate warning.
	DeclineThreshold int
	// MaxActiveRequests caps a buyer's simultaneous active visit requests.
	MaxActiveRequests int
}

// DefaultConfig returns the documented baseline thresholds.
func DefaultConfig() Config {
	return Config{
		NoShowThreshold:   3,
		DeclineThreshold:  10,
		MaxActiveRequests: 5,
	}
}

// Engine evaluates reputation rules against a Config.
type Engine struct {
	cfg Config
}

// New creates an engine with the given thresholds.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Config returns the engine's thresholds.
func (e *Engine) Config() Config {
	return e.cfg
}

// RankingDelta returns the fixed agent ranking adjustment for an event.
// Events that do not affect ranking return 0.
func (e *Engine) RankingDelta(tag EventTag) float64 {
	switch tag {
	case EventCompleteVisit:
		return 2
	case EventDeclineVisit:
		return -1
	case EventNoShow:
		return -5
	case EventPositiveReview:
		return 5
	case EventNegativeReview:
		return -3
	default:
		return 0
	}
}

// ApplyDelta applies a delta to a ranking score and clamps the result
// to [MinRankingScore, MaxRankingScore].
func ApplyDelta(score, delta float64) float64 {
	result := score + delta
	if result < MinRankingScore {
		return MinRankingScore
	}
	if result > MaxRankingScore {
		return MaxRankingScore
	}
	return result
}

// Warnings evaluates the advisory warnings for an agent given its counters
// and current ranking score. The low_ranking check is independent of which
// event triggered the evaluation.
func (e *Engine) Warnings(c Counters, rankingScore float64) []Warning {
	var warnings []Warning

	if c.DeclinedVisitsCount >= e.cfg.DeclineThreshold {
		warnings = append(warnings, Warning{
			Code:    WarningHighDeclineRate,
			Message: fmt.Sprintf("You have declined %d visit requests. Frequent declines lower your ranking.", c.DeclinedVisitsCount),
		})
	}

	if c.NoShowCount >= e.cfg.NoShowThreshold {
		warnings = append(warnings, Warning{
			Code:    WarningNoShow,
			Message: fmt.Sprintf("You have %d recorded no-shows. Repeated no-shows lower your ranking.", c.NoShowCount),
		})
	}

	if rankingScore < 50 {
		warnings = append(warnings, Warning{
			Code:    WarningLowRanking,
			Message: fmt.Sprintf("Your ranking score is %.1f. Scores below 50 reduce your visibility to buyers.", rankingScore),
		})
	}

	return warnings
}

// ShouldFlagBuyer reports whether a buyer's no-show count has reached the
// auto-flag threshold.
func (e *Engine) ShouldFlagBuyer(noShowCount int) bool {
	return noShowCount >= e.cfg.NoShowThreshold
}

// FlagReason builds the reason string recorded when a buyer is auto-flagged.
func FlagReason(noShowCount int) string {
	return fmt.Sprintf("Exceeded no-show threshold (%d no-shows)", noShowCount)
}

// Eligibility action hints. Machine-readable so clients can branch the UI
// without parsing the reason text.
const (
	ActionNone           = "none"
	ActionCompleteKYC    = "complete_kyc"
	ActionContactSupport = "contact_support"
)

// EligibilityInput is the identity snapshot the gate evaluates.
type EligibilityInput struct {
	Role       string
	KYCStatus  string
	IsFlagged  bool
	FlagReason string
}

// Eligibility is the result of the agent eligibility gate.
type Eligibility struct {
	Eligible       bool   `json:"eligible"`
	Reason         string `json:"reason,omitempty"`
	ActionRequired string `json:"actionRequired,omitempty"`
}

// CheckAgentEligibility evaluates the business-state gate an agent must pass
// to act on the platform: correct role, verified KYC, not flagged. This is
// distinct from authorization; a caller can be the right party and still be
// ineligible.
func (e *Engine) CheckAgentEligibility(in EligibilityInput) Eligibility {
	if in.Role != "agent" {
		return Eligibility{
			Eligible:       false,
			Reason:         "only agents can perform this action",
			ActionRequired: ActionNone,
		}
	}
	if in.KYCStatus != "verified" {
		return Eligibility{
			Eligible:       false,
			Reason:         "KYC verification is required before accepting visit requests",
			ActionRequired: ActionCompleteKYC,
		}
	}
	if in.IsFlagged {
		reason := "your account has been flagged"
		if in.FlagReason != "" {
			reason = "your account has been flagged: " + in.FlagReason
		}
		return Eligibility{
			Eligible:       false,
			Reason:         reason,
			ActionRequired: ActionContactSupport,
		}
	}
	return Eligibility{Eligible: true}
}
