package domain

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
)

// DefaultCooldownDays is how long a patient must wait after any submission
// before a different test type is allowed. The only override point is the
// Policy value built from configuration.
const DefaultCooldownDays = 21

// DecisionStatus is the outcome of a duplicate-submission check.
type DecisionStatus string

const (
	DecisionAllowed DecisionStatus = "ALLOWED"
	DecisionBlocked DecisionStatus = "BLOCKED"
)

// ReasonCode explains why a submission was blocked.
type ReasonCode string

const (
	ReasonSameTest           ReasonCode = "SAME_TEST"
	ReasonRecentConsultation ReasonCode = "RECENT_CONSULTATION"
	ReasonTooSoon            ReasonCode = "TOO_SOON"
)

// PriorLead is the slice of an existing lead the policy engine reasons about.
type PriorLead struct {
	ID          uuid.UUID
	TestType    TestType
	Status      Status
	CreatedAt   time.Time
	ConsultDate *time.Time
}

// Evidence describes one existing lead in a decision response.
type Evidence struct {
	ID           uuid.UUID `json:"id"`
	TestType     TestType  `json:"testType"`
	SubmittedAt  time.Time `json:"submittedAt"`
	DaysSince    int       `json:"daysSince"`
	Status       Status    `json:"status"`
	WasConsulted bool      `json:"wasConsulted"`
}

// Decision is the result of evaluating a candidate submission.
type Decision struct {
	Status   DecisionStatus `json:"status"`
	Reason   ReasonCode     `json:"reason,omitempty"`
	Message  string         `json:"message"`
	Evidence []Evidence     `json:"existingLeads"`
}

// Allowed reports whether the submission may proceed.
func (d Decision) Allowed() bool {
	return d.Status == DecisionAllowed
}

// Policy holds the duplicate-submission business constants.
type Policy struct {
	CooldownDays int
}

// DefaultPolicy uses the standard cooldown.
var DefaultPolicy = Policy{CooldownDays: DefaultCooldownDays}

// NewPolicy builds a policy, falling back to the default cooldown when the
// override is zero.
func NewPolicy(cooldownDays int) Policy {
	if cooldownDays <= 0 {
		cooldownDays = DefaultCooldownDays
	}
	return Policy{CooldownDays: cooldownDays}
}

// Decide evaluates a candidate (MBI already matched: existing holds every
// lead sharing it) against the anti-duplication rules:
//
//  1. An existing lead of the same test type always blocks (SAME_TEST).
//  2. A different test type blocks while the existing lead is inside the
//     cooldown window — RECENT_CONSULTATION when the existing lead was
//     consulted, TOO_SOON when it wasn't.
//
// The first blocking record wins. Decide is pure: it takes data and a clock
// value and returns a decision, so it needs no database access.
func (p Policy) Decide(now time.Time, candidateType TestType, existing []PriorLead) Decision {
	evidence := buildEvidence(now, existing)

	for _, prior := range existing {
		if prior.TestType == candidateType {
			return Decision{
				Status:   DecisionBlocked,
				Reason:   ReasonSameTest,
				Message:  fmt.Sprintf("patient already has a %s lead on file", candidateType),
				Evidence: evidence,
			}
		}

		age := daysSince(now, prior.CreatedAt)
		if age >= p.CooldownDays {
			continue
		}
		if IsConsulted(prior.Status) {
			return Decision{
				Status:   DecisionBlocked,
				Reason:   ReasonRecentConsultation,
				Message:  fmt.Sprintf("patient was consulted %d day(s) ago; %d-day wait required before a different test type", age, p.CooldownDays),
				Evidence: evidence,
			}
		}
		return Decision{
			Status:   DecisionBlocked,
			Reason:   ReasonTooSoon,
			Message:  fmt.Sprintf("patient submitted %d day(s) ago; %d-day wait required before a different test type", age, p.CooldownDays),
			Evidence: evidence,
		}
	}

	message := "no conflicting lead on file"
	if len(evidence) > 0 {
		message = fmt.Sprintf("most recent prior lead is %d day(s) old", evidence[0].DaysSince)
	}
	return Decision{
		Status:   DecisionAllowed,
		Message:  message,
		Evidence: evidence,
	}
}

// daysSince is the calendar-day ceiling of the absolute time difference.
// Ceiling, not floor: a submission exactly at hour 0 of day N counts as N
// full days, so a 21-day cooldown ends exactly at hour 0 of day 21.
func daysSince(now, t time.Time) int {
	d := now.Sub(t)
	if d < 0 {
		d = -d
	}
	return int(math.Ceil(d.Hours() / 24))
}

func buildEvidence(now time.Time, existing []PriorLead) []Evidence {
	evidence := make([]Evidence, 0, len(existing))
	for _, prior := range existing {
		evidence = append(evidence, Evidence{
			ID:           prior.ID,
			TestType:     prior.TestType,
			SubmittedAt:  prior.CreatedAt,
			DaysSince:    daysSince(now, prior.CreatedAt),
			Status:       prior.Status,
			WasConsulted: IsConsulted(prior.Status),
		})
	}
	// Most recent first, so Evidence[0] is the record ALLOWED messages cite.
	sort.Slice(evidence, func(i, j int) bool {
		return evidence[i].SubmittedAt.After(evidence[j].SubmittedAt)
	})
	return evidence
}
