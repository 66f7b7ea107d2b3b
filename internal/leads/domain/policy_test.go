package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

var policyNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func prior(testType TestType, status Status, age time.Duration) PriorLead {
	return PriorLead{
		ID:        uuid.New(),
		TestType:  testType,
		Status:    status,
		CreatedAt: policyNow.Add(-age),
	}
}

func TestDecideSameTestAlwaysBlocks(t *testing.T) {
	statuses := []Status{
		StatusSubmitted, StatusQualified, StatusSentToConsult,
		StatusShipped, StatusKitCompleted, StatusReturned, StatusDoesntQualify,
	}
	ages := []time.Duration{
		24 * time.Hour,
		30 * 24 * time.Hour,
		365 * 24 * time.Hour,
	}

	for _, status := range statuses {
		for _, age := range ages {
			d := DefaultPolicy.Decide(policyNow, TestTypeImmune, []PriorLead{
				prior(TestTypeImmune, status, age),
			})
			if d.Status != DecisionBlocked || d.Reason != ReasonSameTest {
				t.Errorf("status=%s age=%s: got (%s, %s), want (BLOCKED, SAME_TEST)",
					status, age, d.Status, d.Reason)
			}
		}
	}
}

func TestDecideRecentConsultationBlocks(t *testing.T) {
	// Existing IMMUNE lead, consulted, 10 days old; NEURO candidate.
	d := DefaultPolicy.Decide(policyNow, TestTypeNeuro, []PriorLead{
		prior(TestTypeImmune, StatusSentToConsult, 10*24*time.Hour),
	})
	if d.Status != DecisionBlocked || d.Reason != ReasonRecentConsultation {
		t.Fatalf("got (%s, %s), want (BLOCKED, RECENT_CONSULTATION)", d.Status, d.Reason)
	}
}

func TestDecideAllowedAfterCooldown(t *testing.T) {
	d := DefaultPolicy.Decide(policyNow, TestTypeNeuro, []PriorLead{
		prior(TestTypeImmune, StatusSentToConsult, 22*24*time.Hour),
	})
	if d.Status != DecisionAllowed {
		t.Fatalf("got (%s, %s), want ALLOWED", d.Status, d.Reason)
	}
	if len(d.Evidence) != 1 || d.Evidence[0].DaysSince != 22 {
		t.Fatalf("evidence = %+v, want single record 22 days old", d.Evidence)
	}
	if !d.Evidence[0].WasConsulted {
		t.Fatal("evidence should mark the prior lead as consulted")
	}
}

func TestDecideTooSoonUnconsulted(t *testing.T) {
	existing := []PriorLead{prior(TestTypeImmune, StatusSubmitted, 5*24*time.Hour)}

	d := DefaultPolicy.Decide(policyNow, TestTypeNeuro, existing)
	if d.Status != DecisionBlocked || d.Reason != ReasonTooSoon {
		t.Fatalf("at 5 days: got (%s, %s), want (BLOCKED, TOO_SOON)", d.Status, d.Reason)
	}

	existing[0].CreatedAt = policyNow.Add(-21 * 24 * time.Hour)
	d = DefaultPolicy.Decide(policyNow, TestTypeNeuro, existing)
	if d.Status != DecisionAllowed {
		t.Fatalf("at 21 days: got (%s, %s), want ALLOWED", d.Status, d.Reason)
	}
}

// daysSince uses a calendar-day ceiling: any partial day counts as a full
// one, so an age an hour past 20 full days already rounds up to 21 and
// clears the cooldown, while exactly 20 days does not.
func TestDecideCooldownBoundaryIsCeiling(t *testing.T) {
	cases := []struct {
		name string
		age  time.Duration
		want DecisionStatus
	}{
		{"exactly 20 days", 20 * 24 * time.Hour, DecisionBlocked},
		{"one hour past 20 days rounds up", 20*24*time.Hour + time.Hour, DecisionAllowed},
		{"one hour short of 21 days rounds up", 21*24*time.Hour - time.Hour, DecisionAllowed},
		{"exactly 21 days", 21 * 24 * time.Hour, DecisionAllowed},
	}

	for _, tc := range cases {
		d := DefaultPolicy.Decide(policyNow, TestTypeNeuro, []PriorLead{
			prior(TestTypeImmune, StatusSubmitted, tc.age),
		})
		if d.Status != tc.want {
			t.Errorf("%s: got %s, want %s", tc.name, d.Status, tc.want)
		}
	}
}

func TestDecideNoExistingLeadsAllowed(t *testing.T) {
	// Self-exclusion upstream means a fresh MBI arrives with an empty set.
	d := DefaultPolicy.Decide(policyNow, TestTypeImmune, nil)
	if d.Status != DecisionAllowed {
		t.Fatalf("got %s, want ALLOWED", d.Status)
	}
	if len(d.Evidence) != 0 {
		t.Fatalf("evidence = %+v, want empty", d.Evidence)
	}
}

func TestDecideEvidenceMostRecentFirst(t *testing.T) {
	d := DefaultPolicy.Decide(policyNow, TestTypeNeuro, []PriorLead{
		prior(TestTypeImmune, StatusKitCompleted, 100*24*time.Hour),
		prior(TestTypeImmune, StatusKitCompleted, 40*24*time.Hour),
		prior(TestTypeImmune, StatusKitCompleted, 70*24*time.Hour),
	})
	if d.Status != DecisionAllowed {
		t.Fatalf("got (%s, %s), want ALLOWED", d.Status, d.Reason)
	}
	if d.Evidence[0].DaysSince != 40 || d.Evidence[2].DaysSince != 100 {
		t.Fatalf("evidence ages = [%d %d %d], want most recent first",
			d.Evidence[0].DaysSince, d.Evidence[1].DaysSince, d.Evidence[2].DaysSince)
	}
}

func TestNewPolicyOverride(t *testing.T) {
	if got := NewPolicy(0).CooldownDays; got != DefaultCooldownDays {
		t.Errorf("NewPolicy(0) = %d, want %d", got, DefaultCooldownDays)
	}
	if got := NewPolicy(30).CooldownDays; got != 30 {
		t.Errorf("NewPolicy(30) = %d, want 30", got)
	}

	// A 7-day policy allows what the default blocks.
	d := NewPolicy(7).Decide(policyNow, TestTypeNeuro, []PriorLead{
		prior(TestTypeImmune, StatusSubmitted, 10*24*time.Hour),
	})
	if d.Status != DecisionAllowed {
		t.Fatalf("7-day policy at 10 days: got %s, want ALLOWED", d.Status)
	}
}
