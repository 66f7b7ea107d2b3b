package domain

import (
	"errors"
	"reflect"
	"testing"
)

func TestValidateTransition(t *testing.T) {
	tests := []struct {
		current   Status
		requested Status
		wantErr   bool
	}{
		{StatusSubmitted, StatusAdvocateReview, false},
		{StatusAdvocateReview, StatusQualified, false},
		{StatusQualified, StatusSentToConsult, false},
		{StatusApproved, StatusReadyToShip, false},
		{StatusSubmitted, StatusQualified, false}, // skipping forward is legal
		{StatusSubmitted, StatusDoesntQualify, false},
		{StatusDelivered, StatusReturned, false},

		{StatusShipped, StatusApproved, true},  // regression
		{StatusDelivered, StatusShipped, true}, // regression
		{StatusKitCompleted, StatusShipped, true},
		{StatusReturned, StatusSubmitted, true}, // terminal
		{StatusDoesntQualify, StatusQualified, true},
		{StatusSubmitted, StatusSubmitted, true}, // no self-transition
		{StatusSubmitted, Status("BOGUS"), true},
		{Status("BOGUS"), StatusShipped, true},
	}

	for _, tc := range tests {
		err := ValidateTransition(tc.current, tc.requested)
		if tc.wantErr && err == nil {
			t.Errorf("ValidateTransition(%s, %s) should have failed", tc.current, tc.requested)
		}
		if !tc.wantErr && err != nil {
			t.Errorf("ValidateTransition(%s, %s) unexpected error: %v", tc.current, tc.requested, err)
		}
	}
}

func TestValidateTransitionErrorCarriesBothStatuses(t *testing.T) {
	err := ValidateTransition(StatusKitCompleted, StatusShipped)
	var terr *TransitionError
	if !errors.As(err, &terr) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if terr.Current != StatusKitCompleted || terr.Requested != StatusShipped {
		t.Fatalf("error = %+v, want current/requested populated", terr)
	}
}

func TestPlanShipment(t *testing.T) {
	tests := []struct {
		current    Status
		wantSteps  []Status
		wantForced bool
	}{
		{StatusApproved, []Status{StatusShipped}, false},
		{StatusReadyToShip, []Status{StatusShipped}, false},
		// Shipping evidence forces progression through APPROVED.
		{StatusSubmitted, []Status{StatusApproved, StatusShipped}, true},
		{StatusAdvocateReview, []Status{StatusApproved, StatusShipped}, true},
		{StatusSentToConsult, []Status{StatusApproved, StatusShipped}, true},
		// At or past SHIPPED, and terminal: no-op, never regress.
		{StatusShipped, nil, false},
		{StatusDelivered, nil, false},
		{StatusKitCompleted, nil, false},
		{StatusReturned, nil, false},
		{StatusDoesntQualify, nil, false},
	}

	for _, tc := range tests {
		plan := PlanShipment(tc.current)
		if !reflect.DeepEqual(plan.Steps, tc.wantSteps) || plan.Forced != tc.wantForced {
			t.Errorf("PlanShipment(%s) = %+v, want steps=%v forced=%v",
				tc.current, plan, tc.wantSteps, tc.wantForced)
		}
	}
}

// Re-applying a shipment event to an already-shipped lead must be a no-op:
// idempotent redelivery neither reverts status nor repeats stage timestamps.
func TestPlanShipmentIdempotent(t *testing.T) {
	first := PlanShipment(StatusSubmitted)
	if first.Final() != StatusShipped {
		t.Fatalf("first application final = %s, want SHIPPED", first.Final())
	}

	second := PlanShipment(first.Final())
	if !second.NoOp() {
		t.Fatalf("second application = %+v, want no-op", second)
	}
}

func TestPlanOutboundDelivered(t *testing.T) {
	tests := []struct {
		current   Status
		wantSteps []Status
	}{
		{StatusShipped, []Status{StatusDelivered}},
		{StatusApproved, []Status{StatusShipped, StatusDelivered}},
		{StatusSubmitted, []Status{StatusApproved, StatusShipped, StatusDelivered}},
		{StatusDelivered, nil},
		{StatusKitReturning, nil},
		{StatusKitCompleted, nil},
	}

	for _, tc := range tests {
		plan := PlanOutboundDelivered(tc.current)
		if !reflect.DeepEqual(plan.Steps, tc.wantSteps) {
			t.Errorf("PlanOutboundDelivered(%s) = %v, want %v", tc.current, plan.Steps, tc.wantSteps)
		}
	}
}

func TestPlanInboundInTransit(t *testing.T) {
	tests := []struct {
		current Status
		want    bool // transition expected
	}{
		{StatusDelivered, true},
		{StatusShipped, true},
		{StatusSubmitted, false},
		{StatusApproved, false},
		{StatusKitReturning, false},
		{StatusKitCompleted, false},
	}

	for _, tc := range tests {
		plan := PlanInboundInTransit(tc.current)
		if tc.want && plan.Final() != StatusKitReturning {
			t.Errorf("PlanInboundInTransit(%s) = %+v, want KIT_RETURNING", tc.current, plan)
		}
		if !tc.want && !plan.NoOp() {
			t.Errorf("PlanInboundInTransit(%s) = %+v, want no-op", tc.current, plan)
		}
	}
}

func TestPlanInboundDelivered(t *testing.T) {
	if plan := PlanInboundDelivered(StatusKitReturning); plan.Final() != StatusKitCompleted {
		t.Errorf("from KIT_RETURNING: got %+v, want KIT_COMPLETED", plan)
	}
	if plan := PlanInboundDelivered(StatusDelivered); plan.Final() != StatusKitCompleted {
		t.Errorf("from DELIVERED: got %+v, want KIT_COMPLETED", plan)
	}
	if plan := PlanInboundDelivered(StatusKitCompleted); !plan.NoOp() {
		t.Errorf("from KIT_COMPLETED: got %+v, want no-op", plan)
	}
	if plan := PlanInboundDelivered(StatusReturned); !plan.NoOp() {
		t.Errorf("from RETURNED: got %+v, want no-op", plan)
	}
}

func TestPlanDoctorDecision(t *testing.T) {
	tests := []struct {
		current Status
		d       Determination
		want    Status // "" = no-op
	}{
		{StatusSentToConsult, DeterminationApproved, StatusApproved},
		{StatusSubmitted, DeterminationApproved, StatusApproved},
		{StatusApproved, DeterminationApproved, ""}, // already there
		{StatusShipped, DeterminationApproved, ""},  // already past
		{StatusSentToConsult, DeterminationDenied, StatusDoesntQualify},
		{StatusSubmitted, DeterminationDenied, StatusDoesntQualify},
		{StatusKitCompleted, DeterminationDenied, ""}, // terminal untouched
		{StatusSentToConsult, DeterminationPending, ""},
	}

	for _, tc := range tests {
		plan := PlanDoctorDecision(tc.current, tc.d)
		if plan.Final() != tc.want {
			t.Errorf("PlanDoctorDecision(%s, %s) = %+v, want final %q",
				tc.current, tc.d, plan, tc.want)
		}
	}
}

func TestTimestampForStage(t *testing.T) {
	tests := []struct {
		status Status
		want   StageTimestamp
	}{
		{StatusAdvocateReview, TimestampAdvocateReviewedAt},
		{StatusSentToConsult, TimestampConsultDate},
		{StatusApproved, TimestampDoctorApprovalDate},
		{StatusShipped, TimestampKitShippedDate},
		{StatusDelivered, TimestampKitDeliveredDate},
		{StatusKitCompleted, TimestampKitReturnedDate},
		{StatusKitReturning, ""},
		{StatusQualified, ""},
		{StatusReturned, ""},
	}

	for _, tc := range tests {
		if got := TimestampForStage(tc.status); got != tc.want {
			t.Errorf("TimestampForStage(%s) = %q, want %q", tc.status, got, tc.want)
		}
	}
}

func TestIsConsulted(t *testing.T) {
	consulted := []Status{
		StatusSentToConsult, StatusApproved, StatusReadyToShip, StatusShipped,
		StatusDelivered, StatusKitReturning, StatusCollections, StatusKitCompleted,
	}
	notConsulted := []Status{
		StatusSubmitted, StatusAdvocateReview, StatusQualified,
		StatusReturned, StatusDoesntQualify,
	}

	for _, s := range consulted {
		if !IsConsulted(s) {
			t.Errorf("IsConsulted(%s) = false, want true", s)
		}
	}
	for _, s := range notConsulted {
		if IsConsulted(s) {
			t.Errorf("IsConsulted(%s) = true, want false", s)
		}
	}
}
