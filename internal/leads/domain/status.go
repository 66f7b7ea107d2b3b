package domain

import "fmt"

// Status is a lead's single authoritative lifecycle state.
type Status string

const (
	StatusSubmitted      Status = "SUBMITTED"
	StatusAdvocateReview Status = "ADVOCATE_REVIEW"
	StatusQualified      Status = "QUALIFIED"
	StatusSentToConsult  Status = "SENT_TO_CONSULT"
	StatusApproved       Status = "APPROVED"
	StatusReadyToShip    Status = "READY_TO_SHIP"
	StatusShipped        Status = "SHIPPED"
	StatusDelivered      Status = "DELIVERED"
	StatusKitReturning   Status = "KIT_RETURNING"
	StatusCollections    Status = "COLLECTIONS"
	StatusKitCompleted   Status = "KIT_COMPLETED"

	// Alternate terminal states, reachable from several points.
	StatusReturned      Status = "RETURNED"
	StatusDoesntQualify Status = "DOESNT_QUALIFY"
)

// statusRank orders the forward pipeline. Higher rank means further along.
// RETURNED and DOESNT_QUALIFY are outside the chain and handled separately.
var statusRank = map[Status]int{
	StatusSubmitted:      1,
	StatusAdvocateReview: 2,
	StatusQualified:      3,
	StatusSentToConsult:  4,
	StatusApproved:       5,
	StatusReadyToShip:    6,
	StatusShipped:        7,
	StatusDelivered:      8,
	StatusKitReturning:   9,
	StatusCollections:    10,
	StatusKitCompleted:   11,
}

// consultedStatuses are statuses at or past doctor/telehealth consultation.
var consultedStatuses = map[Status]bool{
	StatusSentToConsult: true,
	StatusApproved:      true,
	StatusReadyToShip:   true,
	StatusShipped:       true,
	StatusDelivered:     true,
	StatusKitReturning:  true,
	StatusCollections:   true,
	StatusKitCompleted:  true,
}

// terminalStatuses admit no further transitions of any kind.
var terminalStatuses = map[Status]bool{
	StatusKitCompleted:  true,
	StatusReturned:      true,
	StatusDoesntQualify: true,
}

// IsKnownStatus reports whether the value is a recognized lifecycle status.
func IsKnownStatus(s Status) bool {
	if _, ok := statusRank[s]; ok {
		return true
	}
	return s == StatusReturned || s == StatusDoesntQualify
}

// IsConsulted reports whether the status indicates the patient has passed
// consultation or any later stage.
func IsConsulted(s Status) bool {
	return consultedStatuses[s]
}

// IsTerminal reports whether the status admits no further transitions.
func IsTerminal(s Status) bool {
	return terminalStatuses[s]
}

// rank returns the forward-chain position, or 0 for off-chain statuses.
func rank(s Status) int {
	return statusRank[s]
}

// TransitionError is the structured validation error for an illegal manual
// status change. It carries both statuses so callers can surface them.
type TransitionError struct {
	Current   Status
	Requested Status
	Reason    string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s: %s", e.Current, e.Requested, e.Reason)
}

// ValidateTransition enforces legality of a manual status change. Forward
// moves along the chain are legal; RETURNED and DOESNT_QUALIFY are legal
// escapes from any non-terminal status; everything else is rejected.
// Transition legality lives here, centrally — callers must not re-implement it.
func ValidateTransition(current, requested Status) error {
	if !IsKnownStatus(current) {
		return &TransitionError{Current: current, Requested: requested, Reason: "unknown current status"}
	}
	if !IsKnownStatus(requested) {
		return &TransitionError{Current: current, Requested: requested, Reason: "unknown requested status"}
	}
	if current == requested {
		return &TransitionError{Current: current, Requested: requested, Reason: "lead is already in this status"}
	}
	if IsTerminal(current) {
		return &TransitionError{Current: current, Requested: requested, Reason: "status is terminal"}
	}
	if requested == StatusReturned || requested == StatusDoesntQualify {
		return nil
	}
	if rank(requested) <= rank(current) {
		return &TransitionError{Current: current, Requested: requested, Reason: "transition would regress the lead"}
	}
	return nil
}

// Plan is the outcome of evaluating an external lifecycle event against a
// lead's current status. Steps lists every status the lead enters, in order;
// an empty plan means the event is stale or duplicate and must be a no-op.
type Plan struct {
	Steps  []Status
	Forced bool // the chain includes auto-advanced intermediate stages
}

// NoOp reports whether the plan changes nothing.
func (p Plan) NoOp() bool {
	return len(p.Steps) == 0
}

// Final returns the last status in the plan, or the zero value for a no-op.
func (p Plan) Final() Status {
	if len(p.Steps) == 0 {
		return ""
	}
	return p.Steps[len(p.Steps)-1]
}

// PlanShipment evaluates outbound shipping evidence. A lead ships from
// APPROVED or READY_TO_SHIP; from any earlier status the lead is first
// auto-advanced to APPROVED, since shipping evidence is treated as proof of
// approval. Leads at or past SHIPPED, and terminal leads, are left alone —
// a stale shipping event never regresses status.
func PlanShipment(current Status) Plan {
	if IsTerminal(current) || rank(current) >= rank(StatusShipped) {
		return Plan{}
	}
	if current == StatusApproved || current == StatusReadyToShip {
		return Plan{Steps: []Status{StatusShipped}}
	}
	return Plan{Steps: []Status{StatusApproved, StatusShipped}, Forced: true}
}

// PlanOutboundDelivered evaluates an outbound DELIVERED scan. Delivery is
// stronger shipping evidence than a ship scan, so missing intermediate
// stages are force-advanced the same way PlanShipment does.
func PlanOutboundDelivered(current Status) Plan {
	if IsTerminal(current) || rank(current) >= rank(StatusDelivered) {
		return Plan{}
	}
	shipment := PlanShipment(current)
	steps := append(shipment.Steps, StatusDelivered)
	return Plan{Steps: steps, Forced: len(steps) > 1}
}

// PlanInboundInTransit evaluates an inbound in-transit scan. The kit is only
// considered returning when the lead is DELIVERED or SHIPPED; otherwise the
// scan is ignored.
func PlanInboundInTransit(current Status) Plan {
	if current == StatusDelivered || current == StatusShipped {
		return Plan{Steps: []Status{StatusKitReturning}}
	}
	return Plan{}
}

// PlanInboundDelivered evaluates an inbound DELIVERED scan: the kit is back
// at the lab and the journey is complete.
func PlanInboundDelivered(current Status) Plan {
	if IsTerminal(current) {
		return Plan{}
	}
	return Plan{Steps: []Status{StatusKitCompleted}}
}

// Determination is the parsed outcome of a doctor-approval import row.
type Determination string

const (
	DeterminationApproved Determination = "APPROVED"
	DeterminationDenied   Determination = "DENIED"
	// DeterminationPending covers status text that doesn't clearly map to
	// approve or deny; the lead's status is left untouched.
	DeterminationPending Determination = "PENDING"
)

// PlanDoctorDecision evaluates a doctor-approval determination. Approval sets
// APPROVED unless the lead is already at or past it; denial disqualifies any
// non-terminal lead; an ambiguous determination changes nothing.
func PlanDoctorDecision(current Status, d Determination) Plan {
	if IsTerminal(current) {
		return Plan{}
	}
	switch d {
	case DeterminationApproved:
		if rank(current) >= rank(StatusApproved) {
			return Plan{}
		}
		return Plan{Steps: []Status{StatusApproved}}
	case DeterminationDenied:
		return Plan{Steps: []Status{StatusDoesntQualify}}
	default:
		return Plan{}
	}
}

// StageTimestamp names which lifecycle timestamp a stage entry sets.
// Stages without a timestamp of their own return the empty string.
// KIT_RETURNING deliberately sets nothing: kitReturnedDate means the kit is
// back at the lab, which is KIT_COMPLETED.
type StageTimestamp string

const (
	TimestampAdvocateReviewedAt StageTimestamp = "advocate_reviewed_at"
	TimestampConsultDate        StageTimestamp = "consult_date"
	TimestampDoctorApprovalDate StageTimestamp = "doctor_approval_date"
	TimestampKitShippedDate     StageTimestamp = "kit_shipped_date"
	TimestampKitDeliveredDate   StageTimestamp = "kit_delivered_date"
	TimestampKitReturnedDate    StageTimestamp = "kit_returned_date"
)

// TimestampForStage returns the timestamp a lead records when entering the
// given status, or "" when the stage has none.
func TimestampForStage(s Status) StageTimestamp {
	switch s {
	case StatusAdvocateReview:
		return TimestampAdvocateReviewedAt
	case StatusSentToConsult:
		return TimestampConsultDate
	case StatusApproved:
		return TimestampDoctorApprovalDate
	case StatusShipped:
		return TimestampKitShippedDate
	case StatusDelivered:
		return TimestampKitDeliveredDate
	case StatusKitCompleted:
		return TimestampKitReturnedDate
	default:
		return ""
	}
}
