// Package imports implements the CSV reconciliation pipeline: batch files
// from doctors, carriers, and vendors are matched against existing leads and
// applied through the lifecycle state machine, row by row.
package imports

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/matcher"
	"kitportal_backend/internal/leads/service"
	"kitportal_backend/internal/leads/transport"
	"kitportal_backend/platform/logger"
)

// Kind identifies what a batch file reconciles.
type Kind string

const (
	KindDoctorApproval Kind = "doctor_approval"
	KindShippingReport Kind = "shipping_report"
	KindKitReturn      Kind = "kit_return"
	KindBulkLead       Kind = "bulk_lead"
	KindMasterData     Kind = "master_data"
)

// IsKnownKind reports whether the upload kind is supported.
func IsKnownKind(k Kind) bool {
	switch k {
	case KindDoctorApproval, KindShippingReport, KindKitReturn, KindBulkLead, KindMasterData:
		return true
	}
	return false
}

// maxReportedErrors caps the error list in a batch report; the full count is
// still reported in TotalErrors.
const maxReportedErrors = 10

// RowError records one failed row. Row numbers are 1-based over data rows
// (the header is row 0).
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Report is the aggregate outcome of one batch.
type Report struct {
	Kind        Kind       `json:"kind"`
	Processed   int        `json:"processed"`
	Created     int        `json:"created"`
	Updated     int        `json:"updated"`
	Skipped     int        `json:"skipped"`
	TotalErrors int        `json:"totalErrors"`
	Errors      []RowError `json:"errors,omitempty"`
}

func (r *Report) addError(row int, reason string) {
	r.TotalErrors++
	if len(r.Errors) < maxReportedErrors {
		r.Errors = append(r.Errors, RowError{Row: row, Reason: reason})
	}
}

// LeadService is the slice of the lead service the pipeline drives.
type LeadService interface {
	Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error)
	Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error)
	ApplyPlan(ctx context.Context, leadID uuid.UUID, plan service.Planner, source string) (domain.Lead, bool, error)
	ApplyPlanAt(ctx context.Context, leadID uuid.UUID, plan service.Planner, source string, at time.Time) (domain.Lead, bool, error)
	SetTracking(ctx context.Context, leadID uuid.UUID, direction domain.TrackingDirection, trackingNumber string) error
}

// Matcher resolves a row's identifier bundle to existing leads.
type Matcher interface {
	Match(ctx context.Context, b matcher.Bundle) ([]domain.Lead, string, error)
}

type Pipeline struct {
	leads LeadService
	match Matcher
	log   *logger.Logger
}

func NewPipeline(leads LeadService, match Matcher, log *logger.Logger) *Pipeline {
	return &Pipeline{leads: leads, match: match, log: log}
}

// Run processes a batch: the first record is the header, the rest are data
// rows. A bad row is recorded and never aborts the batch; context
// cancellation between rows does.
func (p *Pipeline) Run(ctx context.Context, kind Kind, records [][]string) (Report, error) {
	report := Report{Kind: kind}
	if !IsKnownKind(kind) {
		return report, fmt.Errorf("unknown import kind %q", kind)
	}
	if len(records) < 2 {
		return report, nil
	}

	columns := matcher.ResolveColumns(records[0])

	for i, row := range records[1:] {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		rowNum := i + 1
		report.Processed++

		outcome, err := p.processRow(ctx, kind, columns, row)
		if err != nil {
			p.log.WithContext(ctx).ImportRowError(string(kind), rowNum, err.Error())
			report.addError(rowNum, err.Error())
			continue
		}
		switch outcome {
		case outcomeCreated:
			report.Created++
		case outcomeUpdated:
			report.Updated++
		case outcomeSkipped:
			report.Skipped++
		}
	}

	p.log.WithContext(ctx).Info("import_batch_complete",
		"kind", string(kind),
		"processed", report.Processed,
		"created", report.Created,
		"updated", report.Updated,
		"skipped", report.Skipped,
		"errors", report.TotalErrors,
	)
	return report, nil
}

type rowOutcome int

const (
	outcomeSkipped rowOutcome = iota
	outcomeCreated
	outcomeUpdated
)

func (p *Pipeline) processRow(ctx context.Context, kind Kind, columns map[matcher.Field]int, row []string) (rowOutcome, error) {
	bundle := matcher.BundleFromRow(columns, row)
	if bundle.IsEmpty() {
		return 0, fmt.Errorf("no identifying fields present")
	}

	matches, _, err := p.match.Match(ctx, bundle)
	if err != nil {
		return 0, err
	}

	switch kind {
	case KindDoctorApproval:
		return p.applyDoctorApproval(ctx, columns, row, matches)
	case KindShippingReport:
		return p.applyShippingReport(ctx, columns, row, matches)
	case KindKitReturn:
		return p.applyKitReturn(ctx, columns, row, matches)
	case KindBulkLead, KindMasterData:
		return p.applyLeadRow(ctx, columns, row, matches)
	}
	return 0, fmt.Errorf("unknown import kind %q", kind)
}

func (p *Pipeline) applyDoctorApproval(ctx context.Context, columns map[matcher.Field]int, row []string, matches []domain.Lead) (rowOutcome, error) {
	if len(matches) == 0 {
		return 0, fmt.Errorf("no matching lead")
	}
	raw := matcher.Value(columns, row, matcher.FieldDeterminations)
	determination := ParseDetermination(raw)
	if determination == domain.DeterminationPending {
		// Ambiguous text changes nothing; the row is counted, not failed.
		return outcomeSkipped, nil
	}

	outcome := outcomeSkipped
	for _, lead := range matches {
		_, changed, err := p.leads.ApplyPlan(ctx, lead.ID, func(current domain.Status) domain.Plan {
			return domain.PlanDoctorDecision(current, determination)
		}, service.SourceImport)
		if err != nil {
			return 0, err
		}
		if changed {
			outcome = outcomeUpdated
		}
	}
	return outcome, nil
}

func (p *Pipeline) applyShippingReport(ctx context.Context, columns map[matcher.Field]int, row []string, matches []domain.Lead) (rowOutcome, error) {
	if len(matches) == 0 {
		return 0, fmt.Errorf("no matching lead")
	}

	shipDate, hasShipDate, err := parseRowDate(matcher.Value(columns, row, matcher.FieldShipDate))
	if err != nil {
		return 0, err
	}

	tracking := matcher.Value(columns, row, matcher.FieldTrackingNumber)
	outcome := outcomeSkipped
	for _, lead := range matches {
		if tracking != "" && lead.TrackingNumber == "" {
			if err := p.leads.SetTracking(ctx, lead.ID, domain.DirectionOutbound, tracking); err != nil {
				return 0, err
			}
			outcome = outcomeUpdated
		}
		changed, err := p.applyPlan(ctx, lead.ID, domain.PlanShipment, shipDate, hasShipDate)
		if err != nil {
			return 0, err
		}
		if changed {
			outcome = outcomeUpdated
		}
	}
	return outcome, nil
}

func (p *Pipeline) applyKitReturn(ctx context.Context, columns map[matcher.Field]int, row []string, matches []domain.Lead) (rowOutcome, error) {
	if len(matches) == 0 {
		return 0, fmt.Errorf("no matching lead")
	}

	// Return reports carry the lab receipt date in either column.
	rawDate := matcher.Value(columns, row, matcher.FieldReturnDate)
	if rawDate == "" {
		rawDate = matcher.Value(columns, row, matcher.FieldDeliveryDate)
	}
	returnDate, hasReturnDate, err := parseRowDate(rawDate)
	if err != nil {
		return 0, err
	}

	tracking := matcher.Value(columns, row, matcher.FieldInboundTracking)
	if tracking == "" {
		tracking = matcher.Value(columns, row, matcher.FieldTrackingNumber)
	}
	outcome := outcomeSkipped
	for _, lead := range matches {
		if tracking != "" && lead.InboundTrackingNumber == "" {
			if err := p.leads.SetTracking(ctx, lead.ID, domain.DirectionInbound, tracking); err != nil {
				return 0, err
			}
			outcome = outcomeUpdated
		}
		changed, err := p.applyPlan(ctx, lead.ID, domain.PlanInboundDelivered, returnDate, hasReturnDate)
		if err != nil {
			return 0, err
		}
		if changed {
			outcome = outcomeUpdated
		}
	}
	return outcome, nil
}

// applyPlan routes through ApplyPlanAt when the row carries its own event
// date, so stage timestamps reflect the report instead of the batch run.
func (p *Pipeline) applyPlan(ctx context.Context, leadID uuid.UUID, plan service.Planner, at time.Time, hasDate bool) (bool, error) {
	if hasDate {
		_, changed, err := p.leads.ApplyPlanAt(ctx, leadID, plan, service.SourceImport, at)
		return changed, err
	}
	_, changed, err := p.leads.ApplyPlan(ctx, leadID, plan, service.SourceImport)
	return changed, err
}

// applyLeadRow handles bulk_lead and master_data rows: no match creates a
// lead when the row carries enough data; a match refreshes demographics.
func (p *Pipeline) applyLeadRow(ctx context.Context, columns map[matcher.Field]int, row []string, matches []domain.Lead) (rowOutcome, error) {
	if len(matches) == 0 {
		req, err := createRequestFromRow(columns, row)
		if err != nil {
			return 0, err
		}
		if _, err := p.leads.Create(ctx, req); err != nil {
			return 0, err
		}
		return outcomeCreated, nil
	}

	update, err := updateRequestFromRow(columns, row, matches)
	if err != nil {
		return 0, err
	}
	if update == nil {
		return outcomeSkipped, nil
	}
	for _, lead := range matches {
		if _, err := p.leads.Update(ctx, lead.ID, *update); err != nil {
			return 0, err
		}
	}
	return outcomeUpdated, nil
}

func createRequestFromRow(columns map[matcher.Field]int, row []string) (transport.CreateLeadRequest, error) {
	mbi := matcher.Value(columns, row, matcher.FieldMBI)
	first := matcher.Value(columns, row, matcher.FieldFirstName)
	last := matcher.Value(columns, row, matcher.FieldLastName)
	phone := matcher.Value(columns, row, matcher.FieldPhone)
	if mbi == "" || first == "" || last == "" || phone == "" {
		return transport.CreateLeadRequest{}, fmt.Errorf("row has no match and not enough data to create a lead")
	}
	testType, err := ParseTestType(matcher.Value(columns, row, matcher.FieldTestType))
	if err != nil {
		return transport.CreateLeadRequest{}, err
	}
	dob, hasDOB, err := parseRowDate(matcher.Value(columns, row, matcher.FieldDateOfBirth))
	if err != nil {
		return transport.CreateLeadRequest{}, err
	}
	dateOfBirth := ""
	if hasDOB {
		dateOfBirth = dob.Format("2006-01-02")
	}

	return transport.CreateLeadRequest{
		MBI:         mbi,
		FirstName:   first,
		LastName:    last,
		DateOfBirth: dateOfBirth,
		Phone:       phone,
		TestType:    testType,
		Vendor:      matcher.Value(columns, row, matcher.FieldVendor),
		SubVendor:   matcher.Value(columns, row, matcher.FieldSubVendor),
		// Import rows never bounce on the duplicate policy; blocked
		// submissions are created flagged and alerted instead.
		AllowDuplicate: true,
	}, nil
}

// updateRequestFromRow builds a demographics patch from the row, filling only
// fields the matched leads are missing. Returns nil when nothing would change.
func updateRequestFromRow(columns map[matcher.Field]int, row []string, matches []domain.Lead) (*transport.UpdateLeadRequest, error) {
	var req transport.UpdateLeadRequest
	patched := false

	dob, hasDOB, err := parseRowDate(matcher.Value(columns, row, matcher.FieldDateOfBirth))
	if err != nil {
		return nil, err
	}
	if hasDOB {
		missing := false
		for _, l := range matches {
			if l.DateOfBirth == nil {
				missing = true
			}
		}
		if missing {
			formatted := dob.Format("2006-01-02")
			req.DateOfBirth = &formatted
			patched = true
		}
	}
	if phone := matcher.Value(columns, row, matcher.FieldPhone); phone != "" {
		missing := false
		for _, l := range matches {
			if l.Phone == "" {
				missing = true
			}
		}
		if missing {
			req.Phone = &phone
			patched = true
		}
	}

	if !patched {
		return nil, nil
	}
	return &req, nil
}

// ParseDetermination maps free-text doctor approval statuses onto the three
// determinations. Anything ambiguous is PENDING.
func ParseDetermination(raw string) domain.Determination {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case s == "":
		return domain.DeterminationPending
	case strings.Contains(s, "approv"), strings.Contains(s, "qualif") && !strings.Contains(s, "not") && !strings.Contains(s, "dis"),
		s == "yes", s == "y", s == "pass":
		return domain.DeterminationApproved
	case strings.Contains(s, "den"), strings.Contains(s, "reject"), strings.Contains(s, "declin"),
		strings.Contains(s, "disqualif"), strings.Contains(s, "not qualif"), s == "no", s == "n", s == "fail":
		return domain.DeterminationDenied
	default:
		return domain.DeterminationPending
	}
}

// ParseTestType maps vendor spellings of the kit type onto the enum.
func ParseTestType(raw string) (domain.TestType, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case strings.Contains(s, "immune"), strings.Contains(s, "immuno"):
		return domain.TestTypeImmune, nil
	case strings.Contains(s, "neuro"):
		return domain.TestTypeNeuro, nil
	}
	return "", fmt.Errorf("unrecognized test type %q", raw)
}

// parseRowDate reads a date cell in the common spreadsheet spellings. An
// empty cell is fine (ok=false); a non-empty cell that parses as nothing is a
// row-level error, never silently dropped.
func parseRowDate(raw string) (time.Time, bool, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false, nil
	}
	for _, layout := range []string{"2006-01-02", "01/02/2006", "1/2/2006", "01-02-2006", "2006/01/02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, true, nil
		}
	}
	return time.Time{}, false, fmt.Errorf("unparseable date %q", raw)
}
