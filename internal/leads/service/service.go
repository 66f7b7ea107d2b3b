// Package service implements the lead lifecycle use cases: duplicate
// checking, creation, manual transitions, and plan application for external
// lifecycle events.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	appevents "kitportal_backend/internal/events"
	"kitportal_backend/internal/leads/alerts"
	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/internal/leads/transport"
	"kitportal_backend/internal/vendors"
	"kitportal_backend/platform/apperr"
	"kitportal_backend/platform/events"
	"kitportal_backend/platform/logger"
	"kitportal_backend/platform/phone"
)

// maxVersionRetries bounds the re-read-and-re-plan loop under write races.
const maxVersionRetries = 3

// Source labels for status-change events.
const (
	SourceManual  = "manual"
	SourceImport  = "import"
	SourceWebhook = "webhook"
)

type Service struct {
	repo    *repository.Repository
	vendors *vendors.Service
	alerts  *alerts.Manager
	bus     events.Bus
	policy  domain.Policy
	log     *logger.Logger
	now     func() time.Time
}

func New(repo *repository.Repository, vendorSvc *vendors.Service, alertMgr *alerts.Manager, bus events.Bus, policy domain.Policy, log *logger.Logger) *Service {
	return &Service{
		repo:    repo,
		vendors: vendorSvc,
		alerts:  alertMgr,
		bus:     bus,
		policy:  policy,
		log:     log,
		now:     time.Now,
	}
}

// CheckDuplicate evaluates a would-be submission against the duplicate
// policy without writing anything.
func (s *Service) CheckDuplicate(ctx context.Context, req transport.CheckDuplicateRequest) (domain.Decision, error) {
	mbi := domain.NormalizeMBI(req.MBI)
	if !domain.ValidMBI(mbi) {
		return domain.Decision{}, apperr.Validation("mbi is not a valid Medicare Beneficiary Identifier")
	}

	exclude := uuid.Nil
	if req.ExcludeLeadID != nil {
		exclude = *req.ExcludeLeadID
	}
	priors, err := s.repo.FindPriorByMBI(ctx, mbi, exclude)
	if err != nil {
		return domain.Decision{}, err
	}
	return s.policy.Decide(s.now(), req.TestType, priors), nil
}

// Create runs the duplicate policy and persists the lead. A blocked
// submission is rejected with the decision attached unless the caller
// explicitly allows duplicates, in which case the lead is created flagged
// and alerted.
func (s *Service) Create(ctx context.Context, req transport.CreateLeadRequest) (transport.LeadResponse, error) {
	mbi := domain.NormalizeMBI(req.MBI)
	if !domain.ValidMBI(mbi) {
		return transport.LeadResponse{}, apperr.Validation("mbi is not a valid Medicare Beneficiary Identifier")
	}
	normalizedPhone := phone.NormalizeDigits(req.Phone)

	priors, err := s.repo.FindPriorByMBI(ctx, mbi, uuid.Nil)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	decision := s.policy.Decide(s.now(), req.TestType, priors)
	if !decision.Allowed() && !req.AllowDuplicate {
		return transport.LeadResponse{}, apperr.Conflict("submission blocked by duplicate policy").WithDetails(decision)
	}

	vendor, err := s.vendors.ResolveOrCreate(ctx, req.Vendor)
	if err != nil {
		return transport.LeadResponse{}, err
	}
	params := repository.CreateLeadParams{
		MBI:         mbi,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       normalizedPhone,
		TestType:    req.TestType,
		VendorID:    vendor.ID,
		IsDuplicate: !decision.Allowed(),
	}
	if req.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", req.DateOfBirth)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
		}
		params.DateOfBirth = &dob
	}
	if req.SubVendor != "" {
		sub, err := s.vendors.ResolveSubVendor(ctx, vendor.ID, req.SubVendor)
		if err != nil {
			return transport.LeadResponse{}, err
		}
		if sub != nil {
			params.SubVendorID = &sub.ID
		}
	}

	lead, err := s.repo.Create(ctx, params)
	if err != nil {
		return transport.LeadResponse{}, err
	}

	if lead.IsDuplicate {
		if _, err := s.alerts.FlagDuplicate(ctx, lead); err != nil {
			// The lead exists; a failed alert must not fail the request.
			s.log.Error("flag duplicate after create failed", "error", err, "lead_id", lead.ID)
		}
	}
	s.bus.Publish(ctx, appevents.NewLeadCreated(lead))

	return transport.ToLeadResponse(lead), nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}
	return transport.ToLeadResponse(lead), nil
}

func (s *Service) List(ctx context.Context, params repository.ListLeadsParams) (transport.LeadListResponse, error) {
	leads, total, err := s.repo.List(ctx, params)
	if err != nil {
		return transport.LeadListResponse{}, err
	}
	items := make([]transport.LeadResponse, 0, len(leads))
	for _, l := range leads {
		items = append(items, transport.ToLeadResponse(l))
	}
	limit := params.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return transport.LeadListResponse{Items: items, Total: total, Limit: limit, Offset: params.Offset}, nil
}

// Update patches demographics and, when requested, performs a manual status
// transition and/or the DUPE disposition.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req transport.UpdateLeadRequest) (transport.LeadResponse, error) {
	lead, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return transport.LeadResponse{}, apperr.NotFound("lead not found")
		}
		return transport.LeadResponse{}, err
	}

	params := repository.UpdateLeadParams{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	}
	if req.Phone != nil {
		normalized := phone.NormalizeDigits(*req.Phone)
		params.Phone = &normalized
	}
	if req.DateOfBirth != nil {
		dob, err := time.Parse("2006-01-02", *req.DateOfBirth)
		if err != nil {
			return transport.LeadResponse{}, apperr.Validation("dateOfBirth must be YYYY-MM-DD")
		}
		params.DateOfBirth = &dob
	}
	if params.FirstName != nil || params.LastName != nil || params.Phone != nil || params.DateOfBirth != nil {
		if lead, err = s.repo.Update(ctx, id, params); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	if req.Status != nil {
		lead, err = s.transition(ctx, lead, *req.Status)
		if err != nil {
			return transport.LeadResponse{}, err
		}
	}

	if req.IsDuplicate != nil && *req.IsDuplicate {
		by := req.DispositionBy
		if by == "" {
			by = "advocate"
		}
		if _, err := s.alerts.ConfirmDuplicate(ctx, id, by); err != nil {
			return transport.LeadResponse{}, err
		}
		if lead, err = s.repo.GetByID(ctx, id); err != nil {
			return transport.LeadResponse{}, err
		}
	}

	return transport.ToLeadResponse(lead), nil
}

// transition performs a validated manual status change under optimistic
// concurrency.
func (s *Service) transition(ctx context.Context, lead domain.Lead, requested domain.Status) (domain.Lead, error) {
	for attempt := 0; ; attempt++ {
		if err := domain.ValidateTransition(lead.Status, requested); err != nil {
			var te *domain.TransitionError
			if errors.As(err, &te) {
				return domain.Lead{}, apperr.Validation(te.Error()).WithDetails(map[string]string{
					"currentStatus":   string(te.Current),
					"requestedStatus": string(te.Requested),
				})
			}
			return domain.Lead{}, err
		}

		plan := domain.Plan{Steps: []domain.Status{requested}}
		now := s.now()
		updated, err := s.repo.ApplyStatusPlan(ctx, lead.ID, lead.Version, plan, now)
		if err == nil {
			s.publishStatusChange(ctx, updated, lead.Status, plan, SourceManual, now)
			return updated, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxVersionRetries {
			return domain.Lead{}, err
		}
		// Lost the race: re-read and re-validate against the fresh status.
		if lead, err = s.repo.GetByID(ctx, lead.ID); err != nil {
			return domain.Lead{}, err
		}
	}
}

// Planner evaluates a lead's current status into a lifecycle plan.
type Planner func(current domain.Status) domain.Plan

// ApplyPlan evaluates and applies a lifecycle plan for an external event
// (carrier scan, import row). Stale events plan to a no-op and return
// changed=false. Version conflicts re-read and re-plan, so a concurrent
// writer never causes a lost or doubled transition.
func (s *Service) ApplyPlan(ctx context.Context, leadID uuid.UUID, plan Planner, source string) (domain.Lead, bool, error) {
	return s.ApplyPlanAt(ctx, leadID, plan, source, s.now())
}

// ApplyPlanAt is ApplyPlan with an explicit event time; stage timestamps are
// backfilled with it. Import rows pass the report's own dates so a kit shipped
// last Tuesday is stamped last Tuesday, not at batch time.
func (s *Service) ApplyPlanAt(ctx context.Context, leadID uuid.UUID, plan Planner, source string, at time.Time) (domain.Lead, bool, error) {
	lead, err := s.repo.GetByID(ctx, leadID)
	if err != nil {
		return domain.Lead{}, false, err
	}

	for attempt := 0; ; attempt++ {
		p := plan(lead.Status)
		if p.NoOp() {
			return lead, false, nil
		}

		updated, err := s.repo.ApplyStatusPlan(ctx, lead.ID, lead.Version, p, at)
		if err == nil {
			if p.Forced {
				s.log.ForcedProgression(lead.ID.String(), string(lead.Status), string(p.Final()))
			}
			s.publishStatusChange(ctx, updated, lead.Status, p, source, at)
			return updated, true, nil
		}
		if !errors.Is(err, repository.ErrVersionConflict) || attempt >= maxVersionRetries {
			return domain.Lead{}, false, err
		}
		if lead, err = s.repo.GetByID(ctx, lead.ID); err != nil {
			return domain.Lead{}, false, err
		}
	}
}

// SetTracking records a carrier tracking number on the lead.
func (s *Service) SetTracking(ctx context.Context, leadID uuid.UUID, direction domain.TrackingDirection, trackingNumber string) error {
	err := s.repo.SetTrackingNumber(ctx, leadID, direction, trackingNumber)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound("lead not found")
	}
	if errors.Is(err, repository.ErrDuplicateTracking) {
		return apperr.Conflict("tracking number already assigned to another lead")
	}
	return err
}

func (s *Service) ListTrackingEvents(ctx context.Context, leadID uuid.UUID) ([]transport.TrackingEventResponse, error) {
	if _, err := s.repo.GetByID(ctx, leadID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("lead not found")
		}
		return nil, err
	}
	events, err := s.repo.ListTrackingEvents(ctx, leadID)
	if err != nil {
		return nil, err
	}
	out := make([]transport.TrackingEventResponse, 0, len(events))
	for _, e := range events {
		out = append(out, transport.ToTrackingEventResponse(e))
	}
	return out, nil
}

func (s *Service) publishStatusChange(ctx context.Context, lead domain.Lead, from domain.Status, plan domain.Plan, source string, at time.Time) {
	s.bus.Publish(ctx, appevents.NewLeadStatusChanged(lead.ID, from, plan, source))
	for _, step := range plan.Steps {
		switch step {
		case domain.StatusShipped:
			s.bus.Publish(ctx, appevents.NewKitShipped(lead.ID, lead.TrackingNumber, at))
		case domain.StatusDelivered:
			s.bus.Publish(ctx, appevents.NewKitDelivered(lead.ID, at))
		case domain.StatusKitCompleted:
			s.bus.Publish(ctx, appevents.NewKitCompleted(lead.ID, at))
		}
	}
}
