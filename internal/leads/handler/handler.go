// Package handler exposes the leads bounded context over HTTP.
package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kitportal_backend/internal/leads/alerts"
	"kitportal_backend/internal/leads/domain"
	"kitportal_backend/internal/leads/repository"
	"kitportal_backend/internal/leads/service"
	"kitportal_backend/internal/leads/transport"
	"kitportal_backend/platform/httpkit"
	"kitportal_backend/platform/validator"
)

const (
	msgInvalidRequest   = "invalid request"
	msgValidationFailed = "validation failed"
)

type Handler struct {
	svc    *service.Service
	alerts *alerts.Manager
	val    *validator.Validator
}

func New(svc *service.Service, alertMgr *alerts.Manager, val *validator.Validator) *Handler {
	return &Handler{svc: svc, alerts: alertMgr, val: val}
}

func (h *Handler) RegisterLeadRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.POST("/check-duplicate", h.CheckDuplicate)
	rg.GET("/:id", h.GetByID)
	rg.PATCH("/:id", h.Update)
	rg.GET("/:id/alerts", h.ListLeadAlerts)
	rg.GET("/:id/tracking-events", h.ListTrackingEvents)
}

func (h *Handler) RegisterAlertRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.ListOpenAlerts)
	rg.POST("/scan", h.BulkScan)
	rg.POST("/:id/acknowledge", h.AcknowledgeAlert)
}

func (h *Handler) CheckDuplicate(c *gin.Context) {
	var req transport.CheckDuplicateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	decision, err := h.svc.CheckDuplicate(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, decision)
}

func (h *Handler) Create(c *gin.Context) {
	var req transport.CreateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	lead, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.JSON(c, http.StatusCreated, lead)
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	lead, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}

	var req transport.UpdateLeadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}
	if req.Status != nil && !domain.IsKnownStatus(*req.Status) {
		httpkit.Error(c, http.StatusBadRequest, "unknown status", string(*req.Status))
		return
	}

	lead, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, lead)
}

func (h *Handler) List(c *gin.Context) {
	params := repository.ListLeadsParams{
		Search: c.Query("search"),
		Limit:  intQuery(c, "limit", 50),
		Offset: intQuery(c, "offset", 0),
	}
	if v := c.Query("status"); v != "" {
		status := domain.Status(v)
		if !domain.IsKnownStatus(status) {
			httpkit.Error(c, http.StatusBadRequest, "unknown status", v)
			return
		}
		params.Status = &status
	}
	if v := c.Query("testType"); v != "" {
		tt := domain.TestType(v)
		if !domain.IsKnownTestType(tt) {
			httpkit.Error(c, http.StatusBadRequest, "unknown test type", v)
			return
		}
		params.TestType = &tt
	}
	if v := c.Query("vendorId"); v != "" {
		vendorID, err := uuid.Parse(v)
		if err != nil {
			httpkit.Error(c, http.StatusBadRequest, "invalid vendor id", nil)
			return
		}
		params.VendorID = &vendorID
	}
	if v := c.Query("isDuplicate"); v != "" {
		b := v == "true"
		params.IsDuplicate = &b
	}
	if v := c.Query("hasActiveAlerts"); v != "" {
		b := v == "true"
		params.HasActiveAlerts = &b
	}

	result, err := h.svc.List(c.Request.Context(), params)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, result)
}

func (h *Handler) ListLeadAlerts(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}
	includeAcked := c.Query("includeAcknowledged") == "true"

	items, err := h.alerts.ListForLead(c.Request.Context(), id, includeAcked)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	out := make([]transport.AlertResponse, 0, len(items))
	for _, a := range items {
		out = append(out, transport.ToAlertResponse(a))
	}
	httpkit.OK(c, out)
}

func (h *Handler) ListTrackingEvents(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid lead id", nil)
		return
	}
	events, err := h.svc.ListTrackingEvents(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, events)
}

func (h *Handler) ListOpenAlerts(c *gin.Context) {
	var alertType *domain.AlertType
	if v := c.Query("type"); v != "" {
		t := domain.AlertType(v)
		alertType = &t
	}

	items, err := h.alerts.ListOpen(c.Request.Context(), alertType, intQuery(c, "limit", 50), intQuery(c, "offset", 0))
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	out := make([]transport.AlertResponse, 0, len(items))
	for _, a := range items {
		out = append(out, transport.ToAlertResponse(a))
	}
	httpkit.OK(c, out)
}

func (h *Handler) AcknowledgeAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid alert id", nil)
		return
	}

	var req transport.AcknowledgeAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidRequest, nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
		return
	}

	alert, err := h.alerts.Acknowledge(c.Request.Context(), id, req.AcknowledgedBy)
	if err != nil {
		if err == repository.ErrAlertNotFound {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, transport.ToAlertResponse(alert))
}

func (h *Handler) BulkScan(c *gin.Context) {
	report, err := h.alerts.BulkScan(c.Request.Context())
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, report)
}

func intQuery(c *gin.Context, key string, fallback int) int {
	v := c.Query(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
