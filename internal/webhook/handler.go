package webhook

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"kitportal_backend/platform/httpkit"
	"kitportal_backend/platform/validator"
)

type Handler struct {
	svc *Service
	val *validator.Validator
}

func NewHandler(svc *Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// HandleCarrierEvent accepts one carrier delivery notification.
func (h *Handler) HandleCarrierEvent(c *gin.Context) {
	var payload CarrierEventPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid payload", nil)
		return
	}
	if err := h.val.Struct(payload); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	receipt, err := h.svc.Process(c.Request.Context(), payload)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, receipt)
}
