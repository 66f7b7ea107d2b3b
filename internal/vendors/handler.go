package vendors

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"kitportal_backend/internal/leads/domain"
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

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("", h.List)
	rg.POST("", h.Create)
	rg.GET("/:id", h.GetByID)
}

type createVendorRequest struct {
	Name           string     `json:"name" validate:"required,min=1,max=200"`
	ParentVendorID *uuid.UUID `json:"parentVendorId,omitempty"`
}

type vendorResponse struct {
	ID             uuid.UUID  `json:"id"`
	Name           string     `json:"name"`
	Code           string     `json:"code"`
	ParentVendorID *uuid.UUID `json:"parentVendorId,omitempty"`
}

func toVendorResponse(v domain.Vendor) vendorResponse {
	return vendorResponse{ID: v.ID, Name: v.Name, Code: v.Code, ParentVendorID: v.ParentVendorID}
}

func (h *Handler) List(c *gin.Context) {
	vendors, err := h.svc.List(c.Request.Context())
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to list vendors", nil)
		return
	}
	out := make([]vendorResponse, 0, len(vendors))
	for _, v := range vendors {
		out = append(out, toVendorResponse(v))
	}
	httpkit.OK(c, out)
}

func (h *Handler) Create(c *gin.Context) {
	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid request", nil)
		return
	}
	if err := h.val.Struct(req); err != nil {
		httpkit.Error(c, http.StatusBadRequest, "validation failed", err.Error())
		return
	}

	vendor, err := h.svc.Create(c.Request.Context(), req.Name, req.ParentVendorID)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "failed to create vendor", nil)
		return
	}
	httpkit.JSON(c, http.StatusCreated, toVendorResponse(vendor))
}

func (h *Handler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid vendor id", nil)
		return
	}
	vendor, err := h.svc.GetByID(c.Request.Context(), id)
	if err != nil {
		if err == ErrNotFound {
			httpkit.Error(c, http.StatusNotFound, err.Error(), nil)
			return
		}
		httpkit.Error(c, http.StatusInternalServerError, "failed to load vendor", nil)
		return
	}
	httpkit.OK(c, toVendorResponse(vendor))
}
