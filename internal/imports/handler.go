package imports

import (
	"encoding/csv"
	"net/http"

	"github.com/gin-gonic/gin"

	"kitportal_backend/platform/httpkit"
)

// maxUploadBytes caps batch file size at 20 MB.
const maxUploadBytes = 20 << 20

type Handler struct {
	pipeline *Pipeline
}

func NewHandler(pipeline *Pipeline) *Handler {
	return &Handler{pipeline: pipeline}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("", h.Upload)
}

// Upload accepts a multipart CSV (field "file") plus a "kind" form value and
// returns the batch report.
func (h *Handler) Upload(c *gin.Context) {
	kind := Kind(c.PostForm("kind"))
	if !IsKnownKind(kind) {
		httpkit.Error(c, http.StatusBadRequest, "unknown import kind", string(kind))
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "missing file", nil)
		return
	}
	if fileHeader.Size > maxUploadBytes {
		httpkit.Error(c, http.StatusRequestEntityTooLarge, "file too large", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "unreadable file", nil)
		return
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1 // vendor files have ragged rows
	records, err := reader.ReadAll()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "malformed CSV", err.Error())
		return
	}

	report, err := h.pipeline.Run(c.Request.Context(), kind, records)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}
	httpkit.OK(c, report)
}
