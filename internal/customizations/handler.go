package customizations

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"tailor-backend/internal/shared/server/middleware"
	"tailor-backend/internal/shared/server/respond"
	"tailor-backend/internal/shared/storage/object"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc     *Service
	Store   object.ObjectStore
	limiter *pollLimiter
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service, store object.ObjectStore) *Handler {
	return &Handler{
		Svc:     svc,
		Store:   store,
		limiter: newPollLimiter(pollLimitWindow, nil),
	}
}

// RegisterRoutes attaches customization routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/customizations", h.create)
	rg.GET("/customizations", h.list)
	rg.GET("/customizations/:id", h.get)
	rg.POST("/customizations/:id/retry", h.retry)
	rg.GET("/customizations/:id/download", h.download)
}

func (h *Handler) create(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}

	req.DocumentID = strings.TrimSpace(req.DocumentID)
	req.JobDescription = strings.TrimSpace(req.JobDescription)
	if req.DocumentID == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "documentId is required", nil)
		return
	}
	if req.JobDescription == "" {
		respond.Error(c, http.StatusBadRequest, "validation_error", "jobDescription is required", nil)
		return
	}

	record, err := h.Svc.Create(c.Request.Context(), userID, req.DocumentID, req.JobDescription, req.TargetTitle, req.TargetOrg)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
		case errors.Is(err, ErrJobQueueNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "customizations are temporarily unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to create customization", nil)
		}
		return
	}

	c.Set("customizationId", record.ID)
	c.Set("statusTransition", "created->pending")
	respond.Accepted(c, toResponse(record))
}

func (h *Handler) get(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	id := c.Param("id")

	if !h.limiter.Allow(userID, id) {
		c.Header("Retry-After", strconv.Itoa(h.limiter.RetryAfterSeconds()))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "poll at most once per second", nil)
		return
	}

	record, err := h.Svc.Get(c.Request.Context(), userID, id)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "customization not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch customization", nil)
		}
		return
	}

	respond.JSON(c, http.StatusOK, toResponse(record))
}

func (h *Handler) list(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 0 {
		limit = 0
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			offset = parsed
		}
	}
	if offset < 0 {
		offset = 0
	}

	records, err := h.Svc.List(c.Request.Context(), userID, limit, offset)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to list customizations", nil)
		return
	}

	resp := make([]customizationResponse, 0, len(records))
	for _, record := range records {
		resp = append(resp, toResponse(record))
	}
	respond.JSON(c, http.StatusOK, resp)
}

func (h *Handler) retry(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	record, err := h.Svc.Resubmit(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "customization not found", nil)
		case errors.Is(err, ErrNotRetryable):
			respond.Error(c, http.StatusConflict, "conflict", "only failed customizations can be retried", nil)
		case errors.Is(err, ErrJobQueueNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "unavailable", "customizations are temporarily unavailable", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to retry customization", nil)
		}
		return
	}

	c.Set("customizationId", record.ID)
	c.Set("statusTransition", "failed->pending")
	respond.Accepted(c, toResponse(record))
}

func (h *Handler) download(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	record, err := h.Svc.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			respond.Error(c, http.StatusNotFound, "not_found", "customization not found", nil)
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to fetch customization", nil)
		}
		return
	}
	if record.Status != StatusCompleted || record.ResultKey == "" {
		respond.Error(c, http.StatusConflict, "conflict", "customization has no result yet", nil)
		return
	}

	body, err := h.Store.Open(c.Request.Context(), record.ResultKey)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to open result", nil)
		return
	}
	defer body.Close()

	c.Header("Content-Type", resultMimeType)
	c.Header("Content-Disposition", `attachment; filename="tailored.docx"`)
	c.Status(http.StatusOK)
	if _, err := io.Copy(c.Writer, body); err != nil {
		// Headers are already written; nothing left to do but log.
		c.Error(err) //nolint:errcheck
	}
}
