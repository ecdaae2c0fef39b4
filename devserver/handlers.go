package devserver

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/jlyon1/party-camera-ios/ccc/logging"
)

// maxUploadBytes bounds a single PUT body
const maxUploadBytes = 50 << 20

// Handler serves the backend API over HTTP
type Handler struct {
	logger  logging.Logger
	service *Service
}

// NewHandler creates a new API handler
func NewHandler(logger logging.Logger, service *Service) *Handler {
	if logger == nil {
		logger = logging.NopLogger
	}
	return &Handler{logger: logger, service: service}
}

// RegisterRoutes configures the HTTP routes on router
func RegisterRoutes(router *gin.Engine, h *Handler) {
	api := router.Group("/api")
	api.GET("/presigned", h.Presign)
	api.GET("/event/me", h.ListEvents)
	api.POST("/event", h.CreateEvent)
	api.GET("/event/:id", h.GetEvent)
	api.GET("/event/:id/feed", h.GetFeed)
	api.GET("/image/:id/assets", h.GetImageAssets)

	router.PUT("/objects/:fileName", h.PutObject)
	router.GET("/objects/:fileName", h.GetObject)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "partycam-server",
		})
	})
}

// Presign handles GET /api/presigned?contentType=&eventId=
func (h *Handler) Presign(c *gin.Context) {
	contentType := c.Query("contentType")
	eventID, err := strconv.Atoi(c.Query("eventId"))
	if err != nil || contentType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "contentType and a numeric eventId are required"})
		return
	}

	upload, err := h.service.Presign(c.Request.Context(), contentType, eventID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, upload)
}

// PutObject handles PUT /objects/:fileName with a signed query
func (h *Handler) PutObject(c *gin.Context) {
	fileName := c.Param("fileName")

	body := http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	data, err := io.ReadAll(body)
	if err != nil {
		h.logger.Warn("Failed to read upload body", "fileName", fileName, "error", err)
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "upload too large"})
		return
	}
	if len(data) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	image, err := h.service.AcceptUpload(c.Request.Context(), fileName, c.Request.URL.Query(), c.GetHeader("Content-Type"), data)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": image.ID, "fileName": image.FileName})
}

// GetObject handles GET /objects/:fileName
func (h *Handler) GetObject(c *gin.Context) {
	path, err := h.service.ObjectPath(c.Param("fileName"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid object name"})
		return
	}
	c.File(path)
}

// ListEvents handles GET /api/event/me
func (h *Handler) ListEvents(c *gin.Context) {
	events, err := h.service.ListEvents(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, events)
}

type createEventRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// CreateEvent handles POST /api/event
func (h *Handler) CreateEvent(c *gin.Context) {
	var req createEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}

	event, err := h.service.CreateEvent(c.Request.Context(), req.Name, req.Description)
	if err != nil {
		h.writeError(c, err)
		return
	}

	dto, err := h.service.GetEvent(c.Request.Context(), event.ID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dto)
}

// GetEvent handles GET /api/event/:id
func (h *Handler) GetEvent(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	event, err := h.service.GetEvent(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, event)
}

// GetFeed handles GET /api/event/:id/feed
func (h *Handler) GetFeed(c *gin.Context) {
	id, ok := h.eventID(c)
	if !ok {
		return
	}
	feed, err := h.service.Feed(c.Request.Context(), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, feed)
}

// GetImageAssets handles GET /api/image/:id/assets
func (h *Handler) GetImageAssets(c *gin.Context) {
	assets, err := h.service.ImageAssets(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, assets)
}

func (h *Handler) eventID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "event id must be numeric"})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to status codes
func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case IsEventNotFoundError(err), IsImageNotFoundError(err):
		status = http.StatusNotFound
	case errors.Is(err, ErrInvalidSignature), errors.Is(err, ErrContentTypeMismatch):
		status = http.StatusForbidden
	case errors.Is(err, ErrExpired):
		status = http.StatusGone
	case errors.Is(err, ErrUnsupportedType):
		status = http.StatusUnsupportedMediaType
	case errors.Is(err, ErrObjectExists):
		status = http.StatusConflict
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed", "path", c.FullPath(), "error", err)
		c.JSON(status, gin.H{"error": "Internal server error"})
		return
	}

	h.logger.Warn("Request rejected", "path", c.FullPath(), "status", status, "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}
