package internal

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	DefaultAcquireTimeout = 5 * time.Second

	// multipart overhead allowed on top of the two file limits
	formOverheadBytes = 1 << 20
)

// Handlers serves the conversion API
type Handlers struct {
	Pipeline       *Pipeline
	Resolver       EnvironmentResolver
	Gate           *Gate
	MaxUploadBytes int64
	AcquireTimeout time.Duration
}

// NewHandlers wires handlers to a pipeline built from configuration
func NewHandlers(cfg *Config) *Handlers {
	pipeline := NewPipeline(cfg)
	return &Handlers{
		Pipeline:       pipeline,
		Resolver:       pipeline.Resolver,
		Gate:           NewGate(cfg.MaxConcurrent),
		MaxUploadBytes: cfg.MaxUploadBytes,
		AcquireTimeout: DefaultAcquireTimeout,
	}
}

// Register mounts the API routes
func (h *Handlers) Register(router gin.IRoutes) {
	router.GET("/health", h.HealthHandler)
	router.GET("/environment", h.EnvironmentHandler)
	router.POST("/convert", h.ConvertHandler)
}

// HealthHandler handles health check requests
func (h *Handlers) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:    "ok",
		InFlight:  h.Gate.InFlight(),
		Capacity:  h.Gate.Capacity(),
		Timestamp: time.Now().Format(time.RFC3339),
	})
}

// EnvironmentHandler runs the resolver and reports what it found. Resolution
// may install packages, so it takes a conversion slot like /convert does.
func (h *Handlers) EnvironmentHandler(c *gin.Context) {
	if !h.Gate.Acquire(c.Request.Context(), h.AcquireTimeout) {
		h.busy(c)
		return
	}
	defer h.Gate.Release()

	profile, err := h.Resolver.Resolve(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":      "unavailable",
			"error":       err.Error(),
			"environment": profile,
			"solutions":   remediationHints,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":      "ready",
		"environment": profile,
	})
}

// ConvertHandler handles multipart journal/template conversion requests
func (h *Handlers) ConvertHandler(c *gin.Context) {
	requestID := uuid.New().String()
	c.Header("X-Convert-Request-Id", requestID)

	start := time.Now()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.MaxUploadBytes+formOverheadBytes)

	// The upload is read before admission so slow senders never hold a slot
	form, err := c.MultipartForm()
	if err != nil {
		h.writeResponse(c, start, h.Pipeline.Reject(requestID, formError(err, h.MaxUploadBytes)))
		return
	}
	defer func() { _ = form.RemoveAll() }()

	if !h.Gate.Acquire(c.Request.Context(), h.AcquireTimeout) {
		h.busy(c)
		return
	}
	defer h.Gate.Release()

	h.writeResponse(c, start, h.Pipeline.Convert(c.Request.Context(), requestID, form))
}

func (h *Handlers) writeResponse(c *gin.Context, start time.Time, resp *Response) {
	c.Header("X-Convert-Duration-Ms", fmt.Sprintf("%d", time.Since(start).Milliseconds()))
	c.JSON(resp.Status, resp.Body())
}

func (h *Handlers) busy(c *gin.Context) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"success":  false,
		"error":    "Server busy",
		"message":  "Too many conversion requests. Please try again in a moment.",
		"inFlight": h.Gate.InFlight(),
	})
}

func formError(err error, maxBytes int64) *ConversionError {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return validationError(fmt.Sprintf("File is too large (maximum %dMB)", maxBytes>>20), fmt.Errorf("%w: %v", errFileTooLarge, err), nil)
	}
	if errors.Is(err, http.ErrNotMultipart) || errors.Is(err, http.ErrMissingBoundary) {
		return validationError("Both journal and template files must be uploaded", fmt.Errorf("%w: %v", errMissingFields, err), nil)
	}
	return validationError("Could not parse the upload form", err, nil)
}
