package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/photocap/internal/service"
)

const defaultMaxImageSize = 10 * 1024 * 1024 // 10MB

var validImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
	"image/gif":  true,
	"image/bmp":  true,
	"image/tiff": true,
}

// PhotoService interface for the service
type PhotoService interface {
	Ingest(ctx context.Context, eventID, photoID string, imageBytes []byte) (*domain.PhotoAnalysis, error)
	Search(ctx context.Context, eventID string, imageBytes []byte, threshold *float64, clientIP string) (*domain.SearchResult, error)
	Analysis(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error)
	Stats(ctx context.Context, eventID string) (*domain.EventStats, error)
	Reindex(ctx context.Context, eventID string) (*service.ReindexReport, error)
	SearchMetrics(ctx context.Context, eventID string, window time.Duration) (*metrics.SearchSummary, error)
}

const defaultMetricsWindow = 24 * time.Hour

// PhotoHandler handles photo ingestion and face search requests
type PhotoHandler struct {
	service      PhotoService
	maxImageSize int64
	logger       *slog.Logger
}

// NewPhotoHandler creates a new PhotoHandler. maxImageSize <= 0 uses 10MB.
func NewPhotoHandler(service PhotoService, maxImageSize int64, logger *slog.Logger) *PhotoHandler {
	if maxImageSize <= 0 {
		maxImageSize = defaultMaxImageSize
	}
	return &PhotoHandler{
		service:      service,
		maxImageSize: maxImageSize,
		logger:       logger,
	}
}

// IngestResponse response for photo ingestion
type IngestResponse struct {
	AnalysisID          string              `json:"analysis_id"`
	EventID             string              `json:"event_id"`
	PhotoID             string              `json:"photo_id"`
	FacesDetected       int                 `json:"faces_detected"`
	FacesWithDescriptor int                 `json:"faces_with_descriptor"`
	Faces               []domain.FaceRegion `json:"faces"`
	TextRegionsDetected int                 `json:"text_regions_detected"`
	TextRegions         []domain.TextRegion `json:"text_regions"`
	DescriptorVersion   string              `json:"descriptor_version"`
	ProcessedAt         string              `json:"processed_at"`
}

// AnalysisResponse response for the stored analysis of one photo
type AnalysisResponse struct {
	AnalysisID          string              `json:"analysis_id"`
	EventID             string              `json:"event_id"`
	PhotoID             string              `json:"photo_id"`
	FacesDetected       int                 `json:"faces_detected"`
	Faces               []domain.FaceRegion `json:"faces"`
	HasDescriptor       []bool              `json:"has_descriptor"`
	TextRegionsDetected int                 `json:"text_regions_detected"`
	TextRegions         []domain.TextRegion `json:"text_regions"`
	DescriptorVersion   string              `json:"descriptor_version"`
	ProcessedAt         string              `json:"processed_at"`
}

// Ingest POST /v1/events/:event_id/photos - analyse and store a photo
func (h *PhotoHandler) Ingest(c *fiber.Ctx) error {
	eventID := c.Params("event_id")
	photoID := strings.TrimSpace(c.FormValue("photo_id"))

	imageBytes, err := h.extractAndValidateImage(c)
	if err != nil {
		return err
	}

	analysis, err := h.service.Ingest(c.UserContext(), eventID, photoID, imageBytes)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(IngestResponse{
		AnalysisID:          analysis.ID.String(),
		EventID:             analysis.EventID,
		PhotoID:             analysis.PhotoID,
		FacesDetected:       analysis.FacesDetected(),
		FacesWithDescriptor: analysis.DescriptorCount(),
		Faces:               analysis.Faces,
		TextRegionsDetected: analysis.TextRegionsDetected(),
		TextRegions:         textRegions(analysis),
		DescriptorVersion:   analysis.DescriptorVersion,
		ProcessedAt:         analysis.ProcessedAt.UTC().Format(time.RFC3339),
	})
}

// Search POST /v1/events/:event_id/search - find photos containing the query face
func (h *PhotoHandler) Search(c *fiber.Ctx) error {
	eventID := c.Params("event_id")

	threshold, err := parseThreshold(c)
	if err != nil {
		return err
	}

	imageBytes, err := h.extractAndValidateImage(c)
	if err != nil {
		return err
	}

	result, err := h.service.Search(c.UserContext(), eventID, imageBytes, threshold, c.IP())
	if err != nil {
		return err
	}

	return c.JSON(result)
}

// Analysis GET /v1/events/:event_id/photos/:photo_id/analysis
func (h *PhotoHandler) Analysis(c *fiber.Ctx) error {
	analysis, err := h.service.Analysis(c.UserContext(), c.Params("event_id"), c.Params("photo_id"))
	if err != nil {
		return err
	}

	hasDescriptor := make([]bool, len(analysis.Faces))
	for i := range analysis.Faces {
		hasDescriptor[i] = len(analysis.DescriptorAt(i)) > 0
	}

	return c.JSON(AnalysisResponse{
		AnalysisID:          analysis.ID.String(),
		EventID:             analysis.EventID,
		PhotoID:             analysis.PhotoID,
		FacesDetected:       analysis.FacesDetected(),
		Faces:               analysis.Faces,
		HasDescriptor:       hasDescriptor,
		TextRegionsDetected: analysis.TextRegionsDetected(),
		TextRegions:         textRegions(analysis),
		DescriptorVersion:   analysis.DescriptorVersion,
		ProcessedAt:         analysis.ProcessedAt.UTC().Format(time.RFC3339),
	})
}

func textRegions(a *domain.PhotoAnalysis) []domain.TextRegion {
	if a.TextRegions == nil {
		return []domain.TextRegion{}
	}
	return a.TextRegions
}

// Stats GET /v1/events/:event_id/stats
func (h *PhotoHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext(), c.Params("event_id"))
	if err != nil {
		return err
	}
	return c.JSON(stats)
}

// Reindex POST /v1/events/:event_id/reindex - re-extract stale descriptors
func (h *PhotoHandler) Reindex(c *fiber.Ctx) error {
	report, err := h.service.Reindex(c.UserContext(), c.Params("event_id"))
	if err != nil {
		return err
	}

	h.logger.Info("event reindexed",
		"event_id", report.EventID,
		"reindexed", report.Reindexed,
		"failed", report.Failed,
	)
	return c.JSON(report)
}

// parseThreshold reads the optional threshold from the query string or form.
// SearchMetrics reports search outcomes and latency over ?window=, a Go
// duration such as "24h". Defaults to one day.
func (h *PhotoHandler) SearchMetrics(c *fiber.Ctx) error {
	window := defaultMetricsWindow
	if raw := strings.TrimSpace(c.Query("window")); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return domain.ErrValidationFailed.WithError(err)
		}
		window = d
	}

	summary, err := h.service.SearchMetrics(c.UserContext(), c.Params("event_id"), window)
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

func parseThreshold(c *fiber.Ctx) (*float64, error) {
	raw := c.Query("threshold")
	if raw == "" {
		raw = c.FormValue("threshold")
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return nil, domain.ErrInvalidThreshold.WithError(err)
	}
	return &v, nil
}

// extractAndValidateImage extracts and validates the image from multipart form
func (h *PhotoHandler) extractAndValidateImage(c *fiber.Ctx) ([]byte, error) {
	file, err := c.FormFile("image")
	if err != nil {
		return nil, domain.ErrValidationFailed.WithError(err)
	}

	if file.Size == 0 {
		return nil, domain.ErrInvalidImage.WithError(errors.New("empty file"))
	}
	if file.Size > h.maxImageSize {
		return nil, domain.ErrInvalidImage.WithError(errors.New("file too large"))
	}

	contentType := file.Header.Get("Content-Type")
	if !validImageTypes[contentType] {
		return nil, domain.ErrInvalidImage.WithError(errors.New("unsupported content type " + contentType))
	}

	f, err := file.Open()
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}
	defer func() {
		_ = f.Close()
	}()

	imageBytes, err := io.ReadAll(f)
	if err != nil {
		return nil, domain.ErrInvalidImage.WithError(err)
	}

	return imageBytes, nil
}
