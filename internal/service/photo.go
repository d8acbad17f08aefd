package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saturnino-fabrica-de-software/photocap/internal/audit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/cache"
	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/match"
	"github.com/saturnino-fabrica-de-software/photocap/internal/metrics"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ratelimit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/annotate"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ws"
)

type PhotoRepositoryInterface interface {
	Create(ctx context.Context, analysis *domain.PhotoAnalysis) error
	GetByPhotoID(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error)
	ListByEvent(ctx context.Context, eventID string) ([]*domain.PhotoAnalysis, error)
	ReplaceDescriptors(ctx context.Context, id uuid.UUID, descriptors []domain.Descriptor, version string) error
	Stats(ctx context.Context, eventID, currentVersion string) (*domain.EventStats, error)
}

type SearchAuditRepositoryInterface interface {
	Create(ctx context.Context, audit *domain.SearchAudit) error
}

type RateLimiterInterface interface {
	Allow(ctx context.Context, key string, limit int) error
}

type StatsCacheInterface interface {
	GetJSON(ctx context.Context, key string, dst interface{}) error
	SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
}

type SearchMetricsInterface interface {
	Summary(ctx context.Context, eventID string, since time.Time) (*metrics.SearchSummary, error)
}

// TextRegionDetector boxes printed text such as bib numbers.
type TextRegionDetector interface {
	Detect(img *raster.Image) []domain.TextRegion
}

// Publisher receives corpus changes for live subscribers. Publish must not
// block.
type Publisher interface {
	Publish(eventID string, eventType ws.EventType, data interface{})
}

// MaxMetricsWindow bounds how far back SearchMetrics looks.
const MaxMetricsWindow = 90 * 24 * time.Hour

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)

// PhotoService runs ingestion, search and maintenance over the photo
// analyses of an event. A nil provider means face search is unavailable on
// this server; read-only operations keep working.
type PhotoService struct {
	photoRepo   PhotoRepositoryInterface
	auditRepo   SearchAuditRepositoryInterface
	provider    provider.FaceProvider
	engine      *match.Engine
	textFinder  TextRegionDetector
	auditLog    audit.Logger
	rateLimiter RateLimiterInterface
	searchLimit int
	statsCache  StatsCacheInterface
	statsTTL    time.Duration
	metrics     SearchMetricsInterface
	publishers  []Publisher
	uploadDir   string
	annotateDir string
	logger      *slog.Logger
}

func NewPhotoService(
	photoRepo PhotoRepositoryInterface,
	auditRepo SearchAuditRepositoryInterface,
	faceProvider provider.FaceProvider,
	matchCfg match.Config,
	logger *slog.Logger,
) *PhotoService {
	s := &PhotoService{
		photoRepo: photoRepo,
		auditRepo: auditRepo,
		provider:  faceProvider,
		auditLog:  &audit.NoOpLogger{},
		logger:    logger.With("component", "photo_service"),
	}
	if faceProvider != nil {
		s.engine = match.New(faceProvider, matchCfg, logger)
	}
	return s
}

func (s *PhotoService) WithAuditLogger(l audit.Logger) *PhotoService {
	s.auditLog = l
	return s
}

// WithRateLimiter limits searches per event and client to limit per window.
func (s *PhotoService) WithRateLimiter(rl RateLimiterInterface, limit int) *PhotoService {
	s.rateLimiter = rl
	s.searchLimit = limit
	return s
}

// WithStorage sets where uploaded originals and annotated copies are
// written. An empty directory disables that copy.
func (s *PhotoService) WithStorage(uploadDir, annotateDir string) *PhotoService {
	s.uploadDir = uploadDir
	s.annotateDir = annotateDir
	return s
}

// WithStatsCache caches event statistics for ttl. Ingest and reindex
// invalidate the entries of the event they touch.
func (s *PhotoService) WithStatsCache(c StatsCacheInterface, ttl time.Duration) *PhotoService {
	if ttl > 0 {
		s.statsCache = c
		s.statsTTL = ttl
	}
	return s
}

func (s *PhotoService) WithSearchMetrics(m SearchMetricsInterface) *PhotoService {
	s.metrics = m
	return s
}

// WithTextDetector records text regions for every ingested photo. A nil
// detector leaves them empty.
func (s *PhotoService) WithTextDetector(d TextRegionDetector) *PhotoService {
	if d != nil {
		s.textFinder = d
	}
	return s
}

// WithPublisher adds a receiver of corpus changes.
func (s *PhotoService) WithPublisher(p Publisher) *PhotoService {
	s.publishers = append(s.publishers, p)
	return s
}

func (s *PhotoService) Available() bool {
	return s.provider != nil
}

// Ingest analyses an uploaded photo and records it under eventID. An empty
// photoID gets a generated one. Bytes that do not decode as an image are
// recorded as a photo without faces and the original is not kept.
func (s *PhotoService) Ingest(ctx context.Context, eventID, photoID string, imageBytes []byte) (*domain.PhotoAnalysis, error) {
	if !s.Available() {
		return nil, domain.ErrSearchUnavailable
	}
	if photoID == "" {
		photoID = uuid.NewString()
	}
	if err := validateIDs(eventID, photoID); err != nil {
		return nil, err
	}

	img := s.decode(ctx, eventID, photoID, imageBytes)

	imagePath := ""
	if s.uploadDir != "" && img != nil {
		imagePath = filepath.Join(s.uploadDir, eventID, photoID+extension(img.Format()))
		if err := writeFile(imagePath, imageBytes); err != nil {
			return nil, fmt.Errorf("event %s: store photo %s: %w", eventID, photoID, err)
		}
	}

	return s.ingest(ctx, eventID, photoID, imagePath, img)
}

// IngestFile analyses a photo already on disk. The photo ID is the file
// name without extension and the file is referenced in place.
func (s *PhotoService) IngestFile(ctx context.Context, eventID, path string) (*domain.PhotoAnalysis, error) {
	if !s.Available() {
		return nil, domain.ErrSearchUnavailable
	}
	photoID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	if err := validateIDs(eventID, photoID); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("event %s: read photo %s: %w", eventID, photoID, err)
	}

	return s.ingest(ctx, eventID, photoID, path, s.decode(ctx, eventID, photoID, data))
}

func (s *PhotoService) ingest(ctx context.Context, eventID, photoID, imagePath string, img *raster.Image) (*domain.PhotoAnalysis, error) {
	faces, descriptors, err := provider.Analyze(ctx, s.provider, img)
	if err != nil {
		return nil, fmt.Errorf("event %s: analyze photo %s: %w", eventID, photoID, err)
	}

	texts := []domain.TextRegion{}
	if s.textFinder != nil && img != nil {
		texts = s.textFinder.Detect(img)
	}

	analysis := &domain.PhotoAnalysis{
		EventID:           eventID,
		PhotoID:           photoID,
		ImagePath:         imagePath,
		Faces:             faces,
		TextRegions:       texts,
		Descriptors:       descriptors,
		DescriptorVersion: s.provider.DescriptorVersion(),
	}

	if err := s.photoRepo.Create(ctx, analysis); err != nil {
		s.logAudit(ctx, audit.Event{
			EventID:   eventID,
			EventType: audit.EventPhotoIngested,
			PhotoID:   photoID,
			Error:     err.Error(),
		})
		return nil, err
	}

	if len(faces)+len(texts) > 0 && s.annotateDir != "" {
		dst := filepath.Join(s.annotateDir, eventID, photoID+".jpg")
		if err := annotate.Save(img, dst, annotate.Faces(faces), annotate.Texts(texts)); err != nil {
			s.logger.WarnContext(ctx, "annotated copy not written",
				"event_id", eventID,
				"photo_id", photoID,
				"error", err,
			)
		}
	}

	s.logAudit(ctx, audit.Event{
		EventID:   eventID,
		EventType: audit.EventPhotoIngested,
		PhotoID:   photoID,
		Success:   true,
		Metadata: map[string]string{
			"faces_detected":     strconv.Itoa(analysis.FacesDetected()),
			"faces_described":    strconv.Itoa(analysis.DescriptorCount()),
			"text_regions":       strconv.Itoa(analysis.TextRegionsDetected()),
			"descriptor_version": analysis.DescriptorVersion,
		},
	})

	s.invalidateStats(ctx, eventID)
	s.publish(eventID, ws.EventPhotoIngested, map[string]interface{}{
		"photo_id":       photoID,
		"faces_detected": analysis.FacesDetected(),
		"text_regions":   analysis.TextRegionsDetected(),
	})

	return analysis, nil
}

// Search finds the photos of eventID that contain the first face of the
// query image. A nil threshold uses the configured default. An unreadable
// query image finds no face.
func (s *PhotoService) Search(ctx context.Context, eventID string, imageBytes []byte, threshold *float64, clientIP string) (*domain.SearchResult, error) {
	start := time.Now()

	if !s.Available() {
		return nil, domain.ErrSearchUnavailable
	}
	if !identifierPattern.MatchString(eventID) {
		return nil, domain.ErrInvalidCorpus
	}

	if s.rateLimiter != nil {
		err := s.rateLimiter.Allow(ctx, ratelimit.SearchKey(eventID, clientIP), s.searchLimit)
		if errors.Is(err, domain.ErrSearchRateLimitExceeded) {
			return nil, err
		}
		if err != nil {
			s.logger.WarnContext(ctx, "rate limiter unavailable, allowing search",
				"event_id", eventID,
				"error", err,
			)
		}
	}

	t := s.engine.Threshold()
	if threshold != nil {
		t = *threshold
	}

	img := s.decode(ctx, eventID, "", imageBytes)

	corpus, err := s.photoRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("event %s: load corpus: %w", eventID, err)
	}

	res, err := s.engine.Search(ctx, img, corpus, t)
	if err != nil {
		return nil, err
	}

	result := &domain.SearchResult{
		SearchID:      uuid.New(),
		EventID:       eventID,
		Outcome:       res.Outcome,
		Message:       res.Outcome.Message(),
		Matches:       res.Matches,
		Threshold:     res.Threshold,
		PhotosScanned: res.Scanned,
		QueryFaces:    res.QueryFaces,
		LatencyMs:     time.Since(start).Milliseconds(),
	}

	s.recordSearch(ctx, result, clientIP)

	return result, nil
}

// recordSearch writes the audit row and log event. Failures are logged;
// the search result stands.
func (s *PhotoService) recordSearch(ctx context.Context, result *domain.SearchResult, clientIP string) {
	entry := &domain.SearchAudit{
		ID:           result.SearchID,
		EventID:      result.EventID,
		Outcome:      result.Outcome,
		ResultsCount: len(result.Matches),
		Threshold:    result.Threshold,
		LatencyMs:    result.LatencyMs,
		ClientIP:     clientIP,
	}
	if len(result.Matches) > 0 {
		top := result.Matches[0]
		entry.TopMatchPhotoID = &top.PhotoID
		entry.TopMatchSimilarity = &top.Similarity
	}

	if s.auditRepo != nil {
		if err := s.auditRepo.Create(ctx, entry); err != nil {
			s.logger.ErrorContext(ctx, "search audit not stored",
				"search_id", result.SearchID,
				"error", err,
			)
		}
	}

	s.logAudit(ctx, audit.Event{
		EventID:   result.EventID,
		EventType: audit.EventFaceSearched,
		Success:   result.Outcome == domain.OutcomeMatched || result.Outcome == domain.OutcomeNoMatches,
		IPAddress: clientIP,
		Metadata: map[string]string{
			"search_id": result.SearchID.String(),
			"outcome":   string(result.Outcome),
			"matches":   strconv.Itoa(len(result.Matches)),
		},
	})
}

func (s *PhotoService) Analysis(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error) {
	if err := validateIDs(eventID, photoID); err != nil {
		return nil, err
	}
	return s.photoRepo.GetByPhotoID(ctx, eventID, photoID)
}

// Stats summarises an event. Analyses whose descriptor version differs from
// the active provider's are reported as stale.
func (s *PhotoService) Stats(ctx context.Context, eventID string) (*domain.EventStats, error) {
	if !identifierPattern.MatchString(eventID) {
		return nil, domain.ErrInvalidCorpus
	}
	version := ""
	if s.provider != nil {
		version = s.provider.DescriptorVersion()
	}

	key := cache.StatsKey(eventID, version)
	if s.statsCache != nil {
		var cached domain.EventStats
		err := s.statsCache.GetJSON(ctx, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) && !errors.Is(err, cache.ErrCacheExpired) {
			s.logger.WarnContext(ctx, "stats cache read failed", "event_id", eventID, "error", err)
		}
	}

	stats, err := s.photoRepo.Stats(ctx, eventID, version)
	if err != nil {
		return nil, err
	}

	if s.statsCache != nil {
		if err := s.statsCache.SetJSON(ctx, key, stats, s.statsTTL); err != nil {
			s.logger.WarnContext(ctx, "stats cache write failed", "event_id", eventID, "error", err)
		}
	}
	return stats, nil
}

// SearchMetrics summarises the searches run against eventID during the
// last window.
func (s *PhotoService) SearchMetrics(ctx context.Context, eventID string, window time.Duration) (*metrics.SearchSummary, error) {
	if !identifierPattern.MatchString(eventID) {
		return nil, domain.ErrInvalidCorpus
	}
	if window <= 0 || window > MaxMetricsWindow {
		return nil, domain.ErrValidationFailed.WithError(fmt.Errorf("window %s outside (0, %s]", window, MaxMetricsWindow))
	}
	if s.metrics == nil {
		return nil, domain.ErrInternal.WithError(errors.New("search metrics not configured"))
	}
	return s.metrics.Summary(ctx, eventID, time.Now().Add(-window).UTC())
}

// decode returns nil when data is not a readable image. Callers carry on
// with the nil image, which yields no faces.
func (s *PhotoService) decode(ctx context.Context, eventID, photoID string, data []byte) *raster.Image {
	img, err := raster.Decode(data)
	if err != nil {
		s.logger.WarnContext(ctx, "unreadable image",
			"event_id", eventID,
			"photo_id", photoID,
			"error", err,
		)
		return nil
	}
	return img
}

func (s *PhotoService) invalidateStats(ctx context.Context, eventID string) {
	if s.statsCache == nil {
		return
	}
	if _, err := s.statsCache.DeletePattern(ctx, cache.EventPattern(eventID)); err != nil {
		s.logger.WarnContext(ctx, "stats cache invalidation failed", "event_id", eventID, "error", err)
	}
}

func (s *PhotoService) publish(eventID string, eventType ws.EventType, data interface{}) {
	for _, p := range s.publishers {
		p.Publish(eventID, eventType, data)
	}
}

// Annotate writes a copy of a stored photo with its face and text boxes
// drawn to dst.
func (s *PhotoService) Annotate(ctx context.Context, eventID, photoID, dst string) error {
	analysis, err := s.Analysis(ctx, eventID, photoID)
	if err != nil {
		return err
	}
	if analysis.ImagePath == "" {
		return domain.ErrPhotoNotFound
	}

	img, err := raster.Load(analysis.ImagePath)
	if err != nil {
		return domain.ErrPhotoNotFound.WithError(err)
	}
	return annotate.Save(img, dst, annotate.Faces(analysis.Faces), annotate.Texts(analysis.TextRegions))
}

// ValidEventID reports whether id can name an event.
func ValidEventID(id string) bool {
	return identifierPattern.MatchString(id)
}

func validateIDs(eventID, photoID string) error {
	if !identifierPattern.MatchString(eventID) {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("invalid event id %q", eventID))
	}
	if !identifierPattern.MatchString(photoID) {
		return domain.ErrValidationFailed.WithError(fmt.Errorf("invalid photo id %q", photoID))
	}
	return nil
}

func extension(format string) string {
	switch format {
	case "jpeg", "":
		return ".jpg"
	default:
		return "." + format
	}
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *PhotoService) logAudit(ctx context.Context, event audit.Event) {
	if s.provider != nil {
		event.Provider = s.provider.Name()
	}
	if err := s.auditLog.Log(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit event dropped", "error", err)
	}
}
