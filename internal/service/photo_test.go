package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/photocap/internal/audit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/match"
	mockprovider "github.com/saturnino-fabrica-de-software/photocap/internal/provider/mock"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/detect"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

type MockPhotoRepository struct {
	mock.Mock
}

func (m *MockPhotoRepository) Create(ctx context.Context, analysis *domain.PhotoAnalysis) error {
	args := m.Called(ctx, analysis)
	return args.Error(0)
}

func (m *MockPhotoRepository) GetByPhotoID(ctx context.Context, eventID, photoID string) (*domain.PhotoAnalysis, error) {
	args := m.Called(ctx, eventID, photoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PhotoAnalysis), args.Error(1)
}

func (m *MockPhotoRepository) ListByEvent(ctx context.Context, eventID string) ([]*domain.PhotoAnalysis, error) {
	args := m.Called(ctx, eventID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.PhotoAnalysis), args.Error(1)
}

func (m *MockPhotoRepository) ReplaceDescriptors(ctx context.Context, id uuid.UUID, descriptors []domain.Descriptor, version string) error {
	args := m.Called(ctx, id, descriptors, version)
	return args.Error(0)
}

func (m *MockPhotoRepository) Stats(ctx context.Context, eventID, currentVersion string) (*domain.EventStats, error) {
	args := m.Called(ctx, eventID, currentVersion)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.EventStats), args.Error(1)
}

type MockSearchAuditRepository struct {
	mock.Mock
}

func (m *MockSearchAuditRepository) Create(ctx context.Context, a *domain.SearchAudit) error {
	args := m.Called(ctx, a)
	return args.Error(0)
}

type MockRateLimiter struct {
	mock.Mock
}

func (m *MockRateLimiter) Allow(ctx context.Context, key string, limit int) error {
	args := m.Called(ctx, key, limit)
	return args.Error(0)
}

type recordingAudit struct {
	events []audit.Event
}

func (r *recordingAudit) Log(_ context.Context, e audit.Event) error {
	r.events = append(r.events, e)
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// pngBytes encodes a size x size image whose pixels depend on seed.
func pngBytes(t *testing.T, size int, seed uint8) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x*4) + seed, G: uint8(y*4) ^ seed, B: seed, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func newTestService(repo *MockPhotoRepository, auditRepo *MockSearchAuditRepository) *PhotoService {
	var audits SearchAuditRepositoryInterface
	if auditRepo != nil {
		audits = auditRepo
	}
	return NewPhotoService(repo, audits, mockprovider.New(), match.DefaultConfig(), quietLogger())
}

func TestPhotoService_Ingest(t *testing.T) {
	tests := []struct {
		name      string
		eventID   string
		photoID   string
		image     func(t *testing.T) []byte
		setupMock func(*MockPhotoRepository)
		wantErr   error
		wantFaces int
	}{
		{
			name:    "stores analysis with one descriptor per face",
			eventID: "gala-2024",
			photoID: "IMG_0001",
			image:   func(t *testing.T) []byte { return pngBytes(t, 64, 1) },
			setupMock: func(r *MockPhotoRepository) {
				r.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.PhotoAnalysis) bool {
					return a.EventID == "gala-2024" && a.PhotoID == "IMG_0001" &&
						len(a.Descriptors) == len(a.Faces) &&
						a.DescriptorVersion == mockprovider.Version
				})).Return(nil)
			},
			wantFaces: 1,
		},
		{
			name:    "photo without faces is still recorded",
			eventID: "gala-2024",
			photoID: "tiny",
			image:   func(t *testing.T) []byte { return pngBytes(t, 16, 2) },
			setupMock: func(r *MockPhotoRepository) {
				r.On("Create", mock.Anything, mock.Anything).Return(nil)
			},
			wantFaces: 0,
		},
		{
			name:      "path traversal in photo id",
			eventID:   "gala-2024",
			photoID:   "../etc",
			image:     func(t *testing.T) []byte { return pngBytes(t, 64, 1) },
			setupMock: func(r *MockPhotoRepository) {},
			wantErr:   domain.ErrValidationFailed,
		},
		{
			name:    "already analyzed",
			eventID: "gala-2024",
			photoID: "IMG_0001",
			image:   func(t *testing.T) []byte { return pngBytes(t, 64, 1) },
			setupMock: func(r *MockPhotoRepository) {
				r.On("Create", mock.Anything, mock.Anything).Return(domain.ErrPhotoExists)
			},
			wantErr: domain.ErrPhotoExists,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockPhotoRepository{}
			tt.setupMock(repo)

			dir := t.TempDir()
			svc := newTestService(repo, nil).
				WithStorage(filepath.Join(dir, "originals"), filepath.Join(dir, "processed"))

			got, err := svc.Ingest(context.Background(), tt.eventID, tt.photoID, tt.image(t))

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.wantFaces, got.FacesDetected())
				assert.FileExists(t, got.ImagePath)
				annotated := filepath.Join(dir, "processed", tt.eventID, tt.photoID+".jpg")
				if tt.wantFaces > 0 {
					assert.FileExists(t, annotated)
				} else {
					assert.NoFileExists(t, annotated)
				}
			}

			repo.AssertExpectations(t)
		})
	}
}

func TestPhotoService_Ingest_GeneratesPhotoID(t *testing.T) {
	repo := &MockPhotoRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)

	svc := newTestService(repo, nil)
	got, err := svc.Ingest(context.Background(), "gala", "", pngBytes(t, 64, 3))
	require.NoError(t, err)

	_, err = uuid.Parse(got.PhotoID)
	assert.NoError(t, err)
	assert.Empty(t, got.ImagePath)
}

func TestPhotoService_IngestFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "DSC_0420.png")
	require.NoError(t, os.WriteFile(path, pngBytes(t, 64, 9), 0o644))

	repo := &MockPhotoRepository{}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.PhotoAnalysis) bool {
		return a.PhotoID == "DSC_0420" && a.ImagePath == path
	})).Return(nil)

	rec := &recordingAudit{}
	svc := newTestService(repo, nil).WithAuditLogger(rec)

	got, err := svc.IngestFile(context.Background(), "wedding", path)
	require.NoError(t, err)
	assert.Equal(t, 1, got.DescriptorCount())

	require.Len(t, rec.events, 1)
	assert.Equal(t, audit.EventPhotoIngested, rec.events[0].EventType)
	assert.True(t, rec.events[0].Success)
	assert.Equal(t, mockprovider.Name, rec.events[0].Provider)
	repo.AssertExpectations(t)
}

func TestPhotoService_Unavailable(t *testing.T) {
	svc := NewPhotoService(&MockPhotoRepository{}, nil, nil, match.DefaultConfig(), quietLogger())

	assert.False(t, svc.Available())

	_, err := svc.Ingest(context.Background(), "e", "p", nil)
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)

	_, err = svc.Search(context.Background(), "e", nil, nil, "")
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)

	_, err = svc.Reindex(context.Background(), "e")
	assert.ErrorIs(t, err, domain.ErrSearchUnavailable)
}

// ingested runs the mock provider over an image to build a stored analysis.
func ingested(t *testing.T, photoID string, img []byte) *domain.PhotoAnalysis {
	t.Helper()
	repo := &MockPhotoRepository{}
	repo.On("Create", mock.Anything, mock.Anything).Return(nil)
	a, err := newTestService(repo, nil).Ingest(context.Background(), "gala", photoID, img)
	require.NoError(t, err)
	return a
}

func TestPhotoService_Search(t *testing.T) {
	queryImg := pngBytes(t, 64, 5)
	same := ingested(t, "same", queryImg)
	other := ingested(t, "other", pngBytes(t, 64, 200))
	faceless := ingested(t, "faceless", pngBytes(t, 16, 5))
	corpus := []*domain.PhotoAnalysis{other, faceless, same}

	high := 0.999

	tests := []struct {
		name        string
		query       []byte
		threshold   *float64
		corpus      []*domain.PhotoAnalysis
		wantOutcome domain.SearchOutcome
		wantMessage string
		wantFirst   string
	}{
		{
			name:        "identical photo ranks first",
			query:       queryImg,
			corpus:      corpus,
			wantOutcome: domain.OutcomeMatched,
			wantFirst:   "same",
		},
		{
			name:        "high threshold keeps only the identical photo",
			query:       queryImg,
			threshold:   &high,
			corpus:      corpus,
			wantOutcome: domain.OutcomeMatched,
			wantFirst:   "same",
		},
		{
			name:        "no face in query",
			query:       pngBytes(t, 16, 5),
			corpus:      corpus,
			wantOutcome: domain.OutcomeNoFaceInQuery,
			wantMessage: domain.MessageNoFaceInQuery,
		},
		{
			name:        "empty corpus",
			query:       queryImg,
			corpus:      []*domain.PhotoAnalysis{},
			wantOutcome: domain.OutcomeNoMatches,
			wantMessage: domain.MessageNoMatches,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockPhotoRepository{}
			repo.On("ListByEvent", mock.Anything, "gala").Return(tt.corpus, nil)

			auditRepo := &MockSearchAuditRepository{}
			auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.SearchAudit) bool {
				return a.EventID == "gala" && a.Outcome == tt.wantOutcome && a.ClientIP == "10.0.0.1"
			})).Return(nil)

			svc := newTestService(repo, auditRepo)
			got, err := svc.Search(context.Background(), "gala", tt.query, tt.threshold, "10.0.0.1")
			require.NoError(t, err)

			assert.Equal(t, tt.wantOutcome, got.Outcome)
			assert.NotEqual(t, uuid.Nil, got.SearchID)
			assert.NotNil(t, got.Matches)
			if tt.wantMessage != "" {
				assert.Equal(t, tt.wantMessage, got.Message)
			}
			if tt.wantFirst != "" {
				require.NotEmpty(t, got.Matches)
				assert.Equal(t, tt.wantFirst, got.Matches[0].PhotoID)
				assert.InDelta(t, 1.0, got.Matches[0].Similarity, 1e-9)
				assert.Equal(t, domain.BandHigh, got.Matches[0].Band)
			}
			for i := 1; i < len(got.Matches); i++ {
				assert.GreaterOrEqual(t, got.Matches[i-1].Similarity, got.Matches[i].Similarity)
			}
			for _, m := range got.Matches {
				assert.NotEqual(t, "faceless", m.PhotoID)
			}
			if tt.threshold != nil {
				assert.Len(t, got.Matches, 1)
			}

			repo.AssertExpectations(t)
			auditRepo.AssertExpectations(t)
		})
	}
}

func TestPhotoService_Search_Errors(t *testing.T) {
	bad := 1.5

	t.Run("invalid threshold", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("ListByEvent", mock.Anything, "gala").Return([]*domain.PhotoAnalysis{}, nil)

		_, err := newTestService(repo, nil).Search(context.Background(), "gala", pngBytes(t, 64, 1), &bad, "")
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
	})

	t.Run("invalid event", func(t *testing.T) {
		_, err := newTestService(&MockPhotoRepository{}, nil).Search(context.Background(), "", pngBytes(t, 64, 1), nil, "")
		assert.ErrorIs(t, err, domain.ErrInvalidCorpus)
	})

	t.Run("corpus load failure", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("ListByEvent", mock.Anything, "gala").Return(nil, errors.New("db down"))

		_, err := newTestService(repo, nil).Search(context.Background(), "gala", pngBytes(t, 64, 1), nil, "")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "load corpus")
	})

	t.Run("audit failure does not fail search", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("ListByEvent", mock.Anything, "gala").Return([]*domain.PhotoAnalysis{}, nil)
		auditRepo := &MockSearchAuditRepository{}
		auditRepo.On("Create", mock.Anything, mock.Anything).Return(errors.New("insert failed"))

		got, err := newTestService(repo, auditRepo).Search(context.Background(), "gala", pngBytes(t, 64, 1), nil, "")
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeNoMatches, got.Outcome)
	})
}

func TestPhotoService_Search_RateLimiting(t *testing.T) {
	tests := []struct {
		name       string
		limiterErr error
		wantErr    error
	}{
		{name: "rate limit allows request"},
		{name: "rate limit blocks request", limiterErr: domain.ErrSearchRateLimitExceeded.WithError(errors.New("31/30")), wantErr: domain.ErrSearchRateLimitExceeded},
		{name: "limiter failure allows request", limiterErr: errors.New("connection refused")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := &MockRateLimiter{}
			rl.On("Allow", mock.Anything, "search_rate:gala:10.0.0.9", 30).Return(tt.limiterErr)

			repo := &MockPhotoRepository{}
			repo.On("ListByEvent", mock.Anything, "gala").Return([]*domain.PhotoAnalysis{}, nil).Maybe()

			svc := newTestService(repo, nil).WithRateLimiter(rl, 30)
			_, err := svc.Search(context.Background(), "gala", pngBytes(t, 64, 1), nil, "10.0.0.9")

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				repo.AssertNotCalled(t, "ListByEvent", mock.Anything, mock.Anything)
			} else {
				assert.NoError(t, err)
			}
			rl.AssertExpectations(t)
		})
	}
}

func TestPhotoService_Stats(t *testing.T) {
	repo := &MockPhotoRepository{}
	want := &domain.EventStats{EventID: "gala", PhotosAnalyzed: 3}
	repo.On("Stats", mock.Anything, "gala", mockprovider.Version).Return(want, nil)

	got, err := newTestService(repo, nil).Stats(context.Background(), "gala")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = newTestService(repo, nil).Stats(context.Background(), "bad/id")
	assert.ErrorIs(t, err, domain.ErrInvalidCorpus)
}

func TestPhotoService_Annotate(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "p.png")
	require.NoError(t, os.WriteFile(src, pngBytes(t, 64, 4), 0o644))

	repo := &MockPhotoRepository{}
	repo.On("GetByPhotoID", mock.Anything, "gala", "p").Return(&domain.PhotoAnalysis{
		PhotoID:   "p",
		ImagePath: src,
		Faces:     []domain.FaceRegion{{X: 8, Y: 8, Width: 40, Height: 40}},
	}, nil)
	repo.On("GetByPhotoID", mock.Anything, "gala", "missing").Return(nil, domain.ErrAnalysisNotFound)

	svc := newTestService(repo, nil)

	dst := filepath.Join(dir, "out", "p.png")
	require.NoError(t, svc.Annotate(context.Background(), "gala", "p", dst))
	assert.FileExists(t, dst)

	err := svc.Annotate(context.Background(), "gala", "missing", dst)
	assert.ErrorIs(t, err, domain.ErrAnalysisNotFound)
}

func TestPhotoService_Search_UnreadableQuery(t *testing.T) {
	repo := &MockPhotoRepository{}
	repo.On("ListByEvent", mock.Anything, "gala").Return([]*domain.PhotoAnalysis{
		{PhotoID: "IMG_1", Faces: []domain.FaceRegion{{Width: 51, Height: 51}}, Descriptors: []domain.Descriptor{{1, 0}}},
	}, nil)
	auditRepo := &MockSearchAuditRepository{}
	auditRepo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.SearchAudit) bool {
		return a.Outcome == domain.OutcomeNoFaceInQuery && a.ResultsCount == 0
	})).Return(nil)

	got, err := newTestService(repo, auditRepo).Search(context.Background(), "gala", []byte("not an image"), nil, "")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeNoFaceInQuery, got.Outcome)
	assert.Equal(t, domain.OutcomeNoFaceInQuery.Message(), got.Message)
	assert.Empty(t, got.Matches)
	auditRepo.AssertExpectations(t)
}

func TestPhotoService_Ingest_UnreadableImage(t *testing.T) {
	repo := &MockPhotoRepository{}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.PhotoAnalysis) bool {
		return a.PhotoID == "broken" && len(a.Faces) == 0 && a.ImagePath == "" &&
			a.DescriptorVersion == mockprovider.Version
	})).Return(nil)

	dir := t.TempDir()
	svc := newTestService(repo, nil).
		WithStorage(filepath.Join(dir, "originals"), filepath.Join(dir, "processed"))

	got, err := svc.Ingest(context.Background(), "gala-2024", "broken", []byte("not an image"))
	require.NoError(t, err)

	assert.Equal(t, 0, got.FacesDetected())
	assert.NoDirExists(t, filepath.Join(dir, "originals", "gala-2024"))
	repo.AssertExpectations(t)
}

func TestPhotoService_IngestFile_Unreadable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.jpg")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0o644))

	repo := &MockPhotoRepository{}
	repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.PhotoAnalysis) bool {
		return a.PhotoID == "notes" && len(a.Faces) == 0 && a.ImagePath == path
	})).Return(nil)

	got, err := newTestService(repo, nil).IngestFile(context.Background(), "gala", path)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FacesDetected())

	_, err = newTestService(&MockPhotoRepository{}, nil).IngestFile(context.Background(), "gala", filepath.Join(dir, "gone.jpg"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read photo")
	repo.AssertExpectations(t)
}

type stubTextDetector struct {
	regions []domain.TextRegion
	calls   int
}

func (d *stubTextDetector) Detect(*raster.Image) []domain.TextRegion {
	d.calls++
	return d.regions
}

// bibPNG encodes a white 120x90 image with one dark block shaped like a bib
// number.
func bibPNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, 120, 90))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	for y := 30; y < 54; y++ {
		for x := 20; x < 80; x++ {
			img.SetGray(x, y, color.Gray{Y: 0})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestPhotoService_Ingest_TextRegions(t *testing.T) {
	bib := domain.TextRegion{X: 19, Y: 29, Width: 61, Height: 25, Area: 1429, Confidence: detect.TextConfidence}

	t.Run("records bib regions and boxes them", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("Create", mock.Anything, mock.MatchedBy(func(a *domain.PhotoAnalysis) bool {
			return a.PhotoID == "bib" && len(a.TextRegions) == 1 && a.TextRegions[0] == bib
		})).Return(nil)

		dir := t.TempDir()
		rec := &recordingAudit{}
		svc := newTestService(repo, nil).
			WithStorage("", filepath.Join(dir, "processed")).
			WithTextDetector(detect.NewTextDetector(detect.DefaultTextConfig(), quietLogger())).
			WithAuditLogger(rec)

		got, err := svc.Ingest(context.Background(), "marathon", "bib", bibPNG(t))
		require.NoError(t, err)

		assert.Equal(t, 1, got.TextRegionsDetected())
		assert.FileExists(t, filepath.Join(dir, "processed", "marathon", "bib.jpg"))
		require.Len(t, rec.events, 1)
		assert.Equal(t, "1", rec.events[0].Metadata["text_regions"])
		repo.AssertExpectations(t)
	})

	t.Run("empty without a detector", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		got, err := newTestService(repo, nil).WithTextDetector(nil).Ingest(context.Background(), "marathon", "bib", bibPNG(t))
		require.NoError(t, err)
		assert.NotNil(t, got.TextRegions)
		assert.Empty(t, got.TextRegions)
	})

	t.Run("unreadable image is not scanned", func(t *testing.T) {
		repo := &MockPhotoRepository{}
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)
		stub := &stubTextDetector{regions: []domain.TextRegion{bib}}

		got, err := newTestService(repo, nil).WithTextDetector(stub).Ingest(context.Background(), "marathon", "broken", []byte("not an image"))
		require.NoError(t, err)
		assert.Zero(t, stub.calls)
		assert.Empty(t, got.TextRegions)
	})
}

func TestPhotoService_Annotate_TextOnly(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "bib.png")
	require.NoError(t, os.WriteFile(src, bibPNG(t), 0o644))

	repo := &MockPhotoRepository{}
	repo.On("GetByPhotoID", mock.Anything, "marathon", "bib").Return(&domain.PhotoAnalysis{
		PhotoID:     "bib",
		ImagePath:   src,
		TextRegions: []domain.TextRegion{{X: 19, Y: 29, Width: 61, Height: 25}},
	}, nil)

	dst := filepath.Join(dir, "out", "bib.png")
	require.NoError(t, newTestService(repo, nil).Annotate(context.Background(), "marathon", "bib", dst))

	out, err := raster.Load(dst)
	require.NoError(t, err)
	r, g, b, _ := out.Source().At(19, 29).RGBA()
	assert.Equal(t, [3]uint32{0, 0, 0xffff}, [3]uint32{r, g, b})
}
