package match

import (
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

const testVersion = "test/v1"

// MockFaceProvider mocks detection and extraction. CompareDescriptors reads
// the score straight from the first value of the stored descriptor.
type MockFaceProvider struct {
	mock.Mock
}

func (m *MockFaceProvider) Name() string { return "mock" }

func (m *MockFaceProvider) DetectFaces(ctx context.Context, img *raster.Image) ([]domain.FaceRegion, error) {
	args := m.Called(ctx, img)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.FaceRegion), args.Error(1)
}

func (m *MockFaceProvider) ExtractDescriptor(ctx context.Context, img *raster.Image, face domain.FaceRegion) (domain.Descriptor, error) {
	args := m.Called(ctx, img, face)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(domain.Descriptor), args.Error(1)
}

func (m *MockFaceProvider) CompareDescriptors(a, b domain.Descriptor) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	return float64(b[0])
}

func (m *MockFaceProvider) DescriptorVersion() string { return testVersion }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func photo(id string, scores ...float32) *domain.PhotoAnalysis {
	a := &domain.PhotoAnalysis{PhotoID: id, DescriptorVersion: testVersion}
	for i, s := range scores {
		a.Faces = append(a.Faces, domain.FaceRegion{X: i * 10, Y: 0, Width: 10, Height: 10, Confidence: 0.95})
		a.Descriptors = append(a.Descriptors, domain.Descriptor{s})
	}
	return a
}

func ids(matches []domain.MatchResult) []string {
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.PhotoID
	}
	return out
}

var query = domain.Descriptor{1}

func TestEngine_SearchDescriptor(t *testing.T) {
	withoutDescriptor := &domain.PhotoAnalysis{
		PhotoID: "C",
		Faces:   []domain.FaceRegion{{Width: 10, Height: 10}},
	}

	tests := []struct {
		name        string
		corpus      []*domain.PhotoAnalysis
		threshold   float64
		wantIDs     []string
		wantOutcome domain.SearchOutcome
	}{
		{
			name:        "identical face matches, weak face and undescribed photo excluded",
			corpus:      []*domain.PhotoAnalysis{photo("A", 1.0), photo("B", 0.5), withoutDescriptor},
			threshold:   0.6,
			wantIDs:     []string{"A"},
			wantOutcome: domain.OutcomeMatched,
		},
		{
			name:        "threshold is inclusive",
			corpus:      []*domain.PhotoAnalysis{photo("A", 0.6), photo("B", 0.59)},
			threshold:   0.6,
			wantIDs:     []string{"A"},
			wantOutcome: domain.OutcomeMatched,
		},
		{
			name:        "sorted by descending score",
			corpus:      []*domain.PhotoAnalysis{photo("A", 0.7), photo("B", 0.95), photo("C", 0.8)},
			threshold:   0.6,
			wantIDs:     []string{"B", "C", "A"},
			wantOutcome: domain.OutcomeMatched,
		},
		{
			name:        "ties keep corpus order",
			corpus:      []*domain.PhotoAnalysis{photo("P1", 0.8), photo("P2", 0.9), photo("P3", 0.8), photo("P4", 0.8)},
			threshold:   0.6,
			wantIDs:     []string{"P2", "P1", "P3", "P4"},
			wantOutcome: domain.OutcomeMatched,
		},
		{
			name:        "no qualifying photo",
			corpus:      []*domain.PhotoAnalysis{photo("A", 0.2), photo("B")},
			threshold:   0.6,
			wantIDs:     []string{},
			wantOutcome: domain.OutcomeNoMatches,
		},
		{
			name:        "zero threshold still skips photos without descriptors",
			corpus:      []*domain.PhotoAnalysis{withoutDescriptor, nil, photo("A", 0)},
			threshold:   0,
			wantIDs:     []string{"A"},
			wantOutcome: domain.OutcomeMatched,
		},
		{
			name:        "empty corpus",
			corpus:      nil,
			threshold:   0.6,
			wantIDs:     []string{},
			wantOutcome: domain.OutcomeNoMatches,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&MockFaceProvider{}, DefaultConfig(), quietLogger())

			res, err := e.SearchDescriptor(context.Background(), query, tt.corpus, tt.threshold)
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantIDs, ids(res.Matches))
			assert.Equal(t, len(tt.corpus), res.Scanned)
			assert.NotNil(t, res.Matches)
		})
	}
}

func TestEngine_BestFacePerPhoto(t *testing.T) {
	e := New(&MockFaceProvider{}, DefaultConfig(), quietLogger())
	group := photo("G", 0.3, 0.9, 0.7)
	group.Descriptors[0] = nil

	res, err := e.SearchDescriptor(context.Background(), query, []*domain.PhotoAnalysis{group}, 0.6)
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)

	m := res.Matches[0]
	assert.InDelta(t, 0.9, m.Similarity, 1e-6)
	assert.Equal(t, group.Faces[1], m.Face)
	assert.Equal(t, domain.BandHigh, m.Band)
}

func TestEngine_RankingStableAcrossRuns(t *testing.T) {
	corpus := make([]*domain.PhotoAnalysis, 0, 200)
	for i := 0; i < 200; i++ {
		corpus = append(corpus, photo(fmt.Sprintf("p%03d", i), float32(60+i%7)/100))
	}

	e := New(&MockFaceProvider{}, Config{Threshold: 0.6, Workers: 8}, quietLogger())
	first, err := e.SearchDescriptor(context.Background(), query, corpus, 0.6)
	require.NoError(t, err)

	for run := 0; run < 5; run++ {
		again, err := e.SearchDescriptor(context.Background(), query, corpus, 0.6)
		require.NoError(t, err)
		assert.Equal(t, ids(first.Matches), ids(again.Matches))
	}
}

func TestEngine_MaxResults(t *testing.T) {
	corpus := []*domain.PhotoAnalysis{
		photo("A", 0.7), photo("B", 0.95), photo("C", 0.8), photo("D", 0.5), photo("E", 0.9),
	}

	tests := []struct {
		name string
		max  int
		want []string
	}{
		{name: "keeps the best", max: 2, want: []string{"B", "E"}},
		{name: "cap above match count", max: 10, want: []string{"B", "E", "C", "A"}},
		{name: "zero keeps all", max: 0, want: []string{"B", "E", "C", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(&MockFaceProvider{}, Config{Threshold: 0.6, Workers: 2, MaxResults: tt.max}, quietLogger())
			res, err := e.SearchDescriptor(context.Background(), query, corpus, 0.6)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(res.Matches))
			assert.Equal(t, len(corpus), res.Scanned)
		})
	}
}

func TestEngine_InvalidThreshold(t *testing.T) {
	e := New(&MockFaceProvider{}, DefaultConfig(), quietLogger())

	for _, threshold := range []float64{-0.1, 1.01} {
		_, err := e.SearchDescriptor(context.Background(), query, nil, threshold)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold)

		_, err = e.Search(context.Background(), nil, nil, threshold)
		assert.ErrorIs(t, err, domain.ErrInvalidThreshold)
	}
}

func TestEngine_StrictVersion(t *testing.T) {
	stale := photo("old", 0.9)
	stale.DescriptorVersion = "v0/s64/b16"
	corpus := []*domain.PhotoAnalysis{stale, photo("new", 0.8)}

	lenient := New(&MockFaceProvider{}, DefaultConfig(), quietLogger())
	res, err := lenient.SearchDescriptor(context.Background(), query, corpus, 0.6)
	require.NoError(t, err)
	assert.Equal(t, []string{"old", "new"}, ids(res.Matches))

	strict := New(&MockFaceProvider{}, Config{Threshold: 0.6, Workers: 2, StrictVersion: true}, quietLogger())
	res, err = strict.SearchDescriptor(context.Background(), query, corpus, 0.6)
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, ids(res.Matches))
}

func TestEngine_Cancelled(t *testing.T) {
	e := New(&MockFaceProvider{}, DefaultConfig(), quietLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.SearchDescriptor(ctx, query, []*domain.PhotoAnalysis{photo("A", 1)}, 0.6)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_Search(t *testing.T) {
	img, err := raster.FromImage(image.NewGray(image.Rect(0, 0, 10, 10)))
	require.NoError(t, err)

	first := domain.FaceRegion{X: 1, Y: 1, Width: 4, Height: 4, Confidence: 0.95}
	second := domain.FaceRegion{X: 5, Y: 5, Width: 4, Height: 4, Confidence: 0.95}
	corpus := []*domain.PhotoAnalysis{photo("A", 0.9), photo("B", 0.1)}

	tests := []struct {
		name        string
		setupMocks  func(*MockFaceProvider)
		wantOutcome domain.SearchOutcome
		wantIDs     []string
		wantErr     bool
	}{
		{
			name: "matches using the first query face",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, img).Return([]domain.FaceRegion{first, second}, nil)
				fp.On("ExtractDescriptor", mock.Anything, img, first).Return(query, nil)
			},
			wantOutcome: domain.OutcomeMatched,
			wantIDs:     []string{"A"},
		},
		{
			name: "no face in query",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, img).Return([]domain.FaceRegion{}, nil)
			},
			wantOutcome: domain.OutcomeNoFaceInQuery,
			wantIDs:     []string{},
		},
		{
			name: "query face cannot be described",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, img).Return([]domain.FaceRegion{first}, nil)
				fp.On("ExtractDescriptor", mock.Anything, img, first).Return(nil, nil)
			},
			wantOutcome: domain.OutcomeQueryUnprocessable,
			wantIDs:     []string{},
		},
		{
			name: "detector failure propagates",
			setupMocks: func(fp *MockFaceProvider) {
				fp.On("DetectFaces", mock.Anything, img).Return(nil, errors.New("boom"))
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fp := &MockFaceProvider{}
			tt.setupMocks(fp)
			e := New(fp, DefaultConfig(), quietLogger())

			res, err := e.Search(context.Background(), img, corpus, 0.6)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOutcome, res.Outcome)
			assert.Equal(t, tt.wantIDs, ids(res.Matches))
			fp.AssertExpectations(t)
		})
	}
}
