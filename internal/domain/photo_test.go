package domain

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFaceRegion_Within(t *testing.T) {
	bounds := image.Rect(0, 0, 200, 100)

	tests := []struct {
		name   string
		region FaceRegion
		want   bool
	}{
		{"inside", FaceRegion{X: 10, Y: 10, Width: 50, Height: 50}, true},
		{"touches right and bottom edge", FaceRegion{X: 150, Y: 50, Width: 50, Height: 50}, true},
		{"past right edge", FaceRegion{X: 160, Y: 10, Width: 50, Height: 50}, false},
		{"negative origin", FaceRegion{X: -1, Y: 0, Width: 10, Height: 10}, false},
		{"zero width", FaceRegion{X: 0, Y: 0, Width: 0, Height: 10}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.region.Within(bounds))
		})
	}
}

func TestFaceRegion_Center(t *testing.T) {
	cx, cy := FaceRegion{X: 10, Y: 20, Width: 5, Height: 8}.Center()
	assert.Equal(t, 12.5, cx)
	assert.Equal(t, 24.0, cy)
}

func TestPhotoAnalysis_Descriptors(t *testing.T) {
	a := &PhotoAnalysis{
		Faces:       []FaceRegion{{Width: 1, Height: 1}, {Width: 2, Height: 2}, {Width: 3, Height: 3}},
		Descriptors: []Descriptor{{1, 2}, nil},
	}

	assert.Equal(t, 3, a.FacesDetected())
	assert.Equal(t, 1, a.DescriptorCount())
	assert.Equal(t, Descriptor{1, 2}, a.DescriptorAt(0))
	assert.Nil(t, a.DescriptorAt(1))
	assert.Nil(t, a.DescriptorAt(2))
	assert.Nil(t, a.DescriptorAt(-1))
}

func TestSimilarityBand(t *testing.T) {
	assert.Equal(t, BandHigh, SimilarityBand(0.8))
	assert.Equal(t, BandMedium, SimilarityBand(0.6))
	assert.Equal(t, BandMedium, SimilarityBand(0.79))
	assert.Equal(t, BandLow, SimilarityBand(0.59))
}

func TestSearchOutcome_Message(t *testing.T) {
	assert.Equal(t, MessageNoFaceInQuery, OutcomeNoFaceInQuery.Message())
	assert.Equal(t, MessageQueryUnprocessable, OutcomeQueryUnprocessable.Message())
	assert.Equal(t, MessageNoMatches, OutcomeNoMatches.Message())
	assert.Empty(t, OutcomeMatched.Message())
}
