package domain

import (
	"image"
	"time"

	"github.com/google/uuid"
)

// FaceRegion is an axis-aligned face bounding box in source-image pixels.
//
// Confidence is a fixed value reported by the detector, not a probability.
type FaceRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Confidence float64 `json:"confidence"`
}

func (r FaceRegion) Area() int {
	return r.Width * r.Height
}

func (r FaceRegion) Center() (float64, float64) {
	return float64(r.X) + float64(r.Width)/2, float64(r.Y) + float64(r.Height)/2
}

func (r FaceRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Within reports whether the region is non-empty and fully inside bounds.
func (r FaceRegion) Within(bounds image.Rectangle) bool {
	if r.Width <= 0 || r.Height <= 0 {
		return false
	}
	return r.Rect().In(bounds)
}

// TextRegion is an edge cluster shaped like printed text, typically a race
// bib number. Area is the area enclosed by its outer contour.
type TextRegion struct {
	X          int     `json:"x"`
	Y          int     `json:"y"`
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	Area       float64 `json:"area"`
	Confidence float64 `json:"confidence"`
}

func (r TextRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Descriptor is the fixed-length feature vector of one face region.
// A nil Descriptor means no descriptor is available for that face.
type Descriptor []float32

// PhotoAnalysis is the per-photo record written once at ingestion.
// Descriptors[i] belongs to Faces[i]; entries may be nil.
type PhotoAnalysis struct {
	ID                uuid.UUID    `json:"id"`
	EventID           string       `json:"event_id"`
	PhotoID           string       `json:"photo_id"`
	ImagePath         string       `json:"image_path"`
	Faces             []FaceRegion `json:"faces"`
	TextRegions       []TextRegion `json:"text_regions"`
	Descriptors       []Descriptor `json:"-"`
	DescriptorVersion string       `json:"descriptor_version"`
	ProcessedAt       time.Time    `json:"processed_at"`
}

func (a *PhotoAnalysis) FacesDetected() int {
	return len(a.Faces)
}

func (a *PhotoAnalysis) TextRegionsDetected() int {
	return len(a.TextRegions)
}

// DescriptorAt returns the descriptor of the i-th face or nil.
func (a *PhotoAnalysis) DescriptorAt(i int) Descriptor {
	if i < 0 || i >= len(a.Descriptors) {
		return nil
	}
	return a.Descriptors[i]
}

// DescriptorCount counts faces with a usable descriptor.
func (a *PhotoAnalysis) DescriptorCount() int {
	n := 0
	for _, d := range a.Descriptors {
		if len(d) > 0 {
			n++
		}
	}
	return n
}

// EventStats summarizes the analyses stored for one event.
type EventStats struct {
	EventID           string `json:"event_id"`
	DescriptorVersion string `json:"descriptor_version"`
	PhotosAnalyzed    int    `json:"photos_analyzed"`
	FacesDetected     int    `json:"faces_detected"`
	FacesDescribed    int    `json:"faces_with_descriptor"`
	StaleAnalyses     int    `json:"stale_analyses"`
}
