package domain

import (
	"time"

	"github.com/google/uuid"
)

// SearchOutcome distinguishes the user-visible results of a search.
type SearchOutcome string

const (
	OutcomeMatched            SearchOutcome = "matched"
	OutcomeNoMatches          SearchOutcome = "no_matches"
	OutcomeNoFaceInQuery      SearchOutcome = "no_face_in_query"
	OutcomeQueryUnprocessable SearchOutcome = "query_unprocessable"
)

const (
	MessageNoFaceInQuery      = "no face detected in your photo"
	MessageQueryUnprocessable = "could not process your photo"
	MessageNoMatches          = "no similar photos found"
)

// Message returns the user-facing text for the outcome.
func (o SearchOutcome) Message() string {
	switch o {
	case OutcomeNoFaceInQuery:
		return MessageNoFaceInQuery
	case OutcomeQueryUnprocessable:
		return MessageQueryUnprocessable
	case OutcomeNoMatches:
		return MessageNoMatches
	default:
		return ""
	}
}

// Similarity bands used for display.
const (
	BandHigh   = "high"
	BandMedium = "medium"
	BandLow    = "low"
)

func SimilarityBand(similarity float64) string {
	switch {
	case similarity >= 0.8:
		return BandHigh
	case similarity >= 0.6:
		return BandMedium
	default:
		return BandLow
	}
}

// MatchResult is one matching photo and the face that scored best in it.
type MatchResult struct {
	PhotoID    string     `json:"photo_id"`
	ImagePath  string     `json:"image_path,omitempty"`
	Face       FaceRegion `json:"face_region"`
	Similarity float64    `json:"similarity"`
	Band       string     `json:"band"`
}

// SearchResult represents the complete search response
type SearchResult struct {
	SearchID      uuid.UUID     `json:"search_id"`
	EventID       string        `json:"event_id"`
	Outcome       SearchOutcome `json:"outcome"`
	Message       string        `json:"message,omitempty"`
	Matches       []MatchResult `json:"matches"`
	Threshold     float64       `json:"threshold"`
	PhotosScanned int           `json:"photos_scanned"`
	QueryFaces    int           `json:"query_faces"`
	LatencyMs     int64         `json:"latency_ms"`
}

// SearchAudit represents an audit log entry for search operations
type SearchAudit struct {
	ID                 uuid.UUID     `json:"id"`
	EventID            string        `json:"event_id"`
	Outcome            SearchOutcome `json:"outcome"`
	ResultsCount       int           `json:"results_count"`
	TopMatchPhotoID    *string       `json:"top_match_photo_id,omitempty"`
	TopMatchSimilarity *float64      `json:"top_match_similarity,omitempty"`
	Threshold          float64       `json:"threshold"`
	LatencyMs          int64         `json:"latency_ms"`
	ClientIP           string        `json:"client_ip"`
	CreatedAt          time.Time     `json:"created_at"`
}
