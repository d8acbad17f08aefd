package docs

import (
	"github.com/go-swagno/swagno"
	"github.com/go-swagno/swagno/components/endpoint"
	"github.com/go-swagno/swagno/components/http/response"
	"github.com/go-swagno/swagno/components/mime"
	"github.com/go-swagno/swagno/components/parameter"
)

// FaceRegionData is a detected face bounding box
type FaceRegionData struct {
	X          int     `json:"x" example:"120"`
	Y          int     `json:"y" example:"64"`
	Width      int     `json:"width" example:"96"`
	Height     int     `json:"height" example:"96"`
	Confidence float64 `json:"confidence" example:"0.95"`
}

// TextRegionData is an edge cluster shaped like printed text, e.g. a bib number
type TextRegionData struct {
	X          int     `json:"x" example:"210"`
	Y          int     `json:"y" example:"340"`
	Width      int     `json:"width" example:"88"`
	Height     int     `json:"height" example:"36"`
	Area       float64 `json:"area" example:"2710.5"`
	Confidence float64 `json:"confidence" example:"0.6"`
}

// IngestPhotoResponse represents the response for a photo ingestion
type IngestPhotoResponse struct {
	AnalysisID          string           `json:"analysis_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID             string           `json:"event_id" example:"wedding-2024-06"`
	PhotoID             string           `json:"photo_id" example:"IMG_0042"`
	FacesDetected       int              `json:"faces_detected" example:"3"`
	FacesWithDescriptor int              `json:"faces_with_descriptor" example:"3"`
	Faces               []FaceRegionData `json:"faces"`
	TextRegionsDetected int              `json:"text_regions_detected" example:"1"`
	TextRegions         []TextRegionData `json:"text_regions"`
	DescriptorVersion   string           `json:"descriptor_version" example:"classical-v1"`
	ProcessedAt         string           `json:"processed_at" example:"2024-06-01T18:30:00Z"`
}

// AnalysisResponse represents the stored analysis of one photo
type AnalysisResponse struct {
	AnalysisID          string           `json:"analysis_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID             string           `json:"event_id" example:"wedding-2024-06"`
	PhotoID             string           `json:"photo_id" example:"IMG_0042"`
	FacesDetected       int              `json:"faces_detected" example:"2"`
	Faces               []FaceRegionData `json:"faces"`
	HasDescriptor       []bool           `json:"has_descriptor"`
	TextRegionsDetected int              `json:"text_regions_detected" example:"1"`
	TextRegions         []TextRegionData `json:"text_regions"`
	DescriptorVersion   string           `json:"descriptor_version" example:"classical-v1"`
	ProcessedAt         string           `json:"processed_at" example:"2024-06-01T18:30:00Z"`
}

// MatchData represents one matching photo
type MatchData struct {
	PhotoID    string         `json:"photo_id" example:"IMG_0042"`
	ImagePath  string         `json:"image_path,omitempty" example:"uploads/originals/wedding-2024-06/IMG_0042.jpg"`
	FaceRegion FaceRegionData `json:"face_region"`
	Similarity float64        `json:"similarity" example:"0.83"`
	Band       string         `json:"band" example:"high"`
}

// SearchResponse represents the response for a face search
type SearchResponse struct {
	SearchID      string      `json:"search_id" example:"550e8400-e29b-41d4-a716-446655440000"`
	EventID       string      `json:"event_id" example:"wedding-2024-06"`
	Outcome       string      `json:"outcome" example:"matched"`
	Message       string      `json:"message,omitempty" example:"no similar photos found"`
	Matches       []MatchData `json:"matches"`
	Threshold     float64     `json:"threshold" example:"0.6"`
	PhotosScanned int         `json:"photos_scanned" example:"412"`
	QueryFaces    int         `json:"query_faces" example:"1"`
	LatencyMs     int64       `json:"latency_ms" example:"230"`
}

// EventStatsResponse represents the analysis counters of an event
type EventStatsResponse struct {
	EventID             string `json:"event_id" example:"wedding-2024-06"`
	DescriptorVersion   string `json:"descriptor_version" example:"classical-v1"`
	PhotosAnalyzed      int    `json:"photos_analyzed" example:"412"`
	FacesDetected       int    `json:"faces_detected" example:"1280"`
	FacesWithDescriptor int    `json:"faces_with_descriptor" example:"1275"`
	StaleAnalyses       int    `json:"stale_analyses" example:"0"`
}

// ReindexResponse represents the outcome of a reindex run
type ReindexResponse struct {
	EventID           string `json:"event_id" example:"wedding-2024-06"`
	DescriptorVersion string `json:"descriptor_version" example:"classical-v1"`
	Scanned           int    `json:"scanned" example:"412"`
	Reindexed         int    `json:"reindexed" example:"40"`
	UpToDate          int    `json:"up_to_date" example:"372"`
	Failed            int    `json:"failed" example:"0"`
}

// OutcomeCounts counts searches per outcome
type OutcomeCounts struct {
	Matched            int64 `json:"matched" example:"47"`
	NoMatches          int64 `json:"no_matches" example:"6"`
	NoFaceInQuery      int64 `json:"no_face_in_query" example:"3"`
	QueryUnprocessable int64 `json:"query_unprocessable" example:"1"`
}

// SearchMetricsResponse summarises the searches of an event over a window
type SearchMetricsResponse struct {
	EventID      string        `json:"event_id" example:"wedding-2024-06"`
	Since        string        `json:"since" example:"2024-06-01T18:30:00Z"`
	Searches     int64         `json:"searches" example:"57"`
	Outcomes     OutcomeCounts `json:"outcomes"`
	MatchRate    float64       `json:"match_rate" example:"0.82"`
	AvgResults   float64       `json:"avg_results" example:"6.4"`
	AvgLatencyMs float64       `json:"avg_latency_ms" example:"210"`
	P99LatencyMs float64       `json:"p99_latency_ms" example:"640"`
}

// LiveEventMessage is one message of the live websocket feed; data carries
// the photo id or the reindex report
type LiveEventMessage struct {
	EventID   string `json:"event_id" example:"wedding-2024-06"`
	Type      string `json:"type" example:"photo.ingested"`
	Timestamp string `json:"timestamp" example:"2024-06-01T18:30:00Z"`
}

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Code      string `json:"code" example:"VALIDATION_FAILED"`
	Message   string `json:"message" example:"Request validation failed"`
	RequestID string `json:"request_id,omitempty" example:"3f1c9a4e-2b7d-4c1e-9d8a-0e5b6f7a8c9d"`
}

func errorResponse(code, message, status, description string) response.Response {
	return response.New(ErrorResponse{Code: code, Message: message}, status, description)
}

const eventIDDescription = "Event identifier (letters, digits, '.', '_' or '-')"

var (
	errInternal    = errorResponse("INTERNAL_ERROR", "An unexpected error occurred", "500", "Internal Server Error")
	errInvalidID   = errorResponse("VALIDATION_FAILED", "Request validation failed", "422", "Unprocessable Entity")
	errRateLimited = errorResponse("RATE_LIMIT_EXCEEDED", "Rate limit exceeded", "429", "Too Many Requests")
)

func NewSwagger() *swagno.Swagger {
	sw := swagno.New(swagno.Config{
		Title:       "Photocap Face Search API",
		Version:     "v1.0.0",
		Description: "Face search over an event photographer's photo corpus: ingest photos, then find the ones containing a given face",
		Host:        "localhost:3000",
		Path:        "/v1",
	})

	endpoints := []*endpoint.EndPoint{
		// POST /v1/events/:event_id/photos - Ingest Photo
		endpoint.New(
			endpoint.POST,
			"/events/{event_id}/photos",
			endpoint.WithTags("Photos"),
			endpoint.WithSummary("Ingest a photo"),
			endpoint.WithDescription("Detects faces in the uploaded photo, extracts a descriptor per face and stores the analysis. The optional photo_id form field defaults to a generated UUID."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription)),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(IngestPhotoResponse{}, "201", "Photo analysed and stored"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("PHOTO_ALREADY_ANALYZED", "Photo already analyzed for this event", "409", "Conflict"),
				errorResponse("INVALID_IMAGE", "Upload is empty, too large or not an image type", "422", "Unprocessable Entity"),
				errInvalidID,
				errRateLimited,
				errorResponse("SEARCH_UNAVAILABLE", "Face search is not available on this server", "503", "Service Unavailable"),
				errInternal,
			}),
		),

		// GET /v1/events/:event_id/photos/:photo_id/analysis - Photo Analysis
		endpoint.New(
			endpoint.GET,
			"/events/{event_id}/photos/{photo_id}/analysis",
			endpoint.WithTags("Photos"),
			endpoint.WithSummary("Get the stored analysis of a photo"),
			endpoint.WithDescription("Returns the detected face regions of a photo and whether each one has a descriptor"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription)),
				parameter.StrParam("photo_id", parameter.Path, parameter.WithDescription("Photo identifier within the event")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(AnalysisResponse{}, "200", "Analysis retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("ANALYSIS_NOT_FOUND", "No analysis recorded for this photo", "404", "Not Found"),
				errInvalidID,
				errInternal,
			}),
		),

		// POST /v1/events/:event_id/search - Face Search
		endpoint.New(
			endpoint.POST,
			"/events/{event_id}/search",
			endpoint.WithTags("Search"),
			endpoint.WithSummary("Find photos containing a face"),
			endpoint.WithDescription("Detects the face in the query image and returns every photo of the event with a face at or above the threshold, best first. Outcomes: matched, no_matches, no_face_in_query, query_unprocessable."),
			endpoint.WithConsume([]mime.MIME{mime.MIME("multipart/form-data")}),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription)),
				parameter.StrParam("threshold", parameter.Query, parameter.WithDescription("Minimum similarity, inclusive (0-1, default: server setting)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SearchResponse{}, "200", "Search completed"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("INVALID_CORPUS", "Event corpus is not valid", "400", "Bad Request"),
				errorResponse("INVALID_THRESHOLD", "Threshold must be between 0 and 1", "422", "Unprocessable Entity"),
				errorResponse("INVALID_IMAGE", "Upload is empty, too large or not an image type", "422", "Unprocessable Entity"),
				errorResponse("SEARCH_RATE_LIMIT_EXCEEDED", "Search rate limit exceeded", "429", "Too Many Requests"),
				errorResponse("SEARCH_UNAVAILABLE", "Face search is not available on this server", "503", "Service Unavailable"),
				errInternal,
			}),
		),

		// GET /v1/events/:event_id/stats - Event Stats
		endpoint.New(
			endpoint.GET,
			"/events/{event_id}/stats",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Get event analysis counters"),
			endpoint.WithDescription("Counts analysed photos, detected faces, stored descriptors and analyses made with an outdated descriptor version"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(EventStatsResponse{}, "200", "Stats retrieved successfully"),
			}),
			endpoint.WithErrors([]response.Response{
				errInvalidID,
				errInternal,
			}),
		),

		// POST /v1/events/:event_id/reindex - Reindex Event
		endpoint.New(
			endpoint.POST,
			"/events/{event_id}/reindex",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Re-extract outdated descriptors"),
			endpoint.WithDescription("Recomputes descriptors of every analysis stored with a different descriptor version, keeping the detected regions"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(ReindexResponse{}, "200", "Reindex completed"),
			}),
			endpoint.WithErrors([]response.Response{
				errInvalidID,
				errRateLimited,
				errorResponse("SEARCH_UNAVAILABLE", "Face search is not available on this server", "503", "Service Unavailable"),
				errInternal,
			}),
		),
		endpoint.New(
			endpoint.GET,
			"/events/{event_id}/search-metrics",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Summarise recent searches"),
			endpoint.WithDescription("Outcome counts, match rate and latency of the searches run against the event during the window"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(
				parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription)),
				parameter.StrParam("window", parameter.Query, parameter.WithDescription("Duration such as 90m or 24h, at most 2160h (default 24h)")),
			),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(SearchMetricsResponse{}, "200", "Metrics computed"),
			}),
			endpoint.WithErrors([]response.Response{
				errInvalidID,
				errInternal,
			}),
		),
		endpoint.New(
			endpoint.GET,
			"/events/{event_id}/live",
			endpoint.WithTags("Events"),
			endpoint.WithSummary("Live corpus feed (websocket)"),
			endpoint.WithDescription("Upgrades to a websocket that receives photo.ingested, photo.reindexed and reindex.finished messages for the event"),
			endpoint.WithProduce([]mime.MIME{mime.JSON}),
			endpoint.WithParams(parameter.StrParam("event_id", parameter.Path, parameter.WithDescription(eventIDDescription))),
			endpoint.WithSuccessfulReturns([]response.Response{
				response.New(LiveEventMessage{}, "101", "Switching Protocols"),
			}),
			endpoint.WithErrors([]response.Response{
				errorResponse("UPGRADE_REQUIRED", "Upgrade Required", "426", "Not a websocket request"),
			}),
		),
	}

	sw.AddEndpoints(endpoints)

	return sw
}
