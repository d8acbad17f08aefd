// Package match searches a corpus of photo analyses for faces similar to a
// query face.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/provider"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
)

type Config struct {
	Threshold     float64 // inclusive lower bound on a photo's best score
	Workers       int     // parallel corpus scan
	StrictVersion bool    // skip descriptors from another extractor version
	MaxResults    int     // best matches kept, 0 keeps all
}

func DefaultConfig() Config {
	return Config{
		Threshold:  0.6,
		Workers:    4,
		MaxResults: 20,
	}
}

// Result of one search. Matches is sorted by descending similarity and cut
// to the configured maximum; equal scores keep corpus order.
type Result struct {
	Outcome    domain.SearchOutcome
	QueryFace  *domain.FaceRegion
	QueryFaces int
	Matches    []domain.MatchResult
	Scanned    int
	Threshold  float64
}

// Engine is read-only over its inputs and safe for concurrent use.
type Engine struct {
	provider provider.FaceProvider
	cfg      Config
	logger   *slog.Logger
}

func New(p provider.FaceProvider, cfg Config, logger *slog.Logger) *Engine {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		provider: p,
		cfg:      cfg,
		logger:   logger,
	}
}

// Threshold is the configured default threshold.
func (e *Engine) Threshold() float64 {
	return e.cfg.Threshold
}

// Search detects faces in query and matches the first one against corpus.
// A query without faces or whose first face cannot be described yields a
// result with the corresponding outcome, not an error.
func (e *Engine) Search(ctx context.Context, query *raster.Image, corpus []*domain.PhotoAnalysis, threshold float64) (*Result, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	faces, err := e.provider.DetectFaces(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("detect query faces: %w", err)
	}
	if len(faces) == 0 {
		return &Result{Outcome: domain.OutcomeNoFaceInQuery, Matches: []domain.MatchResult{}, Threshold: threshold}, nil
	}
	if len(faces) > 1 {
		e.logger.Debug("query has several faces, using the first", "faces", len(faces))
	}

	queryFace := faces[0]
	descriptor, err := e.provider.ExtractDescriptor(ctx, query, queryFace)
	if err != nil {
		return nil, fmt.Errorf("extract query descriptor: %w", err)
	}
	if len(descriptor) == 0 {
		return &Result{
			Outcome:    domain.OutcomeQueryUnprocessable,
			QueryFace:  &queryFace,
			QueryFaces: len(faces),
			Matches:    []domain.MatchResult{},
			Threshold:  threshold,
		}, nil
	}

	res, err := e.SearchDescriptor(ctx, descriptor, corpus, threshold)
	if err != nil {
		return nil, err
	}
	res.QueryFace = &queryFace
	res.QueryFaces = len(faces)
	return res, nil
}

// SearchDescriptor matches an already extracted query descriptor against
// corpus. Nil analyses and faces without descriptors are skipped.
func (e *Engine) SearchDescriptor(ctx context.Context, query domain.Descriptor, corpus []*domain.PhotoAnalysis, threshold float64) (*Result, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if len(query) == 0 {
		return &Result{Outcome: domain.OutcomeQueryUnprocessable, Matches: []domain.MatchResult{}, Threshold: threshold}, nil
	}

	best := make([]*domain.MatchResult, len(corpus))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for i, analysis := range corpus {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			best[i] = e.bestFace(query, analysis)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("scan corpus: %w", err)
	}

	matches := make([]domain.MatchResult, 0)
	for _, m := range best {
		if m != nil && m.Similarity >= threshold {
			matches = append(matches, *m)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if e.cfg.MaxResults > 0 && len(matches) > e.cfg.MaxResults {
		matches = matches[:e.cfg.MaxResults]
	}

	outcome := domain.OutcomeMatched
	if len(matches) == 0 {
		outcome = domain.OutcomeNoMatches
	}

	return &Result{
		Outcome:   outcome,
		Matches:   matches,
		Scanned:   len(corpus),
		Threshold: threshold,
	}, nil
}

// bestFace returns the highest scoring face of one photo, or nil when the
// photo has no comparable descriptor. The first face wins ties.
func (e *Engine) bestFace(query domain.Descriptor, analysis *domain.PhotoAnalysis) *domain.MatchResult {
	if analysis == nil {
		return nil
	}

	if analysis.DescriptorVersion != "" && analysis.DescriptorVersion != e.provider.DescriptorVersion() {
		if e.cfg.StrictVersion {
			e.logger.Debug("photo skipped: stale descriptors",
				"photo_id", analysis.PhotoID,
				"version", analysis.DescriptorVersion,
			)
			return nil
		}
		e.logger.Warn("comparing descriptors of another version",
			"photo_id", analysis.PhotoID,
			"version", analysis.DescriptorVersion,
			"current", e.provider.DescriptorVersion(),
		)
	}

	var best *domain.MatchResult
	for i, face := range analysis.Faces {
		d := analysis.DescriptorAt(i)
		if len(d) == 0 {
			continue
		}
		score := e.provider.CompareDescriptors(query, d)
		if best == nil || score > best.Similarity {
			best = &domain.MatchResult{
				PhotoID:    analysis.PhotoID,
				ImagePath:  analysis.ImagePath,
				Face:       face,
				Similarity: score,
				Band:       domain.SimilarityBand(score),
			}
		}
	}
	return best
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
		return domain.ErrInvalidThreshold.WithError(fmt.Errorf("got %v", threshold))
	}
	return nil
}
