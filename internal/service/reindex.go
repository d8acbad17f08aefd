package service

import (
	"context"
	"fmt"

	"github.com/saturnino-fabrica-de-software/photocap/internal/audit"
	"github.com/saturnino-fabrica-de-software/photocap/internal/domain"
	"github.com/saturnino-fabrica-de-software/photocap/internal/vision/raster"
	"github.com/saturnino-fabrica-de-software/photocap/internal/ws"
)

// ReindexReport summarises one reindex run.
type ReindexReport struct {
	EventID   string `json:"event_id"`
	Version   string `json:"descriptor_version"`
	Scanned   int    `json:"scanned"`
	Reindexed int    `json:"reindexed"`
	UpToDate  int    `json:"up_to_date"`
	Failed    int    `json:"failed"`
}

// StaleAnalyses lists the analyses of eventID whose descriptors were
// extracted by another pipeline version.
func (s *PhotoService) StaleAnalyses(ctx context.Context, eventID string) ([]*domain.PhotoAnalysis, int, error) {
	if !s.Available() {
		return nil, 0, domain.ErrSearchUnavailable
	}
	if !identifierPattern.MatchString(eventID) {
		return nil, 0, domain.ErrInvalidCorpus
	}

	analyses, err := s.photoRepo.ListByEvent(ctx, eventID)
	if err != nil {
		return nil, 0, fmt.Errorf("event %s: list analyses: %w", eventID, err)
	}

	version := s.provider.DescriptorVersion()
	stale := make([]*domain.PhotoAnalysis, 0)
	for _, a := range analyses {
		if a.DescriptorVersion != version {
			stale = append(stale, a)
		}
	}
	return stale, len(analyses), nil
}

// ReindexAnalysis re-extracts the descriptors of the stored faces of one
// analysis from its source image. Face regions are kept as detected.
func (s *PhotoService) ReindexAnalysis(ctx context.Context, analysis *domain.PhotoAnalysis) error {
	if !s.Available() {
		return domain.ErrSearchUnavailable
	}
	descriptors := make([]domain.Descriptor, len(analysis.Faces))
	if len(analysis.Faces) > 0 {
		if analysis.ImagePath == "" {
			return domain.ErrPhotoNotFound.WithError(fmt.Errorf("photo %s has no stored image", analysis.PhotoID))
		}

		img, err := raster.Load(analysis.ImagePath)
		if err != nil {
			return domain.ErrPhotoNotFound.WithError(err)
		}

		for i, face := range analysis.Faces {
			d, err := s.provider.ExtractDescriptor(ctx, img, face)
			if err != nil {
				return fmt.Errorf("photo %s: extract descriptor %d: %w", analysis.PhotoID, i, err)
			}
			descriptors[i] = d
		}
	}

	version := s.provider.DescriptorVersion()
	if err := s.photoRepo.ReplaceDescriptors(ctx, analysis.ID, descriptors, version); err != nil {
		return fmt.Errorf("photo %s: %w", analysis.PhotoID, err)
	}

	analysis.Descriptors = descriptors
	analysis.DescriptorVersion = version

	s.invalidateStats(ctx, analysis.EventID)
	s.publish(analysis.EventID, ws.EventPhotoReindexed, map[string]interface{}{
		"photo_id":           analysis.PhotoID,
		"descriptor_version": version,
	})
	return nil
}

// Reindex brings every analysis of eventID to the active descriptor
// version. Photos that fail are counted and logged; the run continues.
func (s *PhotoService) Reindex(ctx context.Context, eventID string) (*ReindexReport, error) {
	stale, total, err := s.StaleAnalyses(ctx, eventID)
	if err != nil {
		return nil, err
	}

	report := &ReindexReport{
		EventID:  eventID,
		Version:  s.provider.DescriptorVersion(),
		Scanned:  total,
		UpToDate: total - len(stale),
	}

	for _, a := range stale {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		if err := s.ReindexAnalysis(ctx, a); err != nil {
			report.Failed++
			s.logger.WarnContext(ctx, "reindex failed",
				"event_id", eventID,
				"photo_id", a.PhotoID,
				"error", err,
			)
			continue
		}
		report.Reindexed++
	}

	s.logAudit(ctx, audit.Event{
		EventID:   eventID,
		EventType: audit.EventPhotoReindexed,
		Success:   report.Failed == 0,
		Metadata: map[string]string{
			"reindexed": fmt.Sprint(report.Reindexed),
			"failed":    fmt.Sprint(report.Failed),
		},
	})
	s.publish(eventID, ws.EventReindexFinished, report)

	return report, nil
}
