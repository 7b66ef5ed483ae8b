package app

import (
	"context"
	"fmt"
	"iter"
	"slices"
	"strings"

	"bioguard/internal/domain"

	"github.com/google/uuid"
)

// RoadmapService encapsulates the per-athlete roadmap log.
type RoadmapService struct {
	repo  domain.AthleteRepository
	newID func() string
}

// NewRoadmapService creates a RoadmapService backed by repo.
func NewRoadmapService(repo domain.AthleteRepository) *RoadmapService {
	return &RoadmapService{repo: repo, newID: uuid.NewString}
}

// Append validates e and adds it to the end of the athlete's roadmap. The
// stored entry, with its assigned ID, is returned.
func (s *RoadmapService) Append(ctx context.Context, userID int64, athleteID string, e domain.RoadmapEntry) (domain.RoadmapEntry, error) {
	e.Date = strings.TrimSpace(e.Date)
	e.Category = strings.TrimSpace(e.Category)
	switch {
	case e.Date == "":
		return domain.RoadmapEntry{}, fmt.Errorf("%w: date", ErrMissingField)
	case e.Category == "":
		return domain.RoadmapEntry{}, fmt.Errorf("%w: category", ErrMissingField)
	case strings.TrimSpace(e.Note) == "":
		return domain.RoadmapEntry{}, fmt.Errorf("%w: note", ErrMissingField)
	}
	if e.Region != domain.RegionNone {
		if _, ok := domain.LookupRegion(e.Region); !ok {
			return domain.RoadmapEntry{}, fmt.Errorf("%w: unknown region %q", ErrInvalidField, e.Region)
		}
	}
	if e.Severity != "" {
		sev, err := domain.ParseRiskLevel(string(e.Severity))
		if err != nil {
			return domain.RoadmapEntry{}, fmt.Errorf("%w: %v", ErrInvalidField, err)
		}
		e.Severity = sev
	}
	if e.Source == "" {
		e.Source = domain.SourceManual
	}
	e.ID = s.newID()

	if err := s.repo.AppendRoadmapEntry(ctx, userID, athleteID, e); err != nil {
		return domain.RoadmapEntry{}, notFound(err, athleteID)
	}
	return e, nil
}

// Entries returns a snapshot of the roadmap, most recent first.
func (s *RoadmapService) Entries(ctx context.Context, userID int64, athleteID string) ([]domain.RoadmapEntry, error) {
	entries, err := s.repo.ListRoadmap(ctx, userID, athleteID)
	if err != nil {
		return nil, notFound(err, athleteID)
	}
	slices.Reverse(entries)
	return entries, nil
}

// View returns the roadmap as a sequence, most recent first. Each range over
// the sequence reads the current log, so it can be consumed repeatedly. A
// read failure is yielded once as the error of a zero entry.
func (s *RoadmapService) View(ctx context.Context, userID int64, athleteID string) iter.Seq2[domain.RoadmapEntry, error] {
	return func(yield func(domain.RoadmapEntry, error) bool) {
		entries, err := s.Entries(ctx, userID, athleteID)
		if err != nil {
			yield(domain.RoadmapEntry{}, err)
			return
		}
		for _, e := range entries {
			if !yield(e, nil) {
				return
			}
		}
	}
}
