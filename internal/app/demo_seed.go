package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"bioguard/internal/domain"

	"github.com/google/uuid"
)

// Demo athlete placed on every empty roster when seeding is enabled.
const (
	demoAthleteID = "2"
	demoFirstName = "Demo"
	demoLastName  = "Player"
)

// DemoSeeder wraps an AthleteRepository so that the first access to a
// workspace, through any method, finds the demo athlete on an empty roster.
type DemoSeeder struct {
	repo   domain.AthleteRepository
	seeded sync.Map // userID -> struct{}
}

var _ domain.AthleteRepository = (*DemoSeeder)(nil)

// WithDemoSeed returns repo wrapped in a DemoSeeder.
func WithDemoSeed(repo domain.AthleteRepository) *DemoSeeder {
	return &DemoSeeder{repo: repo}
}

func (s *DemoSeeder) ensure(ctx context.Context, userID int64) error {
	if _, done := s.seeded.Load(userID); done {
		return nil
	}

	athletes, err := s.repo.ListAthletes(ctx, userID)
	if err != nil {
		return err
	}
	if len(athletes) == 0 {
		demo := &domain.Athlete{
			ID:        demoAthleteID,
			FirstName: demoFirstName,
			LastName:  demoLastName,
			Medical:   domain.DefaultMedical(),
			CreatedAt: time.Now().UTC(),
		}
		err := s.repo.CreateAthlete(ctx, userID, demo)
		switch {
		case errors.Is(err, domain.ErrConflict):
			// A concurrent first access already seeded the roster.
		case err != nil:
			return err
		default:
			entry := domain.RoadmapEntry{
				ID:       uuid.NewString(),
				Date:     "2025-11-30",
				Category: "Health",
				Note:     "12° Valgus detected",
				Region:   domain.RegionRightKnee,
				Severity: domain.RiskHigh,
				Source:   domain.SourceManual,
			}
			if err := s.repo.AppendRoadmapEntry(ctx, userID, demoAthleteID, entry); err != nil {
				return err
			}
		}
	}
	s.seeded.Store(userID, struct{}{})
	return nil
}

func (s *DemoSeeder) CreateAthlete(ctx context.Context, userID int64, a *domain.Athlete) error {
	if err := s.ensure(ctx, userID); err != nil {
		return err
	}
	return s.repo.CreateAthlete(ctx, userID, a)
}

func (s *DemoSeeder) GetAthlete(ctx context.Context, userID int64, athleteID string) (*domain.Athlete, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetAthlete(ctx, userID, athleteID)
}

func (s *DemoSeeder) ListAthletes(ctx context.Context, userID int64) ([]domain.Athlete, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListAthletes(ctx, userID)
}

func (s *DemoSeeder) UpdateMedical(ctx context.Context, userID int64, athleteID string, m domain.Medical) error {
	if err := s.ensure(ctx, userID); err != nil {
		return err
	}
	return s.repo.UpdateMedical(ctx, userID, athleteID, m)
}

func (s *DemoSeeder) AppendRoadmapEntry(ctx context.Context, userID int64, athleteID string, e domain.RoadmapEntry) error {
	if err := s.ensure(ctx, userID); err != nil {
		return err
	}
	return s.repo.AppendRoadmapEntry(ctx, userID, athleteID, e)
}

func (s *DemoSeeder) ListRoadmap(ctx context.Context, userID int64, athleteID string) ([]domain.RoadmapEntry, error) {
	if err := s.ensure(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.ListRoadmap(ctx, userID, athleteID)
}
