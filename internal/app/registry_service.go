package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bioguard/internal/domain"
)

var (
	// ErrAthleteNotFound indicates that no athlete with the given id is on the roster.
	ErrAthleteNotFound = errors.New("athlete not found")
	// ErrDuplicateAthlete indicates that the athlete id is already registered.
	ErrDuplicateAthlete = errors.New("athlete id already registered")
	// ErrMissingField indicates that a required input was empty.
	ErrMissingField = errors.New("missing required field")
	// ErrInvalidField indicates that an input was present but out of range.
	ErrInvalidField = errors.New("invalid field")
)

// AthleteSummary is an entry of a roster selection list.
type AthleteSummary struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// MedicalUpdate is the full replacement medical record submitted by a coach.
type MedicalUpdate struct {
	Weight  float64 `json:"weight"`
	Unit    string  `json:"unit"`
	Age     int     `json:"age"`
	Risk    string  `json:"risk"`
	History string  `json:"history"`
}

// RegistryService encapsulates athlete registration and medical records.
type RegistryService struct {
	repo domain.AthleteRepository
}

// NewRegistryService creates a RegistryService backed by repo. Wrap repo with
// WithDemoSeed to have empty rosters start with a demo athlete.
func NewRegistryService(repo domain.AthleteRepository) *RegistryService {
	return &RegistryService{repo: repo}
}

// Register adds a new athlete with default medical values and an empty
// roadmap. Re-registering an existing id is rejected.
func (s *RegistryService) Register(ctx context.Context, userID int64, firstName, lastName, id string) (*domain.Athlete, error) {
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	id = strings.TrimSpace(id)
	switch {
	case id == "":
		return nil, fmt.Errorf("%w: id", ErrMissingField)
	case firstName == "":
		return nil, fmt.Errorf("%w: first name", ErrMissingField)
	case lastName == "":
		return nil, fmt.Errorf("%w: last name", ErrMissingField)
	}

	a := &domain.Athlete{
		ID:        id,
		FirstName: firstName,
		LastName:  lastName,
		Medical:   domain.DefaultMedical(),
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.CreateAthlete(ctx, userID, a); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateAthlete, id)
		}
		return nil, err
	}
	return a, nil
}

// UpdateMedical overwrites the athlete's medical record.
func (s *RegistryService) UpdateMedical(ctx context.Context, userID int64, id string, in MedicalUpdate) error {
	if in.Age < 0 {
		return fmt.Errorf("%w: age must be >= 0", ErrInvalidField)
	}
	if in.Weight < 0 {
		return fmt.Errorf("%w: weight must be >= 0", ErrInvalidField)
	}
	kg, err := domain.WeightToKg(in.Weight, in.Unit)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	risk, err := domain.ParseRiskLevel(in.Risk)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidField, err)
	}

	m := domain.Medical{Age: in.Age, WeightKg: kg, Risk: risk, History: in.History}
	if err := s.repo.UpdateMedical(ctx, userID, id, m); err != nil {
		return notFound(err, id)
	}
	return nil
}

// List returns the roster in registration order.
func (s *RegistryService) List(ctx context.Context, userID int64) ([]AthleteSummary, error) {
	athletes, err := s.repo.ListAthletes(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]AthleteSummary, 0, len(athletes))
	for i := range athletes {
		out = append(out, AthleteSummary{ID: athletes[i].ID, Label: athletes[i].Label()})
	}
	return out, nil
}

// Get returns one athlete including the roadmap in insertion order.
func (s *RegistryService) Get(ctx context.Context, userID int64, id string) (*domain.Athlete, error) {
	a, err := s.repo.GetAthlete(ctx, userID, id)
	if err != nil {
		return nil, notFound(err, id)
	}
	return a, nil
}

// notFound maps a repository ErrNotFound onto ErrAthleteNotFound.
func notFound(err error, id string) error {
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrAthleteNotFound, id)
	}
	return err
}
