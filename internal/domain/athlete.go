package domain

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// RiskLevel is the injury-risk classification of an athlete or a finding.
type RiskLevel string

const (
	RiskLow    RiskLevel = "Low"
	RiskMedium RiskLevel = "Medium"
	RiskHigh   RiskLevel = "High"
)

// ParseRiskLevel maps a case-insensitive label onto a RiskLevel.
func ParseRiskLevel(s string) (RiskLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return RiskLow, nil
	case "medium":
		return RiskMedium, nil
	case "high":
		return RiskHigh, nil
	}
	return "", fmt.Errorf("unknown risk level %q", s)
}

// Medical is the medical sub-record of an athlete. It is always replaced as a
// whole.
type Medical struct {
	Age      int       `json:"age"`
	WeightKg float64   `json:"weightKg"`
	Risk     RiskLevel `json:"risk"`
	History  string    `json:"history"`
}

// DefaultMedical is the record every newly registered athlete starts with.
func DefaultMedical() Medical {
	return Medical{Risk: RiskLow}
}

// Entry sources.
const (
	SourceManual   = "manual"
	SourceAnalysis = "analysis"
)

// RoadmapEntry is a single dated note in an athlete's roadmap.
type RoadmapEntry struct {
	ID       string    `json:"id"`
	Date     string    `json:"date"`
	Category string    `json:"category"`
	Note     string    `json:"note"`
	Region   Region    `json:"region,omitempty"`
	Severity RiskLevel `json:"severity,omitempty"`
	Source   string    `json:"source"`
}

// Athlete is a tracked player. The ID is the shirt number or a chosen name
// and never changes after registration.
type Athlete struct {
	ID        string         `json:"id"`
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	Medical   Medical        `json:"medical"`
	Roadmap   []RoadmapEntry `json:"roadmap,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// Label is the text used to pick the athlete in selection lists.
func (a *Athlete) Label() string {
	return strings.TrimSpace(fmt.Sprintf("#%s %s %s", a.ID, a.FirstName, a.LastName))
}

// AthleteRepository is the port for roster persistence. Every method is
// scoped to the roster owned by userID.
//
// ListAthletes returns athletes in registration order without their
// roadmaps. ListRoadmap returns entries in insertion order. Methods taking an
// athleteID return ErrNotFound when it is unknown; CreateAthlete returns
// ErrConflict when the ID is taken.
type AthleteRepository interface {
	CreateAthlete(ctx context.Context, userID int64, a *Athlete) error
	GetAthlete(ctx context.Context, userID int64, athleteID string) (*Athlete, error)
	ListAthletes(ctx context.Context, userID int64) ([]Athlete, error)
	UpdateMedical(ctx context.Context, userID int64, athleteID string, m Medical) error
	AppendRoadmapEntry(ctx context.Context, userID int64, athleteID string, e RoadmapEntry) error
	ListRoadmap(ctx context.Context, userID int64, athleteID string) ([]RoadmapEntry, error)
}
