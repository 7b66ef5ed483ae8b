package app

import (
	"context"

	"bioguard/internal/domain"
)

// Marker colours by severity.
const (
	colorHigh   = "#e5484d"
	colorMedium = "#f5a524"
	colorLow    = "#00ab4e"
)

// BodyMapService projects roadmap entries onto the body map illustration.
type BodyMapService struct {
	repo  domain.AthleteRepository
	image string
}

// NewBodyMapService creates a BodyMapService drawing over the given
// background image URL.
func NewBodyMapService(repo domain.AthleteRepository, image string) *BodyMapService {
	return &BodyMapService{repo: repo, image: image}
}

// Marker is a flagged region on the body map.
type Marker struct {
	Region   domain.Region    `json:"region"`
	Label    string           `json:"label"`
	X        int              `json:"x"`
	Y        int              `json:"y"`
	Hover    string           `json:"hover"`
	Severity domain.RiskLevel `json:"severity,omitempty"`
	Color    string           `json:"color"`
}

// BodyMap is the data a charting surface needs to draw the body map.
type BodyMap struct {
	AthleteID string   `json:"athleteId"`
	Image     string   `json:"image"`
	Width     int      `json:"width"`
	Height    int      `json:"height"`
	Markers   []Marker `json:"markers"`
}

// Render builds the body map for an athlete: one marker per flagged region,
// described by the most recent entry tagged with that region.
func (s *BodyMapService) Render(ctx context.Context, userID int64, athleteID string) (*BodyMap, error) {
	entries, err := s.repo.ListRoadmap(ctx, userID, athleteID)
	if err != nil {
		return nil, notFound(err, athleteID)
	}

	latest := make(map[domain.Region]domain.RoadmapEntry)
	for _, e := range entries {
		if e.Region != domain.RegionNone {
			latest[e.Region] = e
		}
	}

	markers := make([]Marker, 0, len(latest))
	for _, spot := range domain.RegionSpots() {
		e, ok := latest[spot.Region]
		if !ok {
			continue
		}
		markers = append(markers, Marker{
			Region:   spot.Region,
			Label:    spot.Label,
			X:        spot.X,
			Y:        spot.Y,
			Hover:    spot.Label + ": " + e.Note,
			Severity: e.Severity,
			Color:    severityColor(e.Severity),
		})
	}

	return &BodyMap{
		AthleteID: athleteID,
		Image:     s.image,
		Width:     domain.BodyMapSize,
		Height:    domain.BodyMapSize,
		Markers:   markers,
	}, nil
}

func severityColor(r domain.RiskLevel) string {
	switch r {
	case domain.RiskHigh:
		return colorHigh
	case domain.RiskMedium:
		return colorMedium
	default:
		return colorLow
	}
}
