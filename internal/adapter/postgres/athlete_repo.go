package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"bioguard/internal/domain"
)

// CreateAthlete inserts a new athlete into the user's roster.
func (d *DB) CreateAthlete(ctx context.Context, userID int64, a *domain.Athlete) error {
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO athletes(user_id, athlete_id, first_name, last_name, age, weight_kg, risk, history, created_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		userID, a.ID, a.FirstName, a.LastName,
		a.Medical.Age, a.Medical.WeightKg, string(a.Medical.Risk), a.Medical.History, createdAt.UTC(),
	)
	if isUniqueViolation(err) {
		return domain.ErrConflict
	}
	return err
}

// GetAthlete returns an athlete with the full roadmap.
func (d *DB) GetAthlete(ctx context.Context, userID int64, athleteID string) (*domain.Athlete, error) {
	var a domain.Athlete
	var risk string
	var pk int64
	err := d.sql.QueryRowContext(ctx,
		`SELECT id, athlete_id, first_name, last_name, age, weight_kg, risk, history, created_at
		 FROM athletes WHERE user_id=$1 AND athlete_id=$2;`,
		userID, athleteID,
	).Scan(&pk, &a.ID, &a.FirstName, &a.LastName, &a.Medical.Age, &a.Medical.WeightKg, &risk, &a.Medical.History, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	a.Medical.Risk = domain.RiskLevel(risk)

	a.Roadmap, err = d.roadmapFor(ctx, pk)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAthletes returns the roster in registration order.
func (d *DB) ListAthletes(ctx context.Context, userID int64) ([]domain.Athlete, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT athlete_id, first_name, last_name, age, weight_kg, risk, history, created_at
		 FROM athletes WHERE user_id=$1 ORDER BY id;`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Athlete
	for rows.Next() {
		var a domain.Athlete
		var risk string
		if err := rows.Scan(&a.ID, &a.FirstName, &a.LastName, &a.Medical.Age, &a.Medical.WeightKg, &risk, &a.Medical.History, &a.CreatedAt); err != nil {
			return nil, err
		}
		a.Medical.Risk = domain.RiskLevel(risk)
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateMedical replaces an athlete's medical columns.
func (d *DB) UpdateMedical(ctx context.Context, userID int64, athleteID string, m domain.Medical) error {
	res, err := d.sql.ExecContext(ctx,
		"UPDATE athletes SET age=$3, weight_kg=$4, risk=$5, history=$6 WHERE user_id=$1 AND athlete_id=$2;",
		userID, athleteID, m.Age, m.WeightKg, string(m.Risk), m.History,
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// AppendRoadmapEntry inserts an entry after every existing one.
func (d *DB) AppendRoadmapEntry(ctx context.Context, userID int64, athleteID string, e domain.RoadmapEntry) error {
	res, err := d.sql.ExecContext(ctx,
		`INSERT INTO roadmap_entries(athlete_pk, entry_id, entry_date, category, note, region, severity, source, created_at)
		 SELECT id, $3, $4, $5, $6, $7, $8, $9, $10 FROM athletes WHERE user_id=$1 AND athlete_id=$2;`,
		userID, athleteID, e.ID, e.Date, e.Category, e.Note, string(e.Region), string(e.Severity), e.Source, time.Now().UTC(),
	)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// ListRoadmap returns the roadmap in insertion order.
func (d *DB) ListRoadmap(ctx context.Context, userID int64, athleteID string) ([]domain.RoadmapEntry, error) {
	var pk int64
	err := d.sql.QueryRowContext(ctx,
		"SELECT id FROM athletes WHERE user_id=$1 AND athlete_id=$2;", userID, athleteID,
	).Scan(&pk)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return d.roadmapFor(ctx, pk)
}

func (d *DB) roadmapFor(ctx context.Context, athletePK int64) ([]domain.RoadmapEntry, error) {
	rows, err := d.sql.QueryContext(ctx,
		`SELECT entry_id, entry_date, category, note, region, severity, source
		 FROM roadmap_entries WHERE athlete_pk=$1 ORDER BY id;`, athletePK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.RoadmapEntry, 0)
	for rows.Next() {
		var e domain.RoadmapEntry
		var region, severity string
		if err := rows.Scan(&e.ID, &e.Date, &e.Category, &e.Note, &region, &severity, &e.Source); err != nil {
			return nil, err
		}
		e.Region = domain.Region(region)
		e.Severity = domain.RiskLevel(severity)
		out = append(out, e)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
