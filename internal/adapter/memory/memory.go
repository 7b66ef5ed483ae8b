// Package memory implements an in-memory repository for development and testing.
// Everything it holds is lost when the process exits.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"bioguard/internal/domain"
)

// DB implements an in-memory database storage.
type DB struct {
	mu       sync.Mutex
	rosters  map[int64]*roster
	users    []*domain.User
	sessions map[string]*domain.Session

	userIDCounter int64
}

// roster is one workspace's athletes in registration order.
type roster struct {
	order    []string
	athletes map[string]*domain.Athlete
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{
		rosters:  make(map[int64]*roster),
		sessions: make(map[string]*domain.Session),
	}
}

// Ensure interfaces are met.
var _ domain.AthleteRepository = (*DB)(nil)
var _ domain.UserRepository = (*DB)(nil)
var _ domain.SessionRepository = (*SessionRepo)(nil)

// --- AthleteRepository ---

// rosterFor returns the roster of userID, creating it on first use.
// Callers must hold db.mu.
func (db *DB) rosterFor(userID int64) *roster {
	r, ok := db.rosters[userID]
	if !ok {
		r = &roster{athletes: make(map[string]*domain.Athlete)}
		db.rosters[userID] = r
	}
	return r
}

// CreateAthlete stores a new athlete.
func (db *DB) CreateAthlete(ctx context.Context, userID int64, a *domain.Athlete) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.rosterFor(userID)
	if _, exists := r.athletes[a.ID]; exists {
		return domain.ErrConflict
	}

	stored := *a
	stored.Roadmap = slices.Clone(a.Roadmap)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	r.athletes[a.ID] = &stored
	r.order = append(r.order, a.ID)
	return nil
}

// GetAthlete returns a copy of the athlete including the roadmap.
func (db *DB) GetAthlete(ctx context.Context, userID int64, athleteID string) (*domain.Athlete, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.rosterFor(userID).athletes[athleteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := *a
	out.Roadmap = slices.Clone(a.Roadmap)
	return &out, nil
}

// ListAthletes returns the roster in registration order, without roadmaps.
func (db *DB) ListAthletes(ctx context.Context, userID int64) ([]domain.Athlete, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	r := db.rosterFor(userID)
	out := make([]domain.Athlete, 0, len(r.order))
	for _, id := range r.order {
		a := *r.athletes[id]
		a.Roadmap = nil
		out = append(out, a)
	}
	return out, nil
}

// UpdateMedical replaces the medical record of an athlete.
func (db *DB) UpdateMedical(ctx context.Context, userID int64, athleteID string, m domain.Medical) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.rosterFor(userID).athletes[athleteID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Medical = m
	return nil
}

// AppendRoadmapEntry adds an entry to the end of an athlete's roadmap.
func (db *DB) AppendRoadmapEntry(ctx context.Context, userID int64, athleteID string, e domain.RoadmapEntry) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.rosterFor(userID).athletes[athleteID]
	if !ok {
		return domain.ErrNotFound
	}
	a.Roadmap = append(a.Roadmap, e)
	return nil
}

// ListRoadmap returns a copy of the roadmap in insertion order.
func (db *DB) ListRoadmap(ctx context.Context, userID int64, athleteID string) ([]domain.RoadmapEntry, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	a, ok := db.rosterFor(userID).athletes[athleteID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	out := make([]domain.RoadmapEntry, len(a.Roadmap))
	copy(out, a.Roadmap)
	return out, nil
}

// --- UserRepository ---

// GetByUsername retrieves a user by username.
func (db *DB) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// GetByID retrieves a user by ID.
func (db *DB) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

// Create creates a new user.
func (db *DB) Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, u := range db.users {
		if u.Username == username {
			return nil, domain.ErrConflict
		}
	}

	db.userIDCounter++
	u := &domain.User{
		ID:           db.userIDCounter,
		Username:     username,
		PasswordHash: passwordHash,
		Role:         role,
		CreatedAt:    time.Now().UTC(),
	}
	db.users = append(db.users, u)
	cp := *u
	return &cp, nil
}

// Count returns the total number of users.
func (db *DB) Count(ctx context.Context) (int, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return len(db.users), nil
}

// --- SessionRepository ---

// SessionRepo implements session persistence.
type SessionRepo struct {
	db *DB
}

// NewSessionRepo creates a new session repository.
func (db *DB) NewSessionRepo() *SessionRepo {
	return &SessionRepo{db: db}
}

// Create creates a new session.
func (r *SessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.sessions[token] = &domain.Session{
		Token:     token,
		UserID:    userID,
		UserAgent: userAgent,
		IP:        ip,
		ExpiresAt: expiresAt,
		CreatedAt: time.Now().UTC(),
	}
	return nil
}

// GetByToken retrieves a session by token. Expired sessions are dropped on
// read.
func (r *SessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	s, ok := r.db.sessions[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if time.Now().After(s.ExpiresAt) {
		delete(r.db.sessions, token)
		return nil, domain.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

// Delete deletes a session.
func (r *SessionRepo) Delete(ctx context.Context, token string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	delete(r.db.sessions, token)
	return nil
}

// DeleteExpired deletes all expired sessions.
func (r *SessionRepo) DeleteExpired(ctx context.Context) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	now := time.Now()
	for k, v := range r.db.sessions {
		if now.After(v.ExpiresAt) {
			delete(r.db.sessions, k)
		}
	}
	return nil
}
