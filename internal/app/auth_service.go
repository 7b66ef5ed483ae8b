// Package app holds the application services and business logic.
package app

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bioguard/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrInvalidCredentials indicates that the provided username or password was incorrect.
	ErrInvalidCredentials = errors.New("invalid username or password")
	// ErrSessionNotFound indicates that the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates that the session has expired.
	ErrSessionExpired = errors.New("session expired")
	// ErrUserNotFound indicates that the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrUsersExist is returned by CreateInitialUser once any account exists.
	ErrUsersExist = errors.New("users already exist")
	// ErrDuplicateUser indicates that the username is already taken.
	ErrDuplicateUser = errors.New("username already taken")
	// ErrForbidden indicates that the user lacks the role for the operation.
	ErrForbidden = errors.New("forbidden")
)

const (
	sessionTTL        = 24 * time.Hour
	licensePasswordN  = 8
	licenseAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	minPasswordLength = 8
)

// CredentialVerifier checks a username/password pair and returns the
// matching user. Implementations return ErrInvalidCredentials on mismatch.
type CredentialVerifier interface {
	Authenticate(ctx context.Context, username, password string) (*domain.User, error)
}

// PasswordVerifier verifies credentials against bcrypt hashes held in a
// UserRepository.
type PasswordVerifier struct {
	users domain.UserRepository
}

// NewPasswordVerifier creates a verifier backed by users.
func NewPasswordVerifier(users domain.UserRepository) *PasswordVerifier {
	return &PasswordVerifier{users: users}
}

// Authenticate implements CredentialVerifier.
func (v *PasswordVerifier) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		return nil, ErrInvalidCredentials
	}
	// SSO-provisioned accounts have no password.
	if user.PasswordHash == "" {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// AuthService handles authentication and session management.
type AuthService struct {
	users    domain.UserRepository
	sessions domain.SessionRepository
	verifier CredentialVerifier
}

// NewAuthService creates a new authentication service that verifies
// passwords against the user repository.
func NewAuthService(users domain.UserRepository, sessions domain.SessionRepository) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		verifier: NewPasswordVerifier(users),
	}
}

// WithVerifier replaces the credential verifier, e.g. with an external
// identity provider.
func (s *AuthService) WithVerifier(v CredentialVerifier) *AuthService {
	s.verifier = v
	return s
}

// Authenticate checks credentials without creating a session.
func (s *AuthService) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	return s.verifier.Authenticate(ctx, username, password)
}

// Login authenticates a user and creates a session.
func (s *AuthService) Login(ctx context.Context, username, password, userAgent, ip string) (string, error) {
	user, err := s.verifier.Authenticate(ctx, username, password)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	return s.createSession(ctx, user, userAgent, ip)
}

// Logout invalidates a session.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	return s.sessions.Delete(ctx, token)
}

// ValidateSession checks if a session token is valid and matches the user agent.
func (s *AuthService) ValidateSession(ctx context.Context, token, userAgent string) (*domain.User, error) {
	session, err := s.sessions.GetByToken(ctx, token)
	if err != nil || session == nil {
		return nil, ErrSessionNotFound
	}

	if time.Now().After(session.ExpiresAt) {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	if session.UserAgent != userAgent {
		_ = s.sessions.Delete(ctx, token)
		return nil, ErrSessionExpired
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil || user == nil {
		return nil, ErrUserNotFound
	}

	return user, nil
}

// CreateInitialUser creates the first user, as owner, if no users exist.
func (s *AuthService) CreateInitialUser(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		return fmt.Errorf("%w: username", ErrMissingField)
	}
	if len(password) < minPasswordLength {
		return fmt.Errorf("%w: password must be at least %d characters", ErrInvalidField, minPasswordLength)
	}

	count, err := s.users.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return ErrUsersExist
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	_, err = s.users.Create(ctx, username, string(hash), domain.RoleOwner)
	return err
}

// CreateTeamLicense provisions a coach account with a random temporary
// password. Only owners may call it. The password is returned once and never
// stored in clear.
func (s *AuthService) CreateTeamLicense(ctx context.Context, actor *domain.User, username string) (string, error) {
	if !actor.IsOwner() {
		return "", ErrForbidden
	}
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username", ErrMissingField)
	}

	password, err := generatePassword(licensePasswordN)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if _, err := s.users.Create(ctx, username, string(hash), domain.RoleCoach); err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return "", ErrDuplicateUser
		}
		return "", err
	}
	return password, nil
}

// ValidateForwardAuth resolves the user named by a trusted reverse proxy's
// Remote-User header, creating a coach account on first sight. Owner accounts
// must sign in with a password and are refused with ErrForbidden.
func (s *AuthService) ValidateForwardAuth(ctx context.Context, remoteUser string) (*domain.User, error) {
	if remoteUser == "" {
		return nil, errors.New("no remote user header")
	}

	user, err := s.users.GetByUsername(ctx, remoteUser)
	if err != nil || user == nil {
		// Auto-create user from SSO if they don't exist
		user, err = s.users.Create(ctx, remoteUser, "", domain.RoleCoach)
		if err != nil {
			return nil, err
		}
	}
	if user.IsOwner() {
		return nil, ErrForbidden
	}

	return user, nil
}

// LoginWithUser creates a session for an already authenticated user (e.g. via SSO).
func (s *AuthService) LoginWithUser(ctx context.Context, username, userAgent, ip string) (string, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil || user == nil {
		user, err = s.users.Create(ctx, username, "", domain.RoleCoach)
		if err != nil {
			// Lost a race with a concurrent login for the same account.
			user, err = s.users.GetByUsername(ctx, username)
			if err != nil {
				return "", err
			}
		}
	}
	return s.createSession(ctx, user, userAgent, ip)
}

// PurgeExpiredSessions removes sessions past their expiry.
func (s *AuthService) PurgeExpiredSessions(ctx context.Context) error {
	return s.sessions.DeleteExpired(ctx)
}

func (s *AuthService) createSession(ctx context.Context, user *domain.User, userAgent, ip string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	expiresAt := time.Now().Add(sessionTTL)
	if err := s.sessions.Create(ctx, user.ID, token, userAgent, ip, expiresAt); err != nil {
		return "", err
	}

	return token, nil
}

func generateToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func generatePassword(n int) (string, error) {
	limit := big.NewInt(int64(len(licenseAlphabet)))
	out := make([]byte, n)
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = licenseAlphabet[idx.Int64()]
	}
	return string(out), nil
}

// ConstantTimeCompare performs a constant-time comparison of two strings.
func ConstantTimeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
