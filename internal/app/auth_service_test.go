package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"bioguard/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

type mockUserRepo struct {
	getByUsernameFn func(ctx context.Context, username string) (*domain.User, error)
	getByIDFn       func(ctx context.Context, id int64) (*domain.User, error)
	createFn        func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error)
	countFn         func(ctx context.Context) (int, error)
}

func (m *mockUserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	if m.getByUsernameFn != nil {
		return m.getByUsernameFn(ctx, username)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, domain.ErrNotFound
}

func (m *mockUserRepo) Create(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
	if m.createFn != nil {
		return m.createFn(ctx, username, passwordHash, role)
	}
	return &domain.User{ID: 1, Username: username, PasswordHash: passwordHash, Role: role}, nil
}

func (m *mockUserRepo) Count(ctx context.Context) (int, error) {
	if m.countFn != nil {
		return m.countFn(ctx)
	}
	return 0, nil
}

type mockSessionRepo struct {
	createFn        func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error
	getByTokenFn    func(ctx context.Context, token string) (*domain.Session, error)
	deleteFn        func(ctx context.Context, token string) error
	deleteExpiredFn func(ctx context.Context) error
}

func (m *mockSessionRepo) Create(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
	if m.createFn != nil {
		return m.createFn(ctx, userID, token, userAgent, ip, expiresAt)
	}
	return nil
}

func (m *mockSessionRepo) GetByToken(ctx context.Context, token string) (*domain.Session, error) {
	if m.getByTokenFn != nil {
		return m.getByTokenFn(ctx, token)
	}
	return nil, domain.ErrNotFound
}

func (m *mockSessionRepo) Delete(ctx context.Context, token string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, token)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(ctx context.Context) error {
	if m.deleteExpiredFn != nil {
		return m.deleteExpiredFn(ctx)
	}
	return nil
}

func hashed(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func TestAuthService_Login_Success(t *testing.T) {
	ctx := context.Background()
	hash := hashed(t, "owner2026")

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "admin", PasswordHash: hash, Role: domain.RoleOwner}, nil
		},
	}

	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
			if userID != 1 {
				t.Errorf("expected userID 1, got %d", userID)
			}
			if token == "" {
				t.Error("token should not be empty")
			}
			if userAgent != "agent" || ip != "10.0.0.1" {
				t.Errorf("unexpected client info %q %q", userAgent, ip)
			}
			if d := time.Until(expiresAt); d < 23*time.Hour || d > 25*time.Hour {
				t.Errorf("expected ~24h expiry, got %s", d)
			}
			return nil
		},
	}

	svc := NewAuthService(users, sessions)
	token, err := svc.Login(ctx, "admin", "owner2026", "agent", "10.0.0.1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if token == "" {
		t.Error("expected token, got empty string")
	}
}

func TestAuthService_Login_Rejected(t *testing.T) {
	ctx := context.Background()
	hash := hashed(t, "correctpass")

	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			switch username {
			case "coach":
				return &domain.User{ID: 1, Username: "coach", PasswordHash: hash}, nil
			case "sso":
				return &domain.User{ID: 2, Username: "sso"}, nil
			}
			return nil, domain.ErrNotFound
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	tests := []struct{ username, password string }{
		{"coach", "wrongpass"},
		{"nobody", "correctpass"},
		{"sso", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if _, err := svc.Login(ctx, tc.username, tc.password, "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Errorf("Login(%q, %q): expected ErrInvalidCredentials, got %v", tc.username, tc.password, err)
		}
	}
}

type staticVerifier struct{ user *domain.User }

func (v staticVerifier) Authenticate(ctx context.Context, username, password string) (*domain.User, error) {
	if v.user == nil || username != v.user.Username {
		return nil, ErrInvalidCredentials
	}
	return v.user, nil
}

func TestAuthService_WithVerifier(t *testing.T) {
	ctx := context.Background()
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{}).
		WithVerifier(staticVerifier{user: &domain.User{ID: 9, Username: "ext"}})

	u, err := svc.Authenticate(ctx, "ext", "anything")
	if err != nil || u.ID != 9 {
		t.Fatalf("expected external user, got %v, %v", u, err)
	}
	if _, err := svc.Authenticate(ctx, "other", "anything"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_ValidateSession_Valid(t *testing.T) {
	ctx := context.Background()
	token := "validtoken"

	sessions := &mockSessionRepo{
		getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
			return &domain.Session{
				Token:     token,
				UserID:    1,
				UserAgent: "agent",
				ExpiresAt: time.Now().Add(1 * time.Hour),
			}, nil
		},
	}

	users := &mockUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "testuser"}, nil
		},
	}

	svc := NewAuthService(users, sessions)
	user, err := svc.ValidateSession(ctx, token, "agent")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "testuser" {
		t.Errorf("expected username 'testuser', got %s", user.Username)
	}
}

func TestAuthService_ValidateSession_Invalidated(t *testing.T) {
	tests := []struct {
		name      string
		expiresIn time.Duration
		userAgent string
	}{
		{"expired", -time.Hour, "agent"},
		{"user agent changed", time.Hour, "other-agent"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			deleted := false
			sessions := &mockSessionRepo{
				getByTokenFn: func(ctx context.Context, tok string) (*domain.Session, error) {
					return &domain.Session{Token: tok, UserID: 1, UserAgent: "agent", ExpiresAt: time.Now().Add(tc.expiresIn)}, nil
				},
				deleteFn: func(ctx context.Context, tok string) error {
					deleted = true
					return nil
				},
			}
			svc := NewAuthService(&mockUserRepo{}, sessions)

			_, err := svc.ValidateSession(context.Background(), "tok", tc.userAgent)
			if !errors.Is(err, ErrSessionExpired) {
				t.Errorf("expected ErrSessionExpired, got %v", err)
			}
			if !deleted {
				t.Error("expected session to be deleted")
			}
		})
	}
}

func TestAuthService_ValidateSession_Unknown(t *testing.T) {
	svc := NewAuthService(&mockUserRepo{}, &mockSessionRepo{})
	if _, err := svc.ValidateSession(context.Background(), "missing", ""); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAuthService_CreateInitialUser_Success(t *testing.T) {
	ctx := context.Background()

	users := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
			if username != "admin" {
				t.Errorf("expected username 'admin', got %s", username)
			}
			if bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte("owner2026")) != nil {
				t.Error("password hash does not match")
			}
			if role != domain.RoleOwner {
				t.Errorf("expected owner role, got %s", role)
			}
			return &domain.User{ID: 1, Username: username, Role: role}, nil
		},
	}

	svc := NewAuthService(users, &mockSessionRepo{})
	if err := svc.CreateInitialUser(ctx, " admin ", "owner2026"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestAuthService_CreateInitialUser_Rejected(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		count    int
		username string
		password string
		want     error
	}{
		{"users exist", 1, "admin", "owner2026", ErrUsersExist},
		{"empty username", 0, "  ", "owner2026", ErrMissingField},
		{"short password", 0, "admin", "short", ErrInvalidField},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			users := &mockUserRepo{
				countFn: func(ctx context.Context) (int, error) { return tc.count, nil },
				createFn: func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
					t.Error("Create must not be called")
					return nil, nil
				},
			}
			svc := NewAuthService(users, &mockSessionRepo{})
			if err := svc.CreateInitialUser(ctx, tc.username, tc.password); !errors.Is(err, tc.want) {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestAuthService_CreateTeamLicense(t *testing.T) {
	ctx := context.Background()
	owner := &domain.User{ID: 1, Username: "admin", Role: domain.RoleOwner}
	coach := &domain.User{ID: 2, Username: "coach", Role: domain.RoleCoach}

	var gotHash string
	users := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
			if username == "taken" {
				return nil, domain.ErrConflict
			}
			if role != domain.RoleCoach {
				t.Errorf("expected coach role, got %s", role)
			}
			gotHash = passwordHash
			return &domain.User{ID: 3, Username: username, Role: role}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	password, err := svc.CreateTeamLicense(ctx, owner, "squad-a")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(password) != 8 {
		t.Errorf("expected 8 character password, got %q", password)
	}
	for _, r := range password {
		if !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			t.Errorf("unexpected character %q in password", r)
		}
	}
	if bcrypt.CompareHashAndPassword([]byte(gotHash), []byte(password)) != nil {
		t.Error("stored hash does not match the returned password")
	}

	if _, err := svc.CreateTeamLicense(ctx, coach, "squad-b"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for coach, got %v", err)
	}
	if _, err := svc.CreateTeamLicense(ctx, nil, "squad-b"); !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden for anonymous, got %v", err)
	}
	if _, err := svc.CreateTeamLicense(ctx, owner, "taken"); !errors.Is(err, ErrDuplicateUser) {
		t.Errorf("expected ErrDuplicateUser, got %v", err)
	}
	if _, err := svc.CreateTeamLicense(ctx, owner, " "); !errors.Is(err, ErrMissingField) {
		t.Errorf("expected ErrMissingField, got %v", err)
	}
}

func TestAuthService_ValidateForwardAuth_ExistingUser(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "ssouser"}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	user, err := svc.ValidateForwardAuth(context.Background(), "ssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "ssouser" {
		t.Errorf("expected username 'ssouser', got %s", user.Username)
	}
}

func TestAuthService_ValidateForwardAuth_NewUser(t *testing.T) {
	users := &mockUserRepo{
		createFn: func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
			if passwordHash != "" || role != domain.RoleCoach {
				t.Errorf("unexpected provisioning %q %s", passwordHash, role)
			}
			return &domain.User{ID: 2, Username: username, Role: role}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	user, err := svc.ValidateForwardAuth(context.Background(), "newssouser")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if user.Username != "newssouser" {
		t.Errorf("expected username 'newssouser', got %s", user.Username)
	}

	if _, err := svc.ValidateForwardAuth(context.Background(), ""); err == nil {
		t.Error("expected error for empty header")
	}
}

func TestAuthService_ValidateForwardAuth_RefusesOwner(t *testing.T) {
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			return &domain.User{ID: 1, Username: "admin", Role: domain.RoleOwner}, nil
		},
	}
	svc := NewAuthService(users, &mockSessionRepo{})

	user, err := svc.ValidateForwardAuth(context.Background(), "admin")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if user != nil {
		t.Errorf("expected no user, got %+v", user)
	}
}

func TestAuthService_LoginWithUser_RaceOnCreate(t *testing.T) {
	calls := 0
	users := &mockUserRepo{
		getByUsernameFn: func(ctx context.Context, username string) (*domain.User, error) {
			calls++
			if calls == 1 {
				return nil, domain.ErrNotFound
			}
			return &domain.User{ID: 5, Username: username}, nil
		},
		createFn: func(ctx context.Context, username, passwordHash string, role domain.Role) (*domain.User, error) {
			return nil, domain.ErrConflict
		},
	}
	var sessionUser int64
	sessions := &mockSessionRepo{
		createFn: func(ctx context.Context, userID int64, token, userAgent, ip string, expiresAt time.Time) error {
			sessionUser = userID
			return nil
		},
	}
	svc := NewAuthService(users, sessions)

	if _, err := svc.LoginWithUser(context.Background(), "a@example.com", "agent", ""); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if sessionUser != 5 {
		t.Errorf("expected session for user 5, got %d", sessionUser)
	}
}

func TestConstantTimeCompare(t *testing.T) {
	if !ConstantTimeCompare("abc", "abc") {
		t.Error("expected equal strings to match")
	}
	if ConstantTimeCompare("abc", "abd") || ConstantTimeCompare("abc", "ab") {
		t.Error("expected different strings not to match")
	}
}
