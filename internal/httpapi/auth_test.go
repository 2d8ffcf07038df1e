package httpapi

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

type userStoreStub struct {
	mu      sync.Mutex
	users   map[string]domain.UserAccount
	updates int
}

func (s *userStoreStub) GetUser(_ context.Context, username string) (*domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &user, nil
}

func (s *userStoreStub) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.UserAccount, 0, len(s.users))
	for _, user := range s.users {
		out = append(out, user)
	}
	return out, nil
}

func (s *userStoreStub) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	user := s.users[username]
	user.Password = password
	s.users[username] = user
	s.updates++
	return nil
}

func TestAuthManagerUpgradesLegacyPlainPassword(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"admin": {
				Username:  "admin",
				Password:  "admin123",
				Kind:      domain.AccountAdmin,
				Active:    true,
				CreatedAt: time.Now().UTC(),
			},
		},
	}

	manager := NewAuthManager("test-secret", time.Hour, users)
	if users.updates != 1 {
		t.Fatalf("expected startup upgrade of 1 password, got %d", users.updates)
	}
	username, err := manager.Authenticate(context.Background(), "ADMIN", "admin123")
	if err != nil {
		t.Fatalf("authenticate failed: %v", err)
	}
	if username != "admin" {
		t.Fatalf("expected canonical username admin, got %s", username)
	}

	stored, _ := users.GetUser(context.Background(), "admin")
	if stored.Password == "admin123" {
		t.Fatalf("expected password to be upgraded from plain-text")
	}
	if !strings.HasPrefix(stored.Password, "$2") {
		t.Fatalf("expected bcrypt password hash, got %s", stored.Password)
	}
}

func TestAuthenticateRejectsBadAndInactive(t *testing.T) {
	users := &userStoreStub{
		users: map[string]domain.UserAccount{
			"maria": {Username: "maria", Password: mustHashPassword(t, "cookies123"), Kind: domain.AccountCustomer, Active: true},
			"gone":  {Username: "gone", Password: mustHashPassword(t, "cookies123"), Kind: domain.AccountStaff, Active: false},
		},
	}
	manager := NewAuthManager("test-secret", time.Hour, users)

	if _, err := manager.Authenticate(context.Background(), "maria", "wrong"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := manager.Authenticate(context.Background(), "nobody", "cookies123"); !errors.Is(err, errInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown user, got %v", err)
	}
	if _, err := manager.Authenticate(context.Background(), "gone", "cookies123"); !errors.Is(err, errInactiveAccount) {
		t.Fatalf("expected inactive account, got %v", err)
	}
}

func TestIssuedTokenRoundTrips(t *testing.T) {
	manager := NewAuthManager("test-secret", time.Hour, &userStoreStub{users: map[string]domain.UserAccount{}})
	principal := domain.Principal{Kind: domain.PrincipalStaff, Username: "staff", StaffID: "STAFF1002", Approved: true}

	resp, err := manager.Issue(principal)
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}
	if resp.Route != domain.RouteStaffDashboard {
		t.Fatalf("expected staff dashboard route, got %s", resp.Route)
	}

	claims, err := manager.ParseToken(resp.AccessToken)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if claims.Username != "staff" || claims.Kind != string(domain.PrincipalStaff) {
		t.Fatalf("unexpected claims %+v", claims)
	}
	if claims.IssuedAt.IsZero() || time.Since(claims.IssuedAt) > time.Minute {
		t.Fatalf("expected a recent issue time, got %v", claims.IssuedAt)
	}

	other := NewAuthManager("another-secret", time.Hour, &userStoreStub{users: map[string]domain.UserAccount{}})
	if _, err := other.ParseToken(resp.AccessToken); err == nil {
		t.Fatalf("expected token signed with another secret to be rejected")
	}
}
