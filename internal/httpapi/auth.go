package httpapi

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

const tokenIssuer = "cookiecraze"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errInactiveAccount    = errors.New("account is inactive")
)

type AuthManager struct {
	secret    []byte
	tokenTTL  time.Duration
	userStore UserStore
}

type UserStore interface {
	GetUser(ctx context.Context, username string) (*domain.UserAccount, error)
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}

type sessionClaims struct {
	jwtlib.RegisteredClaims
	Kind string `json:"kind"`
}

// TokenClaims is what a verified bearer token says about its holder. The
// principal itself is resolved again on every request.
type TokenClaims struct {
	Username string
	Kind     string
	IssuedAt time.Time
}

func NewAuthManager(secret string, tokenTTL time.Duration, userStore UserStore) *AuthManager {
	if secret == "" {
		secret = "dev-change-me"
	}
	if tokenTTL <= 0 {
		tokenTTL = 8 * time.Hour
	}

	manager := &AuthManager{
		secret:    []byte(secret),
		tokenTTL:  tokenTTL,
		userStore: userStore,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	manager.upgradeLegacyPasswords(ctx)
	return manager
}

// Authenticate checks a username and password and returns the canonical
// username. A stored plain-text password that matches is upgraded to bcrypt.
func (a *AuthManager) Authenticate(ctx context.Context, username string, password string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return "", errInvalidCredentials
	}
	user, err := a.userStore.GetUser(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", errInvalidCredentials
		}
		return "", err
	}

	if !isPasswordHash(user.Password) {
		if user.Password != password {
			return "", errInvalidCredentials
		}
		a.upgradePassword(ctx, user.Username, password)
	} else if !verifyPassword(user.Password, password) {
		return "", errInvalidCredentials
	}
	if !user.Active {
		return "", errInactiveAccount
	}
	return user.Username, nil
}

// Issue signs an access token for a resolved principal.
func (a *AuthManager) Issue(principal domain.Principal) (domain.LoginResponse, error) {
	expiresAt := time.Now().UTC().Add(a.tokenTTL)
	token, err := a.sign(principal.Username, string(principal.Kind), expiresAt)
	if err != nil {
		return domain.LoginResponse{}, err
	}
	return domain.LoginResponse{
		AccessToken: token,
		Kind:        string(principal.Kind),
		Route:       domain.Route(principal),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}, nil
}

func (a *AuthManager) ParseToken(tokenStr string) (TokenClaims, error) {
	claims := &sessionClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	}, jwtlib.WithValidMethods([]string{"HS256"}), jwtlib.WithIssuer(tokenIssuer))
	if err != nil || !token.Valid {
		return TokenClaims{}, errors.New("invalid or expired token")
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return TokenClaims{}, errors.New("invalid token subject")
	}
	issuedAt, err := claims.GetIssuedAt()
	if err != nil || issuedAt == nil {
		return TokenClaims{}, errors.New("token has no issue time")
	}
	return TokenClaims{Username: sub, Kind: claims.Kind, IssuedAt: issuedAt.Time.UTC()}, nil
}

func (a *AuthManager) sign(username, kind string, expiresAt time.Time) (string, error) {
	claims := sessionClaims{
		RegisteredClaims: jwtlib.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwtlib.NewNumericDate(time.Now().UTC()),
			ExpiresAt: jwtlib.NewNumericDate(expiresAt),
			Issuer:    tokenIssuer,
		},
		Kind: kind,
	}
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims)
	return token.SignedString(a.secret)
}

// upgradeLegacyPasswords hashes any plain-text passwords left in the user
// store by imports or older deployments.
func (a *AuthManager) upgradeLegacyPasswords(ctx context.Context) {
	if a.userStore == nil {
		return
	}
	users, err := a.userStore.ListUsers(ctx)
	if err != nil {
		log.Printf("[auth] WARN: failed to list users for password upgrade: %v", err)
		return
	}
	for _, user := range users {
		if user.Password == "" || isPasswordHash(user.Password) {
			continue
		}
		a.upgradePassword(ctx, user.Username, user.Password)
	}
}

func (a *AuthManager) upgradePassword(ctx context.Context, username string, plain string) {
	hashed, err := hashPassword(plain)
	if err != nil {
		log.Printf("[auth] WARN: failed to hash password for %s: %v", username, err)
		return
	}
	if err := a.userStore.UpdateUserPassword(ctx, username, hashed); err != nil {
		log.Printf("[auth] WARN: failed to store upgraded password for %s: %v", username, err)
	}
}

func verifyPassword(stored string, input string) bool {
	if stored == "" || strings.TrimSpace(input) == "" || !isPasswordHash(stored) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(stored), []byte(input)) == nil
}

func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

func isPasswordHash(value string) bool {
	return strings.HasPrefix(value, "$2a$") || strings.HasPrefix(value, "$2b$") || strings.HasPrefix(value, "$2y$")
}
