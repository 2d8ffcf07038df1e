package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/service"
	"cookiecraze/backend/internal/store"
)

// AuthzResult is the outcome of one guard. Status and Reason are only
// meaningful when Allowed is false.
type AuthzResult struct {
	Allowed bool
	Status  int
	Reason  string
}

type Guard func(principal domain.Principal) AuthzResult

func allow() AuthzResult {
	return AuthzResult{Allowed: true}
}

func deny(status int, reason string) AuthzResult {
	return AuthzResult{Status: status, Reason: reason}
}

func RequireAuthenticated(principal domain.Principal) AuthzResult {
	if principal.Kind == domain.PrincipalAnonymous {
		return deny(http.StatusUnauthorized, "authentication required")
	}
	return allow()
}

func RequireCustomer(principal domain.Principal) AuthzResult {
	if res := RequireAuthenticated(principal); !res.Allowed {
		return res
	}
	if !principal.IsCustomer() {
		return deny(http.StatusForbidden, "customer account required")
	}
	return allow()
}

func RequireApprovedStaff(principal domain.Principal) AuthzResult {
	if res := RequireAuthenticated(principal); !res.Allowed {
		return res
	}
	switch {
	case principal.IsApprovedStaff():
		return allow()
	case principal.Kind == domain.PrincipalStaff:
		return deny(http.StatusForbidden, "staff account pending approval")
	default:
		return deny(http.StatusForbidden, "staff account required")
	}
}

func RequireAdmin(principal domain.Principal) AuthzResult {
	if res := RequireApprovedStaff(principal); !res.Allowed {
		return res
	}
	if !principal.IsAdmin() {
		return deny(http.StatusForbidden, "admin access required")
	}
	return allow()
}

// requireAuth resolves the bearer token into a principal and runs every
// guard in order. The first denial wins.
func (a *API) requireAuth(next http.HandlerFunc, guards ...Guard) http.HandlerFunc {
	if len(guards) == 0 {
		guards = []Guard{RequireAuthenticated}
	}
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		principal, status, err := a.principalFromToken(r, token)
		if err != nil {
			writeError(w, status, err)
			return
		}

		for _, guard := range guards {
			if res := guard(principal); !res.Allowed {
				writeError(w, res.Status, errors.New(res.Reason))
				return
			}
		}
		next(w, r.WithContext(service.WithPrincipal(r.Context(), principal)))
	}
}

// optionalAuth attaches the principal when a valid bearer token is sent and
// otherwise serves the request anonymously.
func (a *API) optionalAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next(w, r)
			return
		}
		principal, status, err := a.principalFromToken(r, token)
		if err != nil {
			writeError(w, status, err)
			return
		}
		next(w, r.WithContext(service.WithPrincipal(r.Context(), principal)))
	}
}

func (a *API) principalFromToken(r *http.Request, token string) (domain.Principal, int, error) {
	claims, err := a.auth.ParseToken(token)
	if err != nil {
		return domain.Principal{}, http.StatusUnauthorized, err
	}
	principal, err := a.service.ResolveSession(r.Context(), claims.Username, claims.IssuedAt)
	switch {
	case err == nil:
		return principal, http.StatusOK, nil
	case errors.Is(err, store.ErrNotFound):
		return domain.Principal{}, http.StatusUnauthorized, errors.New("account no longer exists")
	case errors.Is(err, store.ErrForbidden):
		return domain.Principal{}, http.StatusUnauthorized, errInactiveAccount
	default:
		return domain.Principal{}, http.StatusInternalServerError, err
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authorization := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(strings.ToLower(authorization), "bearer ") {
		return "", false
	}
	token := strings.TrimSpace(authorization[len("Bearer "):])
	return token, token != ""
}
