package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
)

// ResolvePrincipal loads an account with its staff and customer profiles and
// applies the role precedence rules once.
func (s *Service) ResolvePrincipal(ctx context.Context, username string) (domain.Principal, error) {
	account, err := s.repo.GetUser(ctx, strings.ToLower(strings.TrimSpace(username)))
	if err != nil {
		return domain.Principal{}, err
	}
	return s.principalFor(ctx, account)
}

// ResolveSession resolves the holder of a bearer token issued at issuedAt.
// A token minted before the account existed belonged to an earlier account
// with the same username and is treated as unknown.
func (s *Service) ResolveSession(ctx context.Context, username string, issuedAt time.Time) (domain.Principal, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	account, err := s.repo.GetUser(ctx, username)
	if err != nil {
		return domain.Principal{}, err
	}
	// Token issue times have second precision.
	if issuedAt.Before(account.CreatedAt.Truncate(time.Second)) {
		return domain.Principal{}, fmt.Errorf("%w: session predates account %s", store.ErrNotFound, username)
	}
	return s.principalFor(ctx, account)
}

func (s *Service) principalFor(ctx context.Context, account *domain.UserAccount) (domain.Principal, error) {
	username := account.Username
	if !account.Active {
		return domain.Principal{}, fmt.Errorf("%w: account %s is disabled", store.ErrForbidden, username)
	}

	staff, err := s.repo.GetStaffByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, err
		}
		staff = nil
	}
	customer, err := s.repo.GetCustomerByUsername(ctx, username)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return domain.Principal{}, err
		}
		customer = nil
	}
	return domain.ResolvePrincipal(*account, staff, customer), nil
}

func (s *Service) RecordLogin(ctx context.Context, principal domain.Principal) {
	ctx = WithPrincipal(ctx, principal)
	s.logAudit(ctx, "login", "user", principal.Username, fmt.Sprintf("%s signed in, route=%s", principal.Kind, domain.Route(principal)))
}

func (s *Service) Me(ctx context.Context) domain.MeResponse {
	principal := PrincipalFromContext(ctx)
	return domain.MeResponse{Principal: principal, Route: domain.Route(principal)}
}
