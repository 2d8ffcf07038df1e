package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"net/url"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

const (
	minUsernameLength = 3
	minPasswordLength = 8
	verifyTokenBytes  = 48
	defaultLogLimit   = 200
)

func (s *Service) RegisterCustomer(ctx context.Context, req domain.CustomerRegisterRequest) (domain.RegisterResponse, error) {
	username, err := normalizeCredentials(req.Username, req.Password)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RegisterResponse{}, invalid("name is required")
	}
	email, err := normalizeEmail(req.Email, true)
	if err != nil {
		return domain.RegisterResponse{}, err
	}

	if err := s.createAccount(ctx, username, req.Password, domain.AccountCustomer, email); err != nil {
		return domain.RegisterResponse{}, err
	}

	token, err := xid.Token(verifyTokenBytes)
	if err != nil {
		s.rollbackAccount(ctx, username)
		return domain.RegisterResponse{}, fmt.Errorf("generate verification token: %w", err)
	}
	sentAt := s.now()
	customer, err := s.repo.CreateCustomer(ctx, domain.Customer{
		Username:           username,
		Name:               name,
		Phone:              strings.TrimSpace(req.Phone),
		Email:              email,
		VerificationToken:  token,
		VerificationSentAt: &sentAt,
		CreatedAt:          sentAt,
	})
	if err != nil {
		s.rollbackAccount(ctx, username)
		return domain.RegisterResponse{}, err
	}

	sent := true
	if err := s.mailer.SendVerificationEmail(ctx, customer.Email, customer.Name, s.verifyURL(token)); err != nil {
		log.Printf("[mail] WARN: failed to send verification email user=%s: %v", username, err)
		sent = false
	}

	s.logAudit(WithPrincipal(ctx, domain.Principal{Username: username}), "register_customer", "customer", customer.ID, fmt.Sprintf("customer %s registered", username))
	return domain.RegisterResponse{Username: username, Customer: customer, VerificationSent: sent}, nil
}

// RegisterStaff creates an account whose staff record waits for admin
// approval.
func (s *Service) RegisterStaff(ctx context.Context, req domain.StaffRegisterRequest) (domain.RegisterResponse, error) {
	username, err := normalizeCredentials(req.Username, req.Password)
	if err != nil {
		return domain.RegisterResponse{}, err
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return domain.RegisterResponse{}, invalid("name is required")
	}

	if err := s.createAccount(ctx, username, req.Password, domain.AccountStaff, ""); err != nil {
		return domain.RegisterResponse{}, err
	}
	staff, err := s.repo.CreateStaff(ctx, domain.Staff{
		Username:  username,
		Name:      name,
		Phone:     strings.TrimSpace(req.Phone),
		Role:      domain.StaffRolePending,
		Active:    false,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.rollbackAccount(ctx, username)
		return domain.RegisterResponse{}, err
	}

	s.logAudit(WithPrincipal(ctx, domain.Principal{Username: username}), "register_staff", "staff", staff.ID, fmt.Sprintf("staff %s registered, pending approval", username))
	return domain.RegisterResponse{Username: username, Staff: staff}, nil
}

func (s *Service) createAccount(ctx context.Context, username string, password string, kind string, email string) error {
	if _, err := s.repo.GetUser(ctx, username); err == nil {
		return fmt.Errorf("%w: username %s is taken", store.ErrConflict, username)
	} else if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	return s.repo.CreateUser(ctx, domain.UserAccount{
		Username:  username,
		Password:  string(hash),
		Kind:      kind,
		Active:    true,
		Email:     email,
		CreatedAt: s.now(),
	})
}

func (s *Service) rollbackAccount(ctx context.Context, username string) {
	if err := s.repo.DeleteUser(ctx, username); err != nil && !errors.Is(err, store.ErrNotFound) {
		log.Printf("[service] WARN: failed to roll back account user=%s: %v", username, err)
	}
}

func (s *Service) ListStaff(ctx context.Context, pendingOnly bool) ([]domain.Staff, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	return s.repo.ListStaff(ctx, pendingOnly)
}

func (s *Service) ApproveStaff(ctx context.Context, id string) (domain.Staff, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Staff{}, err
	}
	staff, err := s.repo.GetStaff(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Staff{}, err
	}
	if staff.Role != domain.StaffRolePending && staff.Active {
		return domain.Staff{}, fmt.Errorf("%w: staff %s is already approved", store.ErrConflict, staff.ID)
	}

	staff.Role = domain.StaffRoleStaff
	staff.Active = true
	saved, err := s.repo.UpdateStaff(ctx, *staff)
	if err != nil {
		return domain.Staff{}, err
	}
	s.logAudit(ctx, "staff_approve", "staff", saved.ID, fmt.Sprintf("approved staff %s", saved.Username))
	return *saved, nil
}

// RejectStaff removes both the staff record and the login account.
func (s *Service) RejectStaff(ctx context.Context, id string) error {
	principal, err := requireAdmin(ctx)
	if err != nil {
		return err
	}
	staff, err := s.repo.GetStaff(ctx, strings.TrimSpace(id))
	if err != nil {
		return err
	}
	if staff.ID == principal.StaffID {
		return fmt.Errorf("%w: cannot reject your own staff record", store.ErrForbidden)
	}

	if err := s.repo.DeleteStaff(ctx, staff.ID); err != nil {
		return err
	}
	if staff.Username != "" {
		if err := s.repo.DeleteUser(ctx, staff.Username); err != nil && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}
	s.logAudit(ctx, "staff_reject", "staff", staff.ID, fmt.Sprintf("rejected staff %s", staff.Username))
	return nil
}

func (s *Service) UpdateStaff(ctx context.Context, id string, req domain.StaffUpdateRequest) (domain.Staff, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return domain.Staff{}, err
	}
	staff, err := s.repo.GetStaff(ctx, strings.TrimSpace(id))
	if err != nil {
		return domain.Staff{}, err
	}

	updated := *staff
	if req.Role != nil {
		role := strings.ToLower(strings.TrimSpace(*req.Role))
		if !domain.IsStaffRole(role) {
			return domain.Staff{}, invalid("unknown staff role %q", *req.Role)
		}
		updated.Role = role
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Staff{}, invalid("name is required")
		}
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}

	saved, err := s.repo.UpdateStaff(ctx, updated)
	if err != nil {
		return domain.Staff{}, err
	}
	s.logAudit(ctx, "staff_update", "staff", saved.ID, fmt.Sprintf("staff %s role=%s active=%t", saved.Username, saved.Role, saved.Active))
	return *saved, nil
}

// VerifyEmail consumes a verification token. Tokens expire after the
// configured TTL and are single use.
func (s *Service) VerifyEmail(ctx context.Context, token string) (domain.Customer, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Customer{}, invalid("verification token is required")
	}
	customer, err := s.repo.GetCustomerByVerificationToken(ctx, token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Customer{}, invalid("verification link is invalid or already used")
		}
		return domain.Customer{}, err
	}

	now := s.now()
	if customer.VerificationSentAt == nil || now.Sub(*customer.VerificationSentAt) > s.verifyTokenTTL {
		return domain.Customer{}, invalid("verification link has expired")
	}

	customer.EmailVerified = true
	customer.EmailVerifiedAt = &now
	customer.VerificationToken = ""
	customer.VerificationSentAt = nil
	saved, err := s.repo.UpdateCustomer(ctx, *customer)
	if err != nil {
		return domain.Customer{}, err
	}
	s.logAudit(WithPrincipal(ctx, domain.Principal{Username: saved.Username}), "email_verify", "customer", saved.ID, "email verified")
	return *saved, nil
}

// ResendVerification issues a fresh token. Unlike registration, a failed
// send is reported to the caller.
func (s *Service) ResendVerification(ctx context.Context) error {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return err
	}
	customer, err := s.repo.GetCustomer(ctx, principal.CustomerID)
	if err != nil {
		return err
	}
	if customer.EmailVerified {
		return fmt.Errorf("%w: email is already verified", store.ErrConflict)
	}
	if customer.Email == "" {
		return invalid("no email address on file")
	}

	token, err := s.issueVerification(ctx, customer)
	if err != nil {
		return err
	}
	if err := s.mailer.SendVerificationEmail(ctx, customer.Email, customer.Name, s.verifyURL(token)); err != nil {
		return fmt.Errorf("send verification email: %w", err)
	}
	s.logAudit(ctx, "email_resend", "customer", customer.ID, "verification email resent")
	return nil
}

func (s *Service) issueVerification(ctx context.Context, customer *domain.Customer) (string, error) {
	token, err := xid.Token(verifyTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate verification token: %w", err)
	}
	sentAt := s.now()
	customer.VerificationToken = token
	customer.VerificationSentAt = &sentAt
	if _, err := s.repo.UpdateCustomer(ctx, *customer); err != nil {
		return "", err
	}
	return token, nil
}

func (s *Service) CustomerProfile(ctx context.Context) (domain.Customer, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, principal.CustomerID)
	if err != nil {
		return domain.Customer{}, err
	}
	return *customer, nil
}

// UpdateCustomerProfile edits contact details. Changing the email address
// resets verification and mails a new link.
func (s *Service) UpdateCustomerProfile(ctx context.Context, req domain.CustomerUpdateRequest) (domain.Customer, error) {
	principal, err := requireCustomer(ctx)
	if err != nil {
		return domain.Customer{}, err
	}
	customer, err := s.repo.GetCustomer(ctx, principal.CustomerID)
	if err != nil {
		return domain.Customer{}, err
	}

	updated := *customer
	if req.Name != nil {
		updated.Name = strings.TrimSpace(*req.Name)
		if updated.Name == "" {
			return domain.Customer{}, invalid("name is required")
		}
	}
	if req.Phone != nil {
		updated.Phone = strings.TrimSpace(*req.Phone)
	}
	emailChanged := false
	if req.Email != nil {
		email, err := normalizeEmail(*req.Email, true)
		if err != nil {
			return domain.Customer{}, err
		}
		if !strings.EqualFold(email, customer.Email) {
			emailChanged = true
			updated.Email = email
			updated.EmailVerified = false
			updated.EmailVerifiedAt = nil
		}
	}

	saved, err := s.repo.UpdateCustomer(ctx, updated)
	if err != nil {
		return domain.Customer{}, err
	}
	if emailChanged {
		token, err := s.issueVerification(ctx, saved)
		if err == nil {
			err = s.mailer.SendVerificationEmail(ctx, saved.Email, saved.Name, s.verifyURL(token))
		}
		if err != nil {
			log.Printf("[mail] WARN: failed to send verification email user=%s: %v", principal.Username, err)
		}
	}
	s.logAudit(ctx, "profile_update", "customer", saved.ID, fmt.Sprintf("profile updated, email_changed=%t", emailChanged))
	return *saved, nil
}

func (s *Service) ListActivityLogs(ctx context.Context, date string, limit int) ([]domain.ActivityLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	day, err := s.LocalDay(date)
	if err != nil {
		return nil, err
	}
	if limit < 1 || limit > 1000 {
		limit = defaultLogLimit
	}
	from, to := s.dayRange(day)
	return s.repo.ListActivityLogs(ctx, from, to, limit)
}

func (s *Service) ListVoidLogs(ctx context.Context, date string) ([]domain.VoidLog, error) {
	if _, err := requireAdmin(ctx); err != nil {
		return nil, err
	}
	day, err := s.LocalDay(date)
	if err != nil {
		return nil, err
	}
	from, to := s.dayRange(day)
	return s.repo.ListVoidLogs(ctx, from, to)
}

func (s *Service) verifyURL(token string) string {
	return s.publicBaseURL + "/api/v1/customers/verify-email?token=" + url.QueryEscape(token)
}

func normalizeCredentials(rawUsername string, password string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(rawUsername))
	if len(username) < minUsernameLength || strings.ContainsAny(username, " \t\n:/") {
		return "", invalid("username must be at least %d characters without spaces", minUsernameLength)
	}
	if len(password) < minPasswordLength {
		return "", invalid("password must be at least %d characters", minPasswordLength)
	}
	return username, nil
}

func normalizeEmail(raw string, required bool) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" {
		if required {
			return "", invalid("email is required")
		}
		return "", nil
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email address is invalid")
	}
	return email, nil
}
