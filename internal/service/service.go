package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"cookiecraze/backend/internal/cache"
	"cookiecraze/backend/internal/domain"
	"cookiecraze/backend/internal/events"
	"cookiecraze/backend/internal/mail"
	"cookiecraze/backend/internal/reconciliation"
	"cookiecraze/backend/internal/reporting"
	"cookiecraze/backend/internal/store"
	"cookiecraze/backend/internal/xid"
)

type principalContextKey struct{}

type clientIPContextKey struct{}

func WithPrincipal(ctx context.Context, principal domain.Principal) context.Context {
	return context.WithValue(ctx, principalContextKey{}, principal)
}

// PrincipalFromContext returns the caller, or the anonymous principal when
// the request was not authenticated.
func PrincipalFromContext(ctx context.Context) domain.Principal {
	principal, ok := ctx.Value(principalContextKey{}).(domain.Principal)
	if !ok {
		return domain.Anonymous()
	}
	return principal
}

func WithClientIP(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, clientIPContextKey{}, ip)
}

func clientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPContextKey{}).(string)
	return ip
}

type Options struct {
	Reports        *reporting.Engine
	Carts          cache.CartStore
	Signal         cache.OrderSignal
	Events         events.Publisher
	Mailer         mail.Sender
	Settings       domain.StoreSettings
	Location       *time.Location
	CartTTL        time.Duration
	VerifyTokenTTL time.Duration
	PublicBaseURL  string
}

type Service struct {
	repo           store.Repository
	reports        *reporting.Engine
	carts          cache.CartStore
	signal         cache.OrderSignal
	events         events.Publisher
	mailer         mail.Sender
	settings       domain.StoreSettings
	loc            *time.Location
	cartTTL        time.Duration
	verifyTokenTTL time.Duration
	publicBaseURL  string
	now            func() time.Time
}

func New(repo store.Repository, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Settings.StoreName == "" {
		opts.Settings.StoreName = "Cookie Craze"
	}
	if opts.Settings.CurrencySymbol == "" {
		opts.Settings.CurrencySymbol = "₱"
	}
	if opts.Reports == nil {
		opts.Reports = reporting.NewEngine(cache.NoopReportCache{}, 0, opts.Location, opts.Settings.TopItemsLimit)
	}
	if opts.Carts == nil {
		opts.Carts = cache.NewMemoryCartStore()
	}
	if opts.Signal == nil {
		opts.Signal = &cache.MemoryOrderSignal{}
	}
	if opts.Events == nil {
		opts.Events = events.NoopPublisher{}
	}
	if opts.Mailer == nil {
		opts.Mailer = &mail.LogSender{}
	}
	if opts.CartTTL <= 0 {
		opts.CartTTL = 24 * time.Hour
	}
	if opts.VerifyTokenTTL <= 0 {
		opts.VerifyTokenTTL = 24 * time.Hour
	}
	if opts.PublicBaseURL == "" {
		opts.PublicBaseURL = "http://localhost:8080"
	}

	return &Service{
		repo:           repo,
		reports:        opts.Reports,
		carts:          opts.Carts,
		signal:         opts.Signal,
		events:         opts.Events,
		mailer:         opts.Mailer,
		settings:       opts.Settings,
		loc:            opts.Location,
		cartTTL:        opts.CartTTL,
		verifyTokenTTL: opts.VerifyTokenTTL,
		publicBaseURL:  strings.TrimRight(opts.PublicBaseURL, "/"),
		now:            func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) Settings() domain.StoreSettings {
	return s.settings
}

func (s *Service) Location() *time.Location {
	return s.loc
}

// logAudit writes an activity log entry. Failures never fail the caller.
func (s *Service) logAudit(ctx context.Context, action string, model string, id string, description string) {
	principal := PrincipalFromContext(ctx)
	if err := s.repo.CreateActivityLog(ctx, domain.ActivityLog{
		ID:            xid.New("act"),
		Username:      principal.AuditName(),
		Action:        action,
		Description:   description,
		IPAddress:     clientIP(ctx),
		AffectedModel: model,
		AffectedID:    id,
		CreatedAt:     s.now(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write activity log action=%s entity=%s/%s: %v", action, model, id, err)
	}
}

func (s *Service) publish(ctx context.Context, eventType string, order *domain.Order) {
	if order == nil {
		return
	}
	event := domain.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		Code:          order.Code,
		OrderType:     order.Type,
		Status:        order.Status,
		PaymentMethod: order.PaymentMethod,
		TotalCents:    order.TotalCents,
		Actor:         PrincipalFromContext(ctx).AuditName(),
		At:            s.now(),
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		log.Printf("[events] WARN: failed to publish %s order=%s: %v", eventType, order.Code, err)
	}
}

func requireApprovedStaff(ctx context.Context) (domain.Principal, error) {
	principal := PrincipalFromContext(ctx)
	if principal.Kind == domain.PrincipalStaff && !principal.Approved {
		return principal, fmt.Errorf("%w: staff account pending approval", store.ErrForbidden)
	}
	if !principal.IsApprovedStaff() {
		return principal, fmt.Errorf("%w: staff access required", store.ErrForbidden)
	}
	return principal, nil
}

func requireAdmin(ctx context.Context) (domain.Principal, error) {
	principal := PrincipalFromContext(ctx)
	if !principal.IsAdmin() {
		return principal, fmt.Errorf("%w: admin access required", store.ErrForbidden)
	}
	return principal, nil
}

func requireCustomer(ctx context.Context) (domain.Principal, error) {
	principal := PrincipalFromContext(ctx)
	if !principal.IsCustomer() || principal.CustomerID == "" {
		return principal, fmt.Errorf("%w: customer account required", store.ErrForbidden)
	}
	return principal, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", store.ErrInvalidRequest, fmt.Sprintf(format, args...))
}

// LocalDay parses YYYY-MM-DD in the store timezone. An empty value means today.
func (s *Service) LocalDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		now := s.now().In(s.loc)
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc), nil
	}
	day, err := time.ParseInLocation(time.DateOnly, raw, s.loc)
	if err != nil {
		return time.Time{}, invalid("date must be YYYY-MM-DD")
	}
	return day, nil
}

// ledgerDay maps a local calendar day to the UTC-midnight key the ledger
// stores.
func ledgerDay(localDay time.Time) time.Time {
	return time.Date(localDay.Year(), localDay.Month(), localDay.Day(), 0, 0, 0, 0, time.UTC)
}

func (s *Service) dayRange(localDay time.Time) (time.Time, time.Time) {
	return reconciliation.DayBounds(localDay, s.loc)
}

func defaultString(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
