package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"cookiecraze/backend/internal/domain"
)

type ReportCache interface {
	GetReport(ctx context.Context, key string) (*domain.SalesReport, bool, error)
	SetReport(ctx context.Context, key string, value *domain.SalesReport, ttl time.Duration) error
}

// CartStore keeps encoded session carts keyed by session key.
type CartStore interface {
	LoadCart(ctx context.Context, key string) ([]byte, error)
	SaveCart(ctx context.Context, key string, raw []byte, ttl time.Duration) error
	DeleteCart(ctx context.Context, key string) error
}

// OrderSignal is a monotonically increasing version bumped on every new
// order. Pollers compare versions before running a count query.
type OrderSignal interface {
	SignalVersion(ctx context.Context) (int64, error)
	BumpSignal(ctx context.Context) (int64, error)
}

type NoopReportCache struct{}

func (NoopReportCache) GetReport(_ context.Context, _ string) (*domain.SalesReport, bool, error) {
	return nil, false, nil
}

func (NoopReportCache) SetReport(_ context.Context, _ string, _ *domain.SalesReport, _ time.Duration) error {
	return nil
}

type cartEntry struct {
	raw       []byte
	expiresAt time.Time
}

type MemoryCartStore struct {
	mu    sync.Mutex
	carts map[string]cartEntry
	now   func() time.Time
}

func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{carts: make(map[string]cartEntry), now: time.Now}
}

func (m *MemoryCartStore) LoadCart(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.carts[key]
	if !ok {
		return nil, nil
	}
	if !entry.expiresAt.IsZero() && m.now().After(entry.expiresAt) {
		delete(m.carts, key)
		return nil, nil
	}
	return append([]byte(nil), entry.raw...), nil
}

func (m *MemoryCartStore) SaveCart(_ context.Context, key string, raw []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := cartEntry{raw: append([]byte(nil), raw...)}
	if ttl > 0 {
		entry.expiresAt = m.now().Add(ttl)
	}
	m.carts[key] = entry
	return nil
}

func (m *MemoryCartStore) DeleteCart(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.carts, key)
	return nil
}

type MemoryOrderSignal struct {
	version atomic.Int64
}

func (m *MemoryOrderSignal) SignalVersion(_ context.Context) (int64, error) {
	return m.version.Load(), nil
}

func (m *MemoryOrderSignal) BumpSignal(_ context.Context) (int64, error) {
	return m.version.Add(1), nil
}
