package order

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/signature"
)

// MemStore is an in-memory Store with the same version check as the Mongo repository.
type MemStore struct {
	mu     sync.Mutex
	orders map[string]*domain.Order
	// ConflictTimes makes the next N ApplyUpdate calls lose a race against a concurrent writer.
	ConflictTimes int
	Updates       int
}

func NewMemStore(orders ...*domain.Order) *MemStore {
	m := &MemStore{orders: map[string]*domain.Order{}}
	for _, o := range orders {
		m.orders[o.ID] = o
	}
	return m
}

func (m *MemStore) snapshot(o *domain.Order) *domain.Order {
	cp := *o
	cp.AdminNotes = append([]string(nil), o.AdminNotes...)
	return &cp
}

func (m *MemStore) GetByID(_ context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m.snapshot(o), nil
}

func (m *MemStore) GetByNumber(_ context.Context, number int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == number {
			return m.snapshot(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemStore) GetByGatewayRef(_ context.Context, ref string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.GatewayOrderRef == ref {
			return m.snapshot(o), nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *MemStore) List(_ context.Context, f ListFilter) ([]domain.Order, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *m.snapshot(o))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	total := int64(len(out))
	start := (f.Page - 1) * f.Limit
	if start > len(out) {
		start = len(out)
	}
	end := start + f.Limit
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (m *MemStore) ApplyUpdate(_ context.Context, id string, version int64, upd domain.OrderUpdate) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	if m.ConflictTimes > 0 {
		m.ConflictTimes--
		o.Version++
	}
	if o.Version != version {
		return nil, domain.ErrConcurrencyConflict
	}
	upd.Apply(o, time.Now())
	m.Updates++
	return m.snapshot(o), nil
}

func (m *MemStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orders[id]; !ok {
		return domain.ErrNotFound
	}
	delete(m.orders, id)
	return nil
}

func (m *MemStore) Status(id string) domain.OrderStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *MemStore) PaymentStatus(id string) domain.PaymentStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].PaymentStatus
}

// MockGateway verifies with a real callback verifier and records refunds.
type MockGateway struct {
	mu          sync.Mutex
	verifier    *signature.CallbackVerifier
	RefundErr   error
	RefundCalls int
	RefundedRef string
	RefundKey   string
	Amount      *float64
	// OnRefund runs inside Refund before it returns, for interleaving writers.
	OnRefund func()
}

func (g *MockGateway) VerifyCallback(_ context.Context, orderRef, paymentRef, sig string) bool {
	return g.verifier.Verify(orderRef, paymentRef, sig)
}

func (g *MockGateway) Refund(_ context.Context, paymentRef, idempotencyKey string, amount *float64) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.RefundCalls++
	g.RefundedRef = paymentRef
	g.RefundKey = idempotencyKey
	g.Amount = amount
	if g.OnRefund != nil {
		g.OnRefund()
	}
	if g.RefundErr != nil {
		return "", g.RefundErr
	}
	return "rfnd_1", nil
}

type MockCarts struct {
	mu      sync.Mutex
	Cleared []string
	Err     error
}

func (c *MockCarts) ClearCart(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Cleared = append(c.Cleared, userID)
	return c.Err
}

type MockPublisher struct {
	mu     sync.Mutex
	Events []events.Event
}

func (p *MockPublisher) Publish(_ context.Context, evt events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, evt)
}

func (p *MockPublisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.Events))
	for _, e := range p.Events {
		out = append(out, e.Type)
	}
	return out
}
