package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/internal/coupon"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/gateway"
)

type MockCarts struct {
	Cart *domain.Cart
	Err  error
}

func (m *MockCarts) CurrentCart(_ context.Context, userID string) (*domain.Cart, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Cart == nil {
		return &domain.Cart{UserID: userID}, nil
	}
	cp := *m.Cart
	return &cp, nil
}

// MockStore keeps coupons and orders together and redeems under one lock,
// mirroring the repository's transaction.
type MockStore struct {
	mu        sync.Mutex
	next      int64
	coupons   map[string]*domain.Coupon
	Orders    map[string]*domain.Order
	NumberErr error
	CreateErr error
	now       func() time.Time
}

func NewMockStore(now func() time.Time, coupons ...*domain.Coupon) *MockStore {
	m := &MockStore{next: 1000, coupons: map[string]*domain.Coupon{}, Orders: map[string]*domain.Order{}, now: now}
	for _, c := range coupons {
		m.coupons[c.Code] = c
	}
	return m
}

func (m *MockStore) GetByCode(_ context.Context, code string) (*domain.Coupon, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.coupons[code]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *MockStore) NextOrderNumber(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.NumberErr != nil {
		return 0, m.NumberErr
	}
	m.next++
	return m.next, nil
}

func (m *MockStore) Create(_ context.Context, o *domain.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.CreateErr != nil {
		return m.CreateErr
	}
	if o.CouponCode != nil {
		c, ok := m.coupons[*o.CouponCode]
		if !ok {
			return coupon.ErrNotFound
		}
		if err := coupon.Check(c, m.now()); err != nil {
			return err
		}
		c.UsageCount++
	}
	cp := *o
	m.Orders[o.ID] = &cp
	return nil
}

func (m *MockStore) UsageCount(code string) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.coupons[code].UsageCount
}

func (m *MockStore) GetMine(_ context.Context, userID, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok || o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *MockStore) BindGatewayOrder(_ context.Context, id, provider, ref string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.Orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	o.GatewayOrderRef = ref
	o.PaymentProvider = provider
	o.Version++
	cp := *o
	return &cp, nil
}

type MockGateway struct {
	mu     sync.Mutex
	Calls  int
	Amount float64
	Err    error
}

func (g *MockGateway) CreateGatewayOrder(_ context.Context, amount float64, orderRef string, _ gateway.CustomerInfo) (*gateway.GatewayOrder, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Calls++
	g.Amount = amount
	if g.Err != nil {
		return nil, g.Err
	}
	return &gateway.GatewayOrder{GatewayOrderRef: "gw_" + orderRef, AmountMinorUnits: int64(amount * 100), Currency: "INR"}, nil
}

type MockPayPage struct {
	TxnID  string
	Amount int64
	Err    error
}

func (p *MockPayPage) Initiate(_ context.Context, txn string, amount int64, _, _ string) (string, error) {
	p.TxnID = txn
	p.Amount = amount
	if p.Err != nil {
		return "", p.Err
	}
	return "https://pay.example/" + txn, nil
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
