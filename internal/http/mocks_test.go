package http

import (
	"context"

	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/checkout"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/order"
	"github.com/fjod/go_cart/internal/reviews"
)

// --- Mocks ---

type CartServiceMock struct {
	cart    *domain.Cart
	err     error
	lastReq cart.AddItemRequest
	userID  string
	variant string
	qty     int
}

func (m *CartServiceMock) GetCart(_ context.Context, userID string) (*domain.Cart, error) {
	m.userID = userID
	return m.cart, m.err
}

func (m *CartServiceMock) AddItem(_ context.Context, userID string, req cart.AddItemRequest) (*domain.Cart, error) {
	m.userID = userID
	m.lastReq = req
	return m.cart, m.err
}

func (m *CartServiceMock) UpdateQuantity(_ context.Context, userID, _, variant string, quantity int) (*domain.Cart, error) {
	m.userID = userID
	m.variant = variant
	m.qty = quantity
	return m.cart, m.err
}

func (m *CartServiceMock) RemoveItem(_ context.Context, userID, _, variant string) (*domain.Cart, error) {
	m.userID = userID
	m.variant = variant
	return m.cart, m.err
}

func (m *CartServiceMock) ClearCart(_ context.Context, userID string) error {
	m.userID = userID
	return m.err
}

type CheckoutServiceMock struct {
	result  *checkout.Result
	preview *checkout.CouponPreview
	err     error
	lastReq checkout.Request
}

func (m *CheckoutServiceMock) Checkout(_ context.Context, _ string, req checkout.Request) (*checkout.Result, error) {
	m.lastReq = req
	return m.result, m.err
}

func (m *CheckoutServiceMock) RetryPayment(_ context.Context, _, _ string) (*checkout.Result, error) {
	return m.result, m.err
}

func (m *CheckoutServiceMock) ValidateCoupon(_ context.Context, _, _ string) (*checkout.CouponPreview, error) {
	return m.preview, m.err
}

type OrderServiceMock struct {
	order  *domain.Order
	page   *order.Page
	err    error
	filter order.ListFilter
	amount *float64
	status domain.OrderStatus
	verify string
	cb     order.Callback
	number int64
	pageNo int
	limit  int
}

func (m *OrderServiceMock) GetMine(_ context.Context, _, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrderServiceMock) ListMine(_ context.Context, _ string, page, limit int) (*order.Page, error) {
	m.pageNo, m.limit = page, limit
	return m.page, m.err
}

func (m *OrderServiceMock) CancelMine(_ context.Context, _, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrderServiceMock) ReportPaymentFailure(_ context.Context, _, _, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrderServiceMock) ConfirmPayment(_ context.Context, cb order.Callback) (*domain.Order, error) {
	m.cb = cb
	return m.order, m.err
}

func (m *OrderServiceMock) ConfirmPayPage(_ context.Context, xVerify, _ string) (*domain.Order, error) {
	m.verify = xVerify
	return m.order, m.err
}

func (m *OrderServiceMock) Get(_ context.Context, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrderServiceMock) GetByNumber(_ context.Context, number int64) (*domain.Order, error) {
	m.number = number
	return m.order, m.err
}

func (m *OrderServiceMock) List(_ context.Context, f order.ListFilter) (*order.Page, error) {
	m.filter = f
	return m.page, m.err
}

func (m *OrderServiceMock) UpdateStatus(_ context.Context, _ string, to domain.OrderStatus) (*domain.Order, error) {
	m.status = to
	return m.order, m.err
}

func (m *OrderServiceMock) Refund(_ context.Context, _ string, amount *float64) (*domain.Order, error) {
	m.amount = amount
	return m.order, m.err
}

func (m *OrderServiceMock) AddNote(_ context.Context, _, _ string) (*domain.Order, error) {
	return m.order, m.err
}

func (m *OrderServiceMock) Delete(_ context.Context, _ string) error {
	return m.err
}

type CouponAdminMock struct {
	created *domain.Coupon
	err     error
}

func (m *CouponAdminMock) Create(_ context.Context, c *domain.Coupon) error {
	m.created = c
	return m.err
}

func (m *CouponAdminMock) List(_ context.Context) ([]domain.Coupon, error) {
	return []domain.Coupon{}, m.err
}

func (m *CouponAdminMock) SetActive(_ context.Context, _ string, _ bool) error {
	return m.err
}

type ReviewReaderMock struct {
	resp reviews.Response
}

func (m ReviewReaderMock) Get(_ context.Context) reviews.Response {
	return m.resp
}
