package cart

import (
	"context"
	"errors"
	"time"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/pkg/logger"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Repository defines the cart storage the service needs.
// Consumers define this interface, not the MongoDB implementation.
type Repository interface {
	GetCart(ctx context.Context, userID string) (*domain.Cart, error)
	SaveCart(ctx context.Context, cart *domain.Cart) error
	DeleteCart(ctx context.Context, userID string) error
}

type Catalog interface {
	GetProduct(ctx context.Context, productID string) (*domain.Product, error)
}

type AddItemRequest struct {
	ProductID string `json:"product_id"`
	Variant   string `json:"variant"`
	Quantity  int    `json:"quantity"`
}

type CartService struct {
	repo    Repository
	cache   cache.CartCache
	catalog Catalog
	pricing *pricing.Engine
	sfg     singleflight.Group // Prevents cache stampede
	now     func() time.Time
}

func NewCartService(repo Repository, cartCache cache.CartCache, catalog Catalog, engine *pricing.Engine) *CartService {
	return &CartService{
		repo:    repo,
		cache:   cartCache,
		catalog: catalog,
		pricing: engine,
		now:     time.Now,
	}
}

func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	// Use singleflight to prevent multiple concurrent cache misses for same key
	v, err, _ := s.sfg.Do(userID, func() (interface{}, error) {
		cart, err := s.cache.Get(ctx, userID)
		if err == nil {
			return cart, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			logger.FromContext(ctx).WithError(err).Warn("cart cache get failed")
		}

		cart, err = s.repo.GetCart(ctx, userID)
		if errors.Is(err, domain.ErrNotFound) {
			now := s.now()
			return &domain.Cart{UserID: userID, Items: []domain.CartLine{}, CreatedAt: now, UpdatedAt: now}, nil
		}
		if err != nil {
			return nil, err
		}

		go func(c *domain.Cart) {
			setCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := s.cache.Set(setCtx, userID, c); err != nil {
				logger.FromContext(ctx).WithError(err).Warn("cart cache set failed")
			}
		}(cart)

		return cart, nil
	})
	if err != nil {
		return nil, err
	}
	// callers may mutate the cart; never hand out the shared singleflight value
	shared := v.(*domain.Cart)
	cp := *shared
	cp.Items = append([]domain.CartLine(nil), shared.Items...)
	return &cp, nil
}

// AddItem adds quantity of a product variant, merging with an existing line.
func (s *CartService) AddItem(ctx context.Context, userID string, req AddItemRequest) (*domain.Cart, error) {
	if req.ProductID == "" {
		return nil, domain.Invalid("product_id", "product_id is required")
	}
	if req.Quantity < 1 || req.Quantity > domain.MaxLineQuantity {
		return nil, domain.Invalid("quantity", "quantity must be between 1 and 99")
	}
	product, price, err := s.resolve(ctx, req.ProductID, req.Variant)
	if err != nil {
		return nil, err
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if i := cart.FindLine(req.ProductID, req.Variant); i >= 0 {
		qty := cart.Items[i].Quantity + req.Quantity
		if qty > domain.MaxLineQuantity {
			return nil, domain.Invalid("quantity", "quantity must be between 1 and 99")
		}
		cart.Items[i].Quantity = qty
		cart.Items[i].UnitPrice = price
		cart.Items[i].Name = product.Name
	} else {
		cart.Items = append(cart.Items, domain.CartLine{
			ProductID: req.ProductID,
			Name:      product.Name,
			Variant:   req.Variant,
			Quantity:  req.Quantity,
			UnitPrice: price,
			AddedAt:   now,
		})
	}
	return s.save(ctx, cart)
}

// UpdateQuantity sets a line's quantity; zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID, productID, variant string, quantity int) (*domain.Cart, error) {
	if quantity < 0 || quantity > domain.MaxLineQuantity {
		return nil, domain.Invalid("quantity", "quantity must be between 0 and 99")
	}
	if quantity == 0 {
		return s.RemoveItem(ctx, userID, productID, variant)
	}

	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(productID, variant)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	_, price, err := s.resolve(ctx, productID, variant)
	if err != nil {
		return nil, err
	}
	cart.Items[i].Quantity = quantity
	cart.Items[i].UnitPrice = price
	return s.save(ctx, cart)
}

func (s *CartService) RemoveItem(ctx context.Context, userID, productID, variant string) (*domain.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	i := cart.FindLine(productID, variant)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	cart.Items = append(cart.Items[:i], cart.Items[i+1:]...)
	return s.save(ctx, cart)
}

// CurrentCart reads the cart from the store, bypassing the cache, and reprices its lines.
// Checkout uses it so orders are priced from persisted state.
func (s *CartService) CurrentCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.Cart{UserID: userID, Items: []domain.CartLine{}}, nil
	}
	if err != nil {
		return nil, err
	}
	pricing.RefreshLines(cart.Items)
	cart.Summary = s.pricing.ComputeSummary(cart.Items)
	return cart, nil
}

// ClearCart removes the cart entirely. Clearing a missing cart is not an error.
func (s *CartService) ClearCart(ctx context.Context, userID string) error {
	err := s.repo.DeleteCart(ctx, userID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		logger.FromContext(ctx).WithError(err).Error("repo delete cart failed")
		return err
	}
	s.invalidateCache(ctx, userID)
	return nil
}

func (s *CartService) resolve(ctx context.Context, productID, variant string) (*domain.Product, float64, error) {
	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, 0, err
	}
	if !product.Active {
		return nil, 0, domain.Invalid("product_id", "product is not available")
	}
	price, ok := product.Variants[variant]
	if !ok {
		return nil, 0, domain.Invalid("variant", "unknown variant for product")
	}
	return product, pricing.Round2(price), nil
}

// load reads the cart from the store, bypassing the cache, so mutations start from persisted state.
func (s *CartService) load(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.repo.GetCart(ctx, userID)
	if errors.Is(err, domain.ErrNotFound) {
		now := s.now()
		return &domain.Cart{ID: uuid.NewString(), UserID: userID, CreatedAt: now}, nil
	}
	return cart, err
}

func (s *CartService) save(ctx context.Context, cart *domain.Cart) (*domain.Cart, error) {
	pricing.RefreshLines(cart.Items)
	cart.Summary = s.pricing.ComputeSummary(cart.Items)
	cart.UpdatedAt = s.now()
	if cart.Items == nil {
		cart.Items = []domain.CartLine{}
	}

	if err := s.repo.SaveCart(ctx, cart); err != nil {
		logger.FromContext(ctx).WithError(err).Error("repo save cart failed")
		return nil, err
	}
	s.invalidateCache(ctx, cart.UserID)
	return cart, nil
}

func (s *CartService) invalidateCache(ctx context.Context, userID string) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
	defer cancel()
	if err := s.cache.Delete(delCtx, userID); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("cart cache invalidate failed")
	}
}
