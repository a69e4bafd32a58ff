package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fjod/go_cart/internal/domain"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CouponRepository struct {
	collection *mongo.Collection
}

func NewCouponRepository(db *mongo.Database) *CouponRepository {
	return &CouponRepository{collection: db.Collection(couponsCollection)}
}

// GetByCode looks up an already normalized code.
func (r *CouponRepository) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	var c domain.Coupon

	err := r.collection.FindOne(ctx, bson.M{"code": code}).Decode(&c)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}

	return &c, nil
}

func (r *CouponRepository) Create(ctx context.Context, c *domain.Coupon) error {
	if err := c.Validate(); err != nil {
		return err
	}
	c.ID = uuid.NewString()
	c.Code = domain.NormalizeCouponCode(c.Code)
	c.UsageCount = 0
	c.CreatedAt = time.Now().UTC()

	if _, err := r.collection.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Invalid("code", "coupon code already exists")
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	return nil
}

func (r *CouponRepository) List(ctx context.Context) ([]domain.Coupon, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer cursor.Close(ctx)

	coupons := []domain.Coupon{}
	if err := cursor.All(ctx, &coupons); err != nil {
		return nil, fmt.Errorf("failed to decode coupons: %w", err)
	}
	return coupons, nil
}

// SetActive toggles whether a coupon can be redeemed.
func (r *CouponRepository) SetActive(ctx context.Context, code string, active bool) error {
	res, err := r.collection.UpdateOne(ctx,
		bson.M{"code": domain.NormalizeCouponCode(code)},
		bson.M{"$set": bson.M{"active": active}})
	if err != nil {
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	if res.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func replaceUpsert() *options.ReplaceOptions {
	return options.Replace().SetUpsert(true)
}
