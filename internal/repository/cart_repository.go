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
)

type CartRepository struct {
	collection *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{collection: db.Collection(cartsCollection)}
}

func (r *CartRepository) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	var cart domain.Cart

	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&cart)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}

	return &cart, nil
}

// SaveCart replaces the user's cart document, creating it on first save.
func (r *CartRepository) SaveCart(ctx context.Context, cart *domain.Cart) error {
	now := time.Now().UTC()

	if cart.ID == "" {
		cart.ID = uuid.NewString()
	}
	if cart.CreatedAt.IsZero() {
		cart.CreatedAt = now
	}
	cart.UpdatedAt = now

	_, err := r.collection.ReplaceOne(ctx, bson.M{"user_id": cart.UserID}, cart, replaceUpsert())
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}

	return nil
}

func (r *CartRepository) DeleteCart(ctx context.Context, userID string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID})
	if err != nil {
		return fmt.Errorf("failed to delete cart: %w", err)
	}

	if result.DeletedCount == 0 {
		return domain.ErrNotFound
	}

	return nil
}
