package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/fjod/go_cart/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// CatalogRepository reads products maintained by the catalog admin tooling.
type CatalogRepository struct {
	collection *mongo.Collection
}

func NewCatalogRepository(db *mongo.Database) *CatalogRepository {
	return &CatalogRepository{collection: db.Collection(productsCollection)}
}

func (r *CatalogRepository) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var p domain.Product

	err := r.collection.FindOne(ctx, bson.M{"_id": productID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %s: %w", productID, err)
	}

	return &p, nil
}

// SaveProduct upserts a product. Used by seeding and tests.
func (r *CatalogRepository) SaveProduct(ctx context.Context, p *domain.Product) error {
	_, err := r.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, replaceUpsert())
	if err != nil {
		return fmt.Errorf("failed to save product %s: %w", p.ID, err)
	}
	return nil
}
