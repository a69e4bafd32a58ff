package cache

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fjod/go_cart/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis server and returns a RedisCache instance
func setupTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisCache(client, 15*time.Minute), mr
}

func sampleCart(userID string) *domain.Cart {
	return &domain.Cart{
		ID:     "cart-1",
		UserID: userID,
		Items: []domain.CartLine{
			{ProductID: "sku-1", Variant: "personal", Quantity: 2, UnitPrice: 19.99, LineTotal: 39.98},
			{ProductID: "sku-2", Variant: "team", Quantity: 1, UnitPrice: 49, LineTotal: 49},
		},
		Summary:   domain.CartSummary{Subtotal: 88.98, ItemCount: 3},
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
}

func TestGet_Success(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user123"

	cartJSON, err := json.Marshal(sampleCart(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID), string(cartJSON)))

	result, err := cache.Get(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, userID, result.UserID)
	assert.Len(t, result.Items, 2)
	assert.Equal(t, "sku-1", result.Items[0].ProductID)
	assert.Equal(t, 88.98, result.Summary.Subtotal)
}

func TestGet_CacheMiss(t *testing.T) {
	cache, _ := setupTestRedis(t)

	result, err := cache.Get(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, ErrCacheMiss)
	assert.Nil(t, result)
}

func TestGet_InvalidJSON(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user123"

	cartJSON, err := json.Marshal(sampleCart(userID))
	require.NoError(t, err)
	require.NoError(t, mr.Set(cacheKey(userID), string(cartJSON[:10])))

	_, err = cache.Get(context.Background(), userID)
	require.ErrorContains(t, err, "unmarshal cart failed")
}

func TestGet_RedisDown(t *testing.T) {
	cache, mr := setupTestRedis(t)
	mr.Close()

	_, err := cache.Get(context.Background(), "user1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)
}

func TestSet_StoresCartWithJitteredTTL(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user456"

	require.NoError(t, cache.Set(context.Background(), userID, sampleCart(userID)))

	stored, err := mr.Get(cacheKey(userID))
	require.NoError(t, err)
	var storedCart domain.Cart
	require.NoError(t, json.Unmarshal([]byte(stored), &storedCart))
	assert.Equal(t, userID, storedCart.UserID)
	assert.Len(t, storedCart.Items, 2)

	ttl := mr.TTL(cacheKey(userID))
	assert.GreaterOrEqual(t, ttl, 15*time.Minute)
	assert.LessOrEqual(t, ttl, 20*time.Minute)
}

func TestDelete(t *testing.T) {
	cache, mr := setupTestRedis(t)
	userID := "user999"
	require.NoError(t, mr.Set(cacheKey(userID), `{"user_id":"user999"}`))

	require.NoError(t, cache.Delete(context.Background(), userID))
	assert.False(t, mr.Exists(cacheKey(userID)))

	// deleting a missing key is not an error
	assert.NoError(t, cache.Delete(context.Background(), "nonexistent"))
}

func TestCacheKey_Format(t *testing.T) {
	assert.Equal(t, "storefront:cart:test123", cacheKey("test123"))
}
