package cli

import (
	"context"
	"fmt"
	"net/http"

	"github.com/fjod/go_cart/internal/cache"
	"github.com/fjod/go_cart/internal/cart"
	"github.com/fjod/go_cart/internal/checkout"
	"github.com/fjod/go_cart/internal/config"
	"github.com/fjod/go_cart/internal/coupon"
	"github.com/fjod/go_cart/internal/events"
	"github.com/fjod/go_cart/internal/gateway"
	api "github.com/fjod/go_cart/internal/http"
	"github.com/fjod/go_cart/internal/order"
	"github.com/fjod/go_cart/internal/pricing"
	"github.com/fjod/go_cart/internal/repository"
	"github.com/fjod/go_cart/internal/reviews"
	"github.com/fjod/go_cart/internal/signature"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/mongo"
)

// app holds the wired service graph and what must be closed on shutdown.
type app struct {
	handler http.Handler
	workers []func(context.Context)
	closers []func(context.Context) error
}

// Start runs background workers until ctx is cancelled.
func (a *app) Start(ctx context.Context) {
	for _, w := range a.workers {
		go w(ctx)
	}
}

func (a *app) Close(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.WithError(err).Warn("shutdown step failed")
		}
	}
}

func connectMongo(ctx context.Context, cfg *config.Config) (*mongo.Database, error) {
	db, err := repository.ConnectMongoDB(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
	if err != nil {
		return nil, err
	}
	log.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")
	return db, nil
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{}

	db, err := connectMongo(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func(ctx context.Context) error { return db.Client().Disconnect(ctx) })

	if err := repository.RunMigrations(db); err != nil {
		a.Close(ctx)
		return nil, err
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	a.closers = append(a.closers, func(context.Context) error { return redisClient.Close() })
	if err := redisClient.Ping(ctx).Err(); err != nil {
		a.Close(ctx)
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded")

	var publisher *events.Publisher
	if len(cfg.Kafka.Brokers) > 0 {
		writer := events.NewKafkaWriter(cfg.Kafka.Topic, cfg.Kafka.Brokers...)
		publisher = events.NewPublisher(writer, cfg.Kafka.PublishTimeout)
		a.closers = append(a.closers, func(context.Context) error { return publisher.Close() })
	} else {
		log.Warn("no kafka brokers configured, order events are not published")
		publisher = events.NewPublisher(nil, cfg.Kafka.PublishTimeout)
	}

	engine := pricing.NewEngine(cfg.Pricing.TaxRate)

	cartRepo := repository.NewCartRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	couponRepo := repository.NewCouponRepository(db)
	orderRepo := repository.NewOrderRepository(db, cfg.Orders.NumberFloor)

	cartService := cart.NewCartService(cartRepo, cache.NewRedisCache(redisClient, cfg.Redis.CartTTL), catalogRepo, engine)

	if len(cfg.Kafka.Brokers) > 0 {
		consumer := events.NewConsumer(events.NewKafkaReader(cfg.Kafka.Topic, cfg.Kafka.ConsumerGroup, cfg.Kafka.Brokers...))
		consumer.Handle(events.OrderPaid, events.ClearCartOnPaid(cartService))
		a.workers = append(a.workers, consumer.Run)
		a.closers = append(a.closers, func(context.Context) error { return consumer.Close() })
	}

	orchestrator := gateway.NewOrchestrator(
		gateway.NewClient(gateway.Config{
			BaseURL:   cfg.Gateway.BaseURL,
			KeyID:     cfg.Gateway.KeyID,
			KeySecret: cfg.Gateway.KeySecret,
			Timeout:   cfg.Gateway.Timeout,
		}),
		signature.NewCallbackVerifier(cfg.Gateway.KeySecret),
		cfg.Gateway.Currency,
		cfg.Gateway.Timeout,
	)

	// Interfaces stay nil when the pay-page gateway is off.
	var (
		payPageStarter   checkout.PayPage
		payPageCallbacks order.PayPageCallbacks
	)
	if cfg.PayPage.Enabled() {
		pp := gateway.NewPayPageClient(gateway.PayPageConfig{
			BaseURL:     cfg.PayPage.BaseURL,
			MerchantID:  cfg.PayPage.MerchantID,
			SaltKey:     cfg.PayPage.SaltKey,
			SaltIndex:   cfg.PayPage.SaltIndex,
			RedirectURL: cfg.PayPage.RedirectURL,
			CallbackURL: cfg.PayPage.CallbackURL,
			Timeout:     cfg.PayPage.Timeout,
		})
		payPageStarter, payPageCallbacks = pp, pp
	}

	orderService := order.NewService(orderRepo, orchestrator, payPageCallbacks, cartService, publisher)
	checkoutService := checkout.NewService(
		cartService,
		engine,
		coupon.NewValidator(couponRepo, nil),
		orderRepo,
		orderService,
		orchestrator,
		payPageStarter,
		publisher,
		cfg.Gateway.Currency,
	)

	reviewConfig := reviews.NewConfig(cfg.Reviews.BaseURL, cfg.Reviews.APIKey, cfg.Reviews.PlaceID)
	if _, ok := reviewConfig.(reviews.Unconfigured); ok {
		log.Info("reviews source not configured, serving empty summaries")
	}
	reviewService := reviews.NewFromConfig(reviewConfig, cfg.Reviews.TTL, cfg.Reviews.Timeout)

	timeout := cfg.HTTP.RequestTimeout
	a.handler = api.NewRouter(api.Handlers{
		Cart:     api.NewCartHandler(cartService, timeout),
		Checkout: api.NewCheckoutHandler(checkoutService, timeout),
		Orders:   api.NewOrdersHandler(orderService, timeout),
		Payments: api.NewPaymentsHandler(orderService, timeout),
		Admin:    api.NewAdminHandler(orderService, couponRepo, timeout),
		Reviews:  api.NewReviewsHandler(reviewService, timeout),
	}, cfg.HTTP.MaxBodyBytes)

	return a, nil
}
