package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTP    HTTPConfig    `mapstructure:"http"`
	Log     LogConfig     `mapstructure:"log"`
	Mongo   MongoConfig   `mapstructure:"mongo"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Kafka   KafkaConfig   `mapstructure:"kafka"`
	Gateway GatewayConfig `mapstructure:"gateway"`
	PayPage PayPageConfig `mapstructure:"paypage"`
	Reviews ReviewsConfig `mapstructure:"reviews"`
	Pricing PricingConfig `mapstructure:"pricing"`
	Orders  OrdersConfig  `mapstructure:"orders"`
}

type HTTPConfig struct {
	Port            string        `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type MongoConfig struct {
	URI      string `mapstructure:"uri"`
	Database string `mapstructure:"db_name"`
}

type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	CartTTL  time.Duration `mapstructure:"cart_ttl"`
}

type KafkaConfig struct {
	Brokers        []string      `mapstructure:"brokers"`
	Topic          string        `mapstructure:"topic"`
	ConsumerGroup  string        `mapstructure:"consumer_group"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

type GatewayConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	KeyID     string        `mapstructure:"key_id"`
	KeySecret string        `mapstructure:"key_secret"`
	Currency  string        `mapstructure:"currency"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// PayPageConfig is optional; an empty MerchantID leaves the pay-page gateway off.
type PayPageConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	MerchantID  string        `mapstructure:"merchant_id"`
	SaltKey     string        `mapstructure:"salt_key"`
	SaltIndex   string        `mapstructure:"salt_index"`
	RedirectURL string        `mapstructure:"redirect_url"`
	CallbackURL string        `mapstructure:"callback_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

func (p PayPageConfig) Enabled() bool {
	return p.MerchantID != ""
}

type ReviewsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	PlaceID string        `mapstructure:"place_id"`
	TTL     time.Duration `mapstructure:"ttl"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type PricingConfig struct {
	TaxRate float64 `mapstructure:"tax_rate"`
}

type OrdersConfig struct {
	NumberFloor int64 `mapstructure:"number_floor"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.port", "8080")
	v.SetDefault("http.request_timeout", 30*time.Second)
	v.SetDefault("http.shutdown_timeout", 10*time.Second)
	v.SetDefault("http.max_body_bytes", 1<<20) // 1MB

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("mongo.uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("mongo.db_name", "storefront")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.cart_ttl", 15*time.Minute)

	v.SetDefault("kafka.brokers", []string{})
	v.SetDefault("kafka.topic", "order-events")
	v.SetDefault("kafka.consumer_group", "storefront-cart-cleanup")
	v.SetDefault("kafka.publish_timeout", 5*time.Second)

	v.SetDefault("gateway.base_url", "https://api.razorpay.com")
	v.SetDefault("gateway.key_id", "")
	v.SetDefault("gateway.key_secret", "")
	v.SetDefault("gateway.currency", "INR")
	v.SetDefault("gateway.timeout", 10*time.Second)

	v.SetDefault("paypage.base_url", "https://api.phonepe.com/apis/hermes")
	v.SetDefault("paypage.merchant_id", "")
	v.SetDefault("paypage.salt_key", "")
	v.SetDefault("paypage.salt_index", "1")
	v.SetDefault("paypage.redirect_url", "")
	v.SetDefault("paypage.callback_url", "")
	v.SetDefault("paypage.timeout", 10*time.Second)

	v.SetDefault("reviews.base_url", "")
	v.SetDefault("reviews.api_key", "")
	v.SetDefault("reviews.place_id", "")
	v.SetDefault("reviews.ttl", time.Hour)
	v.SetDefault("reviews.timeout", 5*time.Second)

	v.SetDefault("pricing.tax_rate", 0.18)
	v.SetDefault("orders.number_floor", 1001)
}

// Load reads defaults, then the optional YAML file at path, then environment variables.
// Nested keys map to env vars by upper-casing and replacing dots: mongo.uri -> MONGO_URI.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Short names kept from the old per-service deployments.
	_ = v.BindEnv("pricing.tax_rate", "PRICING_TAX_RATE", "TAX_RATE")
	_ = v.BindEnv("orders.number_floor", "ORDERS_NUMBER_FLOOR", "ORDER_NUMBER_FLOOR")

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.Mongo.URI == "" {
		errs = append(errs, errors.New("mongo.uri is required"))
	}
	if c.Pricing.TaxRate < 0 || c.Pricing.TaxRate >= 1 {
		errs = append(errs, fmt.Errorf("pricing.tax_rate must be in [0, 1), got %v", c.Pricing.TaxRate))
	}
	if c.Orders.NumberFloor < 1 {
		errs = append(errs, errors.New("orders.number_floor must be positive"))
	}
	if c.Gateway.Timeout <= 0 {
		errs = append(errs, errors.New("gateway.timeout must be positive"))
	}
	if c.HTTP.RequestTimeout <= c.Gateway.Timeout {
		errs = append(errs, errors.New("http.request_timeout must exceed gateway.timeout"))
	}
	if c.PayPage.Enabled() && c.PayPage.SaltKey == "" {
		errs = append(errs, errors.New("paypage.salt_key is required when paypage.merchant_id is set"))
	}
	return errors.Join(errs...)
}
