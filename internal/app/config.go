package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config is the API server configuration, loaded from KART_ environment
// variables, flags or YAML files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"PostgreSQL connection URL (KART_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIToken    string `usage:"Shared secret required by coupon and order endpoints" flag:"api-token"`
	Redis       RedisConfig
	Kafka       KafkaConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// RedisConfig enables the product cache when Addr is set.
type RedisConfig struct {
	Addr       string        `default:"" usage:"Redis address; empty disables the product cache"`
	Password   string        `default:"" usage:"Redis password"`
	DB         int           `default:"0" usage:"Redis database"`
	ProductTTL time.Duration `default:"1h" usage:"Product cache entry lifetime" flag:"redis-product-ttl"`
}

// KafkaConfig enables the order event relay when Brokers is set.
type KafkaConfig struct {
	Brokers      []string      `default:"" usage:"Kafka brokers; empty keeps events in the outbox"`
	Topic        string        `default:"orders" usage:"Topic for order events"`
	PollInterval time.Duration `default:"1s" usage:"Outbox poll interval" flag:"kafka-poll-interval"`
	BatchSize    int           `default:"100" usage:"Events published per batch" flag:"kafka-batch-size"`
	Lease        time.Duration `default:"30s" usage:"Time before an unacknowledged claimed event is retried" flag:"kafka-lease"`
	AutoCreate   bool          `default:"false" usage:"Create the topic on first write" flag:"kafka-auto-create"`
}

// RateLimitConfig controls the per-client limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads and validates the configuration.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "KART",
		Files:     []string{"config.yaml", "/etc/kart/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks required settings.
func (c *Config) Validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set KART_DATABASE_URL or DATABASE_URL")
	case c.APIToken == "":
		return errors.New("API token is required: set KART_API_TOKEN")
	case len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "":
		return errors.New("kafka topic is required when brokers are set")
	}
	return nil
}

// applyPlatformDefaults honours DATABASE_URL and PORT as set by hosting
// platforms.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
	// An empty default still yields one empty element for slice fields.
	brokers := c.Kafka.Brokers[:0]
	for _, b := range c.Kafka.Brokers {
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	c.Kafka.Brokers = brokers
}
