package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends.
const (
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendFile     = "file"
)

// Image store backends.
const (
	ImagesS3   = "s3"
	ImagesDisk = "disk"
	ImagesNone = "none"
)

// Config holds the complete application configuration, loadable from
// environment variables (TIMELESS_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"API server listen address"`
	PublicURL string `default:"http://localhost:8080" usage:"Public base URL of this server, used for locally stored images" flag:"public-url"`
	Currency  string `default:"Rs." usage:"Currency label used in order summaries"`
	WhatsApp  string `usage:"Store WhatsApp number for the checkout hand-off link" flag:"whatsapp"`
	Storage   StorageConfig
	Redis     RedisConfig
	Images    ImagesConfig
	Admin     AdminConfig
	Orders    OrdersConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Backend       string `default:"postgres" usage:"Storage backend: postgres, mongo or file"`
	DatabaseURL   string `usage:"PostgreSQL connection URL (TIMELESS_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	MaxConns      int32  `default:"10" usage:"PostgreSQL pool size"`
	MongoURI      string `usage:"MongoDB connection URI (TIMELESS_STORAGE_MONGO_URI or MONGODB_URI)" flag:"mongo-uri"`
	MongoDatabase string `default:"timeless" usage:"MongoDB database name"`
	DataDir       string `default:"data" usage:"Directory of the file backend"`
}

// RedisConfig enables the catalog read cache when Addr is set.
type RedisConfig struct {
	Addr     string        `usage:"Redis address for the catalog cache; empty disables caching"`
	Password string        `usage:"Redis password"`
	DB       int           `default:"0" usage:"Redis database"`
	TTL      time.Duration `default:"1m" usage:"Catalog cache TTL"`
}

// ImagesConfig selects where product images are stored.
type ImagesConfig struct {
	Backend string `default:"disk" usage:"Image store: s3, disk or none"`
	Dir     string `default:"uploads" usage:"Directory of the disk image store"`
	S3      S3Config
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Bucket       string `usage:"Bucket name"`
	Region       string `default:"us-east-1" usage:"Bucket region"`
	Endpoint     string `usage:"Custom endpoint for S3-compatible stores"`
	AccessKey    string `usage:"Static access key; default credential chain when empty"`
	SecretKey    string `usage:"Static secret key"`
	PublicURL    string `usage:"Public base URL of stored objects"`
	UsePathStyle bool   `default:"false" usage:"Use path-style addressing"`
}

// AdminConfig holds the admin credentials and token settings.
type AdminConfig struct {
	User      string        `usage:"Admin user name"`
	Pass      string        `usage:"Admin password"`
	JWTSecret string        `usage:"HS256 signing secret for admin tokens" flag:"jwt-secret"`
	TokenTTL  time.Duration `default:"12h" usage:"Admin token lifetime"`
}

// OrdersConfig tunes order placement.
type OrdersConfig struct {
	ReserveAttempts uint  `default:"3" usage:"Stock reservation attempts under contention"`
	JSONLimit       int64 `default:"10240" usage:"Max JSON request body size in bytes"`
}

// NotifyConfig configures order notifications.
type NotifyConfig struct {
	QueueSize    int           `default:"256" usage:"Buffered notifications before dropping"`
	Workers      int           `default:"2" usage:"Concurrent deliveries"`
	Attempts     uint          `default:"5" usage:"Delivery attempts per channel"`
	Timeout      time.Duration `default:"15s" usage:"Single delivery attempt timeout"`
	DrainTimeout time.Duration `default:"10s" usage:"Time to flush queued notifications on shutdown"`
	Log          bool          `default:"true" usage:"Log order summaries"`
	SMTP         SMTPConfig
	Kafka        KafkaConfig
}

// SMTPConfig enables e-mail notifications when Host is set.
type SMTPConfig struct {
	Host     string `usage:"SMTP host; empty disables e-mail"`
	Port     int    `default:"587" usage:"SMTP port"`
	Username string `usage:"SMTP user"`
	Password string `usage:"SMTP password"`
	From     string `usage:"Sender address"`
	Owner    string `usage:"Store owner address receiving every order"`
}

// KafkaConfig enables order events when Brokers is set.
type KafkaConfig struct {
	Brokers []string `usage:"Kafka brokers; empty disables events"`
	Topic   string   `default:"orders" usage:"Order events topic"`
}

// RateLimitConfig sets the per-client limit of each request class.
type RateLimitConfig struct {
	APIMax      int           `default:"300" usage:"Requests per window for the whole API"`
	APIWindow   time.Duration `default:"1m"`
	OrderMax    int           `default:"10" usage:"Checkout requests per window"`
	OrderWindow time.Duration `default:"1m"`
	LoginMax    int           `default:"5" usage:"Admin login attempts per window"`
	LoginWindow time.Duration `default:"15m"`
	AdminMax    int           `default:"300" usage:"Admin requests per window"`
	AdminWindow time.Duration `default:"1m"`
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

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "TIMELESS",
		Files:     []string{"config.yaml", "/etc/timeless/config.yaml"},
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

// Validate checks that the selected backends are fully configured.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set TIMELESS_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	case BackendMongo:
		if c.Storage.MongoURI == "" {
			return errors.New("mongo URI is required: set TIMELESS_STORAGE_MONGO_URI or MONGODB_URI")
		}
	case BackendFile:
		if c.Storage.DataDir == "" {
			return errors.New("data dir is required for the file backend")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	switch c.Images.Backend {
	case ImagesS3:
		if c.Images.S3.Bucket == "" {
			return errors.New("images.s3.bucket is required for the s3 image store")
		}
	case ImagesDisk, ImagesNone:
	default:
		return errors.Errorf("unknown image backend %q", c.Images.Backend)
	}

	if c.Admin.User == "" || c.Admin.Pass == "" || c.Admin.JWTSecret == "" {
		return errors.New("admin credentials and JWT secret are required")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's TIMELESS_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.Storage.MongoURI == "" {
		c.Storage.MongoURI = os.Getenv("MONGODB_URI")
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
