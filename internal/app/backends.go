package app

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/domain/media"
	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/settings"
	"github.com/timelesslk/storefront/internal/notify"
	"github.com/timelesslk/storefront/internal/objectstore"
	"github.com/timelesslk/storefront/internal/storage/cache"
	"github.com/timelesslk/storefront/internal/storage/file"
	"github.com/timelesslk/storefront/internal/storage/mongo"
	"github.com/timelesslk/storefront/internal/storage/postgres"
	"github.com/timelesslk/storefront/pkg/health"
)

// Storage is the persistence selected by configuration.
type Storage struct {
	Products cache.Backend
	Orders   order.Repository
	Settings settings.Repository
	// Ping checks backend connectivity; nil for the file backend.
	Ping  health.CheckFunc
	Close func()
}

// OpenStorage connects the configured backend and prepares its schema.
func OpenStorage(ctx context.Context, cfg StorageConfig) (*Storage, error) {
	switch cfg.Backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, cfg.MaxConns)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		s := postgres.NewStore(pool)
		return &Storage{
			Products: s.Products,
			Orders:   s.Orders,
			Settings: s.Settings,
			Ping:     health.Ping(pool),
			Close:    pool.Close,
		}, nil
	case BackendMongo:
		db, err := mongo.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			return nil, errors.Wrap(err, "connect mongo")
		}
		if err := mongo.EnsureIndexes(ctx, db); err != nil {
			_ = db.Client().Disconnect(context.Background())
			return nil, errors.Wrap(err, "ensure indexes")
		}
		s := mongo.NewStore(db)
		return &Storage{
			Products: s.Products,
			Orders:   s.Orders,
			Settings: s.Settings,
			Ping: func(ctx context.Context) error {
				return db.Client().Ping(ctx, nil)
			},
			Close: func() { _ = db.Client().Disconnect(context.Background()) },
		}, nil
	case BackendFile:
		s, err := file.Open(cfg.DataDir)
		if err != nil {
			return nil, errors.Wrap(err, "open data dir")
		}
		return &Storage{
			Products: s.Products(),
			Orders:   s.Orders(),
			Settings: s.Settings(),
			Close:    func() {},
		}, nil
	default:
		return nil, errors.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

// newRedis returns nil when caching is disabled.
func newRedis(cfg RedisConfig) *redis.Client {
	if cfg.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// newImages returns the configured image store and, for the disk store, the
// directory to serve under /uploads.
func newImages(ctx context.Context, cfg *Config) (media.Store, string, error) {
	switch cfg.Images.Backend {
	case ImagesS3:
		s3cfg := cfg.Images.S3
		store, err := objectstore.NewS3(ctx, objectstore.S3Config{
			Bucket:       s3cfg.Bucket,
			Region:       s3cfg.Region,
			Endpoint:     s3cfg.Endpoint,
			AccessKey:    s3cfg.AccessKey,
			SecretKey:    s3cfg.SecretKey,
			PublicURL:    s3cfg.PublicURL,
			UsePathStyle: s3cfg.UsePathStyle,
		})
		if err != nil {
			return nil, "", errors.Wrap(err, "s3 image store")
		}
		return store, "", nil
	case ImagesDisk:
		store, err := objectstore.NewDisk(cfg.Images.Dir, cfg.PublicURL+"/uploads")
		if err != nil {
			return nil, "", errors.Wrap(err, "disk image store")
		}
		return store, store.Dir(), nil
	default:
		return nil, "", nil
	}
}

// newSinks builds the notification channels. closers release sink resources
// after the queue has drained.
func newSinks(lg *zap.Logger, cfg NotifyConfig, format notify.Formatter) (sinks []notify.Sink, closers []func() error, err error) {
	if cfg.Log {
		sinks = append(sinks, notify.NewLog(lg.Named("notify"), format))
	}
	if cfg.SMTP.Host != "" {
		email, err := notify.NewEmail(notify.SMTPConfig{
			Host:     cfg.SMTP.Host,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			Owner:    cfg.SMTP.Owner,
		}, format)
		if err != nil {
			return nil, nil, errors.Wrap(err, "email sink")
		}
		sinks = append(sinks, email)
	}
	if len(cfg.Kafka.Brokers) > 0 {
		k := notify.NewKafka(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, k)
		closers = append(closers, k.Close)
	}
	return sinks, closers, nil
}
