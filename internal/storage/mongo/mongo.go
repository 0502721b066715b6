// Package mongo implements catalog, inventory, order and settings storage on
// MongoDB. Stock decrements run in a multi-document transaction, so the
// server must be a replica set.
package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	productsCollection = "products"
	ordersCollection   = "orders"
	settingsCollection = "settings"
)

// Connect dials uri, verifies the connection and returns the named database.
func Connect(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second).
		SetMaxPoolSize(100)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, errors.Wrap(err, "connect")
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, errors.Wrap(err, "ping")
	}
	return client.Database(database), nil
}

// EnsureIndexes creates the indexes listing queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	desc := mongo.IndexModel{Keys: bson.D{{Key: "created_at", Value: -1}}}
	if _, err := db.Collection(productsCollection).Indexes().CreateOne(ctx, desc); err != nil {
		return errors.Wrap(err, "products index")
	}
	if _, err := db.Collection(ordersCollection).Indexes().CreateOne(ctx, desc); err != nil {
		return errors.Wrap(err, "orders index")
	}
	return nil
}

// Store groups the repositories sharing one database.
type Store struct {
	Products *ProductRepository
	Orders   *OrderRepository
	Settings *SettingsRepository
}

// NewStore wires every repository on db.
func NewStore(db *mongo.Database) *Store {
	return &Store{
		Products: NewProductRepository(db),
		Orders:   NewOrderRepository(db),
		Settings: NewSettingsRepository(db),
	}
}
