package mongo

import (
	"context"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/timelesslk/storefront/internal/domain/settings"
)

const settingsID = "store"

type settingsDoc struct {
	ID          string               `bson:"_id"`
	ShippingFee primitive.Decimal128 `bson:"shipping_fee"`
}

var _ settings.Repository = (*SettingsRepository)(nil)

// SettingsRepository stores the single settings document.
type SettingsRepository struct {
	coll *mongo.Collection
}

// NewSettingsRepository returns a SettingsRepository over the settings
// collection.
func NewSettingsRepository(db *mongo.Database) *SettingsRepository {
	return &SettingsRepository{coll: db.Collection(settingsCollection)}
}

// Get returns the stored settings, or zero values when none were saved.
func (r *SettingsRepository) Get(ctx context.Context) (settings.Settings, error) {
	var doc settingsDoc
	err := r.coll.FindOne(ctx, bson.M{"_id": settingsID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return settings.Settings{}, nil
	}
	if err != nil {
		return settings.Settings{}, errors.Wrap(err, "get settings")
	}
	fee, err := fromDecimal128(doc.ShippingFee)
	if err != nil {
		return settings.Settings{}, err
	}
	return settings.Settings{ShippingFee: fee}, nil
}

// Put replaces the stored settings.
func (r *SettingsRepository) Put(ctx context.Context, s settings.Settings) error {
	fee, err := toDecimal128(s.ShippingFee)
	if err != nil {
		return err
	}
	_, err = r.coll.ReplaceOne(ctx,
		bson.M{"_id": settingsID},
		settingsDoc{ID: settingsID, ShippingFee: fee},
		options.Replace().SetUpsert(true),
	)
	if err != nil {
		return errors.Wrap(err, "put settings")
	}
	return nil
}
