package mongo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/timelesslk/storefront/internal/domain/product"
)

type productDoc struct {
	ID          string               `bson:"_id"`
	Name        string               `bson:"name"`
	Brand       string               `bson:"brand"`
	Category    string               `bson:"category"`
	Description string               `bson:"description"`
	Price       primitive.Decimal128 `bson:"price"`
	Discount    primitive.Decimal128 `bson:"discount"`
	Stock       int                  `bson:"stock"`
	Image       string               `bson:"image"`
	Images      []string             `bson:"images"`
	Version     int64                `bson:"version"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

func newProductDoc(p product.Product) (productDoc, error) {
	price, err := toDecimal128(p.Price)
	if err != nil {
		return productDoc{}, err
	}
	discount, err := toDecimal128(p.Discount)
	if err != nil {
		return productDoc{}, err
	}
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return productDoc{
		ID:          p.ID,
		Name:        p.Name,
		Brand:       p.Brand,
		Category:    p.Category,
		Description: p.Description,
		Price:       price,
		Discount:    discount,
		Stock:       p.Stock,
		Image:       p.Image,
		Images:      images,
		Version:     p.Version,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}, nil
}

func (d productDoc) product() (product.Product, error) {
	price, err := fromDecimal128(d.Price)
	if err != nil {
		return product.Product{}, err
	}
	discount, err := fromDecimal128(d.Discount)
	if err != nil {
		return product.Product{}, err
	}
	return product.Product{
		ID:          d.ID,
		Name:        d.Name,
		Brand:       d.Brand,
		Category:    d.Category,
		Description: d.Description,
		Price:       price,
		Discount:    discount,
		Stock:       d.Stock,
		Image:       d.Image,
		Images:      d.Images,
		Version:     d.Version,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}, nil
}

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Inventory  = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Inventory.
type ProductRepository struct {
	coll *mongo.Collection
	now  func() time.Time
}

// NewProductRepository returns a ProductRepository over the products
// collection of db.
func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection), now: time.Now}
}

// List returns the catalog, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	return r.find(ctx, bson.M{}, opts)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := doc.product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	return r.find(ctx, bson.M{"_id": bson.M{"$in": ids}})
}

func (r *ProductRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]product.Product, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "find products")
	}
	var docs []productDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	out := make([]product.Product, 0, len(docs))
	for _, d := range docs {
		p, err := d.product()
		if err != nil {
			return nil, errors.Wrapf(err, "product %q", d.ID)
		}
		out = append(out, p)
	}
	return out, nil
}

// Create inserts p, filling its version and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	now := r.now().UTC().Truncate(time.Millisecond)
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	doc, err := newProductDoc(*p)
	if err != nil {
		return err
	}
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// Update applies patch to the stored product, guarded by its version.
func (r *ProductRepository) Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.Apply(*current)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = r.now().UTC().Truncate(time.Millisecond)

	doc, err := newProductDoc(next)
	if err != nil {
		return nil, err
	}
	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": id, "version": current.Version}, doc)
	if err != nil {
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	if res.MatchedCount == 0 {
		return nil, product.ErrVersionConflict
	}
	return &next, nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if res.DeletedCount == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ApplyDecrements decrements every product inside one transaction. A
// product whose version moved aborts the transaction with
// product.ErrVersionConflict.
func (r *ProductRepository) ApplyDecrements(ctx context.Context, decs []product.Decrement) error {
	sess, err := r.coll.Database().Client().StartSession()
	if err != nil {
		return errors.Wrap(err, "start session")
	}
	defer sess.EndSession(ctx)

	now := r.now().UTC()
	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		for _, d := range decs {
			// Stock never drops below zero even if a caller over-requests.
			update := mongo.Pipeline{
				{{Key: "$set", Value: bson.M{
					"stock":      bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$stock", d.Quantity}}}},
					"version":    bson.M{"$add": bson.A{"$version", 1}},
					"updated_at": now,
				}}},
			}
			res, err := r.coll.UpdateOne(sc, bson.M{"_id": d.ProductID, "version": d.ExpectedVersion}, update)
			if err != nil {
				return nil, errors.Wrapf(err, "decrement %q", d.ProductID)
			}
			if res.MatchedCount == 0 {
				return nil, errors.Wrapf(product.ErrVersionConflict, "product %q", d.ProductID)
			}
		}
		return nil, nil
	})
	return err
}
