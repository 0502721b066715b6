package postgres

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timelesslk/storefront/internal/domain/product"
)

const productColumns = `id, name, brand, category, description, price, discount, stock,
	image, images, version, created_at, updated_at`

const (
	listProductsSQL = `SELECT ` + productColumns + ` FROM products ORDER BY created_at DESC, id`

	getProductByIDSQL = `SELECT ` + productColumns + ` FROM products WHERE id = $1`

	getProductsByIDsSQL = `SELECT ` + productColumns + ` FROM products WHERE id = ANY($1)`

	insertProductSQL = `INSERT INTO products (` + productColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	updateProductSQL = `UPDATE products SET name = $2, brand = $3, category = $4, description = $5,
		price = $6, discount = $7, stock = $8, image = $9, images = $10,
		version = version + 1, updated_at = $11
		WHERE id = $1 AND version = $12
		RETURNING version`

	deleteProductSQL = `DELETE FROM products WHERE id = $1`

	decrementStockSQL = `UPDATE products SET stock = GREATEST(stock - $2, 0),
		version = version + 1, updated_at = now()
		WHERE id = $1 AND version = $3`
)

var (
	_ product.Repository = (*ProductRepository)(nil)
	_ product.Inventory  = (*ProductRepository)(nil)
)

// ProductRepository implements product.Repository and product.Inventory.
type ProductRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewProductRepository returns a ProductRepository that uses the given pool.
func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool, now: time.Now}
}

// List returns the catalog, newest first.
func (r *ProductRepository) List(ctx context.Context) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, listProductsSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(ctx context.Context, id string) (*product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductByIDSQL, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	p, err := pgx.CollectExactlyOneRow(rows, scanProduct)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %q", id)
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(ctx context.Context, ids []string) ([]product.Product, error) {
	rows, err := r.pool.Query(ctx, getProductsByIDsSQL, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products by ids")
	}
	return pgx.CollectRows(rows, scanProduct)
}

// Create inserts p, filling its version and timestamps.
func (r *ProductRepository) Create(ctx context.Context, p *product.Product) error {
	now := r.now().UTC()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	if p.Images == nil {
		p.Images = []string{}
	}
	_, err := r.pool.Exec(ctx, insertProductSQL,
		p.ID, p.Name, p.Brand, p.Category, p.Description, p.Price, p.Discount, p.Stock,
		p.Image, p.Images, p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "create product %q", p.ID)
	}
	return nil
}

// Update applies patch to the stored product. A concurrent write between
// the read and the update is reported as product.ErrVersionConflict.
func (r *ProductRepository) Update(ctx context.Context, id string, patch product.Patch) (*product.Product, error) {
	current, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	next, err := patch.Apply(*current)
	if err != nil {
		return nil, err
	}
	next.UpdatedAt = r.now().UTC()

	err = r.pool.QueryRow(ctx, updateProductSQL,
		id, next.Name, next.Brand, next.Category, next.Description,
		next.Price, next.Discount, next.Stock, next.Image, next.Images,
		next.UpdatedAt, current.Version,
	).Scan(&next.Version)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, product.ErrVersionConflict
		}
		return nil, errors.Wrapf(err, "update product %q", id)
	}
	return &next, nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, deleteProductSQL, id)
	if err != nil {
		return errors.Wrapf(err, "delete product %q", id)
	}
	if tag.RowsAffected() == 0 {
		return product.ErrNotFound
	}
	return nil
}

// ApplyDecrements decrements stock for every entry inside one transaction.
// Each row update is conditioned on the expected version; if any matches no
// row the transaction is rolled back and product.ErrVersionConflict returned.
func (r *ProductRepository) ApplyDecrements(ctx context.Context, decs []product.Decrement) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		batch := &pgx.Batch{}
		for _, d := range decs {
			batch.Queue(decrementStockSQL, d.ProductID, d.Quantity, d.ExpectedVersion)
		}
		br := tx.SendBatch(ctx, batch)
		for _, d := range decs {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return errors.Wrapf(err, "decrement %q", d.ProductID)
			}
			if tag.RowsAffected() == 0 {
				_ = br.Close()
				return errors.Wrapf(product.ErrVersionConflict, "product %q", d.ProductID)
			}
		}
		return br.Close()
	})
}

func scanProduct(row pgx.CollectableRow) (product.Product, error) {
	var p product.Product
	err := row.Scan(
		&p.ID, &p.Name, &p.Brand, &p.Category, &p.Description,
		&p.Price, &p.Discount, &p.Stock,
		&p.Image, &p.Images, &p.Version, &p.CreatedAt, &p.UpdatedAt,
	)
	return p, err
}
