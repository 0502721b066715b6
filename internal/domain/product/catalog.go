package product

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/timelesslk/storefront/internal/domain/media"
)

// Catalog implements the admin catalog operations on top of a Repository.
type Catalog struct {
	repo   Repository
	images media.Store
	now    func() time.Time
	newID  func() string
}

// NewCatalog creates a Catalog. images may be nil when no object store is
// configured; product images are then left alone on delete.
func NewCatalog(repo Repository, images media.Store) *Catalog {
	return &Catalog{
		repo:   repo,
		images: images,
		now:    time.Now,
		newID:  uuid.NewString,
	}
}

// List returns every product.
func (c *Catalog) List(ctx context.Context) ([]Product, error) {
	ps, err := c.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list products")
	}
	return ps, nil
}

// Get returns one product or ErrNotFound.
func (c *Catalog) Get(ctx context.Context, id string) (*Product, error) {
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get product")
	}
	return p, nil
}

// Create validates p, assigns an id when missing and stores it.
func (c *Catalog) Create(ctx context.Context, p Product) (*Product, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if p.ID == "" {
		p.ID = c.newID()
	}
	now := c.now().UTC()
	p.CreatedAt, p.UpdatedAt = now, now
	p.Version = 1
	if p.Image == "" && len(p.Images) > 0 {
		p.Image = p.Images[0]
	}
	if err := c.repo.Create(ctx, &p); err != nil {
		return nil, errors.Wrap(err, "create product")
	}
	zctx.From(ctx).Info("Product created", zap.String("product_id", p.ID))
	return &p, nil
}

// Update applies patch to product id.
func (c *Catalog) Update(ctx context.Context, id string, patch Patch) (*Product, error) {
	p, err := c.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, errors.Wrap(err, "update product")
	}
	zctx.From(ctx).Info("Product updated", zap.String("product_id", id), zap.Int64("version", p.Version))
	return p, nil
}

// Delete removes product id, then its images. Image removal failures are
// logged and do not fail the call.
func (c *Catalog) Delete(ctx context.Context, id string) error {
	p, err := c.repo.GetByID(ctx, id)
	if err != nil {
		return errors.Wrap(err, "get product")
	}
	if err := c.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete product")
	}

	lg := zctx.From(ctx).With(zap.String("product_id", id))
	lg.Info("Product deleted")
	if c.images == nil {
		return nil
	}
	for _, url := range imageURLs(*p) {
		if _, err := c.images.Delete(ctx, url); err != nil {
			lg.Warn("Failed to delete product image", zap.String("url", url), zap.Error(err))
		}
	}
	return nil
}

// imageURLs returns the distinct non-empty image URLs of p.
func imageURLs(p Product) []string {
	seen := make(map[string]struct{}, len(p.Images)+1)
	var out []string
	for _, u := range append([]string{p.Image}, p.Images...) {
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
