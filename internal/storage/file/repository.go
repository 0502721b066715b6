package file

import (
	"context"
	"slices"
	"strings"

	"github.com/go-faster/errors"

	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
)

var (
	_ product.Repository  = (*ProductRepository)(nil)
	_ product.Inventory   = (*ProductRepository)(nil)
	_ order.Repository    = (*OrderRepository)(nil)
	_ settings.Repository = (*SettingsRepository)(nil)
)

// ProductRepository implements product.Repository and product.Inventory.
type ProductRepository struct{ s *Store }

func (s *Store) sortedProducts() []product.Product {
	out := make([]product.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

// List returns the catalog, newest first.
func (r *ProductRepository) List(context.Context) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.sortedProducts(), nil
}

// GetByID returns a single product by its identifier.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// GetByIDs returns products matching any of the given IDs.
func (r *ProductRepository) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Create inserts p, filling its version and timestamps.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.products[p.ID]; ok {
		return errors.Errorf("product %q already exists", p.ID)
	}
	now := r.s.now().UTC()
	p.Version = 1
	p.CreatedAt, p.UpdatedAt = now, now
	r.s.products[p.ID] = *p
	if err := r.s.flushProducts(); err != nil {
		delete(r.s.products, p.ID)
		return err
	}
	return nil
}

// Update applies patch to the stored product.
func (r *ProductRepository) Update(_ context.Context, id string, patch product.Patch) (*product.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	next, err := patch.Apply(current)
	if err != nil {
		return nil, err
	}
	next.Version = current.Version + 1
	next.UpdatedAt = r.s.now().UTC()
	r.s.products[id] = next
	if err := r.s.flushProducts(); err != nil {
		r.s.products[id] = current
		return nil, err
	}
	return &next, nil
}

// Delete removes a product.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.products[id]
	if !ok {
		return product.ErrNotFound
	}
	delete(r.s.products, id)
	if err := r.s.flushProducts(); err != nil {
		r.s.products[id] = current
		return err
	}
	return nil
}

// ApplyDecrements checks every expected version and then applies all
// decrements under the store lock.
func (r *ProductRepository) ApplyDecrements(_ context.Context, decs []product.Decrement) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range decs {
		p, ok := r.s.products[d.ProductID]
		if !ok || p.Version != d.ExpectedVersion {
			return errors.Wrapf(product.ErrVersionConflict, "product %q", d.ProductID)
		}
	}
	before := make(map[string]product.Product, len(decs))
	now := r.s.now().UTC()
	for _, d := range decs {
		p := r.s.products[d.ProductID]
		before[p.ID] = p
		p.Stock = max(p.Stock-d.Quantity, 0)
		p.Version++
		p.UpdatedAt = now
		r.s.products[p.ID] = p
	}
	if err := r.s.flushProducts(); err != nil {
		for id, p := range before {
			r.s.products[id] = p
		}
		return err
	}
	return nil
}

// OrderRepository implements order.Repository.
type OrderRepository struct{ s *Store }

// Create persists a new order.
func (r *OrderRepository) Create(_ context.Context, o *order.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.orders = append(r.s.orders, *o)
	if err := r.s.flushOrders(); err != nil {
		r.s.orders = r.s.orders[:len(r.s.orders)-1]
		return err
	}
	return nil
}

// List returns all orders, newest first.
func (r *OrderRepository) List(context.Context) ([]order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := slices.Clone(r.s.orders)
	slices.SortStableFunc(out, func(a, b order.Order) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// GetByID returns one order.
func (r *OrderRepository) GetByID(_ context.Context, id string) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.s.orderIndex(id)
	if i < 0 {
		return nil, order.ErrNotFound
	}
	o := r.s.orders[i]
	return &o, nil
}

// UpdateStatus sets the status of an order and returns the updated order.
func (r *OrderRepository) UpdateStatus(_ context.Context, id string, status order.Status) (*order.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i := r.s.orderIndex(id)
	if i < 0 {
		return nil, order.ErrNotFound
	}
	prev := r.s.orders[i].Status
	r.s.orders[i].Status = status
	if err := r.s.flushOrders(); err != nil {
		r.s.orders[i].Status = prev
		return nil, err
	}
	o := r.s.orders[i]
	return &o, nil
}

func (s *Store) orderIndex(id string) int {
	return slices.IndexFunc(s.orders, func(o order.Order) bool { return o.ID == id })
}

// SettingsRepository implements settings.Repository.
type SettingsRepository struct{ s *Store }

// Get returns the stored settings.
func (r *SettingsRepository) Get(context.Context) (settings.Settings, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.settings, nil
}

// Put replaces the stored settings.
func (r *SettingsRepository) Put(_ context.Context, v settings.Settings) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	prev := r.s.settings
	r.s.settings = v
	if err := r.s.flushSettings(); err != nil {
		r.s.settings = prev
		return err
	}
	return nil
}
