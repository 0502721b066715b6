package order

import (
	"context"
	"sync"

	"github.com/go-faster/errors"

	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
)

// memCatalog is an in-memory catalog that implements both product.Repository
// and product.Inventory with version checks.
type memCatalog struct {
	mu       sync.Mutex
	byID     map[string]product.Product
	getErr   error
	applyErr error
	// conflicts makes the next N ApplyDecrements calls fail with a version
	// conflict, as if another order won the race.
	conflicts int
	applied   int
}

func newCatalog(products ...product.Product) *memCatalog {
	c := &memCatalog{byID: make(map[string]product.Product, len(products))}
	for _, p := range products {
		if p.Version == 0 {
			p.Version = 1
		}
		c.byID[p.ID] = p
	}
	return c
}

func (c *memCatalog) stock(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byID[id].Stock
}

func (c *memCatalog) List(context.Context) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]product.Product, 0, len(c.byID))
	for _, p := range c.byID {
		out = append(out, p)
	}
	return out, nil
}

func (c *memCatalog) GetByID(_ context.Context, id string) (*product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (c *memCatalog) GetByIDs(_ context.Context, ids []string) ([]product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	out := make([]product.Product, 0, len(ids))
	for _, id := range ids {
		if p, ok := c.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *memCatalog) Create(_ context.Context, p *product.Product) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.byID[p.ID] = *p
	return nil
}

func (c *memCatalog) Update(_ context.Context, id string, patch product.Patch) (*product.Product, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	next, err := patch.Apply(p)
	if err != nil {
		return nil, err
	}
	next.Version++
	c.byID[id] = next
	return &next, nil
}

func (c *memCatalog) Delete(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.byID[id]; !ok {
		return product.ErrNotFound
	}
	delete(c.byID, id)
	return nil
}

func (c *memCatalog) ApplyDecrements(_ context.Context, decs []product.Decrement) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.applyErr != nil {
		return c.applyErr
	}
	if c.conflicts > 0 {
		c.conflicts--
		return product.ErrVersionConflict
	}
	for _, d := range decs {
		if c.byID[d.ProductID].Version != d.ExpectedVersion {
			return product.ErrVersionConflict
		}
	}
	for _, d := range decs {
		p := c.byID[d.ProductID]
		p.Stock -= d.Quantity
		p.Version++
		c.byID[d.ProductID] = p
	}
	c.applied++
	return nil
}

type memOrders struct {
	mu     sync.Mutex
	orders []Order
	err    error
}

func (m *memOrders) Create(_ context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) List(context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Order, len(m.orders))
	for i := range m.orders {
		out[len(out)-1-i] = m.orders[i]
	}
	return out, nil
}

func (m *memOrders) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			o := m.orders[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memOrders) UpdateStatus(_ context.Context, id string, status Status) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.orders {
		if m.orders[i].ID == id {
			m.orders[i].Status = status
			o := m.orders[i]
			return &o, nil
		}
	}
	return nil, ErrNotFound
}

type memSettings struct {
	s   settings.Settings
	err error
}

func (m *memSettings) Get(context.Context) (settings.Settings, error) {
	return m.s, m.err
}

func (m *memSettings) Put(_ context.Context, s settings.Settings) error {
	m.s = s
	return nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	orders []Order
}

func (r *recordingNotifier) Enqueue(o Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.orders = append(r.orders, o)
}

var errStorage = errors.New("storage unavailable")
