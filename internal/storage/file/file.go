// Package file keeps the catalog, orders and settings in JSON files under a
// directory. Intended for local development and single-instance setups.
package file

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/timelesslk/storefront/internal/domain/order"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/domain/settings"
	"github.com/timelesslk/storefront/internal/wire"
)

const (
	productsFile = "products.json"
	ordersFile   = "orders.json"
	settingsFile = "settings.json"
)

// Store holds every collection in memory and rewrites the affected file on
// each mutation. All access is serialized by one mutex.
type Store struct {
	dir string
	now func() time.Time

	mu       sync.Mutex
	products map[string]product.Product
	orders   []order.Order
	settings settings.Settings
}

// Open loads the store from dir, creating the directory if needed. Missing
// files read as empty collections.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, errors.Wrap(err, "create data dir")
	}
	s := &Store{
		dir:      dir,
		now:      time.Now,
		products: map[string]product.Product{},
	}

	if err := s.load(productsFile, func(d *jx.Decoder) error {
		ps, err := wire.DecodeProducts(d)
		for _, p := range ps {
			s.products[p.ID] = p
		}
		return err
	}); err != nil {
		return nil, err
	}
	if err := s.load(ordersFile, func(d *jx.Decoder) (err error) {
		s.orders, err = wire.DecodeOrders(d)
		return err
	}); err != nil {
		return nil, err
	}
	if err := s.load(settingsFile, func(d *jx.Decoder) (err error) {
		s.settings, err = wire.DecodeSettings(d)
		return err
	}); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load(name string, decode func(d *jx.Decoder) error) error {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) || (err == nil && len(data) == 0) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "read %s", name)
	}
	if err := decode(jx.DecodeBytes(data)); err != nil {
		return errors.Wrapf(err, "decode %s", name)
	}
	return nil
}

// write replaces name atomically via a temp file and rename.
func (s *Store) write(name string, encode func(e *jx.Encoder)) error {
	e := &jx.Encoder{}
	e.SetIdent(2)
	encode(e)

	tmp, err := os.CreateTemp(s.dir, name+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(e.Bytes()); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "write %s", name)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrapf(err, "sync %s", name)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "close %s", name)
	}
	if err := os.Rename(tmp.Name(), filepath.Join(s.dir, name)); err != nil {
		return errors.Wrapf(err, "rename %s", name)
	}
	return nil
}

func (s *Store) flushProducts() error {
	list := s.sortedProducts()
	return s.write(productsFile, func(e *jx.Encoder) { wire.EncodeProducts(e, list) })
}

func (s *Store) flushOrders() error {
	return s.write(ordersFile, func(e *jx.Encoder) { wire.EncodeOrders(e, s.orders) })
}

func (s *Store) flushSettings() error {
	return s.write(settingsFile, func(e *jx.Encoder) { wire.EncodeSettings(e, s.settings) })
}

// Products returns the catalog view of the store.
func (s *Store) Products() *ProductRepository { return &ProductRepository{s: s} }

// Orders returns the order view of the store.
func (s *Store) Orders() *OrderRepository { return &OrderRepository{s: s} }

// Settings returns the settings view of the store.
func (s *Store) Settings() *SettingsRepository { return &SettingsRepository{s: s} }
