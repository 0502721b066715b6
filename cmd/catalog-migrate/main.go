// Command catalog-migrate imports a product catalog from a JSON file (plain
// or gzip-compressed) into the configured storage backend.
package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/klauspost/pgzip"

	"github.com/timelesslk/storefront/internal/app"
	"github.com/timelesslk/storefront/internal/domain/product"
	"github.com/timelesslk/storefront/internal/wire"
)

func main() {
	var (
		cfg          app.StorageConfig
		productsFile string
		overwrite    bool
	)

	flag.StringVar(&cfg.Backend, "backend", app.BackendPostgres, "storage backend: postgres, mongo or file")
	flag.StringVar(&cfg.DatabaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&cfg.MongoURI, "mongo-uri", "", "MongoDB connection URI (or MONGODB_URI env)")
	flag.StringVar(&cfg.MongoDatabase, "mongo-db", "timeless", "MongoDB database name")
	flag.StringVar(&cfg.DataDir, "data-dir", "data", "directory of the file backend")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file, .json.gz accepted")
	flag.BoolVar(&overwrite, "overwrite", false, "replace products that already exist")
	flag.Parse()

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if cfg.MongoURI == "" {
		cfg.MongoURI = os.Getenv("MONGODB_URI")
	}
	cfg.MaxConns = 4

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, cfg, productsFile, overwrite); err != nil {
		slog.Error("migration failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("migration completed successfully")
}

func run(ctx context.Context, cfg app.StorageConfig, productsFile string, overwrite bool) error {
	products, err := readProducts(productsFile)
	if err != nil {
		return err
	}

	slog.Info("connecting to storage", slog.String("backend", cfg.Backend))
	store, err := app.OpenStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	catalog := product.NewCatalog(store.Products, nil)

	var created, skipped int
	for _, p := range products {
		if err := ctx.Err(); err != nil {
			return err
		}
		switch _, err := store.Products.GetByID(ctx, p.ID); {
		case err == nil && !overwrite:
			skipped++
			slog.Info("product exists, skipping", slog.String("id", p.ID))
			continue
		case err == nil:
			if err := store.Products.Delete(ctx, p.ID); err != nil {
				return errors.Wrapf(err, "replace product %s", p.ID)
			}
		case !errors.Is(err, product.ErrNotFound):
			return errors.Wrapf(err, "look up product %s", p.ID)
		}

		stored, err := catalog.Create(ctx, p)
		if err != nil {
			return errors.Wrapf(err, "import product %s", p.ID)
		}
		created++
		slog.Info("imported product", slog.String("id", stored.ID), slog.String("name", stored.Name))
	}

	slog.Info("catalog imported",
		slog.Int("total", len(products)),
		slog.Int("created", created),
		slog.Int("skipped", skipped),
	)
	return nil
}

// readProducts decodes the product array in path. Files ending in .gz are
// decompressed on the fly.
func readProducts(path string) ([]product.Product, error) {
	slog.Info("reading products file", slog.String("path", path))

	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open products file")
	}
	defer func() { _ = f.Close() }()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := pgzip.NewReader(f)
		if err != nil {
			return nil, errors.Wrapf(err, "create gzip reader for %s", path)
		}
		defer func() { _ = gz.Close() }()
		r = gz
	}

	products, err := wire.DecodeProducts(jx.Decode(r, 64<<10))
	if err != nil {
		return nil, errors.Wrap(err, "parse products JSON")
	}
	return products, nil
}
