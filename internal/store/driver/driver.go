// Package driver opens the Store backend named in configuration.
package driver

import (
	"context"
	"fmt"

	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/store"
	"github.com/dgallion1/docannot/internal/store/memstore"
	"github.com/dgallion1/docannot/internal/store/postgres"
	"github.com/dgallion1/docannot/internal/store/sqlite"
)

// Open returns the backend for cfg.Driver: memory, sqlite or postgres.
func Open(ctx context.Context, cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlite.Open(ctx, cfg.Path)
	case "postgres":
		st, err := postgres.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return st, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
