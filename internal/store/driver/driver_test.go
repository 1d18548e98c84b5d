package driver

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docannot/internal/config"
	"github.com/dgallion1/docannot/internal/store/memstore"
)

func TestOpen(t *testing.T) {
	ctx := context.Background()

	st, err := Open(ctx, config.StoreConfig{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := st.(*memstore.Store); !ok {
		t.Errorf("expected memstore, got %T", st)
	}

	st, err = Open(ctx, config.StoreConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "a.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Errorf("close: %v", err)
	}

	if _, err := Open(ctx, config.StoreConfig{Driver: "bolt"}); err == nil {
		t.Error("expected unknown driver error")
	}
}
