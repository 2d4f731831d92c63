package storage

import (
	"errors"
	"fmt"

	"gaugehmc/internal/params"
)

var ErrUnsupportedBackend = errors.New("unsupported store backend")

// NewStore opens the backend named by rec.Kind. The returned store still
// needs Init.
func NewStore(rec params.StoreRecord) (Store, error) {
	switch rec.Kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		return newSQLiteStore(rec.Path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, rec.Kind)
	}
}

// Backends lists the store kinds compiled into this binary.
func Backends() []string {
	if sqliteAvailable {
		return []string{"memory", "sqlite"}
	}
	return []string{"memory"}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
