//go:build !sqlite

package storage

import "fmt"

const sqliteAvailable = false

func newSQLiteStore(_ string) (Store, error) {
	return nil, fmt.Errorf("%w: sqlite is unavailable in this build; rebuild with -tags sqlite", ErrUnsupportedBackend)
}
