package artifact

import (
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

const (
	// KindFile selects FileStore.
	KindFile = "file"
	// KindSQLite selects SQLiteStore.
	KindSQLite = "sqlite"

	sqliteFile = "runs.db"
)

// Open returns the store of the given kind rooted at dir.
func Open(kind, dir string) (Store, error) {
	switch kind {
	case KindFile, "":
		return NewFileStore(dir)
	case KindSQLite:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create artifact root %s", dir)
		}
		return OpenSQLite(filepath.Join(dir, sqliteFile))
	}
	return nil, errors.NewValidationError("store", "must be file or sqlite", kind)
}
