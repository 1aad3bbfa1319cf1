// matrices.go --  This file is part of goHF project.
// Mirzaeva Irina, 2023
//
//	goHF is distributed in the hope that it will be useful,
//	but WITHOUT ANY WARRANTY; without even the implied warranty
//	of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
//	See the GNU General Public License for more details.
//
//	You should have received a copy of the GNU General Public License
//	along with this program.  If not, see http://www.gnu.org/licenses/
//
// ------------------------------------------------

package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"gonum.org/v1/gonum/mat"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("matrix store closed")

// Matrices stores gonum matrices in their binary encoding, one key per
// matrix. It is safe for concurrent use.
type Matrices struct {
	mu       sync.RWMutex
	db       *DB
	scratch  string // removed on Close
	inMemory bool
}

// OpenMatrices opens a store on a database described by cfg.
func OpenMatrices(cfg Config) (*Matrices, error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	return &Matrices{db: db, inMemory: cfg.InMemory}, nil
}

// ScratchMatrices opens a store in a fresh directory below dir. The
// directory and its contents are deleted when the store is closed.
func ScratchMatrices(dir string, logger *slog.Logger) (*Matrices, error) {
	path, err := TempDir(dir, "goump2-")
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig(path)
	cfg.Logger = logger
	m, err := OpenMatrices(cfg)
	if err != nil {
		_ = CleanupDir(path)
		return nil, err
	}
	m.scratch = path
	return m, nil
}

// InMemoryMatrices opens a store that never touches the disk.
func InMemoryMatrices() (*Matrices, error) {
	return OpenMatrices(InMemoryConfig())
}

// InMemory reports whether the matrices live in process memory.
func (m *Matrices) InMemory() bool { return m.inMemory }

func (m *Matrices) Save(ctx context.Context, key string, a *mat.Dense) error {
	data, err := a.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode %q: %w", key, err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return ErrClosed
	}
	return m.db.WithTxn(ctx, func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// Load decodes the matrix stored at key into dst, which must have the
// stored dimensions.
func (m *Matrices) Load(ctx context.Context, key string, dst *mat.Dense) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return ErrClosed
	}
	return m.db.WithReadTxn(ctx, func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return fmt.Errorf("matrix %q: %w", key, err)
		}
		return item.Value(func(val []byte) error {
			var a mat.Dense
			if err := a.UnmarshalBinary(val); err != nil {
				return fmt.Errorf("decode %q: %w", key, err)
			}
			r, c := a.Dims()
			if dr, dc := dst.Dims(); dr != r || dc != c {
				return fmt.Errorf("matrix %q is %dx%d, destination %dx%d", key, r, c, dr, dc)
			}
			dst.Copy(&a)
			return nil
		})
	})
}

// Close closes the database and removes a scratch directory. Safe to call
// more than once.
func (m *Matrices) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	if cerr := CleanupDir(m.scratch); err == nil {
		err = cerr
	}
	return err
}
