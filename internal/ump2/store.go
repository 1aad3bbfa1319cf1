// store.go --  This file is part of goHF project.
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

package ump2

import (
	"context"
	"fmt"
	"sync"

	"gonum.org/v1/gonum/mat"
)

// MatrixStore keeps matrices by key. It backs the transformed-integral cache
// of DFProvider and the amplitude spill of the density pass. Implementations
// must be safe for concurrent use.
type MatrixStore interface {
	Save(ctx context.Context, key string, m *mat.Dense) error
	// Load copies the stored matrix into dst, which must have the stored
	// dimensions.
	Load(ctx context.Context, key string, dst *mat.Dense) error
	Close() error
}

// StoreFactory opens a fresh store. Stores opened by a factory are owned and
// closed by the caller.
type StoreFactory func() (MatrixStore, error)

// Resident reports whether s keeps its contents in process memory, in which
// case they count against the memory ceiling. Stores that do not implement
// InMemory are assumed to.
func Resident(s MatrixStore) bool {
	if r, ok := s.(interface{ InMemory() bool }); ok {
		return r.InMemory()
	}
	return true
}

// MemoryStores is the default StoreFactory.
func MemoryStores() (MatrixStore, error) { return NewMemoryStore(), nil }

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]*mat.Dense
}

func NewMemoryStore() MatrixStore {
	return &memoryStore{data: make(map[string]*mat.Dense)}
}

func (s *memoryStore) InMemory() bool { return true }

func (s *memoryStore) Save(_ context.Context, key string, m *mat.Dense) error {
	c := mat.DenseCopyOf(m)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data == nil {
		return ErrSessionClosed
	}
	s.data[key] = c
	return nil
}

func (s *memoryStore) Load(_ context.Context, key string, dst *mat.Dense) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.data[key]
	if !ok {
		return fmt.Errorf("matrix %q not found", key)
	}
	r, c := m.Dims()
	if dr, dc := dst.Dims(); dr != r || dc != c {
		return fmt.Errorf("matrix %q is %dx%d, destination %dx%d", key, r, c, dr, dc)
	}
	dst.Copy(m)
	return nil
}

func (s *memoryStore) Close() error {
	s.mu.Lock()
	s.data = nil
	s.mu.Unlock()
	return nil
}
