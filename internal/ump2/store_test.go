// store_test.go --  This file is part of goHF project.
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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"example.com/goump2/internal/store"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	st := NewMemoryStore()

	a := mat.NewDense(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, st.Save(ctx, "a", a))
	a.Set(0, 0, 100)

	got := mat.NewDense(2, 2, nil)
	require.NoError(t, st.Load(ctx, "a", got))
	assert.Equal(t, 1.0, got.At(0, 0))

	assert.Error(t, st.Load(ctx, "a", mat.NewDense(1, 4, nil)))
	assert.Error(t, st.Load(ctx, "b", got))

	require.NoError(t, st.Close())
	assert.ErrorIs(t, st.Save(ctx, "a", a), ErrSessionClosed)
	assert.Error(t, st.Load(ctx, "a", got))
	assert.NoError(t, st.Close())
}

func TestResident(t *testing.T) {
	assert.True(t, Resident(NewMemoryStore()))
	assert.True(t, Resident(struct{ MatrixStore }{NewMemoryStore()}))

	inMem, err := store.InMemoryMatrices()
	require.NoError(t, err)
	defer inMem.Close()
	assert.True(t, Resident(inMem))

	onDisk, err := store.ScratchMatrices(t.TempDir(), nil)
	require.NoError(t, err)
	defer onDisk.Close()
	assert.False(t, Resident(onDisk))
}
