// provider_test.go --  This file is part of goHF project.
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

func prepared(t *testing.T, sys synthSystem, limit int64, opts ...ProviderOption) (*DFProvider, [2]*ActiveSpace, error) {
	t.Helper()
	spaces, err := ResolveFrozen(NoFrozen(), sys.ref)
	require.NoError(t, err)
	p := NewDFProvider(sys.ref, sys.raw, opts...)
	t.Cleanup(func() { _ = p.Release() })
	err = p.Prepare(context.Background(), spaces, NewPlanner(&StaticMemory{Limit: limit}, nil))
	return p, spaces, err
}

// pairIntegrals returns V_ab = Σ_P B^P_ia B^P_jb.
func pairIntegrals(t *testing.T, p IntegralProvider, s1, s2 Spin, i, j int) *mat.Dense {
	t.Helper()
	ctx := context.Background()
	bi, err := p.Block(ctx, s1, i, i+1)
	require.NoError(t, err)
	bj, err := p.Block(ctx, s2, j, j+1)
	require.NoError(t, err)
	var v mat.Dense
	v.Mul(bi.Row(i).T(), bj.Row(j))
	return &v
}

func TestDFProviderIntegrals(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	p, spaces, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)
	assert.Equal(t, defaultShape.naux, p.NumAux())
	assert.Equal(t, int64(3*12*5*8), p.BlockCost(Alpha, 3))

	var jinv mat.Dense
	require.NoError(t, jinv.Inverse(sys.raw.Metric))
	var x [2][][][]float64
	for _, sp := range spins {
		c := sys.ref.MOCoeff[sp]
		x[sp] = moThreeIndex(sys.raw, columns(c, spaces[sp].Occ), columns(c, spaces[sp].Vir))
	}
	for _, pair := range [][2]Spin{{Alpha, Alpha}, {Alpha, Beta}, {Beta, Beta}} {
		s1, s2 := pair[0], pair[1]
		v := pairIntegrals(t, p, s1, s2, 1, 0)
		r, c := v.Dims()
		for a := 0; a < r; a++ {
			for b := 0; b < c; b++ {
				want := 0.0
				for P := range x[s1] {
					for Q := range x[s2] {
						want += x[s1][P][1][a] * jinv.At(P, Q) * x[s2][Q][0][b]
					}
				}
				require.InDelta(t, want, v.At(a, b), 1e-12)
			}
		}
	}
}

func TestDFProviderBatchedTransform(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	full, spaces, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)

	// room for one occupied orbital per chunk next to the cache
	nvir := spaces[Beta].NVir()
	limit := floatBytes(8*defaultShape.nao*nvir) + floatBytes(2*defaultShape.naux*nvir)
	cache := full.ResidentBytes()
	assert.Equal(t, floatBytes(defaultShape.naux*(3*5+2*6)), cache)
	tight, _, err := prepared(t, sys, limit+cache, WithTransformWorkers(8))
	require.NoError(t, err)

	ctx := context.Background()
	for _, sp := range spins {
		n := spaces[sp].NOcc()
		a, err := full.Block(ctx, sp, 0, n)
		require.NoError(t, err)
		b, err := tight.Block(ctx, sp, 0, n)
		require.NoError(t, err)
		require.Len(t, b.Data, len(a.Data))
		for k := range a.Data {
			require.InDelta(t, a.Data[k], b.Data[k], 1e-13)
		}
	}
}

func TestDFProviderChargesResidentCache(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	_, spaces, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)
	nvir := spaces[Beta].NVir()
	limit := floatBytes(8*defaultShape.nao*nvir) + floatBytes(2*defaultShape.naux*nvir)

	_, _, err = prepared(t, sys, limit, WithTransformWorkers(8))
	assert.ErrorIs(t, err, ErrMemoryBudget)

	dir := t.TempDir()
	onDisk, _, err := prepared(t, sys, limit, WithTransformWorkers(8), WithCacheStore(func() (MatrixStore, error) {
		return store.ScratchMatrices(dir, nil)
	}))
	require.NoError(t, err)
	assert.Zero(t, onDisk.ResidentBytes())
}

func TestDFProviderBudget(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	p, _, err := prepared(t, sys, 100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMemoryBudget)

	_, err = p.Block(context.Background(), Alpha, 0, 1)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDFProviderRelease(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	p, _, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)
	require.NoError(t, p.Release())
	require.NoError(t, p.Release())
	_, err = p.Block(context.Background(), Alpha, 0, 1)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestDFProviderBadgerCache(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	mem, _, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)

	dir := t.TempDir()
	onDisk, _, err := prepared(t, sys, 1<<30, WithCacheStore(func() (MatrixStore, error) {
		return store.ScratchMatrices(dir, nil)
	}))
	require.NoError(t, err)

	ctx := context.Background()
	a, err := mem.Block(ctx, Beta, 0, 2)
	require.NoError(t, err)
	b, err := onDisk.Block(ctx, Beta, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, a.Data, b.Data)
}

func TestDFProviderSingularMetric(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	// duplicate the last auxiliary function
	n := defaultShape.naux
	metric := mat.NewSymDense(n+1, nil)
	for i := 0; i <= n; i++ {
		ii := min(i, n-1)
		for j := i; j <= n; j++ {
			metric.SetSym(i, j, sys.raw.Metric.At(ii, min(j, n-1)))
		}
	}
	raw := &RawIntegrals{Metric: metric, ThreeCenter: append(append([]*mat.SymDense{}, sys.raw.ThreeCenter...), sys.raw.ThreeCenter[n-1])}
	dup := synthSystem{ref: sys.ref, raw: raw}

	p, _, err := prepared(t, dup, 1<<30)
	require.NoError(t, err)
	assert.Equal(t, n, p.NumAux())

	ref, _, err := prepared(t, sys, 1<<30)
	require.NoError(t, err)
	want := pairIntegrals(t, ref, Alpha, Beta, 2, 1)
	got := pairIntegrals(t, p, Alpha, Beta, 2, 1)
	assert.True(t, mat.EqualApprox(want, got, 1e-8))
}

func TestDFProviderLinearDependency(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	n := defaultShape.naux
	metric := mat.NewSymDense(n+1, nil)
	for i := 0; i <= n; i++ {
		for j := i; j <= n; j++ {
			metric.SetSym(i, j, sys.raw.Metric.At(min(i, n-1), min(j, n-1)))
		}
	}
	raw := &RawIntegrals{Metric: metric, ThreeCenter: append(append([]*mat.SymDense{}, sys.raw.ThreeCenter...), sys.raw.ThreeCenter[n-1])}
	dup := synthSystem{ref: sys.ref, raw: raw}

	var eig mat.EigenSym
	require.True(t, eig.Factorize(metric, false))
	vals := eig.Values(nil) // ascending, vals[0] ~ 0
	// a threshold between the two smallest nonzero eigenvalues drops one more
	thresh := 0.5 * (vals[1] + vals[2])
	p, _, err := prepared(t, dup, 1<<30, WithLinearDependency(thresh))
	require.NoError(t, err)
	assert.Equal(t, n-1, p.NumAux())
}

func TestDFProviderValidate(t *testing.T) {
	sys := newSynthSystem(t, defaultShape)
	testCases := []struct {
		name string
		raw  *RawIntegrals
	}{
		{"nil", nil},
		{"no metric", &RawIntegrals{ThreeCenter: sys.raw.ThreeCenter}},
		{"count", &RawIntegrals{Metric: sys.raw.Metric, ThreeCenter: sys.raw.ThreeCenter[1:]}},
		{"dims", &RawIntegrals{Metric: mat.NewSymDense(1, []float64{1}), ThreeCenter: []*mat.SymDense{mat.NewSymDense(2, nil)}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := prepared(t, synthSystem{ref: sys.ref, raw: tc.raw}, 1<<30)
			assert.ErrorIs(t, err, ErrReference)
		})
	}
}
