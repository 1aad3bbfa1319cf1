// synth_test.go --  This file is part of goHF project.
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
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// synthSystem is a random but well-conditioned unrestricted reference with
// density-fitting integrals. Nothing about it is physical; it exercises the
// algebra.
type synthSystem struct {
	ref *ReferenceState
	raw *RawIntegrals
}

type synthShape struct {
	nao, naux     int
	nalpha, nbeta int
	seed          int64
}

var defaultShape = synthShape{nao: 8, naux: 12, nalpha: 3, nbeta: 2, seed: 7}

func randomSym(rnd *rand.Rand, n int, diag, off float64) *mat.SymDense {
	s := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		s.SetSym(i, i, diag+off*rnd.Float64())
		for j := i + 1; j < n; j++ {
			s.SetSym(i, j, off*(2*rnd.Float64()-1))
		}
	}
	return s
}

// symInverseSqrt returns S^-1/2 as a dense symmetric matrix.
func symInverseSqrt(t *testing.T, s mat.Symmetric) *mat.Dense {
	t.Helper()
	var eig mat.EigenSym
	require.True(t, eig.Factorize(s, true))
	var v mat.Dense
	eig.VectorsTo(&v)
	vals := eig.Values(nil)
	n := len(vals)
	d := mat.NewDiagDense(n, nil)
	for k, l := range vals {
		d.SetDiag(k, 1/math.Sqrt(l))
	}
	var tmp, res mat.Dense
	tmp.Mul(&v, d)
	res.Mul(&tmp, v.T())
	return &res
}

func randomOrthogonal(rnd *rand.Rand, n int) *mat.Dense {
	a := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			a.Set(i, j, 2*rnd.Float64()-1)
		}
	}
	var qr mat.QR
	qr.Factorize(a)
	var q mat.Dense
	qr.QTo(&q)
	return &q
}

func newSynthSystem(t *testing.T, sh synthShape) synthSystem {
	t.Helper()
	rnd := rand.New(rand.NewSource(sh.seed))
	n := sh.nao

	s := randomSym(rnd, n, 1, 0.1)
	sInv := symInverseSqrt(t, s)

	ref := &ReferenceState{Overlap: s, EnergyRef: -10}
	nel := [2]int{sh.nalpha, sh.nbeta}
	for _, sp := range spins {
		c := &mat.Dense{}
		c.Mul(sInv, randomOrthogonal(rnd, n))
		ref.MOCoeff[sp] = c
		occ := make([]float64, n)
		e := make([]float64, n)
		for p := 0; p < n; p++ {
			if p < nel[sp] {
				occ[p] = 1
				e[p] = -2 + 0.4*float64(p) + 0.1*rnd.Float64()
			} else {
				e[p] = 0.3 + 0.35*float64(p-nel[sp]) + 0.1*rnd.Float64()
			}
		}
		ref.MOOcc[sp] = occ
		ref.MOEnergy[sp] = e
	}

	raw := &RawIntegrals{Metric: randomSym(rnd, sh.naux, 2, 0.15)}
	for p := 0; p < sh.naux; p++ {
		raw.ThreeCenter = append(raw.ThreeCenter, randomSym(rnd, n, 0.5, 0.5))
	}
	return synthSystem{ref: ref, raw: raw}
}

func (sys synthSystem) open(t *testing.T, opts ...Option) *Session {
	t.Helper()
	s, err := Open(context.Background(), sys.ref, NewDFProvider(sys.ref, sys.raw), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// permuted returns the system with MO columns of each spin reordered:
// new column k is old column perm[s][k].
func (sys synthSystem) permuted(perm [2][]int) synthSystem {
	ref := &ReferenceState{Overlap: sys.ref.Overlap, EnergyRef: sys.ref.EnergyRef}
	for _, sp := range spins {
		old := sys.ref
		ref.MOCoeff[sp] = columns(old.MOCoeff[sp], perm[sp])
		ref.MOOcc[sp] = make([]float64, len(perm[sp]))
		ref.MOEnergy[sp] = make([]float64, len(perm[sp]))
		for k, p := range perm[sp] {
			ref.MOOcc[sp][k] = old.MOOcc[sp][p]
			ref.MOEnergy[sp][k] = old.MOEnergy[sp][p]
		}
	}
	return synthSystem{ref: ref, raw: sys.raw}
}

// naive holds four-index reference results computed without batching or
// density fitting shortcuts.
type naive struct {
	energy [3]float64
	oo, vv [2][][]float64
}

// moThreeIndex returns X[P][i][a] = Σ_μν C_μi (P|μν) C_νa.
func moThreeIndex(raw *RawIntegrals, cocc, cvir *mat.Dense) [][][]float64 {
	res := make([][][]float64, len(raw.ThreeCenter))
	for p, m := range raw.ThreeCenter {
		var half, x mat.Dense
		half.Mul(m, cvir)
		x.Mul(cocc.T(), &half)
		r, c := x.Dims()
		res[p] = make([][]float64, r)
		for i := 0; i < r; i++ {
			res[p][i] = make([]float64, c)
			for a := 0; a < c; a++ {
				res[p][i][a] = x.At(i, a)
			}
		}
	}
	return res
}

func zeros(n int) [][]float64 {
	r := make([][]float64, n)
	for i := range r {
		r[i] = make([]float64, n)
	}
	return r
}

func naiveMP2(t *testing.T, sys synthSystem, spaces [2]*ActiveSpace, ps, pt float64) naive {
	t.Helper()
	var jinv mat.Dense
	require.NoError(t, jinv.Inverse(sys.raw.Metric))
	naux := len(sys.raw.ThreeCenter)

	var x [2][][][]float64
	for _, sp := range spins {
		if spaces[sp].NOcc() == 0 || spaces[sp].NVir() == 0 {
			continue
		}
		c := sys.ref.MOCoeff[sp]
		x[sp] = moThreeIndex(sys.raw, columns(c, spaces[sp].Occ), columns(c, spaces[sp].Vir))
	}
	eri := func(s1, s2 Spin, i, a, j, b int) float64 {
		v := 0.0
		for p := 0; p < naux; p++ {
			for q := 0; q < naux; q++ {
				v += x[s1][p][i][a] * jinv.At(p, q) * x[s2][q][j][b]
			}
		}
		return v
	}

	var res naive
	for _, sp := range spins {
		res.oo[sp] = zeros(spaces[sp].NOcc())
		res.vv[sp] = zeros(spaces[sp].NVir())
	}
	for _, ch := range channels {
		a1, a2 := spaces[ch.s1], spaces[ch.s2]
		n1, n2, v1, v2 := a1.NOcc(), a2.NOcc(), a1.NVir(), a2.NVir()
		amp := make([][][][]float64, n1)
		for i := 0; i < n1; i++ {
			amp[i] = make([][][]float64, n2)
			for j := 0; j < n2; j++ {
				amp[i][j] = zeros(max(v1, v2))
				for a := 0; a < v1; a++ {
					for b := 0; b < v2; b++ {
						v := eri(ch.s1, ch.s2, i, a, j, b)
						num := v
						if ch.same {
							num -= eri(ch.s1, ch.s2, i, b, j, a)
						}
						tt := num / (a1.EOcc[i] + a2.EOcc[j] - a1.EVir[a] - a2.EVir[b])
						amp[i][j][a][b] = tt
						if ch.same {
							res.energy[ch.id] += 0.5 * tt * v
						} else {
							res.energy[ch.id] += tt * v
						}
					}
				}
			}
		}
		f := pt
		if ch.same {
			f = 0.5 * ps
		}
		for i := 0; i < n1; i++ {
			for j := 0; j < n1; j++ {
				for k := 0; k < n2; k++ {
					for a := 0; a < v1; a++ {
						for b := 0; b < v2; b++ {
							res.oo[ch.s1][i][j] -= f * amp[i][k][a][b] * amp[j][k][a][b]
						}
					}
				}
			}
		}
		for i := 0; i < n1; i++ {
			for j := 0; j < n2; j++ {
				for a := 0; a < v1; a++ {
					for b := 0; b < v1; b++ {
						for c := 0; c < v2; c++ {
							res.vv[ch.s1][a][b] += f * amp[i][j][a][c] * amp[i][j][b][c]
						}
					}
				}
			}
		}
		if ch.same {
			continue
		}
		for i := 0; i < n2; i++ {
			for j := 0; j < n2; j++ {
				for k := 0; k < n1; k++ {
					for a := 0; a < v1; a++ {
						for b := 0; b < v2; b++ {
							res.oo[ch.s2][i][j] -= f * amp[k][i][a][b] * amp[k][j][a][b]
						}
					}
				}
			}
		}
		for i := 0; i < n1; i++ {
			for j := 0; j < n2; j++ {
				for b := 0; b < v2; b++ {
					for c := 0; c < v2; c++ {
						for a := 0; a < v1; a++ {
							res.vv[ch.s2][b][c] += f * amp[i][j][a][b] * amp[i][j][a][c]
						}
					}
				}
			}
		}
	}
	return res
}

func assertSymClose(t *testing.T, want [][]float64, got mat.Symmetric, tol float64, msg string) {
	t.Helper()
	require.Equal(t, len(want), got.SymmetricDim(), msg)
	for i := range want {
		for j := range want[i] {
			require.InDelta(t, want[i][j], got.At(i, j), tol, "%s (%d,%d)", msg, i, j)
		}
	}
}
