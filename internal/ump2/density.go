// density.go --  This file is part of goHF project.
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
	"log/slog"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// CorrectionDensity is the unrelaxed second-order correction to the
// one-particle density of each spin. OO is indexed by active occupied
// orbitals, VV by virtual orbitals, both in ActiveSpace order. The
// occupied-virtual block is zero.
type CorrectionDensity struct {
	Spaces [2]*ActiveSpace
	OO     [2]*mat.SymDense
	VV     [2]*mat.SymDense
}

func newCorrectionDensity(spaces [2]*ActiveSpace) *CorrectionDensity {
	d := &CorrectionDensity{Spaces: spaces}
	for _, s := range spins {
		d.OO[s] = newSym(spaces[s].NOcc())
		d.VV[s] = newSym(spaces[s].NVir())
	}
	return d
}

// newSym allows empty blocks; mat.NewSymDense panics on n == 0.
func newSym(n int) *mat.SymDense {
	if n == 0 {
		return &mat.SymDense{}
	}
	return mat.NewSymDense(n, nil)
}

// Trace returns the trace of the correction of spin s. It vanishes for an
// exact unrelaxed density.
func (d *CorrectionDensity) Trace(s Spin) float64 {
	var t float64
	if d.OO[s].SymmetricDim() > 0 {
		t += mat.Trace(d.OO[s])
	}
	if d.VV[s].SymmetricDim() > 0 {
		t += mat.Trace(d.VV[s])
	}
	return t
}

// MODensity returns the full density of spin s in the MO basis of the
// reference: diag(occ) plus the correction at the active indices. Frozen
// orbitals keep their reference occupation.
func (d *CorrectionDensity) MODensity(ref *ReferenceState, s Spin) *mat.SymDense {
	dm := ref.moDensity(s)
	addBlock(dm, d.OO[s], d.Spaces[s].Occ)
	addBlock(dm, d.VV[s], d.Spaces[s].Vir)
	return dm
}

func addBlock(dm, blk *mat.SymDense, idx []int) {
	for a, p := range idx {
		for b := a; b < len(idx); b++ {
			q := idx[b]
			dm.SetSym(p, q, dm.At(p, q)+blk.At(a, b))
		}
	}
}

// AODensity transforms a density of spin s from the MO into the AO basis,
// C D Cᵀ.
func AODensity(dm mat.Symmetric, coeff *mat.Dense) *mat.SymDense {
	var tmp, ao mat.Dense
	tmp.Mul(coeff, dm)
	ao.Mul(&tmp, coeff.T())
	n, _ := ao.Dims()
	res := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			res.SetSym(i, j, 0.5*(ao.At(i, j)+ao.At(j, i)))
		}
	}
	return res
}

// occupiedSides lists the spins whose occupied block receives a
// contribution from channel ch.
func (k *kernel) occupiedSides(ch channel) []Spin {
	if ch.same {
		return []Spin{ch.s1}
	}
	return []Spin{ch.s1, ch.s2}
}

// occupiedCosts returns the size of one amplitude row and the fixed working
// set of the occupied pass of channel ch on the given side.
func (k *kernel) occupiedCosts(ch channel, side Spin) (unit, fixed int64) {
	n1, n2, v1, v2 := k.dims(ch)
	other := n2
	if side != ch.s1 {
		other = n1
	}
	unit = floatBytes(other * v1 * v2)
	fixed = k.accumulatorBytes(true) + k.held
	return unit, fixed
}

func (k *kernel) densityBuilder() *densityBuilder {
	return &densityBuilder{k: k}
}

// densityBuilder forms the occupied-occupied blocks from the stored pair
// amplitudes. Row i of channel ch is the concatenation over the partner
// orbital k of T^{ik} (or T^{ki} for the second spin of a mixed channel),
// and P_ij -= f row_i·row_j with f = ps/2 for same-spin and pt for
// opposite-spin pairs.
type densityBuilder struct {
	k *kernel
}

func (b *densityBuilder) factor(ch channel) float64 {
	if ch.same {
		return 0.5 * b.k.ps
	}
	return b.k.pt
}

func (b *densityBuilder) occupiedPass(ctx context.Context, ch channel, side Spin, amps MatrixStore, dst *mat.SymDense) error {
	k := b.k
	n1, n2, v1, v2 := k.dims(ch)
	nrows, other := n1, n2
	if side != ch.s1 {
		nrows, other = n2, n1
	}
	unit, fixed := k.occupiedCosts(ch, side)
	f := b.factor(ch)
	stage := "density/oo/" + ch.name + "/" + side.String()
	pair := v1 * v2
	rowLen := other * pair

	loadRows := func(r0, r1 int) ([]float64, error) {
		buf := make([]float64, (r1-r0)*rowLen)
		for r := r0; r < r1; r++ {
			for p := 0; p < other; p++ {
				off := (r-r0)*rowLen + p*pair
				t := mat.NewDense(v1, v2, buf[off:off+pair])
				i, j := r, p
				if side != ch.s1 {
					i, j = p, r
				}
				if err := amps.Load(ctx, amplitudeKey(ch, i, j), t); err != nil {
					return nil, err
				}
			}
		}
		return buf, nil
	}

	for i0 := 0; i0 < nrows; {
		if err := ctx.Err(); err != nil {
			return err
		}
		ni, err := k.planner.BatchSize(stage, unit, fixed+unit, nrows-i0)
		if err != nil {
			return err
		}
		rowsI, err := loadRows(i0, i0+ni)
		if err != nil {
			return err
		}
		for j0 := i0; j0 < nrows; {
			nj, err := k.planner.BatchSize(stage, unit, fixed+int64(ni)*unit, nrows-j0)
			if err != nil {
				return err
			}
			rowsJ, err := loadRows(j0, j0+nj)
			if err != nil {
				return err
			}
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(k.workers)
			for li := 0; li < ni; li++ {
				g.Go(func() error {
					if err := gctx.Err(); err != nil {
						return err
					}
					i := i0 + li
					ri := rowsI[li*rowLen : (li+1)*rowLen]
					for lj := 0; lj < nj; lj++ {
						j := j0 + lj
						if j < i {
							continue
						}
						rj := rowsJ[lj*rowLen : (lj+1)*rowLen]
						dst.SetSym(i, j, dst.At(i, j)-f*floats.Dot(ri, rj))
					}
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}
			batchesDone.WithLabelValues("density/oo/" + ch.name).Inc()
			j0 += nj
		}
		i0 += ni
	}
	k.logger.Debug("occupied block done", slog.String("channel", ch.name), slog.String("spin", side.String()))
	return nil
}
