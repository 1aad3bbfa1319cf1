// kernel.go --  This file is part of goHF project.
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
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// channel is a pair of spins whose electron pairs are correlated together.
type channel struct {
	id     int
	name   string
	s1, s2 Spin
	same   bool
}

var channels = [3]channel{
	{id: 0, name: "aa", s1: Alpha, s2: Alpha, same: true},
	{id: 1, name: "bb", s1: Beta, s2: Beta, same: true},
	{id: 2, name: "ab", s1: Alpha, s2: Beta, same: false},
}

type kernelState int

const (
	stateIdle kernelState = iota
	stateBatchLoop
	stateAccumulating
	stateDone
)

func (s kernelState) String() string {
	return [...]string{"idle", "batch-loop", "accumulating", "done"}[s]
}

// kernel forms pair amplitudes batch by batch and accumulates the channel
// energies and, when an amplitude store is given, the correction density.
//
// Accumulation contract: pair energies and per-pair density terms are
// computed from the two rows of the pair only; for every outer orbital i
// they are summed in ascending j into a per-i accumulator, and the per-i
// accumulators are merged in ascending i. Batch sizes therefore never change
// the order of any floating-point sum.
type kernel struct {
	provider IntegralProvider
	planner  *Planner
	spaces   [2]*ActiveSpace
	ps, pt   float64
	workers  int
	logger   *slog.Logger
	state    kernelState
	held     int64 // resident integral cache and amplitude spill
}

type kernelResult struct {
	energy  [3]float64 // unscaled, indexed by channel id
	density *CorrectionDensity
}

// rowAccumulator collects everything outer orbital i contributes.
type rowAccumulator struct {
	energy   float64
	vv1, vv2 *mat.SymDense
}

func (k *kernel) setState(s kernelState) {
	k.state = s
	k.logger.Debug("kernel state", slog.String("state", s.String()))
}

func (k *kernel) dims(ch channel) (n1, n2, v1, v2 int) {
	a, b := k.spaces[ch.s1], k.spaces[ch.s2]
	return a.NOcc(), b.NOcc(), a.NVir(), b.NVir()
}

func (k *kernel) empty(ch channel) bool {
	n1, n2, v1, v2 := k.dims(ch)
	return n1 == 0 || n2 == 0 || v1 == 0 || v2 == 0
}

// accumulatorBytes is the size of the global density accumulators.
func (k *kernel) accumulatorBytes(density bool) int64 {
	if !density {
		return 0
	}
	var n int
	for _, sp := range k.spaces {
		n += sp.NOcc()*sp.NOcc() + sp.NVir()*sp.NVir()
	}
	return floatBytes(n)
}

// pairCosts returns the bytes per outer row, per inner row and the fixed
// working set of the pair loop of one channel.
func (k *kernel) pairCosts(ch channel, density bool) (unitI, unitJ, fixed int64) {
	_, _, v1, v2 := k.dims(ch)
	unitI = k.provider.BlockCost(ch.s1, 1) + sizeofFloat64
	if density {
		unitI += floatBytes(v1 * v1)
		if !ch.same {
			unitI += floatBytes(v2 * v2)
		}
	}
	unitJ = k.provider.BlockCost(ch.s2, 1)
	fixed = int64(k.workers)*floatBytes(3*v1*v2) + k.accumulatorBytes(density) + k.held
	return unitI, unitJ, fixed
}

// spillBytes is the size of all pair amplitudes of a density pass.
func (k *kernel) spillBytes() int64 {
	var n int64
	for _, ch := range channels {
		if k.empty(ch) {
			continue
		}
		n1, n2, v1, v2 := k.dims(ch)
		n += floatBytes(n1 * n2 * v1 * v2)
	}
	return n
}

// preflight checks that the minimal unit of every stage fits before anything
// is accumulated.
func (k *kernel) preflight(density bool) error {
	for _, ch := range channels {
		if k.empty(ch) {
			continue
		}
		unitI, unitJ, fixed := k.pairCosts(ch, density)
		if err := k.planner.Require("pairs/"+ch.name, fixed+unitI+unitJ); err != nil {
			return err
		}
		if !density {
			continue
		}
		for _, side := range k.occupiedSides(ch) {
			unit, fixed := k.occupiedCosts(ch, side)
			if err := k.planner.Require("density/oo/"+ch.name, fixed+2*unit); err != nil {
				return err
			}
		}
	}
	return nil
}

func (k *kernel) run(ctx context.Context, amps MatrixStore) (kernelResult, error) {
	var res kernelResult
	density := amps != nil
	k.setState(stateIdle)
	k.held = k.provider.ResidentBytes()
	if density && Resident(amps) {
		k.held += k.spillBytes()
	}
	k.logger.Debug("resident memory", slog.Int64("bytes", k.held))
	if err := k.preflight(density); err != nil {
		return res, err
	}
	var dens *CorrectionDensity
	if density {
		dens = newCorrectionDensity(k.spaces)
	}
	tstart := time.Now()
	for _, ch := range channels {
		if k.empty(ch) {
			continue
		}
		e, err := k.pairLoop(ctx, ch, amps, dens)
		if err != nil {
			return kernelResult{}, fmt.Errorf("channel %s: %w", ch.name, err)
		}
		res.energy[ch.id] = e
		k.logger.Info("channel done", slog.String("channel", ch.name), slog.Float64("energy", e))
	}
	if density {
		b := k.densityBuilder()
		for _, ch := range channels {
			if k.empty(ch) {
				continue
			}
			for _, side := range k.occupiedSides(ch) {
				if err := b.occupiedPass(ctx, ch, side, amps, dens.OO[side]); err != nil {
					return kernelResult{}, fmt.Errorf("channel %s: %w", ch.name, err)
				}
			}
		}
		res.density = dens
	}
	k.setState(stateDone)
	k.logger.Info("amplitude pass done", slog.Bool("density", density), slog.Duration("elapsed", time.Since(tstart)))
	return res, nil
}

func (k *kernel) pairLoop(ctx context.Context, ch channel, amps MatrixStore, dens *CorrectionDensity) (float64, error) {
	n1, n2, v1, v2 := k.dims(ch)
	unitI, unitJ, fixed := k.pairCosts(ch, dens != nil)
	energy := 0.0
	for i0 := 0; i0 < n1; {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		k.setState(stateBatchLoop)
		ni, err := k.planner.BatchSize("pairs/"+ch.name+"/outer", unitI, fixed+unitJ, n1-i0)
		if err != nil {
			return 0, err
		}
		bi, err := k.provider.Block(ctx, ch.s1, i0, i0+ni)
		if err != nil {
			return 0, err
		}
		rows := make([]rowAccumulator, ni)
		if dens != nil {
			for li := range rows {
				rows[li].vv1 = mat.NewSymDense(v1, nil)
				if !ch.same {
					rows[li].vv2 = mat.NewSymDense(v2, nil)
				}
			}
		}

		for j0 := 0; j0 < n2; {
			if err := ctx.Err(); err != nil {
				return 0, err
			}
			nj, err := k.planner.BatchSize("pairs/"+ch.name+"/inner", unitJ, fixed+int64(ni)*unitI, n2-j0)
			if err != nil {
				return 0, err
			}
			bj, err := k.provider.Block(ctx, ch.s2, j0, j0+nj)
			if err != nil {
				return 0, err
			}
			k.setState(stateAccumulating)
			g, gctx := errgroup.WithContext(ctx)
			g.SetLimit(k.workers)
			for li := 0; li < ni; li++ {
				g.Go(func() error {
					return k.pairRow(gctx, ch, bi, bj, i0+li, &rows[li], amps)
				})
			}
			if err := g.Wait(); err != nil {
				return 0, err
			}
			batchesDone.WithLabelValues("pairs/" + ch.name).Inc()
			j0 += nj
		}

		for li := range rows {
			energy += rows[li].energy
			if dens != nil {
				dens.VV[ch.s1].AddSym(dens.VV[ch.s1], rows[li].vv1)
				if !ch.same {
					dens.VV[ch.s2].AddSym(dens.VV[ch.s2], rows[li].vv2)
				}
			}
		}
		pairAmplitudes.WithLabelValues(ch.name).Add(float64(ni * n2))
		i0 += ni
	}
	return energy, nil
}

// pairRow handles outer orbital i against all inner orbitals of bj.
func (k *kernel) pairRow(ctx context.Context, ch channel, bi, bj *IntegralBlock, i int, acc *rowAccumulator, amps MatrixStore) error {
	sp1, sp2 := k.spaces[ch.s1], k.spaces[ch.s2]
	v1, v2 := sp1.NVir(), sp2.NVir()
	rowI := bi.Row(i)
	v := mat.NewDense(v1, v2, nil)
	t := mat.NewDense(v1, v2, nil)
	for j := bj.I0; j < bj.I1; j++ {
		e := 0.0
		if ch.same && i == j {
			t.Zero()
		} else {
			v.Mul(rowI.T(), bj.Row(j))
			e = amplitudes(t, v, sp1.EOcc[i]+sp2.EOcc[j], sp1.EVir, sp2.EVir, ch.same)
		}
		acc.energy += e
		if amps == nil {
			continue
		}
		if ch.same {
			acc.vv1.SymRankK(acc.vv1, 0.5*k.ps, t)
		} else {
			acc.vv1.SymRankK(acc.vv1, k.pt, t)
			acc.vv2.SymRankK(acc.vv2, k.pt, t.T())
		}
		if err := amps.Save(ctx, amplitudeKey(ch, i, j), t); err != nil {
			return fmt.Errorf("store amplitudes (%d,%d): %w", i, j, err)
		}
	}
	return nil
}

// amplitudes fills t with the first-order amplitudes of pair (i,j) given
// v_ab = (ia|jb) and returns the pair energy. Same-spin amplitudes are
// antisymmetrized and weighted by 1/2.
func amplitudes(t, v *mat.Dense, eij float64, ea, eb []float64, same bool) float64 {
	vr, tr := v.RawMatrix(), t.RawMatrix()
	e := 0.0
	for a := range ea {
		va := vr.Data[a*vr.Stride : a*vr.Stride+len(eb)]
		ta := tr.Data[a*tr.Stride : a*tr.Stride+len(eb)]
		for b := range eb {
			num := va[b]
			if same {
				num -= vr.Data[b*vr.Stride+a]
			}
			ta[b] = num / (eij - ea[a] - eb[b])
			e += ta[b] * va[b]
		}
	}
	if same {
		e *= 0.5
	}
	return e
}

func amplitudeKey(ch channel, i, j int) string {
	return fmt.Sprintf("amp/%s/%d/%d", ch.name, i, j)
}
