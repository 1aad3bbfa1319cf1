// provider.go --  This file is part of goHF project.
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
	"runtime"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"
)

// IntegralBlock holds the MO-basis three-index integrals B^P_ia of the
// active occupied orbitals I0..I1-1 of one spin. Row i is an naux x nvir
// matrix stored contiguously.
type IntegralBlock struct {
	Spin       Spin
	I0, I1     int
	NAux, NVir int
	Data       []float64
}

// Row returns a view of the integrals of active occupied orbital i.
func (b *IntegralBlock) Row(i int) *mat.Dense {
	size := b.NAux * b.NVir
	off := (i - b.I0) * size
	return mat.NewDense(b.NAux, b.NVir, b.Data[off:off+size])
}

// IntegralProvider delivers density-fitted integrals of the active spaces
// in blocks of occupied orbitals.
type IntegralProvider interface {
	// Prepare builds the provider state for the given active spaces.
	Prepare(ctx context.Context, spaces [2]*ActiveSpace, planner *Planner) error
	NumAux() int
	// BlockCost is the size in bytes of a block with the given number of
	// occupied rows; nothing is allocated.
	BlockCost(s Spin, rows int) int64
	Block(ctx context.Context, s Spin, i0, i1 int) (*IntegralBlock, error)
	// ResidentBytes is the process memory held by the prepared state.
	ResidentBytes() int64
	// Release drops all cached state. Safe to call more than once.
	Release() error
}

// RawIntegrals are the AO density-fitting integrals produced by the integral
// engine.
type RawIntegrals struct {
	ThreeCenter []*mat.SymDense // (P|μν), one nao x nao matrix per auxiliary function
	Metric      *mat.SymDense   // (P|Q)
}

// DFProvider transforms raw density-fitting integrals into the MO basis of
// the active spaces and caches one naux x nvir row per active occupied
// orbital in a MatrixStore.
type DFProvider struct {
	ref     *ReferenceState
	raw     *RawIntegrals
	stores  StoreFactory
	workers int
	thresh  float64
	logger  *slog.Logger

	store    MatrixStore
	resident bool
	prefix   string
	spaces   [2]*ActiveSpace
	naux     int
	fallback bool
}

type ProviderOption func(*DFProvider)

// WithCacheStore sets where transformed integrals are kept (memory by default).
func WithCacheStore(f StoreFactory) ProviderOption {
	return func(p *DFProvider) {
		if f != nil {
			p.stores = f
		}
	}
}

// WithTransformWorkers sets the number of goroutines transforming auxiliary
// functions concurrently (GOMAXPROCS by default).
func WithTransformWorkers(n int) ProviderOption {
	return func(p *DFProvider) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithLinearDependency sets the eigenvalue threshold of the metric used
// when J is not positive definite.
func WithLinearDependency(thresh float64) ProviderOption {
	return func(p *DFProvider) { p.thresh = thresh }
}

func WithProviderLogger(l *slog.Logger) ProviderOption {
	return func(p *DFProvider) {
		if l != nil {
			p.logger = l
		}
	}
}

func NewDFProvider(ref *ReferenceState, raw *RawIntegrals, opts ...ProviderOption) *DFProvider {
	p := &DFProvider{
		ref:     ref,
		raw:     raw,
		stores:  MemoryStores,
		workers: runtime.GOMAXPROCS(-1),
		thresh:  1e-10,
		logger:  slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *DFProvider) NumAux() int { return p.naux }

func (p *DFProvider) BlockCost(s Spin, rows int) int64 {
	nvir := 0
	if p.spaces[s] != nil {
		nvir = p.spaces[s].NVir()
	}
	return floatBytes(rows * p.naux * nvir)
}

// ResidentBytes is the size of the integral cache when it is kept in
// memory, zero otherwise.
func (p *DFProvider) ResidentBytes() int64 {
	if p.store == nil || !p.resident {
		return 0
	}
	var n int64
	for _, s := range spins {
		if p.spaces[s] != nil {
			n += p.BlockCost(s, p.spaces[s].NOcc())
		}
	}
	return n
}

func (p *DFProvider) validate() error {
	if p.raw == nil || p.raw.Metric == nil {
		return referenceErrorf("missing density-fitting metric")
	}
	nauxRaw := p.raw.Metric.SymmetricDim()
	if nauxRaw == 0 {
		return referenceErrorf("empty auxiliary basis")
	}
	if len(p.raw.ThreeCenter) != nauxRaw {
		return referenceErrorf("%d three-center matrices for a %dx%d metric", len(p.raw.ThreeCenter), nauxRaw, nauxRaw)
	}
	nao := p.ref.NAO()
	for k, m := range p.raw.ThreeCenter {
		if m == nil || m.SymmetricDim() != nao {
			return referenceErrorf("three-center matrix %d is not %dx%d", k, nao, nao)
		}
	}
	return nil
}

func (p *DFProvider) Prepare(ctx context.Context, spaces [2]*ActiveSpace, planner *Planner) (err error) {
	ctx, span := tracerFrom(ctx).Start(ctx, "ump2.DFProvider.Prepare")
	defer span.End()
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "prepare failed")
		}
	}()

	if err := p.validate(); err != nil {
		return err
	}
	if err := p.Release(); err != nil {
		return err
	}
	tstart := time.Now()

	w, fallback, err := metricTransform(p.raw.Metric, p.thresh)
	if err != nil {
		return fmt.Errorf("auxiliary metric: %w", err)
	}
	if fallback {
		p.logger.Warn("auxiliary metric is not positive definite, using its inverse square root",
			slog.Int("kept", w.RawMatrix().Rows), slog.Int("naux", p.raw.Metric.SymmetricDim()))
	}

	store, err := p.stores()
	if err != nil {
		return fmt.Errorf("open integral cache: %w", err)
	}
	p.store = store
	p.resident = Resident(store)
	p.prefix = uuid.NewString()
	p.spaces = spaces
	p.naux, _ = w.Dims()
	p.fallback = fallback

	for _, s := range spins {
		if err := p.transform(ctx, s, w, planner); err != nil {
			_ = p.Release()
			return err
		}
	}
	span.SetAttributes(
		attribute.Int("naux", p.naux),
		attribute.Int("nocc_alpha", spaces[Alpha].NOcc()),
		attribute.Int("nocc_beta", spaces[Beta].NOcc()),
		attribute.Int64("resident_bytes", p.ResidentBytes()),
	)
	p.logger.Info("density-fitted integrals transformed", slog.Int("naux", p.naux),
		slog.Duration("elapsed", time.Since(tstart)))
	return nil
}

// transform computes B^P_ia = Σ_Q W_PQ (Q|ia) for chunks of active occupied
// orbitals sized by the planner. A resident cache is charged in full from the
// first chunk on.
func (p *DFProvider) transform(ctx context.Context, s Spin, w *mat.Dense, planner *Planner) error {
	space := p.spaces[s]
	nocc, nvir := space.NOcc(), space.NVir()
	if nocc == 0 || nvir == 0 {
		return nil
	}
	nao := p.ref.NAO()
	nauxRaw := len(p.raw.ThreeCenter)
	cocc := columns(p.ref.MOCoeff[s], space.Occ)
	cvir := columns(p.ref.MOCoeff[s], space.Vir)

	workers := p.workers
	if workers > nauxRaw {
		workers = nauxRaw
	}
	scratch := floatBytes(workers*nao*nvir) + p.ResidentBytes()
	unit := floatBytes((nauxRaw + p.naux) * nvir)
	stage := "transform/" + s.String()

	for i0 := 0; i0 < nocc; {
		ni, err := planner.BatchSize(stage, unit, scratch, nocc-i0)
		if err != nil {
			return err
		}
		i1 := i0 + ni
		coccChunk := cocc.Slice(0, nao, i0, i1)

		raw := mat.NewDense(nauxRaw, ni*nvir, nil)
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(workers)
		for q := 0; q < nauxRaw; q++ {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				var half mat.Dense
				half.Mul(p.raw.ThreeCenter[q], cvir)
				dst := mat.NewDense(ni, nvir, raw.RawRowView(q))
				dst.Mul(coccChunk.T(), &half)
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		var b mat.Dense
		b.Mul(w, raw)
		row := mat.NewDense(p.naux, nvir, nil)
		for i := i0; i < i1; i++ {
			row.Copy(b.Slice(0, p.naux, (i-i0)*nvir, (i-i0+1)*nvir))
			if err := p.store.Save(ctx, p.key(s, i), row); err != nil {
				return fmt.Errorf("cache integrals of %s orbital %d: %w", s, space.Occ[i], err)
			}
		}
		batchesDone.WithLabelValues(stage).Inc()
		i0 = i1
	}
	return nil
}

func (p *DFProvider) key(s Spin, i int) string {
	return fmt.Sprintf("%s/df/%s/%d", p.prefix, s, i)
}

func (p *DFProvider) Block(ctx context.Context, s Spin, i0, i1 int) (*IntegralBlock, error) {
	if p.store == nil {
		return nil, ErrSessionClosed
	}
	nvir := p.spaces[s].NVir()
	b := &IntegralBlock{Spin: s, I0: i0, I1: i1, NAux: p.naux, NVir: nvir,
		Data: make([]float64, (i1-i0)*p.naux*nvir)}
	for i := i0; i < i1; i++ {
		if err := p.store.Load(ctx, p.key(s, i), b.Row(i)); err != nil {
			return nil, err
		}
	}
	trace.SpanFromContext(ctx).AddEvent("block", trace.WithAttributes(
		attribute.String("spin", s.String()), attribute.Int("rows", i1-i0)))
	return b, nil
}

func (p *DFProvider) Release() error {
	if p.store == nil {
		return nil
	}
	err := p.store.Close()
	p.store = nil
	return err
}

// columns copies the selected columns of c.
func columns(c *mat.Dense, idx []int) *mat.Dense {
	rows, _ := c.Dims()
	res := mat.NewDense(rows, len(idx), nil)
	for k, p := range idx {
		for mu := 0; mu < rows; mu++ {
			res.Set(mu, k, c.At(mu, p))
		}
	}
	return res
}
