// session.go --  This file is part of goHF project.
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

// Package ump2 computes the density-fitted unrestricted second-order
// Møller–Plesset correlation energy of an open-shell reference, its
// spin-component-scaled variant and the unrelaxed MP2 natural orbitals,
// keeping every intermediate below a caller-supplied memory ceiling.
package ump2

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Spin-component scaling factors of Grimme's SCS-MP2.
const (
	SCSSameSpin     = 1.0 / 3.0
	SCSOppositeSpin = 6.0 / 5.0
)

// DefaultMaxMemory is the heap ceiling used when no MemoryReporter is given.
const DefaultMaxMemory = 4000 << 20

// EnergyResult holds the correlation energy of one calculation. Channel
// energies are unscaled; Correlation applies the scaling factors.
type EnergyResult struct {
	SameSpin          [2]float64 // αα, ββ
	OppositeSpin      float64    // αβ
	SameSpinScale     float64
	OppositeSpinScale float64
	Correlation       float64
	Total             float64
}

// SameSpinTotal is Eαα + Eββ.
func (e EnergyResult) SameSpinTotal() float64 { return e.SameSpin[Alpha] + e.SameSpin[Beta] }

func newEnergyResult(ref *ReferenceState, channel [3]float64, ps, pt float64) EnergyResult {
	r := EnergyResult{
		SameSpin:          [2]float64{channel[0], channel[1]},
		OppositeSpin:      channel[2],
		SameSpinScale:     ps,
		OppositeSpinScale: pt,
	}
	r.Correlation = ps*(r.SameSpin[Alpha]+r.SameSpin[Beta]) + pt*r.OppositeSpin
	r.Total = ref.EnergyRef + r.Correlation
	return r
}

// Session binds a reference state to an integral provider and runs
// correlation calculations on it. A session is single-threaded; internal
// parallelism is controlled by WithWorkers.
type Session struct {
	id       uuid.UUID
	ref      *ReferenceState
	provider IntegralProvider
	planner  *Planner
	spaces   [2]*ActiveSpace

	frozen       FrozenSpec
	mem          MemoryReporter
	ps, pt       float64
	workers      int
	amps         StoreFactory
	cacheDensity bool
	logger       *slog.Logger
	tracer       trace.Tracer

	mu      sync.Mutex
	closed  bool
	energy  *EnergyResult
	density *CorrectionDensity
}

type Option func(*Session)

func WithFrozen(f FrozenSpec) Option {
	return func(s *Session) { s.frozen = f }
}

// WithMemory sets the memory ceiling. The reporter is queried before every
// batch.
func WithMemory(m MemoryReporter) Option {
	return func(s *Session) {
		if m != nil {
			s.mem = m
		}
	}
}

// WithSCS selects spin-component scaling with the standard factors.
func WithSCS() Option {
	return WithSpinScaling(SCSSameSpin, SCSOppositeSpin)
}

func WithSpinScaling(sameSpin, oppositeSpin float64) Option {
	return func(s *Session) {
		s.ps = sameSpin
		s.pt = oppositeSpin
	}
}

func WithWorkers(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.workers = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTracerProvider sends the spans of the session, and of the provider it
// prepares, to tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Session) {
		if tp != nil {
			s.tracer = tp.Tracer(tracerName)
		}
	}
}

// WithAmplitudeStore sets where pair amplitudes are spilled while a density
// is formed.
func WithAmplitudeStore(f StoreFactory) Option {
	return func(s *Session) {
		if f != nil {
			s.amps = f
		}
	}
}

// WithDensityCache makes Run form and keep the correction density as well,
// so a later NaturalOrbitals call does not repeat the amplitude pass.
func WithDensityCache(on bool) Option {
	return func(s *Session) { s.cacheDensity = on }
}

// Open validates the reference, resolves the active spaces and prepares the
// provider. The session must be closed by the caller.
func Open(ctx context.Context, ref *ReferenceState, provider IntegralProvider, opts ...Option) (*Session, error) {
	s := &Session{
		id:       uuid.New(),
		ref:      ref,
		provider: provider,
		mem:      ProcessMemory{Limit: DefaultMaxMemory},
		ps:       1,
		pt:       1,
		workers:  runtime.GOMAXPROCS(-1),
		amps:     MemoryStores,
		logger:   slog.Default(),
		tracer:   getTracer(),
	}
	for _, o := range opts {
		o(s)
	}
	s.logger = s.logger.With(slog.String("session", s.id.String()))

	ctx, span := s.tracer.Start(ctx, "ump2.Open", trace.WithAttributes(
		attribute.String("session", s.id.String())))
	defer span.End()

	if err := ref.Validate(); err != nil {
		return nil, recordError(span, err)
	}
	if provider == nil {
		return nil, recordError(span, referenceErrorf("nil integral provider"))
	}
	spaces, err := ResolveFrozen(s.frozen, ref)
	if err != nil {
		return nil, recordError(span, err)
	}
	s.spaces = spaces
	s.planner = NewPlanner(s.mem, s.logger)

	if err := provider.Prepare(ctx, spaces, s.planner); err != nil {
		_ = provider.Release()
		return nil, recordError(span, fmt.Errorf("prepare integrals: %w", err))
	}
	s.logger.Info("session opened",
		slog.String("frozen", s.frozen.String()),
		slog.Int("nocc_alpha", spaces[Alpha].NOcc()), slog.Int("nvir_alpha", spaces[Alpha].NVir()),
		slog.Int("nocc_beta", spaces[Beta].NOcc()), slog.Int("nvir_beta", spaces[Beta].NVir()),
		slog.Int("naux", provider.NumAux()),
		slog.Float64("same_spin_scale", s.ps), slog.Float64("opposite_spin_scale", s.pt))
	return s, nil
}

// Scope opens a session, passes it to fn and closes it whether fn returns an
// error or panics.
func Scope(ctx context.Context, ref *ReferenceState, provider IntegralProvider, fn func(*Session) error, opts ...Option) (err error) {
	s, err := Open(ctx, ref, provider, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := s.Close(); err == nil {
			err = cerr
		}
	}()
	return fn(s)
}

func recordError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (s *Session) ID() string { return s.id.String() }

// Spaces returns the active spaces of both spins.
func (s *Session) Spaces() [2]*ActiveSpace { return s.spaces }

// LastEnergy returns the energy of the most recent calculation.
func (s *Session) LastEnergy() (EnergyResult, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.energy == nil {
		return EnergyResult{}, false
	}
	return *s.energy, true
}

func (s *Session) newKernel() *kernel {
	return &kernel{
		provider: s.provider,
		planner:  s.planner,
		spaces:   s.spaces,
		ps:       s.ps,
		pt:       s.pt,
		workers:  s.workers,
		logger:   s.logger,
	}
}

// compute runs the amplitude pass; with density set the amplitudes are
// spilled to a store that lives for this call only. Caller holds s.mu.
func (s *Session) compute(ctx context.Context, density bool) (kernelResult, error) {
	var amps MatrixStore
	if density {
		st, err := s.amps()
		if err != nil {
			return kernelResult{}, fmt.Errorf("open amplitude store: %w", err)
		}
		defer st.Close()
		amps = st
	}
	res, err := s.newKernel().run(ctx, amps)
	if err != nil {
		return kernelResult{}, err
	}
	e := newEnergyResult(s.ref, res.energy, s.ps, s.pt)
	s.energy = &e
	if res.density != nil {
		s.density = res.density
	}
	return res, nil
}

// Run computes the correlation energy.
func (s *Session) Run(ctx context.Context) (res EnergyResult, err error) {
	ctx, span := s.tracer.Start(ctx, "ump2.Session.Run", trace.WithAttributes(
		attribute.String("session", s.id.String())))
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return res, recordError(span, ErrSessionClosed)
	}
	tstart := time.Now()
	if _, err := s.compute(ctx, s.cacheDensity); err != nil {
		return res, recordError(span, err)
	}
	res = *s.energy
	span.SetAttributes(attribute.Float64("e_corr", res.Correlation))
	s.logger.Info("correlation energy",
		slog.Float64("e_same_spin", res.SameSpinTotal()),
		slog.Float64("e_opposite_spin", res.OppositeSpin),
		slog.Float64("e_corr", res.Correlation),
		slog.Float64("e_tot", res.Total),
		slog.Duration("elapsed", time.Since(tstart)))
	return res, nil
}

// Density returns the unrelaxed correction density, computing it on first
// use.
func (s *Session) Density(ctx context.Context) (*CorrectionDensity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.densityLocked(ctx)
}

func (s *Session) densityLocked(ctx context.Context) (*CorrectionDensity, error) {
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.density != nil {
		return s.density, nil
	}
	if _, err := s.compute(ctx, true); err != nil {
		return nil, err
	}
	return s.density, nil
}

// NaturalOrbitals diagonalizes the total (alpha plus beta) unrelaxed MP2
// density in the alpha MO basis. Occupations range from 0 to 2.
func (s *Session) NaturalOrbitals(ctx context.Context) (*NaturalOrbitals, error) {
	ctx, span := s.tracer.Start(ctx, "ump2.Session.NaturalOrbitals")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()
	dens, err := s.densityLocked(ctx)
	if err != nil {
		return nil, recordError(span, err)
	}
	if err := s.planner.Require("natorb", natorbCost(s.ref)+s.provider.ResidentBytes()); err != nil {
		return nil, recordError(span, err)
	}
	no, err := diagonalize(totalDensity(s.ref, dens), s.ref.MOCoeff[Alpha])
	if err != nil {
		return nil, recordError(span, err)
	}
	s.logger.Info("natural orbitals", slog.Int("nmo", len(no.Occupations)))
	return no, nil
}

// SpinNaturalOrbitals diagonalizes the density of each spin separately.
// Occupations range from 0 to 1.
func (s *Session) SpinNaturalOrbitals(ctx context.Context) ([2]*NaturalOrbitals, error) {
	var res [2]*NaturalOrbitals
	s.mu.Lock()
	defer s.mu.Unlock()
	dens, err := s.densityLocked(ctx)
	if err != nil {
		return res, err
	}
	if err := s.planner.Require("natorb", natorbCost(s.ref)+s.provider.ResidentBytes()); err != nil {
		return res, err
	}
	for _, sp := range spins {
		no, err := diagonalize(dens.MODensity(s.ref, sp), s.ref.MOCoeff[sp])
		if err != nil {
			return res, fmt.Errorf("%s: %w", sp, err)
		}
		res[sp] = no
	}
	return res, nil
}

// Close releases the provider and drops cached results. Safe to call more
// than once.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.density = nil
	s.logger.Debug("session closed")
	return s.provider.Release()
}
