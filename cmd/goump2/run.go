// run.go --  This file is part of goHF project.
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

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"example.com/goump2/internal/chem"
	"example.com/goump2/internal/config"
	"example.com/goump2/internal/logging"
	"example.com/goump2/internal/refio"
	"example.com/goump2/internal/store"
	"example.com/goump2/internal/ump2"
)

func runCalculation(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}

	out, err := os.OpenFile(cfg.Output, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("open output: %w", err)
	}
	defer out.Close()

	level := new(slog.LevelVar)
	l, err := logging.ParseLevel(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	level.Set(l)
	if verbose {
		level.Set(slog.LevelDebug)
	}
	logger := logging.New(out, os.Stderr, level)
	report := logging.NewReport(out)

	logger.Info("starting goump2", slog.String("version", version), slog.String("config", args[0]))
	report.Banner()
	logger.Warn("This is an experimental program on an early stage of development.")

	lines, err := ReadFileLines(args[0])
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrInvalid, err)
	}
	report.Lines("Input file content:", lines)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	dump, err := refio.ReadFile(cfg.Input)
	if err != nil {
		return err
	}
	mol, err := dump.Molecule()
	if err != nil {
		return err
	}
	ref, err := dump.Reference()
	if err != nil {
		return err
	}
	raw, err := dump.Integrals()
	if err != nil {
		return err
	}
	printMolecule(report, dump.Title, mol)
	report.Energy("Reference energy", ref.EnergyRef)

	if cfg.NProcs > 0 {
		runtime.GOMAXPROCS(cfg.NProcs)
		logger.Info("number of threads set", slog.Int("nprocs", cfg.NProcs))
	}

	stores := ump2.MemoryStores
	if cfg.Cache.Backend == "badger" {
		stores = scratchStores(cfg.Cache.Dir, logger)
	}
	provider := ump2.NewDFProvider(ref, raw,
		ump2.WithCacheStore(stores),
		ump2.WithLinearDependency(cfg.DFLinDep),
		ump2.WithProviderLogger(logger))
	opts := sessionOptions(cfg, stores, logger)
	var timings *spanTimings
	if tracing {
		var tp *sdktrace.TracerProvider
		tp, timings = newTracing()
		defer tp.Shutdown(context.Background())
		opts = append(opts, ump2.WithTracerProvider(tp))
	}
	err = ump2.Scope(ctx, ref, provider, func(s *ump2.Session) error {
		return calculate(ctx, s, cfg, report)
	}, opts...)
	if timings != nil {
		timings.Print(report)
	}
	if err != nil {
		logger.Error("calculation failed", slog.Any("error", err))
		return err
	}

	MyMemDebug(report)
	if err := printMetrics(report); err != nil {
		logger.Warn("gather metrics", slog.Any("error", err))
	}
	logger.Info("exiting goump2")
	fmt.Fprintln(cmd.OutOrStdout(), "goump2 done.")
	return nil
}

func sessionOptions(cfg *config.Config, stores ump2.StoreFactory, logger *slog.Logger) []ump2.Option {
	opts := []ump2.Option{
		ump2.WithMemory(ump2.ProcessMemory{Limit: cfg.MaxMemoryBytes()}),
		ump2.WithLogger(logger),
		ump2.WithAmplitudeStore(stores),
		ump2.WithDensityCache(cfg.NaturalOrbitals),
		ump2.WithWorkers(runtime.GOMAXPROCS(-1)),
	}
	if cfg.Frozen.Explicit() {
		opts = append(opts, ump2.WithFrozen(ump2.FrozenLists(nonNil(cfg.Frozen.Alpha), nonNil(cfg.Frozen.Beta))))
	} else {
		opts = append(opts, ump2.WithFrozen(ump2.FrozenCount(cfg.Frozen.Count)))
	}
	switch {
	case cfg.SCS:
		opts = append(opts, ump2.WithSCS())
	case cfg.SameSpinScale != 0 || cfg.OppositeSpinScale != 0:
		opts = append(opts, ump2.WithSpinScaling(cfg.SameSpinScale, cfg.OppositeSpinScale))
	}
	return opts
}

func nonNil(list []int) []int {
	if list == nil {
		return []int{}
	}
	return list
}

// scratchStores opens a fresh badger store below dir for every cache.
func scratchStores(dir string, logger *slog.Logger) ump2.StoreFactory {
	return func() (ump2.MatrixStore, error) {
		return store.ScratchMatrices(dir, logger)
	}
}

func calculate(ctx context.Context, s *ump2.Session, cfg *config.Config, report *logging.Report) error {
	tstart := time.Now()
	e, err := s.Run(ctx)
	if err != nil {
		return err
	}
	spaces := s.Spaces()
	report.Delimiter()
	report.Printf("Session: %s\n", s.ID())
	report.Printf("Frozen orbitals: alpha %v, beta %v\n", spaces[ump2.Alpha].Frozen, spaces[ump2.Beta].Frozen)
	report.Printf("Active occupied: alpha %d, beta %d; virtual: alpha %d, beta %d\n",
		spaces[ump2.Alpha].NOcc(), spaces[ump2.Beta].NOcc(), spaces[ump2.Alpha].NVir(), spaces[ump2.Beta].NVir())
	report.Delimiter()
	report.Energy("E(alpha-alpha)", e.SameSpin[ump2.Alpha])
	report.Energy("E(beta-beta)", e.SameSpin[ump2.Beta])
	report.Energy("E(alpha-beta)", e.OppositeSpin)
	report.Printf("Spin scaling: same %.6f, opposite %.6f\n", e.SameSpinScale, e.OppositeSpinScale)
	report.Energy("Correlation energy", e.Correlation)
	report.Energy("Total energy", e.Total)
	report.Delimiter()
	fmt.Printf("Final total energy = %.12f a.u.\n", e.Total)

	if cfg.NaturalOrbitals {
		no, err := s.NaturalOrbitals(ctx)
		if err != nil {
			return err
		}
		report.Println("MP2 natural orbital occupations:")
		report.Occupations(no.Occupations)
		if verbose || cfg.LogLevel == "debug" {
			report.Println("MP2 natural orbitals (AO basis, columns):")
			report.Dense(no.Orbitals)
		}
		report.Delimiter()
	}
	report.Printf("Wall time: %s\n", time.Since(tstart).Round(time.Millisecond))
	return nil
}

func printMolecule(report *logging.Report, title string, mol chem.Molecule) {
	if title != "" {
		report.Println(title)
	}
	report.Printf("Formula: %s, charge %d, multiplicity %d, %d electrons\n",
		mol.Formula(), mol.Charge, mol.Spin+1, mol.NElec())
	report.Printf("Molecular mass: %.4f amu\n", mol.Mass())
	report.Printf("Nuclear repulsion energy: %.10f a.u.\n", mol.NucNuc())
	report.Delimiter()
}
