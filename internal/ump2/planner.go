// planner.go --  This file is part of goHF project.
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
	"log/slog"
	"runtime"
)

const sizeofFloat64 = 8

// MemoryReporter reports the memory ceiling of a calculation and the memory
// already in use, both in bytes. Both values may change between calls.
type MemoryReporter interface {
	MaxMemory() int64
	CurrentMemory() int64
}

// ProcessMemory limits the calculation to Limit bytes of live Go heap.
type ProcessMemory struct {
	Limit int64
}

func (p ProcessMemory) MaxMemory() int64 { return p.Limit }

func (p ProcessMemory) CurrentMemory() int64 {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)
	return int64(memStats.HeapAlloc)
}

// StaticMemory is a fixed ceiling with nothing in use. Limit may be changed
// between calls; it is never cached.
type StaticMemory struct {
	Limit int64
}

func (s *StaticMemory) MaxMemory() int64     { return s.Limit }
func (s *StaticMemory) CurrentMemory() int64 { return 0 }

// MemoryReporterFunc adapts a function returning (ceiling, in use).
type MemoryReporterFunc func() (max, current int64)

func (f MemoryReporterFunc) MaxMemory() int64 {
	m, _ := f()
	return m
}

func (f MemoryReporterFunc) CurrentMemory() int64 {
	_, c := f()
	return c
}

// Planner sizes batches so that the working set of a stage stays below the
// memory ceiling. The ceiling is read again on every call.
type Planner struct {
	mem    MemoryReporter
	logger *slog.Logger
}

func NewPlanner(mem MemoryReporter, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Planner{mem: mem, logger: logger}
}

// Available is the number of bytes that may still be allocated.
func (p *Planner) Available() int64 {
	return p.mem.MaxMemory() - p.mem.CurrentMemory()
}

// BatchSize returns the largest n in [1, total] with fixed + n*unit bytes
// fitting into the available memory.
func (p *Planner) BatchSize(stage string, unit, fixed int64, total int) (int, error) {
	avail := p.Available()
	if need := fixed + unit; need > avail {
		budgetFailures.WithLabelValues(stage).Inc()
		return 0, &BudgetError{Stage: stage, Need: need, Available: avail}
	}
	n := total
	if unit > 0 {
		if fit := (avail - fixed) / unit; fit < int64(total) {
			n = int(fit)
		}
	}
	if n < 1 {
		n = 1
	}
	batchSizes.WithLabelValues(stage).Observe(float64(n))
	p.logger.Debug("batch planned", slog.String("stage", stage), slog.Int("size", n),
		slog.Int("total", total), slog.Int64("available_bytes", avail))
	return n, nil
}

// Require fails unless bytes fit into the available memory.
func (p *Planner) Require(stage string, bytes int64) error {
	if avail := p.Available(); bytes > avail {
		budgetFailures.WithLabelValues(stage).Inc()
		return &BudgetError{Stage: stage, Need: bytes, Available: avail}
	}
	return nil
}

func floatBytes(n int) int64 { return int64(n) * sizeofFloat64 }
