// metrics.go --  This file is part of goHF project.
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
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// Labels: stage name ("transform", "pairs/outer", "pairs/inner", "density/oo", ...)
	batchesDone = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ump2_batches_total",
		Help: "Batches processed by stage",
	}, []string{"stage"})

	batchSizes = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ump2_batch_size",
		Help:    "Planned batch sizes by stage",
		Buckets: []float64{1, 2, 4, 8, 16, 32, 64, 128, 256},
	}, []string{"stage"})

	budgetFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ump2_memory_budget_failures_total",
		Help: "Stages aborted because the minimal unit did not fit the memory ceiling",
	}, []string{"stage"})

	pairAmplitudes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ump2_pair_amplitudes_total",
		Help: "Occupied pairs whose amplitudes were formed, by spin channel",
	}, []string{"channel"})
)

const tracerName = "goump2/ump2"

var (
	tracerOnce sync.Once
	tracer     trace.Tracer
)

func getTracer() trace.Tracer {
	tracerOnce.Do(func() {
		tracer = otel.Tracer(tracerName)
	})
	return tracer
}

// tracerFrom continues the trace of the span in ctx, falling back to the
// global provider.
func tracerFrom(ctx context.Context) trace.Tracer {
	if sp := trace.SpanFromContext(ctx); sp.SpanContext().IsValid() {
		return sp.TracerProvider().Tracer(tracerName)
	}
	return getTracer()
}
