// trace.go --  This file is part of goHF project.
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
	"sync"
	"time"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"example.com/goump2/internal/logging"
)

// spanTimings collects finished spans for the timing table of the report.
type spanTimings struct {
	mu    sync.Mutex
	spans []sdktrace.ReadOnlySpan
}

var _ sdktrace.SpanProcessor = (*spanTimings)(nil)

func (t *spanTimings) OnStart(context.Context, sdktrace.ReadWriteSpan) {}

func (t *spanTimings) OnEnd(s sdktrace.ReadOnlySpan) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.spans = append(t.spans, s)
}

func (t *spanTimings) Shutdown(context.Context) error   { return nil }
func (t *spanTimings) ForceFlush(context.Context) error { return nil }

// newTracing returns a tracer provider that records into timings.
func newTracing() (*sdktrace.TracerProvider, *spanTimings) {
	timings := &spanTimings{}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithSpanProcessor(timings))
	return tp, timings
}

// Print writes one line per finished span in the order they ended.
func (t *spanTimings) Print(report *logging.Report) {
	t.mu.Lock()
	defer t.mu.Unlock()
	report.Println("Timings:")
	for _, s := range t.spans {
		status := "ok"
		if s.Status().Code == codes.Error {
			status = "error"
		}
		report.Printf("%-32s %12s  %s\n", s.Name(),
			s.EndTime().Sub(s.StartTime()).Round(time.Microsecond), status)
	}
	report.Delimiter()
}
