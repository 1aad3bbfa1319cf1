// helper.go --  This file is part of goHF project.
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
	"bufio"
	"os"
	"runtime"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"example.com/goump2/internal/logging"
)

func ReadFileLines(fname string) ([]string, error) {
	file, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var result []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		result = append(result, scanner.Text())
	}
	return result, scanner.Err()
}

// MyMemDebug prints the allocator statistics at the end of a run.
func MyMemDebug(report *logging.Report) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	report.Println("Memory statistics:")
	report.Printf("Alloc: %d bytes\n", memStats.Alloc)
	report.Printf("TotalAlloc: %d bytes\n", memStats.TotalAlloc)
	report.Printf("HeapAlloc: %d bytes\n", memStats.HeapAlloc)
	report.Printf("HeapSys: %d bytes\n", memStats.HeapSys)
	report.Delimiter()
}

// printMetrics writes the ump2 counters and histograms of the default
// registry.
func printMetrics(report *logging.Report) error {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	report.Println("Metrics:")
	for _, mf := range families {
		if !strings.HasPrefix(mf.GetName(), "ump2_") {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			name := mf.GetName() + "{" + strings.Join(labels, ",") + "}"
			switch {
			case m.GetCounter() != nil:
				report.Printf("%-56s %g\n", name, m.GetCounter().GetValue())
			case m.GetHistogram() != nil:
				h := m.GetHistogram()
				report.Printf("%-56s count %d sum %g\n", name, h.GetSampleCount(), h.GetSampleSum())
			}
		}
	}
	report.Delimiter()
	return nil
}
