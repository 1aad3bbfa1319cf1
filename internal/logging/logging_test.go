// logging_test.go --  This file is part of goHF project.
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

package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"ERROR": slog.LevelError,
	} {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestNewFansOut(t *testing.T) {
	var file, console bytes.Buffer
	logger := New(&file, &console, slog.LevelDebug)

	logger.Debug("batch planned", slog.Int("size", 3))
	logger.Warn("metric not positive definite")

	assert.Contains(t, file.String(), "batch planned")
	assert.Contains(t, file.String(), "size=3")
	assert.Contains(t, file.String(), "metric not positive definite")
	assert.NotContains(t, console.String(), "batch planned")
	assert.Contains(t, console.String(), "metric not positive definite")
}

func TestNewRespectsLevelVar(t *testing.T) {
	var file bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger := New(&file, nil, level)

	logger.Info("hidden")
	level.Set(slog.LevelInfo)
	logger.Info("shown")

	assert.NotContains(t, file.String(), "hidden")
	assert.Contains(t, file.String(), "shown")
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	r := NewReport(&buf)
	r.Energy("E(corr)", -0.347887316046)
	r.Delimiter()
	r.Occupations([]float64{2, 1.5, 1, 0.5, 0.25, 0})
	r.Dense(mat.NewDense(1, 2, []float64{1, 2}))

	out := buf.String()
	assert.Contains(t, out, "-0.347887316046 a.u.")
	assert.Contains(t, out, strings.Repeat("-", 70))
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.GreaterOrEqual(t, len(lines), 4)
	assert.Contains(t, out, "    5   0.0000000000")
}
