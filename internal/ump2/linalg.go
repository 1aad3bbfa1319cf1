// linalg.go --  This file is part of goHF project.
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
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Flatten converts row slices into one row-major slice. Rows must have equal
// length.
func Flatten(arr [][]float64) []float64 {
	if len(arr) == 0 {
		return nil
	}
	cols := len(arr[0])
	res := make([]float64, 0, len(arr)*cols)
	for i := range arr {
		res = append(res, arr[i][:cols]...)
	}
	return res
}

// InverseSqrt returns W = diag(λ^-1/2) Vᵀ for the eigenpairs of a with
// λ > thresh, so that WᵀW is the pseudo-inverse of a. W has one row per kept
// eigenvalue.
func InverseSqrt(a mat.Symmetric, thresh float64) (*mat.Dense, error) {
	n := a.SymmetricDim()
	var eigsym mat.EigenSym
	if ok := eigsym.Factorize(a, true); !ok {
		return nil, errors.New("eigendecomposition failed")
	}
	var ev mat.Dense
	eigsym.VectorsTo(&ev)
	vals := eigsym.Values(nil)

	var kept []int
	for k, v := range vals {
		if v > thresh {
			kept = append(kept, k)
		}
	}
	if len(kept) == 0 {
		return nil, errors.New("matrix has no eigenvalue above threshold")
	}
	w := mat.NewDense(len(kept), n, nil)
	for r, k := range kept {
		f := 1 / math.Sqrt(vals[k])
		for mu := 0; mu < n; mu++ {
			w.Set(r, mu, f*ev.At(mu, k))
		}
	}
	return w, nil
}

// maxMetricCond is the largest condition number of the auxiliary metric
// that is still inverted through its Cholesky factor.
const maxMetricCond = 1e13

// metricTransform returns L⁻¹ for the Cholesky factor J = LLᵀ of the
// auxiliary metric, or the inverse square root when J is not numerically
// positive definite. The second result reports whether the fallback was used.
func metricTransform(j mat.Symmetric, thresh float64) (*mat.Dense, bool, error) {
	var chol mat.Cholesky
	if chol.Factorize(j) && chol.Cond() < maxMetricCond {
		var l, linv mat.TriDense
		chol.LTo(&l)
		if err := linv.InverseTri(&l); err == nil {
			return mat.DenseCopyOf(&linv), false, nil
		}
	}
	w, err := InverseSqrt(j, thresh)
	return w, true, err
}
