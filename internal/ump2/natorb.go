// natorb.go --  This file is part of goHF project.
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
	"cmp"
	"errors"

	"golang.org/x/exp/slices"
	"gonum.org/v1/gonum/mat"
)

// NaturalOrbitals are the eigenvectors of a one-particle density expressed in
// the AO basis. Occupations are in descending order and column k of Orbitals
// belongs to Occupations[k].
type NaturalOrbitals struct {
	Occupations []float64
	Orbitals    *mat.Dense // nao x nmo
}

// diagonalize returns the natural orbitals of the MO-basis density dm whose
// basis is given by coeff.
func diagonalize(dm mat.Symmetric, coeff *mat.Dense) (*NaturalOrbitals, error) {
	var eigsym mat.EigenSym
	if ok := eigsym.Factorize(dm, true); !ok {
		return nil, errors.New("density diagonalization failed")
	}
	vals := eigsym.Values(nil)
	var u mat.Dense
	eigsym.VectorsTo(&u)

	n := len(vals)
	order := make([]int, n)
	for k := range order {
		order[k] = k
	}
	slices.SortStableFunc(order, func(a, b int) int { return cmp.Compare(vals[b], vals[a]) })

	occ := make([]float64, n)
	sorted := mat.NewDense(n, n, nil)
	for k, src := range order {
		occ[k] = vals[src]
		for p := 0; p < n; p++ {
			sorted.Set(p, k, u.At(p, src))
		}
	}
	orbs := &mat.Dense{}
	orbs.Mul(coeff, sorted)
	return &NaturalOrbitals{Occupations: occ, Orbitals: orbs}, nil
}

// totalDensity expresses the beta density in the alpha MO basis and adds it
// to the alpha one: Dα + X Dβ Xᵀ with X = Cαᵀ S Cβ.
func totalDensity(ref *ReferenceState, dens *CorrectionDensity) *mat.SymDense {
	da := dens.MODensity(ref, Alpha)
	db := dens.MODensity(ref, Beta)

	var sc, x, xd, full mat.Dense
	sc.Mul(ref.Overlap, ref.MOCoeff[Beta])
	x.Mul(ref.MOCoeff[Alpha].T(), &sc)
	xd.Mul(&x, db)
	full.Mul(&xd, x.T())

	n := da.SymmetricDim()
	res := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			res.SetSym(i, j, da.At(i, j)+0.5*(full.At(i, j)+full.At(j, i)))
		}
	}
	return res
}

// natorbCost is the working set of a natural orbital analysis.
func natorbCost(ref *ReferenceState) int64 {
	nao, nmo := ref.NAO(), ref.NMO(Alpha)
	return floatBytes(5*nmo*nmo + 2*nao*nmo)
}
