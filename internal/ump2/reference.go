// reference.go --  This file is part of goHF project.
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
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

type Spin int

const (
	Alpha Spin = iota
	Beta
)

var spins = [2]Spin{Alpha, Beta}

func (s Spin) String() string {
	if s == Beta {
		return "beta"
	}
	return "alpha"
}

// ReferenceState is the converged unrestricted mean-field solution the
// correlation treatment starts from. It is borrowed by a session and never
// modified.
type ReferenceState struct {
	MOCoeff   [2]*mat.Dense // nao x nmo, per spin
	MOOcc     [2][]float64
	MOEnergy  [2][]float64
	Overlap   *mat.SymDense
	EnergyRef float64 // total reference energy, Hartree
}

func (r *ReferenceState) NAO() int {
	n, _ := r.MOCoeff[Alpha].Dims()
	return n
}

func (r *ReferenceState) NMO(s Spin) int {
	_, n := r.MOCoeff[s].Dims()
	return n
}

// NOcc counts orbitals with nonzero occupation.
func (r *ReferenceState) NOcc(s Spin) int {
	n := 0
	for _, o := range r.MOOcc[s] {
		if o > 0 {
			n++
		}
	}
	return n
}

// NElectrons is the total electron count of both spins.
func (r *ReferenceState) NElectrons() float64 {
	return floats.Sum(r.MOOcc[Alpha]) + floats.Sum(r.MOOcc[Beta])
}

// Validate checks that all arrays have matching shapes.
func (r *ReferenceState) Validate() error {
	if r == nil {
		return referenceErrorf("nil reference")
	}
	if r.Overlap == nil {
		return referenceErrorf("missing overlap matrix")
	}
	nao := r.Overlap.SymmetricDim()
	for _, s := range spins {
		if r.MOCoeff[s] == nil {
			return referenceErrorf("missing %s coefficients", s)
		}
		rows, nmo := r.MOCoeff[s].Dims()
		if rows != nao {
			return referenceErrorf("%s coefficients have %d rows, overlap is %dx%d", s, rows, nao, nao)
		}
		if len(r.MOOcc[s]) != nmo {
			return referenceErrorf("%s occupations: %d values for %d orbitals", s, len(r.MOOcc[s]), nmo)
		}
		if len(r.MOEnergy[s]) != nmo {
			return referenceErrorf("%s orbital energies: %d values for %d orbitals", s, len(r.MOEnergy[s]), nmo)
		}
		if r.NOcc(s) == 0 {
			return referenceErrorf("no occupied %s orbitals", s)
		}
	}
	return nil
}

// moDensity returns the reference density of one spin in its own MO basis,
// i.e. diag(occ).
func (r *ReferenceState) moDensity(s Spin) *mat.SymDense {
	nmo := r.NMO(s)
	dm := mat.NewSymDense(nmo, nil)
	for p, o := range r.MOOcc[s] {
		dm.SetSym(p, p, o)
	}
	return dm
}
