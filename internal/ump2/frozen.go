// frozen.go --  This file is part of goHF project.
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
	"fmt"

	"golang.org/x/exp/slices"
)

// FrozenSpec selects occupied orbitals excluded from the correlation
// treatment. With Lists set (one list per spin) orbitals are picked by index,
// otherwise the Count lowest-energy occupied orbitals of each spin are frozen.
type FrozenSpec struct {
	Count int
	Lists [][]int
}

func NoFrozen() FrozenSpec { return FrozenSpec{} }

func FrozenCount(n int) FrozenSpec { return FrozenSpec{Count: n} }

// FrozenLists freezes orbitals by index; exactly one list per spin is
// expected (alpha, beta).
func FrozenLists(lists ...[]int) FrozenSpec {
	if lists == nil {
		lists = [][]int{}
	}
	return FrozenSpec{Lists: lists}
}

func (f FrozenSpec) explicit() bool { return f.Lists != nil }

func (f FrozenSpec) String() string {
	if f.explicit() {
		return fmt.Sprint(f.Lists)
	}
	return fmt.Sprint(f.Count)
}

// ActiveSpace holds the orbitals of one spin that take part in the
// correlation treatment. Indices refer to columns of the reference
// coefficient matrix; Occ keeps ascending index order.
type ActiveSpace struct {
	Spin   Spin
	Frozen []int
	Occ    []int
	Vir    []int
	EOcc   []float64
	EVir   []float64
}

func (a *ActiveSpace) NOcc() int { return len(a.Occ) }
func (a *ActiveSpace) NVir() int { return len(a.Vir) }

// ResolveFrozen turns a frozen specification into per-spin active spaces.
func ResolveFrozen(spec FrozenSpec, ref *ReferenceState) ([2]*ActiveSpace, error) {
	var res [2]*ActiveSpace
	if spec.explicit() && len(spec.Lists) != 2 {
		return res, specErrorf(Alpha, "expected 2 frozen lists (alpha, beta), got %d", len(spec.Lists))
	}
	for _, s := range spins {
		var frozen []int
		var err error
		if spec.explicit() {
			frozen, err = frozenByIndex(s, spec.Lists[s], ref)
		} else {
			frozen, err = frozenByEnergy(s, spec.Count, ref)
		}
		if err != nil {
			return res, err
		}
		res[s] = buildActiveSpace(s, frozen, ref)
	}
	return res, nil
}

func occupiedIndices(s Spin, ref *ReferenceState) []int {
	var occ []int
	for p, o := range ref.MOOcc[s] {
		if o > 0 {
			occ = append(occ, p)
		}
	}
	return occ
}

func frozenByEnergy(s Spin, n int, ref *ReferenceState) ([]int, error) {
	occ := occupiedIndices(s, ref)
	if n < 0 {
		return nil, specErrorf(s, "negative frozen count %d", n)
	}
	if n > len(occ) {
		return nil, specErrorf(s, "%d frozen orbitals exceed %d occupied", n, len(occ))
	}
	e := ref.MOEnergy[s]
	slices.SortStableFunc(occ, func(p, q int) int { return cmp.Compare(e[p], e[q]) })
	frozen := slices.Clone(occ[:n])
	slices.Sort(frozen)
	return frozen, nil
}

func frozenByIndex(s Spin, list []int, ref *ReferenceState) ([]int, error) {
	nmo := ref.NMO(s)
	nocc := ref.NOcc(s)
	if len(list) > nocc {
		return nil, specErrorf(s, "%d frozen orbitals exceed %d occupied", len(list), nocc)
	}
	frozen := slices.Clone(list)
	slices.Sort(frozen)
	for k, p := range frozen {
		if p < 0 || p >= nmo {
			return nil, specErrorf(s, "orbital index %d out of range [0,%d)", p, nmo)
		}
		if k > 0 && frozen[k-1] == p {
			return nil, specErrorf(s, "orbital index %d listed twice", p)
		}
		if ref.MOOcc[s][p] <= 0 {
			return nil, specErrorf(s, "orbital %d is not occupied", p)
		}
	}
	return frozen, nil
}

func buildActiveSpace(s Spin, frozen []int, ref *ReferenceState) *ActiveSpace {
	a := &ActiveSpace{Spin: s, Frozen: frozen}
	e := ref.MOEnergy[s]
	for p, o := range ref.MOOcc[s] {
		switch {
		case o <= 0:
			a.Vir = append(a.Vir, p)
			a.EVir = append(a.EVir, e[p])
		case !slices.Contains(frozen, p):
			a.Occ = append(a.Occ, p)
			a.EOcc = append(a.EOcc, e[p])
		}
	}
	return a
}
