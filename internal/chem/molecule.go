// molecule.go --  This file is part of goHF project.
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

// Package chem describes the molecule a reference state belongs to.
package chem

import (
	_ "embed"
	"fmt"
	"math"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// ABohr is the Bohr radius in Angstrom.
const ABohr = 0.52917720859

//go:embed data/mendeleev.csv
var mendeleevCSV string

// Mendeleev is the element table; index equals the nuclear charge.
type Mendeleev struct {
	Z          []int
	Symb, Name []string
	Mass       []float64
}

var ElemData Mendeleev

func init() {
	ElemData.build(mendeleevCSV)
}

func (m *Mendeleev) build(csv string) {
	for i, str := range strings.Split(strings.TrimSpace(csv), "\n") {
		if i == 0 {
			continue
		}
		words := strings.Split(strings.TrimSpace(str), ",")
		z, _ := strconv.Atoi(words[0])
		mass, _ := strconv.ParseFloat(words[3], 64)
		m.Z = append(m.Z, z)
		m.Mass = append(m.Mass, mass)
		m.Symb = append(m.Symb, words[1])
		m.Name = append(m.Name, words[2])
	}
}

// Lookup returns the nuclear charge of an element symbol, case-insensitive.
func (m *Mendeleev) Lookup(symbol string) (int, error) {
	z := slices.IndexFunc(m.Symb, func(s string) bool { return strings.EqualFold(s, symbol) })
	if z < 0 {
		return 0, fmt.Errorf("unknown element %q", symbol)
	}
	return z, nil
}

type Atom struct {
	Z      int
	Name   string
	Coords [3]float64 // Bohr
}

// Molecule is a set of nuclei with a total charge and spin (Nα − Nβ).
type Molecule struct {
	Atoms  []Atom
	Charge int
	Spin   int
}

// AddAtom appends an atom; coordinates are converted to Bohr unless bohr is
// set.
func (m *Molecule) AddAtom(symbol string, coords [3]float64, bohr bool) error {
	z, err := ElemData.Lookup(symbol)
	if err != nil {
		return err
	}
	if !bohr {
		for k := range coords {
			coords[k] /= ABohr
		}
	}
	m.Atoms = append(m.Atoms, Atom{
		Z:      z,
		Name:   ElemData.Symb[z] + strconv.Itoa(len(m.Atoms)+1),
		Coords: coords,
	})
	return nil
}

// AddAtoms parses lines of the form "O 0.0 0.0 1.141".
func (m *Molecule) AddAtoms(lines []string, bohr bool) error {
	for _, l := range lines {
		words := strings.Fields(l)
		if len(words) == 0 {
			continue
		}
		if len(words) < 4 {
			return fmt.Errorf("incorrect format of coordinates for atom %q", l)
		}
		var xyz [3]float64
		for k := 0; k < 3; k++ {
			v, err := strconv.ParseFloat(words[k+1], 64)
			if err != nil {
				return fmt.Errorf("atom %q: %w", l, err)
			}
			xyz[k] = v
		}
		if err := m.AddAtom(words[0], xyz, bohr); err != nil {
			return err
		}
	}
	return nil
}

// NElec is the number of electrons of the charged molecule.
func (m *Molecule) NElec() int {
	result := -m.Charge
	for _, a := range m.Atoms {
		result += a.Z
	}
	return result
}

// NAlphaBeta splits the electrons by spin.
func (m *Molecule) NAlphaBeta() (int, int, error) {
	n := m.NElec()
	if n < 0 || (n+m.Spin)%2 != 0 || m.Spin > n || m.Spin < -n {
		return 0, 0, fmt.Errorf("%d electrons cannot have spin %d", n, m.Spin)
	}
	return (n + m.Spin) / 2, (n - m.Spin) / 2, nil
}

// NucNuc is the nuclear repulsion energy in Hartree.
func (m *Molecule) NucNuc() float64 {
	res := 0.0
	for i := range m.Atoms {
		for j := 0; j < i; j++ {
			res += float64(m.Atoms[i].Z) * float64(m.Atoms[j].Z) /
				math.Sqrt(math.Pow(m.Atoms[i].Coords[0]-m.Atoms[j].Coords[0], 2)+
					math.Pow(m.Atoms[i].Coords[1]-m.Atoms[j].Coords[1], 2)+
					math.Pow(m.Atoms[i].Coords[2]-m.Atoms[j].Coords[2], 2))
		}
	}
	return res
}

// Mass is the molecular mass in atomic mass units.
func (m *Molecule) Mass() float64 {
	res := 0.0
	for _, a := range m.Atoms {
		res += ElemData.Mass[a.Z]
	}
	return res
}

// Formula lists element counts in order of first appearance, e.g. "O2".
func (m *Molecule) Formula() string {
	var order []int
	count := map[int]int{}
	for _, a := range m.Atoms {
		if count[a.Z] == 0 {
			order = append(order, a.Z)
		}
		count[a.Z]++
	}
	var sb strings.Builder
	for _, z := range order {
		sb.WriteString(ElemData.Symb[z])
		if count[z] > 1 {
			sb.WriteString(strconv.Itoa(count[z]))
		}
	}
	return sb.String()
}
