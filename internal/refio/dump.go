// dump.go --  This file is part of goHF project.
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

// Package refio reads and writes the reference dump: the converged
// unrestricted mean-field solution and the density-fitting integrals of a
// molecule, as produced by an external SCF program.
package refio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"example.com/goump2/internal/chem"
	"example.com/goump2/internal/ump2"
)

// ErrFormat reports a dump with missing or inconsistent data.
var ErrFormat = errors.New("malformed reference dump")

// Spins holds one value per spin.
type Spins[T any] struct {
	Alpha T `yaml:"alpha"`
	Beta  T `yaml:"beta"`
}

func (s Spins[T]) get(sp ump2.Spin) T {
	if sp == ump2.Beta {
		return s.Beta
	}
	return s.Alpha
}

type DF struct {
	// Metric is the two-center Coulomb metric (P|Q).
	Metric [][]float64 `yaml:"metric"`
	// ThreeCenter holds one nao x nao matrix (P|μν) per auxiliary function.
	ThreeCenter [][][]float64 `yaml:"three_center"`
}

// Dump is the on-disk layout. Coefficient rows are atomic orbitals, columns
// molecular orbitals.
type Dump struct {
	Title     string             `yaml:"title,omitempty"`
	Unit      string             `yaml:"unit"`
	Charge    int                `yaml:"charge"`
	Spin      int                `yaml:"spin"`
	Atoms     []string           `yaml:"atoms"`
	EnergyRef float64            `yaml:"e_ref"`
	Overlap   [][]float64        `yaml:"overlap"`
	MOCoeff   Spins[[][]float64] `yaml:"mo_coeff"`
	MOOcc     Spins[[]float64]   `yaml:"mo_occ"`
	MOEnergy  Spins[[]float64]   `yaml:"mo_energy"`
	DF        DF                 `yaml:"df"`
}

func Read(r io.Reader) (*Dump, error) {
	var d Dump
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return &d, nil
}

func ReadFile(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

func Write(w io.Writer, d *Dump) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(d); err != nil {
		return err
	}
	return enc.Close()
}

func (d *Dump) bohr() (bool, error) {
	switch strings.ToLower(d.Unit) {
	case "", "angstrom", "a":
		return false, nil
	case "bohr", "b", "au":
		return true, nil
	}
	return false, fmt.Errorf("%w: unknown unit %q", ErrFormat, d.Unit)
}

// Molecule builds the molecule described by the dump.
func (d *Dump) Molecule() (chem.Molecule, error) {
	mol := chem.Molecule{Charge: d.Charge, Spin: d.Spin}
	bohr, err := d.bohr()
	if err != nil {
		return mol, err
	}
	if err := mol.AddAtoms(d.Atoms, bohr); err != nil {
		return mol, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return mol, nil
}

// Reference converts the dump into a reference state.
func (d *Dump) Reference() (*ump2.ReferenceState, error) {
	s, err := symmetric("overlap", d.Overlap)
	if err != nil {
		return nil, err
	}
	ref := &ump2.ReferenceState{Overlap: s, EnergyRef: d.EnergyRef}
	for _, sp := range []ump2.Spin{ump2.Alpha, ump2.Beta} {
		c, err := dense("mo_coeff."+sp.String(), d.MOCoeff.get(sp))
		if err != nil {
			return nil, err
		}
		ref.MOCoeff[sp] = c
		ref.MOOcc[sp] = d.MOOcc.get(sp)
		ref.MOEnergy[sp] = d.MOEnergy.get(sp)
	}
	if err := ref.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	return ref, nil
}

// Integrals converts the density-fitting section.
func (d *Dump) Integrals() (*ump2.RawIntegrals, error) {
	metric, err := symmetric("df.metric", d.DF.Metric)
	if err != nil {
		return nil, err
	}
	raw := &ump2.RawIntegrals{Metric: metric}
	for p, m := range d.DF.ThreeCenter {
		s, err := symmetric(fmt.Sprintf("df.three_center[%d]", p), m)
		if err != nil {
			return nil, err
		}
		raw.ThreeCenter = append(raw.ThreeCenter, s)
	}
	return raw, nil
}

func dense(name string, rows [][]float64) (*mat.Dense, error) {
	if len(rows) == 0 || len(rows[0]) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrFormat, name)
	}
	for i, r := range rows {
		if len(r) != len(rows[0]) {
			return nil, fmt.Errorf("%w: %s row %d has %d columns, expected %d", ErrFormat, name, i, len(r), len(rows[0]))
		}
	}
	return mat.NewDense(len(rows), len(rows[0]), ump2.Flatten(rows)), nil
}

// symTol is the largest asymmetry accepted in a symmetric matrix.
const symTol = 1e-8

func symmetric(name string, rows [][]float64) (*mat.SymDense, error) {
	n := len(rows)
	if n == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrFormat, name)
	}
	s := mat.NewSymDense(n, nil)
	for i := range rows {
		if len(rows[i]) != n {
			return nil, fmt.Errorf("%w: %s is not square", ErrFormat, name)
		}
		for j := i; j < n; j++ {
			if math.Abs(rows[i][j]-rows[j][i]) > symTol*math.Max(1, math.Abs(rows[i][j])) {
				return nil, fmt.Errorf("%w: %s is not symmetric at (%d,%d)", ErrFormat, name, i, j)
			}
			s.SetSym(i, j, 0.5*(rows[i][j]+rows[j][i]))
		}
	}
	return s, nil
}

// rows converts a matrix into row slices.
func rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	res := make([][]float64, r)
	for i := range res {
		res[i] = make([]float64, c)
		for j := range res[i] {
			res[i][j] = m.At(i, j)
		}
	}
	return res
}

// NewDump assembles a dump from in-memory data.
func NewDump(mol chem.Molecule, ref *ump2.ReferenceState, raw *ump2.RawIntegrals) *Dump {
	d := &Dump{
		Unit:      "bohr",
		Charge:    mol.Charge,
		Spin:      mol.Spin,
		EnergyRef: ref.EnergyRef,
		Overlap:   rows(ref.Overlap),
		MOCoeff:   Spins[[][]float64]{Alpha: rows(ref.MOCoeff[ump2.Alpha]), Beta: rows(ref.MOCoeff[ump2.Beta])},
		MOOcc:     Spins[[]float64]{Alpha: ref.MOOcc[ump2.Alpha], Beta: ref.MOOcc[ump2.Beta]},
		MOEnergy:  Spins[[]float64]{Alpha: ref.MOEnergy[ump2.Alpha], Beta: ref.MOEnergy[ump2.Beta]},
		DF:        DF{Metric: rows(raw.Metric)},
	}
	for _, a := range mol.Atoms {
		d.Atoms = append(d.Atoms, fmt.Sprintf("%s %.10f %.10f %.10f",
			chem.ElemData.Symb[a.Z], a.Coords[0], a.Coords[1], a.Coords[2]))
	}
	for _, m := range raw.ThreeCenter {
		d.DF.ThreeCenter = append(d.DF.ThreeCenter, rows(m))
	}
	return d
}
