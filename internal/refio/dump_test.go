// dump_test.go --  This file is part of goHF project.
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

package refio

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"example.com/goump2/internal/ump2"
)

const h2 = `
title: H2 minimal
unit: angstrom
charge: 0
spin: 0
atoms:
  - H 0.0 0.0 0.0
  - H 0.0 0.0 0.74
e_ref: -1.1167
overlap:
  - [1.0, 0.6593]
  - [0.6593, 1.0]
mo_coeff:
  alpha: [[0.5489, 1.2115], [0.5489, -1.2115]]
  beta: [[0.5489, 1.2115], [0.5489, -1.2115]]
mo_occ:
  alpha: [1, 0]
  beta: [1, 0]
mo_energy:
  alpha: [-0.5782, 0.6703]
  beta: [-0.5782, 0.6703]
df:
  metric:
    - [2.0, 0.3]
    - [0.3, 1.5]
  three_center:
    - [[0.9, 0.4], [0.4, 0.9]]
    - [[0.7, 0.2], [0.2, 0.7]]
`

func TestReadH2(t *testing.T) {
	d, err := Read(strings.NewReader(h2))
	require.NoError(t, err)
	assert.Equal(t, "H2 minimal", d.Title)

	mol, err := d.Molecule()
	require.NoError(t, err)
	assert.Equal(t, 2, mol.NElec())
	assert.InDelta(t, 0.52917720859/0.74, mol.NucNuc(), 1e-12)

	ref, err := d.Reference()
	require.NoError(t, err)
	assert.Equal(t, 2, ref.NAO())
	assert.Equal(t, 1, ref.NOcc(ump2.Alpha))
	assert.Equal(t, 2.0, ref.NElectrons())
	assert.Equal(t, -1.1167, ref.EnergyRef)
	assert.Equal(t, 0.6593, ref.Overlap.At(1, 0))
	assert.Equal(t, -1.2115, ref.MOCoeff[ump2.Beta].At(1, 1))

	raw, err := d.Integrals()
	require.NoError(t, err)
	require.Len(t, raw.ThreeCenter, 2)
	assert.Equal(t, 0.3, raw.Metric.At(0, 1))
	assert.Equal(t, 0.2, raw.ThreeCenter[1].At(1, 0))
}

func TestWriteRead(t *testing.T) {
	d, err := Read(strings.NewReader(h2))
	require.NoError(t, err)
	mol, err := d.Molecule()
	require.NoError(t, err)
	ref, err := d.Reference()
	require.NoError(t, err)
	raw, err := d.Integrals()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewDump(mol, ref, raw)))
	back, err := Read(&buf)
	require.NoError(t, err)

	assert.Equal(t, "bohr", back.Unit)
	mol2, err := back.Molecule()
	require.NoError(t, err)
	assert.InDelta(t, mol.NucNuc(), mol2.NucNuc(), 1e-9)
	ref2, err := back.Reference()
	require.NoError(t, err)
	assert.True(t, mat.Equal(ref.MOCoeff[ump2.Alpha], ref2.MOCoeff[ump2.Alpha]))
	assert.Equal(t, ref.MOEnergy, ref2.MOEnergy)
	raw2, err := back.Integrals()
	require.NoError(t, err)
	assert.True(t, mat.Equal(raw.Metric, raw2.Metric))
}

func TestReadErrors(t *testing.T) {
	testCases := []struct {
		name    string
		old     string
		new     string
		convert func(*Dump) error
	}{
		{name: "unknown field", old: "charge: 0", new: "charges: 0",
			convert: func(d *Dump) error { return nil }},
		{name: "asymmetric overlap", old: "[0.6593, 1.0]", new: "[0.7, 1.0]",
			convert: func(d *Dump) error { _, err := d.Reference(); return err }},
		{name: "ragged coefficients", old: "alpha: [[0.5489, 1.2115], [0.5489, -1.2115]]", new: "alpha: [[0.5489, 1.2115], [0.5489]]",
			convert: func(d *Dump) error { _, err := d.Reference(); return err }},
		{name: "occupation count", old: "alpha: [1, 0]", new: "alpha: [1, 0, 0]",
			convert: func(d *Dump) error { _, err := d.Reference(); return err }},
		{name: "non-square metric", old: "- [0.3, 1.5]", new: "- [0.3]",
			convert: func(d *Dump) error { _, err := d.Integrals(); return err }},
		{name: "unit", old: "unit: angstrom", new: "unit: parsec",
			convert: func(d *Dump) error { _, err := d.Molecule(); return err }},
		{name: "element", old: "- H 0.0 0.0 0.74", new: "- Hh 0.0 0.0 0.74",
			convert: func(d *Dump) error { _, err := d.Molecule(); return err }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Contains(t, h2, tc.old)
			d, err := Read(strings.NewReader(strings.Replace(h2, tc.old, tc.new, 1)))
			if err == nil {
				err = tc.convert(d)
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}
}
