// molecule_test.go --  This file is part of goHF project.
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

package chem

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func o2(t *testing.T) Molecule {
	t.Helper()
	mol := Molecule{Spin: 2}
	require.NoError(t, mol.AddAtoms([]string{"O 0 0 1.141", "", "o 0 0 -1.141"}, true))
	return mol
}

func TestElementTable(t *testing.T) {
	require.Len(t, ElemData.Symb, 37)
	z, err := ElemData.Lookup("Fe")
	require.NoError(t, err)
	assert.Equal(t, 26, z)
	assert.Equal(t, "Iron", ElemData.Name[z])
	_, err = ElemData.Lookup("Xx")
	assert.Error(t, err)
}

func TestMoleculeO2(t *testing.T) {
	mol := o2(t)
	require.Len(t, mol.Atoms, 2)
	assert.Equal(t, "O1", mol.Atoms[0].Name)
	assert.Equal(t, "O2", mol.Atoms[1].Name)
	assert.Equal(t, "O2", mol.Formula())
	assert.Equal(t, 16, mol.NElec())

	na, nb, err := mol.NAlphaBeta()
	require.NoError(t, err)
	assert.Equal(t, 9, na)
	assert.Equal(t, 7, nb)

	assert.InDelta(t, 64/2.282, mol.NucNuc(), 1e-12)
	assert.InDelta(t, 31.998, mol.Mass(), 1e-9)
}

func TestAngstromConversion(t *testing.T) {
	var mol Molecule
	require.NoError(t, mol.AddAtom("H", [3]float64{0, 0, 0}, false))
	require.NoError(t, mol.AddAtom("H", [3]float64{0, 0, 0.74}, false))
	assert.InDelta(t, 0.74/ABohr, mol.Atoms[1].Coords[2], 1e-12)
	assert.InDelta(t, ABohr/0.74, mol.NucNuc(), 1e-12)
}

func TestBadInput(t *testing.T) {
	var mol Molecule
	assert.Error(t, mol.AddAtoms([]string{"O 0 0"}, true))
	assert.Error(t, mol.AddAtoms([]string{"O 0 0 x"}, true))
	assert.Error(t, mol.AddAtoms([]string{"Qq 0 0 0"}, true))

	mol = Molecule{Spin: 1}
	require.NoError(t, mol.AddAtom("O", [3]float64{}, true))
	_, _, err := mol.NAlphaBeta()
	assert.Error(t, err)
}
