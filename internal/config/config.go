// config.go --  This file is part of goHF project.
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

// Package config loads goump2 run settings from a YAML file and GOUMP2_
// environment variables.
package config

// Config holds the settings of one run.
type Config struct {
	// Input is the reference dump (YAML or JSON).
	Input string `mapstructure:"input" validate:"required"`
	// Output is the report file; derived from the config file name when empty.
	Output      string       `mapstructure:"output"`
	MaxMemoryMB int64        `mapstructure:"max_memory_mb" validate:"gt=0"`
	Frozen      FrozenConfig `mapstructure:"frozen"`
	SCS         bool         `mapstructure:"scs"`
	// Explicit spin scaling; both zero means 1 (or the SCS factors).
	SameSpinScale     float64     `mapstructure:"same_spin_scale" validate:"gte=0"`
	OppositeSpinScale float64     `mapstructure:"opposite_spin_scale" validate:"gte=0"`
	NProcs            int         `mapstructure:"nprocs" validate:"gte=0"`
	Cache             CacheConfig `mapstructure:"cache"`
	LogLevel          string      `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	NaturalOrbitals   bool        `mapstructure:"natural_orbitals"`
	// DFLinDep is the eigenvalue below which auxiliary metric directions
	// are dropped.
	DFLinDep float64 `mapstructure:"df_lindep" validate:"gte=0"`
}

// FrozenConfig selects frozen orbitals either by count or by explicit
// per-spin index lists.
type FrozenConfig struct {
	Count int   `mapstructure:"count" validate:"gte=0"`
	Alpha []int `mapstructure:"alpha" validate:"omitempty,dive,gte=0"`
	Beta  []int `mapstructure:"beta" validate:"omitempty,dive,gte=0"`
}

// Explicit reports whether index lists were given.
func (f FrozenConfig) Explicit() bool { return f.Alpha != nil || f.Beta != nil }

// CacheConfig chooses where transformed integrals and spilled amplitudes
// live.
type CacheConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=memory badger"`
	// Dir is the parent of the scratch directory of the badger backend.
	Dir string `mapstructure:"dir"`
}

// MaxMemoryBytes is the memory ceiling in bytes.
func (c *Config) MaxMemoryBytes() int64 { return c.MaxMemoryMB << 20 }
