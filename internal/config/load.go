// load.go --  This file is part of goHF project.
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

package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. GOUMP2_MAX_MEMORY_MB.
const EnvPrefix = "GOUMP2"

// ErrInvalid wraps every loading or validation failure.
var ErrInvalid = errors.New("invalid configuration")

func setDefaults(v *viper.Viper) {
	v.SetDefault("max_memory_mb", 4000)
	v.SetDefault("frozen.count", 0)
	v.SetDefault("scs", false)
	v.SetDefault("same_spin_scale", 0.0)
	v.SetDefault("opposite_spin_scale", 0.0)
	v.SetDefault("nprocs", 0)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.dir", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("natural_orbitals", false)
	v.SetDefault("df_lindep", 1e-10)
}

// Load reads the configuration file at path (may be empty) and applies
// environment overrides. Relative input and output paths are resolved
// against the directory of the configuration file.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for _, key := range []string{"input", "output", "cache.dir"} {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("%w: bind %s: %v", ErrInvalid, key, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal: %v", ErrInvalid, err)
	}
	if err := cfg.finish(path); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) finish(path string) error {
	dir := filepath.Dir(path)
	if c.Input != "" && path != "" && !filepath.IsAbs(c.Input) {
		c.Input = filepath.Join(dir, c.Input)
	}
	if c.Output == "" && path != "" {
		ext := filepath.Ext(path)
		c.Output = strings.TrimSuffix(path, ext) + ".out"
	} else if c.Output != "" && path != "" && !filepath.IsAbs(c.Output) {
		c.Output = filepath.Join(dir, c.Output)
	}

	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: validation failed: %v", ErrInvalid, err)
	}
	if c.Frozen.Explicit() && c.Frozen.Count > 0 {
		return fmt.Errorf("%w: frozen.count and frozen index lists are exclusive", ErrInvalid)
	}
	if c.SCS && (c.SameSpinScale != 0 || c.OppositeSpinScale != 0) {
		return fmt.Errorf("%w: scs and explicit spin scaling are exclusive", ErrInvalid)
	}
	return nil
}
