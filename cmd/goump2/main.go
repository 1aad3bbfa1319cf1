// main.go --  This file is part of goHF project.
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

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"example.com/goump2/internal/config"
	"example.com/goump2/internal/ump2"
)

const version = "0.3.0"

// Exit codes.
const (
	exitOK     = 0
	exitError  = 1
	exitConfig = 4
	exitMemory = 5
)

var (
	verbose bool
	tracing bool

	rootCmd = &cobra.Command{
		Use:           "goump2",
		Short:         "Density-fitted unrestricted MP2 energies and natural orbitals",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	runCmd = &cobra.Command{
		Use:   "run <config.yaml>",
		Short: "Run a UMP2 calculation described by a configuration file",
		Args:  cobra.ExactArgs(1),
		RunE:  runCalculation,
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the program version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "goump2", version)
		},
	}
)

func init() {
	runCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log debug messages regardless of log_level")
	runCmd.Flags().BoolVar(&tracing, "trace", false, "record spans and print their timings to the report")
	rootCmd.AddCommand(runCmd, versionCmd)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrInvalid):
		return exitConfig
	case errors.Is(err, ump2.ErrMemoryBudget):
		return exitMemory
	default:
		return exitError
	}
}

func main() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "goump2:", err)
	}
	os.Exit(exitCode(err))
}
