// report.go --  This file is part of goHF project.
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

package logging

import (
	"fmt"
	"io"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// Report writes the human-readable part of the output file.
type Report struct {
	w io.Writer
}

func NewReport(w io.Writer) *Report { return &Report{w: w} }

func (r *Report) Println(a ...any) { fmt.Fprintln(r.w, a...) }

func (r *Report) Printf(format string, a ...any) { fmt.Fprintf(r.w, format, a...) }

func (r *Report) Delimiter() {
	fmt.Fprintln(r.w, strings.Repeat("-", 70))
}

func (r *Report) Banner() {
	fmt.Fprint(r.w, "\n              __  __  ____      |\n             /\\ \\/\\ \\/\\  __\\    |"+
		" Author: Mirzaeva Irina Valerievna\n   __     ___\\ \\ \\_\\ \\ \\ \\_/    | email: dairdre@gmail.com\n"+
		" /'_ `\\  / __`\\ \\  _  \\ \\  _\\   | Nikolaev Institute of Inorganic Chemistry SB RAS"+
		" (http://niic.nsc.ru/)\n/\\ \\L\\ \\/\\ \\L\\ \\ \\ \\ \\ \\ \\ \\/   | Novosibirsk, Russia"+
		"\n\\ \\____ \\ \\____/\\ \\_\\ \\_\\ \\_\\   | goUMP2: density-fitted unrestricted MP2\n \\/___L\\"+
		" \\/___/  \\/_/\\/_/\\/_/   | Have Fun!!!\n   /\\____/                      |\n   \\_/__/                       |\n\n")
}

// Lines echoes input lines between delimiters.
func (r *Report) Lines(title string, lines []string) {
	r.Println(title)
	r.Delimiter()
	for _, l := range lines {
		r.Println(l)
	}
	r.Delimiter()
}

// Energy prints a labelled energy in Hartree.
func (r *Report) Energy(label string, e float64) {
	fmt.Fprintf(r.w, "%-32s %20.12f a.u.\n", label, e)
}

// Occupations prints numbered occupations, five per line.
func (r *Report) Occupations(occ []float64) {
	for k, o := range occ {
		fmt.Fprintf(r.w, "%5d %14.10f", k, o)
		if k%5 == 4 || k == len(occ)-1 {
			fmt.Fprintln(r.w)
		}
	}
}

// Dense prints a matrix in gonum's squeezed format.
func (r *Report) Dense(d mat.Matrix) {
	fa := mat.Formatted(d, mat.Prefix("    "), mat.Squeeze())
	fmt.Fprintf(r.w, "    %.8f\n", fa)
}
