// errors.go --  This file is part of goHF project.
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
	"errors"
	"fmt"
)

var (
	// ErrMemoryBudget is matched by every *BudgetError.
	ErrMemoryBudget = errors.New("memory budget exceeded")
	// ErrFrozenSpec is matched by every *SpecError.
	ErrFrozenSpec = errors.New("invalid frozen orbital specification")
	// ErrReference reports a reference state with inconsistent shapes.
	ErrReference = errors.New("invalid reference state")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("session closed")
)

// BudgetError is raised when the smallest possible unit of work of a stage
// does not fit into the memory that is currently available.
type BudgetError struct {
	Stage     string
	Need      int64 // bytes
	Available int64 // bytes
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("%s: need %.3f kB, only %.3f kB available: %v",
		e.Stage, float64(e.Need)/1024, float64(e.Available)/1024, ErrMemoryBudget)
}

func (e *BudgetError) Is(target error) bool { return target == ErrMemoryBudget }

// SpecError describes an inconsistent frozen orbital specification.
type SpecError struct {
	Spin   Spin
	Reason string
}

func (e *SpecError) Error() string {
	return fmt.Sprintf("%v: spin %s: %s", ErrFrozenSpec, e.Spin, e.Reason)
}

func (e *SpecError) Is(target error) bool { return target == ErrFrozenSpec }

func specErrorf(s Spin, format string, a ...any) error {
	return &SpecError{Spin: s, Reason: fmt.Sprintf(format, a...)}
}

func referenceErrorf(format string, a ...any) error {
	return fmt.Errorf("%w: %s", ErrReference, fmt.Sprintf(format, a...))
}
