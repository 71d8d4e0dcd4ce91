package reconcile

import (
	"fmt"
	"strings"
)

// Mode declares which change types a reconciliation may execute.
type Mode string

const (
	ModeCreate   Mode = "CREATE"
	ModeUpdate   Mode = "UPDATE"
	ModeDelete   Mode = "DELETE"
	ModeApplyAll Mode = "APPLY_ALL"
)

// AllModes lists every reconciliation mode.
var AllModes = []Mode{ModeCreate, ModeUpdate, ModeDelete, ModeApplyAll}

// ParseMode parses a mode name, case-insensitively. "apply-all" and
// "apply" are accepted for APPLY_ALL.
func ParseMode(s string) (Mode, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), "-", "_"))
	switch normalized {
	case "CREATE":
		return ModeCreate, nil
	case "UPDATE":
		return ModeUpdate, nil
	case "DELETE":
		return ModeDelete, nil
	case "APPLY_ALL", "APPLY":
		return ModeApplyAll, nil
	}
	return "", fmt.Errorf("unknown reconciliation mode %q", s)
}

// Permits reports whether changes of type t may execute under the mode.
// NONE is always permitted since it never reaches the backend.
func (m Mode) Permits(t ChangeType) bool {
	switch t {
	case ChangeNone:
		return true
	case ChangeAdd:
		return m == ModeCreate || m == ModeApplyAll
	case ChangeUpdate:
		return m == ModeUpdate || m == ModeApplyAll
	case ChangeDelete:
		return m == ModeDelete || m == ModeApplyAll
	}
	return false
}

// Gated is the outcome of gating a batch of changes by mode.
type Gated[T any] struct {
	// Permitted holds the changes that may be executed, in input order.
	Permitted []ResourceChange[T]

	results   []ChangeResult[T]
	permitted []int // input index of each Permitted change
}

// Gate drops the changes not permitted by mode, turning each into a
// SKIPPED result. It has no side effects.
func Gate[T any](mode Mode, changes []ResourceChange[T]) *Gated[T] {
	g := &Gated[T]{
		results: make([]ChangeResult[T], len(changes)),
	}
	for i, change := range changes {
		if mode.Permits(change.Type) {
			g.Permitted = append(g.Permitted, change)
			g.permitted = append(g.permitted, i)
			continue
		}
		g.results[i] = skippedResult(change, SkipModeExcluded)
	}
	return g
}

// Excluded returns the number of changes skipped by the gate.
func (g *Gated[T]) Excluded() int {
	return len(g.results) - len(g.permitted)
}

// Merge places executed results (positionally matching Permitted) back into
// input order. If executed is shorter than Permitted the batch was cut
// short, and the returned slice ends right before the first change that
// has no result.
func (g *Gated[T]) Merge(executed []ChangeResult[T]) []ChangeResult[T] {
	out := make([]ChangeResult[T], len(g.results))
	copy(out, g.results)

	for j, idx := range g.permitted {
		if j >= len(executed) {
			return out[:idx]
		}
		out[idx] = executed[j]
	}
	return out
}
