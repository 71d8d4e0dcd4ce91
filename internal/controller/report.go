package controller

import (
	"errors"
	"fmt"
	"time"

	"github.com/dokzlo13/streamctl/internal/reconcile"
)

// Report is the result of one reconciliation invocation.
type Report struct {
	RunID      string
	Mode       reconcile.Mode
	DryRun     bool
	StartedAt  time.Time
	FinishedAt time.Time

	// Outcomes holds one entry per computed change, in input order.
	Outcomes []reconcile.Outcome

	// Incomplete is set when the invocation was canceled before every
	// change was dispatched.
	Incomplete bool
}

// Summary counts outcomes by status and change type.
type Summary struct {
	Total    int
	ByStatus map[reconcile.Status]int
	ByType   map[reconcile.ChangeType]int
}

// Summary returns outcome counts.
func (r *Report) Summary() Summary {
	s := Summary{
		Total:    len(r.Outcomes),
		ByStatus: make(map[reconcile.Status]int),
		ByType:   make(map[reconcile.ChangeType]int),
	}
	for _, o := range r.Outcomes {
		s.ByStatus[o.Status]++
		s.ByType[o.Type]++
	}
	return s
}

// Failed returns the number of FAILED outcomes.
func (r *Report) Failed() int {
	return r.count(reconcile.StatusFailed)
}

// Changed returns the number of CHANGED outcomes.
func (r *Report) Changed() int {
	return r.count(reconcile.StatusChanged)
}

func (r *Report) count(status reconcile.Status) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == status {
			n++
		}
	}
	return n
}

// Err joins the errors of every failed outcome. Nil if nothing failed.
func (r *Report) Err() error {
	var errList []error
	for _, o := range r.Outcomes {
		if o.Status == reconcile.StatusFailed {
			errList = append(errList, fmt.Errorf("%s %s: %w", o.Kind, o.Key, o.Err))
		}
	}
	return errors.Join(errList...)
}

// Duration returns how long the invocation took.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
