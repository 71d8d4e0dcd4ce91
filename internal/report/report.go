// Package report renders reconciliation reports and run history for the
// terminal, as tables or YAML.
package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"

	"github.com/dokzlo13/streamctl/internal/controller"
	"github.com/dokzlo13/streamctl/internal/errs"
	"github.com/dokzlo13/streamctl/internal/ledger"
	"github.com/dokzlo13/streamctl/internal/reconcile"
)

// Format selects the output encoding.
type Format string

const (
	FormatTable Format = "table"
	FormatYAML  Format = "yaml"
)

// ParseFormat validates an output format name.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatTable, "":
		return FormatTable, nil
	case FormatYAML:
		return FormatYAML, nil
	}
	return "", errs.Configf("output", "unknown format %q (expected table or yaml)", s)
}

// Writer renders reports to an output stream.
type Writer struct {
	out    io.Writer
	format Format
	colors bool
}

// NewWriter creates a report writer.
func NewWriter(out io.Writer, format Format, colors bool) *Writer {
	return &Writer{out: out, format: format, colors: colors}
}

// Report renders a reconciliation report.
func (w *Writer) Report(r *controller.Report) error {
	if w.format == FormatYAML {
		return w.yaml(toDocument(r))
	}

	if len(r.Outcomes) == 0 {
		fmt.Fprintln(w.out, w.paint(text.FgYellow, "No changes computed"))
		return nil
	}

	t := w.table()
	t.AppendHeader(table.Row{"STATUS", "CHANGE", "KIND", "KEY", "DESCRIPTION", "DETAIL"})
	for _, o := range r.Outcomes {
		t.AppendRow(table.Row{
			w.status(o.Status),
			string(o.Type),
			o.Kind,
			string(o.Key),
			o.Description,
			detail(o),
		})
	}
	t.AppendFooter(table.Row{"", "", "", "", summaryLine(r), r.Duration().Round(time.Millisecond).String()})
	t.Render()

	if r.Incomplete {
		fmt.Fprintln(w.out, w.paint(text.FgYellow, "Reconciliation was interrupted before all changes were dispatched"))
	}
	return nil
}

// Runs renders a list of recorded runs.
func (w *Writer) Runs(runs []*ledger.Run) error {
	if w.format == FormatYAML {
		return w.yaml(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w.out, w.paint(text.FgYellow, "No reconciliation runs recorded"))
		return nil
	}

	t := w.table()
	t.AppendHeader(table.Row{"RUN", "STARTED", "MODE", "DRY RUN", "TOTAL", "CHANGED", "FAILED"})
	for _, run := range runs {
		failed := fmt.Sprint(run.Failed)
		if run.Failed > 0 {
			failed = w.paint(text.FgRed, failed)
		}
		t.AppendRow(table.Row{
			run.RunID,
			run.StartedAt.Local().Format(time.DateTime),
			run.Mode,
			run.DryRun,
			run.Total,
			run.Changed,
			failed,
		})
	}
	t.Render()
	return nil
}

// Changes renders the recorded changes of one run.
func (w *Writer) Changes(changes []*ledger.Change) error {
	if w.format == FormatYAML {
		return w.yaml(changes)
	}

	if len(changes) == 0 {
		fmt.Fprintln(w.out, w.paint(text.FgYellow, "No changes recorded for this run"))
		return nil
	}

	t := w.table()
	t.AppendHeader(table.Row{"#", "STATUS", "CHANGE", "KIND", "KEY", "DESCRIPTION", "DETAIL"})
	for _, c := range changes {
		d := c.Reason
		if c.Error != "" {
			d = c.Error
		}
		t.AppendRow(table.Row{c.Seq + 1, w.status(reconcile.Status(c.Status)), c.Type, c.Kind, c.Key, c.Description, d})
	}
	t.Render()
	return nil
}

// Kinds renders the registered controllers.
func (w *Writer) Kinds(regs []controller.Registration) error {
	if w.format == FormatYAML {
		out := make([]map[string]any, 0, len(regs))
		for _, reg := range regs {
			out = append(out, map[string]any{
				"apiVersion":  reg.Type.APIVersion,
				"kind":        reg.Type.Kind,
				"modes":       reg.Modes,
				"description": reg.Description,
			})
		}
		return w.yaml(out)
	}

	t := w.table()
	t.AppendHeader(table.Row{"API VERSION", "KIND", "MODES", "DESCRIPTION"})
	for _, reg := range regs {
		modes := make([]string, len(reg.Modes))
		for i, m := range reg.Modes {
			modes[i] = string(m)
		}
		t.AppendRow(table.Row{reg.Type.APIVersion, reg.Type.Kind, strings.Join(modes, ","), reg.Description})
	}
	t.Render()
	return nil
}

func (w *Writer) table() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w.out)
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	return t
}

func (w *Writer) yaml(v any) error {
	enc := yaml.NewEncoder(w.out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}

func (w *Writer) paint(color text.Color, s string) string {
	if !w.colors {
		return s
	}
	return color.Sprint(s)
}

func (w *Writer) status(s reconcile.Status) string {
	switch s {
	case reconcile.StatusChanged:
		return w.paint(text.FgGreen, string(s))
	case reconcile.StatusFailed:
		return w.paint(text.FgRed, string(s))
	case reconcile.StatusSkipped:
		return w.paint(text.FgYellow, string(s))
	default:
		return string(s)
	}
}

func detail(o reconcile.Outcome) string {
	if o.Err != nil {
		return o.Err.Error()
	}
	return string(o.Reason)
}

// summaryLine renders status counts in a fixed order, e.g.
// "3 changes: 2 CHANGED, 1 FAILED".
func summaryLine(r *controller.Report) string {
	s := r.Summary()
	var parts []string
	for _, status := range []reconcile.Status{reconcile.StatusChanged, reconcile.StatusOK, reconcile.StatusSkipped, reconcile.StatusFailed} {
		if n := s.ByStatus[status]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, status))
		}
	}
	noun := "changes"
	if s.Total == 1 {
		noun = "change"
	}
	return fmt.Sprintf("%d %s: %s", s.Total, noun, strings.Join(parts, ", "))
}

type document struct {
	RunID      string         `yaml:"runId"`
	Mode       reconcile.Mode `yaml:"mode"`
	DryRun     bool           `yaml:"dryRun"`
	StartedAt  time.Time      `yaml:"startedAt"`
	Duration   string         `yaml:"duration"`
	Incomplete bool           `yaml:"incomplete,omitempty"`
	Summary    summary        `yaml:"summary"`
	Changes    []change       `yaml:"changes"`
}

type summary struct {
	Total    int            `yaml:"total"`
	ByStatus map[string]int `yaml:"byStatus"`
	ByType   map[string]int `yaml:"byType"`
}

type change struct {
	Kind        string `yaml:"kind"`
	Key         string `yaml:"key"`
	Type        string `yaml:"type"`
	Status      string `yaml:"status"`
	Reason      string `yaml:"reason,omitempty"`
	Description string `yaml:"description"`
	Error       string `yaml:"error,omitempty"`
	Before      any    `yaml:"before,omitempty"`
	After       any    `yaml:"after,omitempty"`
}

func toDocument(r *controller.Report) document {
	s := r.Summary()
	doc := document{
		RunID:      r.RunID,
		Mode:       r.Mode,
		DryRun:     r.DryRun,
		StartedAt:  r.StartedAt.UTC(),
		Duration:   r.Duration().Round(time.Millisecond).String(),
		Incomplete: r.Incomplete,
		Summary: summary{
			Total:    s.Total,
			ByStatus: make(map[string]int, len(s.ByStatus)),
			ByType:   make(map[string]int, len(s.ByType)),
		},
		Changes: make([]change, 0, len(r.Outcomes)),
	}
	for status, n := range s.ByStatus {
		doc.Summary.ByStatus[string(status)] = n
	}
	for typ, n := range s.ByType {
		doc.Summary.ByType[string(typ)] = n
	}

	for _, o := range r.Outcomes {
		c := change{
			Kind:        o.Kind,
			Key:         string(o.Key),
			Type:        string(o.Type),
			Status:      string(o.Status),
			Reason:      string(o.Reason),
			Description: o.Description,
			Before:      o.Before,
			After:       o.After,
		}
		if o.Err != nil {
			c.Error = o.Err.Error()
		}
		doc.Changes = append(doc.Changes, c)
	}
	return doc
}
