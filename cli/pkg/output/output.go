// Package output renders command results as a table, JSON or YAML.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/vibration-stack/cli/pkg/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	infoColor    = color.New(color.FgCyan)
	warnColor    = color.New(color.FgYellow)
	headerColor  = color.New(color.FgWhite, color.Bold)
)

// Formats accepted by Printer.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatYAML  = "yaml"
)

// Printer writes results to Out and diagnostics to Err.
type Printer struct {
	Out    io.Writer
	Err    io.Writer
	Format string
}

// New returns a Printer on stdout and stderr.
func New(format string) *Printer {
	return &Printer{Out: os.Stdout, Err: os.Stderr, Format: format}
}

func (p *Printer) Success(format string, a ...any) {
	successColor.Fprintf(p.Out, "✓ "+format+"\n", a...)
}

func (p *Printer) Error(format string, a ...any) {
	errorColor.Fprintf(p.Err, "✗ "+format+"\n", a...)
}

func (p *Printer) Info(format string, a ...any) {
	infoColor.Fprintf(p.Out, format+"\n", a...)
}

func (p *Printer) Warn(format string, a ...any) {
	warnColor.Fprintf(p.Err, "⚠ "+format+"\n", a...)
}

// Print renders v in the configured format. table builds the table view
// and is only called for FormatTable.
func (p *Printer) Print(v any, table func() *Table) error {
	switch p.Format {
	case FormatJSON:
		return p.JSON(v)
	case FormatYAML:
		return p.YAML(v)
	case FormatTable, "":
		table().Render(p.Out)
		return nil
	default:
		return fmt.Errorf("unknown output format %q", p.Format)
	}
}

func (p *Printer) JSON(v any) error {
	enc := json.NewEncoder(p.Out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *Printer) YAML(v any) error {
	enc := yaml.NewEncoder(p.Out)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

type Table struct {
	headers []string
	rows    [][]string
}

func NewTable(headers ...string) *Table {
	return &Table{headers: headers}
}

// AddRow appends a row; missing cells render empty and extra cells are dropped.
func (t *Table) AddRow(cells ...string) {
	row := make([]string, len(t.headers))
	copy(row, cells)
	t.rows = append(t.rows, row)
}

func (t *Table) Render(w io.Writer) {
	widths := make([]int, len(t.headers))
	for i, h := range t.headers {
		widths[i] = len(h)
	}
	for _, row := range t.rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	for i, h := range t.headers {
		headerColor.Fprintf(w, "%-*s  ", widths[i], h)
	}
	fmt.Fprintln(w)

	for i := range t.headers {
		fmt.Fprint(w, strings.Repeat("-", widths[i])+"  ")
	}
	fmt.Fprintln(w)

	for _, row := range t.rows {
		for i, cell := range row {
			fmt.Fprintf(w, "%-*s  ", widths[i], cell)
		}
		fmt.Fprintln(w)
	}
}
