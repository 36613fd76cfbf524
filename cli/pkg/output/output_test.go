package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/telhawk-systems/vibration-stack/cli/pkg/color"
)

func newTestPrinter(t *testing.T, format string) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	t.Helper()
	prev := color.Enabled
	color.Enabled = false
	t.Cleanup(func() { color.Enabled = prev })

	var out, errOut bytes.Buffer
	return &Printer{Out: &out, Err: &errOut, Format: format}, &out, &errOut
}

type sample struct {
	Name  string `json:"name" yaml:"name"`
	Count int    `json:"count" yaml:"count"`
}

func sampleTable() *Table {
	t := NewTable("NAME", "COUNT")
	t.AddRow("alpha", "1")
	return t
}

func TestPrinter_Messages(t *testing.T) {
	p, out, errOut := newTestPrinter(t, FormatTable)

	p.Success("Sent %d frames", 3)
	p.Info("Watching sensor %d", 7)
	p.Warn("slow")
	p.Error("failed: %s", "boom")

	assert.Equal(t, "✓ Sent 3 frames\nWatching sensor 7\n", out.String())
	assert.Equal(t, "⚠ slow\n✗ failed: boom\n", errOut.String())
}

func TestPrinter_PrintJSON(t *testing.T) {
	p, out, _ := newTestPrinter(t, FormatJSON)

	require.NoError(t, p.Print(sample{Name: "alpha", Count: 1}, sampleTable))

	var parsed sample
	require.NoError(t, json.Unmarshal(out.Bytes(), &parsed))
	assert.Equal(t, sample{Name: "alpha", Count: 1}, parsed)
	assert.Contains(t, out.String(), "  \"name\"")
}

func TestPrinter_PrintYAML(t *testing.T) {
	p, out, _ := newTestPrinter(t, FormatYAML)

	require.NoError(t, p.Print(sample{Name: "alpha", Count: 1}, sampleTable))

	var parsed sample
	require.NoError(t, yaml.Unmarshal(out.Bytes(), &parsed))
	assert.Equal(t, sample{Name: "alpha", Count: 1}, parsed)
}

func TestPrinter_PrintTable(t *testing.T) {
	p, out, _ := newTestPrinter(t, FormatTable)

	require.NoError(t, p.Print(sample{}, sampleTable))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "NAME   COUNT", strings.TrimRight(lines[0], " "))
	assert.Equal(t, "-----  -----", strings.TrimRight(lines[1], " "))
	assert.Equal(t, "alpha  1", strings.TrimRight(lines[2], " "))
}

func TestPrinter_UnknownFormat(t *testing.T) {
	p, _, _ := newTestPrinter(t, "xml")

	assert.Error(t, p.Print(sample{}, sampleTable))
}

func TestTable_AddRowPadsAndTruncates(t *testing.T) {
	table := NewTable("A", "B")
	table.AddRow("only")
	table.AddRow("1", "2", "3")

	assert.Equal(t, [][]string{{"only", ""}, {"1", "2"}}, table.rows)
}
