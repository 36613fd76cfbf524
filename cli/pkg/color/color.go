// Package color wraps text in ANSI escape sequences for terminal output.
package color

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const reset = "\033[0m"

// Foreground colors
const (
	FgRed    = 31
	FgGreen  = 32
	FgYellow = 33
	FgBlue   = 34
	FgCyan   = 36
	FgWhite  = 37
)

// Attributes
const (
	Bold = 1
	Dim  = 2
)

// Enabled turns escape sequences on or off globally. It starts off when
// NO_COLOR is set, following https://no-color.org.
var Enabled = os.Getenv("NO_COLOR") == ""

// Color is a set of SGR attributes.
type Color struct {
	params []int
}

func New(attrs ...int) *Color {
	return &Color{params: attrs}
}

func (c *Color) prefix() string {
	if !Enabled || len(c.params) == 0 {
		return ""
	}
	codes := make([]string, len(c.params))
	for i, p := range c.params {
		codes[i] = strconv.Itoa(p)
	}
	return "\033[" + strings.Join(codes, ";") + "m"
}

func (c *Color) wrap(s string) string {
	p := c.prefix()
	if p == "" {
		return s
	}
	return p + s + reset
}

// Sprintf returns a formatted colored string.
func (c *Color) Sprintf(format string, a ...any) string {
	return c.wrap(fmt.Sprintf(format, a...))
}

// Fprintf writes formatted colored output to w.
func (c *Color) Fprintf(w io.Writer, format string, a ...any) {
	fmt.Fprint(w, c.Sprintf(format, a...))
}
