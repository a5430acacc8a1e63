package shared

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"
)

// Printer writes user-facing problems to the error stream as "[!] ..." lines.
type Printer struct {
	w       io.Writer
	warning *color.Color
	failure *color.Color
}

// NewPrinter creates a printer for w. Color is used only when w is a
// terminal and NO_COLOR is unset.
func NewPrinter(w io.Writer) *Printer {
	p := &Printer{
		w:       w,
		warning: color.New(color.FgYellow),
		failure: color.New(color.FgRed, color.Bold),
	}
	if useColor(w) {
		p.warning.EnableColor()
		p.failure.EnableColor()
	} else {
		p.warning.DisableColor()
		p.failure.DisableColor()
	}
	return p
}

// Warn prints a non-fatal problem.
func (p *Printer) Warn(err error) {
	p.warning.Fprintf(p.w, "[!] warning: %v\n", err)
}

// Warnf is a convenience wrapper for Warn.
func (p *Printer) Warnf(format string, a ...any) {
	p.Warn(fmt.Errorf(format, a...))
}

// Error prints the error that ends the run.
func (p *Printer) Error(err error) {
	p.failure.Fprintf(p.w, "[!] %v\n", err)
}

func useColor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
