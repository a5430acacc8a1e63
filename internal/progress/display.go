package progress

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/briandowns/spinner"
)

// Indicator shows one waiting message at a time.
// On a terminal it animates a spinner; otherwise it prints the message once.
type Indicator struct {
	capabilities TerminalCapabilities
	symbols      ProgressSymbols
	w            io.Writer

	mu      sync.Mutex
	spinner *spinner.Spinner
	message string
}

// NewIndicator creates an indicator writing to w.
func NewIndicator(w io.Writer, caps TerminalCapabilities) *Indicator {
	return &Indicator{
		capabilities: caps,
		symbols:      SelectSymbols(caps),
		w:            w,
	}
}

// Start shows msg until the returned function is called. Starting a new
// message replaces the current one.
func (p *Indicator) Start(msg string) (stop func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.stopLocked()
	p.message = msg

	if p.capabilities.IsTTY {
		s := spinner.New(spinner.CharSets[p.symbols.SpinnerSet], 100*time.Millisecond)
		s.Writer = p.w
		s.Suffix = " " + msg
		s.Start()
		p.spinner = s
	} else {
		fmt.Fprintln(p.w, msg)
	}

	var once sync.Once
	return func() { once.Do(p.Stop) }
}

// Complete stops the spinner and marks the current message as done.
func (p *Indicator) Complete() {
	p.finish(checkmark(p.symbols, p.capabilities.SupportsColor))
}

// Fail stops the spinner and marks the current message as failed.
func (p *Indicator) Fail() {
	p.finish(failureMark(p.symbols, p.capabilities.SupportsColor))
}

// Stop stops the spinner without showing completion/failure.
func (p *Indicator) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
}

func (p *Indicator) finish(mark string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	if p.message == "" || !p.capabilities.IsTTY {
		return
	}
	fmt.Fprintf(p.w, "%s %s\n", mark, p.message)
	p.message = ""
}

func (p *Indicator) stopLocked() {
	if p.spinner != nil {
		p.spinner.Stop()
		p.spinner = nil
	}
}
