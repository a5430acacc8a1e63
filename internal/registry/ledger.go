package registry

import (
	"fmt"
	"log"
	"os"
	"sync"
)

// Ledger records delivered notifications in a state directory.
// Methods are safe for concurrent use within one process; across processes
// the last writer wins, which at worst resurrects an entry until its owner
// exits and it is pruned.
type Ledger struct {
	// Dir is the state directory containing the ledger file.
	Dir string

	mu sync.Mutex
	// alive reports whether the owning process still runs. Tests replace it.
	alive func(pid int) bool
}

// NewLedger creates a ledger stored in dir.
func NewLedger(dir string) *Ledger {
	return &Ledger{Dir: dir, alive: processAlive}
}

// Record appends e, stamping it with the current process id when unset.
func (l *Ledger) Record(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := Load(l.Dir)
	if err != nil {
		return fmt.Errorf("loading ledger: %w", err)
	}
	if e.PID == 0 {
		e.PID = os.Getpid()
	}
	f.Entries = append(l.live(f.Entries), e)
	if err := Save(l.Dir, f); err != nil {
		return fmt.Errorf("saving ledger: %w", err)
	}
	return nil
}

// Drop removes the entries carrying any of tokens and returns them.
func (l *Ledger) Drop(tokens ...string) ([]Entry, error) {
	if len(tokens) == 0 {
		return nil, nil
	}
	want := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		want[t] = true
	}
	return l.remove(func(e Entry) bool { return want[e.Token] })
}

// DropPlatformID removes the entry the service knows as id.
func (l *Ledger) DropPlatformID(id string) ([]Entry, error) {
	if id == "" {
		return nil, nil
	}
	return l.remove(func(e Entry) bool { return e.PlatformID == id })
}

func (l *Ledger) remove(match func(Entry) bool) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := Load(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}

	var dropped []Entry
	kept := f.Entries[:0]
	for _, e := range f.Entries {
		if match(e) {
			dropped = append(dropped, e)
			continue
		}
		kept = append(kept, e)
	}
	if len(dropped) == 0 {
		return nil, nil
	}
	f.Entries = kept
	if err := Save(l.Dir, f); err != nil {
		return nil, fmt.Errorf("saving ledger: %w", err)
	}
	return dropped, nil
}

// Entries returns the recorded notifications whose owner is still running.
// Entries of dead owners are pruned from the file.
func (l *Ledger) Entries() ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := Load(l.Dir)
	if err != nil {
		return nil, fmt.Errorf("loading ledger: %w", err)
	}
	live := l.live(f.Entries)
	if len(live) != len(f.Entries) {
		pruned := len(f.Entries) - len(live)
		f.Entries = live
		if err := Save(l.Dir, f); err != nil {
			log.Printf("[registry] pruning %d stale entries: %v", pruned, err)
		}
	}
	return live, nil
}

// LookupPlatformID returns the entry the service knows as id.
func (l *Ledger) LookupPlatformID(id string) (Entry, bool, error) {
	entries, err := l.Entries()
	if err != nil {
		return Entry{}, false, err
	}
	for _, e := range entries {
		if e.PlatformID == id {
			return e, true, nil
		}
	}
	return Entry{}, false, nil
}

func (l *Ledger) live(entries []Entry) []Entry {
	alive := l.alive
	if alive == nil {
		alive = processAlive
	}
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.PID > 0 && !alive(e.PID) {
			continue
		}
		out = append(out, e)
	}
	return out
}
