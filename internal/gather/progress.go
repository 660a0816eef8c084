package gather

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Progress manages the .tried-empty and .last-completed files kept next to a
// market's daily bars for crash recovery and idempotency within a day.
type Progress struct {
	mu         sync.Mutex
	triedEmpty map[string]struct{}
	writer     *bufio.Writer
	file       *os.File
	dir        string // <DataDir>/<market>/daily
}

// OpenProgress creates a tracker rooted at dir and loads any existing
// .tried-empty entries.
func OpenProgress(dir string) (*Progress, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating daily dir: %w", err)
	}

	p := &Progress{
		triedEmpty: make(map[string]struct{}),
		dir:        dir,
	}

	path := filepath.Join(dir, ".tried-empty")
	if data, err := os.ReadFile(path); err == nil {
		for _, line := range strings.Split(string(data), "\n") {
			if sym := strings.TrimSpace(line); sym != "" {
				p.triedEmpty[sym] = struct{}{}
			}
		}
	}

	if err := p.open(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Progress) open() error {
	f, err := os.OpenFile(filepath.Join(p.dir, ".tried-empty"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening .tried-empty: %w", err)
	}
	p.file = f
	p.writer = bufio.NewWriter(f)
	return nil
}

// IsTriedEmpty reports whether symbol was already tried and returned no data.
func (p *Progress) IsTriedEmpty(symbol string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.triedEmpty[symbol]
	return ok
}

// MarkEmpty records symbols as tried-empty.
func (p *Progress) MarkEmpty(symbols ...string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, sym := range symbols {
		if _, ok := p.triedEmpty[sym]; ok {
			continue
		}
		p.triedEmpty[sym] = struct{}{}
		if _, err := p.writer.WriteString(sym + "\n"); err != nil {
			return fmt.Errorf("writing to .tried-empty: %w", err)
		}
	}
	return p.writer.Flush()
}

// MarkCompleted writes date to .last-completed.
func (p *Progress) MarkCompleted(date string) error {
	return os.WriteFile(filepath.Join(p.dir, ".last-completed"), []byte(date), 0o644)
}

// LastCompleted returns the date in .last-completed, or "".
func (p *Progress) LastCompleted() string {
	data, err := os.ReadFile(filepath.Join(p.dir, ".last-completed"))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}

// IsCompleted reports whether .last-completed matches date.
func (p *Progress) IsCompleted(date string) bool {
	return p.LastCompleted() == date
}

// BeginDay clears the tried-empty set when the previous completed run was
// for a different day. A crash mid-day keeps it so the run can resume.
func (p *Progress) BeginDay(date string) error {
	last := p.LastCompleted()
	if last == "" || last == date {
		return nil
	}
	return p.Reset()
}

// Reset truncates .tried-empty and clears the in-memory set.
func (p *Progress) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file != nil {
		p.file.Close()
	}
	p.triedEmpty = make(map[string]struct{})
	os.Remove(filepath.Join(p.dir, ".tried-empty"))
	return p.open()
}

// Close flushes and closes the .tried-empty file.
func (p *Progress) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.writer != nil {
		p.writer.Flush()
	}
	if p.file != nil {
		return p.file.Close()
	}
	return nil
}
