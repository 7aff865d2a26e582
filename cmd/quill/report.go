package main

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
)

// stderrProgress prints retrieval progress on one stderr line.
type stderrProgress struct {
	mu        sync.Mutex
	total     int
	completed int
}

func (p *stderrProgress) AddTotalSteps(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.total += n
	p.print()
}

func (p *stderrProgress) CompleteSteps(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.completed += n
	p.print()
	if p.completed >= p.total {
		fmt.Fprintln(os.Stderr)
	}
}

func (p *stderrProgress) print() {
	fmt.Fprintf(os.Stderr, "\r🔎 Retrieving context %d/%d", p.completed, p.total)
}

// stderrErrors shows absorbed retrieval failures without failing the command.
type stderrErrors struct{}

func (stderrErrors) Report(err error, context string) {
	logger.Debug("retrieval failure reported", zap.Error(err))
	fmt.Fprintf(os.Stderr, "⚠️  %s: %v\n", context, err)
}
