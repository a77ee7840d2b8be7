package output

import (
	"errors"
	"sync"

	"github.com/use-agent/authcrawl/models"
)

// Sink is the dispatcher's output pipeline. Records written before Commit
// become visible only on Commit; Abort discards them.
type Sink interface {
	Write(rec *models.OutputRecord) error
	Commit() error
	Abort() error
}

// ErrSinkClosed is returned by Write, Commit and Abort after the sink was
// committed or aborted.
var ErrSinkClosed = errors.New("output: sink already closed")

// MemorySink keeps records in memory. It is safe for concurrent use.
type MemorySink struct {
	mu        sync.Mutex
	pending   []*models.OutputRecord
	committed []*models.OutputRecord
	closed    bool
	aborted   bool
}

// NewMemorySink creates an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(rec *models.OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.pending = append(s.pending, rec)
	return nil
}

func (s *MemorySink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true
	s.committed = s.pending
	s.pending = nil
	return nil
}

func (s *MemorySink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true
	s.aborted = true
	s.pending = nil
	return nil
}

// Records returns the committed records.
func (s *MemorySink) Records() []*models.OutputRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*models.OutputRecord, len(s.committed))
	copy(out, s.committed)
	return out
}

// Aborted reports whether Abort was called.
func (s *MemorySink) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}
