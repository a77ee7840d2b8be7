package output

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/use-agent/authcrawl/models"
)

// JSONLSink writes one JSON object per line.
//
// File targets are written to a temp file next to the destination and
// renamed into place on Commit, so an aborted run leaves no partial file.
// Writer targets are buffered in memory and flushed on Commit.
type JSONLSink struct {
	mu     sync.Mutex
	closed bool

	// file target
	path string
	tmp  *os.File
	bw   *bufio.Writer

	// writer target
	w   io.Writer
	buf bytes.Buffer

	enc *json.Encoder
}

// NewFileSink creates a sink that atomically replaces path on Commit.
func NewFileSink(path string) (*JSONLSink, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("output: create temp file: %w", err)
	}
	s := &JSONLSink{path: path, tmp: tmp, bw: bufio.NewWriter(tmp)}
	s.enc = newEncoder(s.bw)
	return s, nil
}

// NewWriterSink creates a sink that writes everything to w on Commit.
func NewWriterSink(w io.Writer) *JSONLSink {
	s := &JSONLSink{w: w}
	s.enc = newEncoder(&s.buf)
	return s
}

// Open returns a stdout sink for "-" and a file sink otherwise.
func Open(target string) (*JSONLSink, error) {
	if target == "" || target == "-" {
		return NewWriterSink(os.Stdout), nil
	}
	return NewFileSink(target)
}

func newEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

func (s *JSONLSink) Write(rec *models.OutputRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	if err := s.enc.Encode(rec); err != nil {
		return fmt.Errorf("output: encode record: %w", err)
	}
	return nil
}

func (s *JSONLSink) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true

	if s.w != nil {
		if _, err := s.buf.WriteTo(s.w); err != nil {
			return fmt.Errorf("output: flush: %w", err)
		}
		return nil
	}

	if err := s.bw.Flush(); err != nil {
		s.discardTemp()
		return fmt.Errorf("output: flush: %w", err)
	}
	if err := s.tmp.Close(); err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("output: close temp file: %w", err)
	}
	if err := os.Rename(s.tmp.Name(), s.path); err != nil {
		_ = os.Remove(s.tmp.Name())
		return fmt.Errorf("output: rename into place: %w", err)
	}
	return nil
}

func (s *JSONLSink) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSinkClosed
	}
	s.closed = true

	if s.w != nil {
		s.buf.Reset()
		return nil
	}
	return s.discardTemp()
}

func (s *JSONLSink) discardTemp() error {
	_ = s.tmp.Close()
	if err := os.Remove(s.tmp.Name()); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("output: remove temp file: %w", err)
	}
	return nil
}
