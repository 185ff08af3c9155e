package sink

import (
	"context"
	"io"
	"os"
	"sync"
)

// Stdout writes one document per line. It is the debug sink.
type Stdout struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStdout writes to w, or to os.Stdout when w is nil.
func NewStdout(w io.Writer) *Stdout {
	if w == nil {
		w = os.Stdout
	}
	return &Stdout{w: w}
}

func (s *Stdout) Name() string { return "stdout" }

func (s *Stdout) Publish(_ context.Context, _ []byte, doc []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := make([]byte, 0, len(doc)+1)
	line = append(append(line, doc...), '\n')
	_, err := s.w.Write(line)
	return err
}

func (s *Stdout) Close() error { return nil }
