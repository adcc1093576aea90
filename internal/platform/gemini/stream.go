package gemini

import (
	"context"
	"sync"

	"github.com/planforge/planforge-api/internal/generation"
)

// stream adapts the Gemini streaming call to the generation.Stream
// contract. The consume goroutine is the only sender on chunks and the
// only writer of err before the channel closes.
type stream struct {
	chunks chan generation.Chunk
	cancel context.CancelFunc

	mu  sync.Mutex
	err error

	closeOnce sync.Once
}

// Chunks returns the structured chunk channel. It is closed after the
// terminal chunk or on failure.
func (s *stream) Chunks() <-chan generation.Chunk {
	return s.chunks
}

// Err reports how the stream ended. Valid after Chunks is closed.
func (s *stream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close abandons the stream and releases the underlying exchange.
// Safe to call more than once.
func (s *stream) Close() {
	s.closeOnce.Do(s.cancel)
}

func (s *stream) setErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		s.err = err
	}
}
