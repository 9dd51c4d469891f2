package output

import (
	"context"
	"fmt"
	"io"
	"sync"
)

// StreamStore writes every object to one stream, in call order.
type StreamStore struct {
	mu sync.Mutex
	w  io.Writer
}

// NewStreamStore wraps w, typically os.Stdout.
func NewStreamStore(w io.Writer) *StreamStore {
	return &StreamStore{w: w}
}

// PutObject copies r to the stream and returns a stream:// URI.
func (s *StreamStore) PutObject(_ context.Context, path string, _ string, r io.Reader) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := io.Copy(s.w, r); err != nil {
		return "", fmt.Errorf("write %s to stream: %w", path, err)
	}
	return "stream://" + path, nil
}
