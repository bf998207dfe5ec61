package mocks

import (
	"io"
	"sync"
)

// TextStream replays fixed fragments and then ends with Err, or io.EOF when Err is nil.
type TextStream struct {
	Fragments []string
	Err       error

	mu     sync.Mutex
	pos    int
	Closed int
}

func (s *TextStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.pos < len(s.Fragments) {
		f := s.Fragments[s.pos]
		s.pos++
		return f, nil
	}
	if s.Err != nil {
		return "", s.Err
	}
	return "", io.EOF
}

func (s *TextStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Closed++
	return nil
}
