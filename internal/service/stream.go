package service

import (
	"errors"
	"io"
	"strings"

	"persona-server/internal/ai"
)

// ConsumeStream reads every fragment of s and reports the cumulative text to
// onUpdate after each one. It returns the full text once the stream ends.
// The stream is always closed.
func ConsumeStream(s ai.TextStream, onUpdate func(text string)) (string, error) {
	defer s.Close()
	var b strings.Builder
	for {
		frag, err := s.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return b.String(), nil
			}
			return b.String(), err
		}
		if frag == "" {
			continue
		}
		b.WriteString(frag)
		if onUpdate != nil {
			onUpdate(b.String())
		}
	}
}
