package service_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"persona-server/internal/mocks"
	"persona-server/internal/service"
)

func TestConsumeStream(t *testing.T) {
	t.Run("reports cumulative text", func(t *testing.T) {
		s := &mocks.TextStream{Fragments: []string{"Hel", "lo", " world"}}
		var updates []string
		text, err := service.ConsumeStream(s, func(t string) { updates = append(updates, t) })
		assert.NoError(t, err)
		assert.Equal(t, "Hello world", text)
		assert.Equal(t, []string{"Hel", "Hello", "Hello world"}, updates)
		assert.Equal(t, 1, s.Closed)
	})

	t.Run("returns partial text on error", func(t *testing.T) {
		boom := errors.New("reset")
		s := &mocks.TextStream{Fragments: []string{"Hel"}, Err: boom}
		text, err := service.ConsumeStream(s, nil)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, "Hel", text)
		assert.Equal(t, 1, s.Closed)
	})

	t.Run("empty stream", func(t *testing.T) {
		s := &mocks.TextStream{}
		text, err := service.ConsumeStream(s, func(string) { t.Fatal("no update expected") })
		assert.NoError(t, err)
		assert.Empty(t, text)
	})
}
