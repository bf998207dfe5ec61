// Package state holds the in-process application state: users, characters,
// connections, chats, sessions and the global settings.
//
// All mutations go through AppState.Dispatch. Reads return copies, so callers
// never share memory with the store.
package state

import (
	"bytes"
	"maps"
	"slices"
	"strings"
	"sync"

	"go.uber.org/zap"

	"persona-server/internal/models"
)

type chatKey struct {
	userID      string
	characterID string
}

type data struct {
	users           map[string]models.User
	characters      map[string]models.Character
	characterOrder  []string
	connections     map[string]models.Connection
	connectionOrder []string
	chats           map[chatKey][]models.ChatMessage
	sessions        map[chatKey]models.SessionState
	alerts          []models.ModerationAlert
	settings        models.Settings
}

// AppState is the explicit application state shared by the services.
type AppState struct {
	mu     sync.RWMutex
	d      data
	logger *zap.Logger
}

// New creates an empty state with the given settings.
func New(settings models.Settings, logger *zap.Logger) *AppState {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AppState{
		d: data{
			users:       make(map[string]models.User),
			characters:  make(map[string]models.Character),
			connections: make(map[string]models.Connection),
			chats:       make(map[chatKey][]models.ChatMessage),
			sessions:    make(map[chatKey]models.SessionState),
			settings:    settings.Clone(),
		},
		logger: logger.Named("AppState"),
	}
}

// Dispatch applies a command under the write lock.
func (s *AppState) Dispatch(cmd Command) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := cmd.apply(&s.d); err != nil {
		s.logger.Debug("Command rejected", zap.String("command", commandName(cmd)), zap.Error(err))
		return err
	}
	return nil
}

// User returns a user by id.
func (s *AppState) User(id string) (models.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.d.users[id]
	return u, ok
}

// Users returns every user.
func (s *AppState) Users() []models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Collect(maps.Values(s.d.users))
	slices.SortFunc(out, func(a, b models.User) int { return strings.Compare(a.ID, b.ID) })
	return out
}

// Character returns a copy of a character by id.
func (s *AppState) Character(id string) (*models.Character, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.characters[id]
	if !ok {
		return nil, false
	}
	return c.Clone(), true
}

// Characters returns copies of every character in creation order.
func (s *AppState) Characters() []models.Character {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Character, 0, len(s.d.characterOrder))
	for _, id := range s.d.characterOrder {
		c := s.d.characters[id]
		out = append(out, *c.Clone())
	}
	return out
}

// Connection returns a connection by id.
func (s *AppState) Connection(id string) (models.Connection, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.d.connections[id]
	if !ok {
		return models.Connection{}, false
	}
	return c.Clone(), true
}

// Connections returns every connection in resolution order.
func (s *AppState) Connections() []models.Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Connection, 0, len(s.d.connectionOrder))
	for _, id := range s.d.connectionOrder {
		out = append(out, s.d.connections[id].Clone())
	}
	return out
}

// Messages returns the chat between a user and a character, oldest first.
func (s *AppState) Messages(userID, characterID string) []models.ChatMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.d.chats[chatKey{userID, characterID}])
}

// Session returns the stored session of a chat.
func (s *AppState) Session(userID, characterID string) (models.SessionState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.d.sessions[chatKey{userID, characterID}]
	if !ok {
		return models.SessionState{}, false
	}
	return cloneSession(st), true
}

// Settings returns the global chat settings.
func (s *AppState) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.d.settings.Clone()
}

// Alerts returns the recorded moderation alerts, newest first.
func (s *AppState) Alerts() []models.ModerationAlert {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := slices.Clone(s.d.alerts)
	slices.Reverse(out)
	return out
}

func cloneSession(st models.SessionState) models.SessionState {
	st.Stats = maps.Clone(st.Stats)
	if st.NarrativeState != nil {
		st.NarrativeState = bytes.Clone(st.NarrativeState)
	}
	return st
}

func commandName(cmd Command) string {
	switch cmd.(type) {
	case UpsertUser:
		return "UpsertUser"
	case UpsertCharacter:
		return "UpsertCharacter"
	case DeleteCharacter:
		return "DeleteCharacter"
	case UpsertConnection:
		return "UpsertConnection"
	case DeleteConnection:
		return "DeleteConnection"
	case AppendMessage:
		return "AppendMessage"
	case DeleteMessage:
		return "DeleteMessage"
	case ClearChat:
		return "ClearChat"
	case SaveSession:
		return "SaveSession"
	case ClearSession:
		return "ClearSession"
	case UpdateSettings:
		return "UpdateSettings"
	case AddAlert:
		return "AddAlert"
	}
	return "unknown"
}
