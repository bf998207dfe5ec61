package state

import "persona-server/internal/models"

// Command is a mutation of the application state. Commands are applied by
// AppState.Dispatch one at a time under the write lock.
type Command interface {
	apply(d *data) error
}

// UpsertUser creates or replaces a user.
type UpsertUser struct {
	User models.User
}

// UpsertCharacter creates or replaces a character.
type UpsertCharacter struct {
	Character models.Character
}

// DeleteCharacter removes a character together with every chat and
// session bound to it.
type DeleteCharacter struct {
	ID string
}

// UpsertConnection creates or replaces a connection, keeping its position
// in the resolution order when it already exists.
type UpsertConnection struct {
	Connection models.Connection
}

// DeleteConnection removes a connection.
type DeleteConnection struct {
	ID string
}

// AppendMessage adds a message to the end of a chat.
type AppendMessage struct {
	Message models.ChatMessage
}

// DeleteMessage removes one message from a chat.
type DeleteMessage struct {
	UserID      string
	CharacterID string
	MessageID   string
}

// ClearChat removes every message of a chat.
type ClearChat struct {
	UserID      string
	CharacterID string
}

// SaveSession stores the stats snapshot and narrative state of a chat.
type SaveSession struct {
	Session models.SessionState
}

// ClearSession drops the stored session of a chat.
type ClearSession struct {
	UserID      string
	CharacterID string
}

// UpdateSettings replaces the global chat settings.
type UpdateSettings struct {
	Settings models.Settings
}

// AddAlert records a moderation alert.
type AddAlert struct {
	Alert models.ModerationAlert
}

func (c UpsertUser) apply(d *data) error {
	if c.User.ID == "" {
		return models.ErrInvalidInput
	}
	d.users[c.User.ID] = c.User
	return nil
}

func (c UpsertCharacter) apply(d *data) error {
	if c.Character.ID == "" {
		return models.ErrInvalidInput
	}
	if _, ok := d.characters[c.Character.ID]; !ok {
		d.characterOrder = append(d.characterOrder, c.Character.ID)
	}
	d.characters[c.Character.ID] = *c.Character.Clone()
	return nil
}

func (c DeleteCharacter) apply(d *data) error {
	if _, ok := d.characters[c.ID]; !ok {
		return models.ErrCharacterNotFound
	}
	delete(d.characters, c.ID)
	d.characterOrder = removeID(d.characterOrder, c.ID)
	for k := range d.chats {
		if k.characterID == c.ID {
			delete(d.chats, k)
		}
	}
	for k := range d.sessions {
		if k.characterID == c.ID {
			delete(d.sessions, k)
		}
	}
	return nil
}

func (c UpsertConnection) apply(d *data) error {
	if c.Connection.ID == "" {
		return models.ErrInvalidInput
	}
	if _, ok := d.connections[c.Connection.ID]; !ok {
		d.connectionOrder = append(d.connectionOrder, c.Connection.ID)
	}
	d.connections[c.Connection.ID] = c.Connection.Clone()
	return nil
}

func (c DeleteConnection) apply(d *data) error {
	if _, ok := d.connections[c.ID]; !ok {
		return models.ErrConnectionNotFound
	}
	delete(d.connections, c.ID)
	d.connectionOrder = removeID(d.connectionOrder, c.ID)
	return nil
}

func (c AppendMessage) apply(d *data) error {
	m := c.Message
	if m.ID == "" || m.UserID == "" || m.CharacterID == "" {
		return models.ErrInvalidInput
	}
	k := chatKey{m.UserID, m.CharacterID}
	d.chats[k] = append(d.chats[k], m)
	return nil
}

func (c DeleteMessage) apply(d *data) error {
	k := chatKey{c.UserID, c.CharacterID}
	msgs := d.chats[k]
	for i, m := range msgs {
		if m.ID == c.MessageID {
			d.chats[k] = append(msgs[:i:i], msgs[i+1:]...)
			return nil
		}
	}
	return models.ErrMessageNotFound
}

func (c ClearChat) apply(d *data) error {
	delete(d.chats, chatKey{c.UserID, c.CharacterID})
	return nil
}

func (c SaveSession) apply(d *data) error {
	s := c.Session
	if s.UserID == "" || s.CharacterID == "" {
		return models.ErrInvalidInput
	}
	d.sessions[chatKey{s.UserID, s.CharacterID}] = cloneSession(s)
	return nil
}

func (c ClearSession) apply(d *data) error {
	delete(d.sessions, chatKey{c.UserID, c.CharacterID})
	return nil
}

func (c UpdateSettings) apply(d *data) error {
	d.settings = c.Settings.Clone()
	return nil
}

func (c AddAlert) apply(d *data) error {
	if c.Alert.ID == "" {
		return models.ErrInvalidInput
	}
	d.alerts = append(d.alerts, c.Alert)
	return nil
}

func removeID(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
