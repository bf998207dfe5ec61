package models

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Sender identifies the author of a chat message.
type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// ChatMessage is one entry of a (user, character) conversation.
type ChatMessage struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	CharacterID string    `json:"characterId"`
	Sender      Sender    `json:"sender"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
}

// NarrativeState is the free-form JSON memory a model rewrites between turns.
// It is opaque to the server and always replaced wholesale.
type NarrativeState json.RawMessage

// IsNull reports whether the state carries no value.
func (n NarrativeState) IsNull() bool {
	trimmed := bytes.TrimSpace(n)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Indent renders the state as indented JSON, "{}" for an empty state.
func (n NarrativeState) Indent() string {
	if n.IsNull() {
		return "{}"
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, n, "", "  "); err != nil {
		return string(n)
	}
	return buf.String()
}

// MarshalJSON emits the raw blob, or null when empty.
func (n NarrativeState) MarshalJSON() ([]byte, error) {
	if n.IsNull() {
		return []byte("null"), nil
	}
	return json.RawMessage(n).MarshalJSON()
}

// UnmarshalJSON stores a copy of the raw blob.
func (n *NarrativeState) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*n = nil
		return nil
	}
	*n = append((*n)[0:0], data...)
	return nil
}

// NewNarrativeState marshals an arbitrary value into a state blob.
func NewNarrativeState(v any) (NarrativeState, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return NarrativeState(b), nil
}

// StatChange is one delta proposed by the model.
type StatChange struct {
	StatID      string  `json:"statId"`
	ValueChange float64 `json:"valueChange"`
	Reason      string  `json:"reason,omitempty"`
}

// StatsSnapshot maps stat id to its current value for a (user, character) pair.
type StatsSnapshot map[string]float64

// Value returns the current value of a stat, falling back to its initial value.
func (s StatsSnapshot) Value(stat Stat) float64 {
	if v, ok := s[stat.ID]; ok {
		return v
	}
	return stat.Initial
}

// Apply adds each change to the current value and clamps the result into
// the stat's declared bounds. Changes for stats the character does not
// define are skipped. The receiver is not modified.
func (s StatsSnapshot) Apply(stats []Stat, changes []StatChange) StatsSnapshot {
	out := make(StatsSnapshot, len(stats))
	for k, v := range s {
		out[k] = v
	}
	for _, ch := range changes {
		def := findStat(stats, ch.StatID)
		if def == nil {
			continue
		}
		next := out.Value(*def) + ch.ValueChange
		if math.IsNaN(next) {
			continue
		}
		out[def.ID] = def.Clamp(next)
	}
	return out
}

// findStat matches by id first, then by display name ignoring case.
func findStat(stats []Stat, ref string) *Stat {
	for i := range stats {
		if stats[i].ID == ref {
			return &stats[i]
		}
	}
	for i := range stats {
		if strings.EqualFold(stats[i].Name, ref) {
			return &stats[i]
		}
	}
	return nil
}

// InitialSnapshot builds a snapshot holding every stat's initial value.
func InitialSnapshot(stats []Stat) StatsSnapshot {
	out := make(StatsSnapshot, len(stats))
	for _, s := range stats {
		out[s.ID] = s.Clamp(s.Initial)
	}
	return out
}

// SessionState is the mutable per-(user, character) state carried across turns.
type SessionState struct {
	UserID         string         `json:"userId"`
	CharacterID    string         `json:"characterId"`
	Stats          StatsSnapshot  `json:"stats"`
	NarrativeState NarrativeState `json:"narrativeState"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// TurnResult is the resolved output of one model call.
type TurnResult struct {
	ResponseText      string         `json:"responseText"`
	StatChanges       []StatChange   `json:"statChanges"`
	NewNarrativeState NarrativeState `json:"newNarrativeState"`
}
