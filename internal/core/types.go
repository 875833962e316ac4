// Package core contains the core domain types for agora.
package core

import (
	"time"
)

// Speaker tags that are not persona names.
const (
	SpeakerUser = "user"
	SpeakerBot  = "bot"
)

// Role is the role tag of a composed message block.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is a conversation container. It owns zero or more turns.
type Session struct {
	ID        string    `json:"id" bson:"_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Turn is one persisted unit of dialogue.
type Turn struct {
	ID        string    `json:"id" bson:"_id"`
	SessionID string    `json:"session_id" bson:"session_id"`
	Speaker   string    `json:"speaker" bson:"speaker"` // "user", a persona name, or "bot"
	Content   string    `json:"content" bson:"content"`
	Seq       int64     `json:"seq" bson:"seq"` // Monotonic per-store ordering key
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// Utterance is a (speaker, text) pair selected for prompt replay.
type Utterance struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`

	// Name is the speaker's display name when known.
	Name string `json:"name,omitempty"`
}

// Message is one role-tagged block of a composed prompt.
type Message struct {
	Role Role   `json:"role"`
	Text string `json:"text"`
}

// TranscriptEntry is one generated debate reply.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// SessionSummary is a lightweight representation for listing sessions.
type SessionSummary struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	TurnCount int       `json:"turn_count"`
}

// Mode selects the context policy and behavioral rules for a turn.
type Mode string

const (
	ModeChat   Mode = "chat"
	ModeDebate Mode = "debate"
)

// Reply is the result of a single chat exchange.
type Reply struct {
	Text      string    `json:"reply"`
	Model     string    `json:"model"`
	SessionID string    `json:"session_id"`
	Prompt    []Message `json:"prompt_used,omitempty"`
}

// DebateRequest holds the parameters of a multi-persona debate.
type DebateRequest struct {
	SessionID       string   `json:"session_id"`
	StartingMessage string   `json:"starting_message"`
	Personas        []string `json:"personas"`
	Rounds          int      `json:"rounds"`
}

// TotalTurns returns the number of replies a debate produces.
func (r DebateRequest) TotalTurns() int {
	return r.Rounds * len(r.Personas)
}
