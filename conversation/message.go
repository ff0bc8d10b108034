package conversation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RoleUser   Role = "user"
	RoleAI     Role = "ai"
	RoleSystem Role = "system"
)

const (
	WelcomeID   = "welcome"
	WelcomeText = "👋 **Welcome to anyGem Next.**\n\nI am your upgraded AI agent. Pick a mode (Chat, Search, Report, Slides, Drawing) to begin. " +
		"Reports and slide decks use the options shown in the status bar."

	defaultReplyText = "Done."
	defaultErrorText = "Unknown error"
)

type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Meta carries the optional extras of a message.
type Meta struct {
	Model    string   `json:"model,omitempty"`
	Image    string   `json:"image,omitempty"`
	Mime     string   `json:"mime,omitempty"`
	FileName string   `json:"fileName,omitempty"`
	DocURL   string   `json:"docUrl,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
}

// Message is immutable once appended to a Log.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Thinking  string    `json:"thinking,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Meta      *Meta     `json:"meta,omitempty"`
}

func welcomeMessage(now time.Time) Message {
	return Message{ID: WelcomeID, Role: RoleAI, Text: WelcomeText, Timestamp: now}
}

func userMessage(text, fileName string, now time.Time) Message {
	msg := Message{ID: uuid.NewString(), Role: RoleUser, Text: text, Timestamp: now}
	if fileName != "" {
		msg.Meta = &Meta{FileName: fileName}
	}
	return msg
}

func replyMessage(r Reply, now time.Time) Message {
	text := r.Reply
	if text == "" {
		text = defaultReplyText
	}
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleAI,
		Text:      text,
		Thinking:  r.Thinking,
		Timestamp: now,
		Meta: &Meta{
			Model:   r.Model,
			Image:   r.Image,
			Mime:    r.Mime,
			DocURL:  r.DocURL,
			Sources: r.Sources,
		},
	}
}

func errorMessage(errText string, now time.Time) Message {
	if errText == "" {
		errText = defaultErrorText
	}
	return Message{
		ID:        uuid.NewString(),
		Role:      RoleSystem,
		Text:      fmt.Sprintf("🚨 Error: %s", errText),
		Timestamp: now,
	}
}

// loadedMessage maps one raw backend log entry. The backend keeps no
// timestamps, so the load time is used.
func loadedMessage(sessionID string, index int, e LogEntry, now time.Time) Message {
	return Message{
		ID:        fmt.Sprintf("%s_%d", sessionID, index),
		Role:      Role(e.Role),
		Text:      e.Text,
		Timestamp: now,
	}
}
