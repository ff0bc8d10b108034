package conversation

import "context"

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Reply is the tagged result of a send: Status is StatusSuccess or
// StatusError, with Error set in the latter case.
type Reply struct {
	Status   Status   `json:"status"`
	Reply    string   `json:"reply,omitempty"`
	Error    string   `json:"error,omitempty"`
	Model    string   `json:"model,omitempty"`
	Image    string   `json:"image,omitempty"`
	Mime     string   `json:"mime,omitempty"`
	Thinking string   `json:"thinking,omitempty"`
	DocURL   string   `json:"doc_url,omitempty"`
	Sources  []Source `json:"sources,omitempty"`
}

// Failed builds the error tag.
func Failed(err string) Reply {
	return Reply{Status: StatusError, Error: err}
}

// LogEntry is one raw message of a stored session.
type LogEntry struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Backend is the remote inference service. Implementations never return
// errors: send failures come back as StatusError and listing or loading
// failures as empty results.
type Backend interface {
	Send(ctx context.Context, p Payload) Reply
	ListSessions(ctx context.Context, identity string) []Session
	LoadSession(ctx context.Context, id string) []LogEntry
}
