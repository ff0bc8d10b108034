// Package conversation holds the client-side state of a chat: the message
// log, the session directory, the staged attachment and the options, plus the
// Controller that sequences a send against them.
//
// The Controller is not safe for concurrent use. All state changes go through
// its methods from one goroutine (the UI loop). The only work meant for
// another goroutine is Exchange, which reads nothing but the Round it is given.
package conversation

import (
	"context"
	"log"
	"strings"
	"time"
)

// Identity is the durable session/user token store.
type Identity interface {
	Get() string
	Reset() string
	Set(id string)
}

type Controller struct {
	ids     Identity
	backend Backend
	now     func() time.Time
	timeout time.Duration

	identity string
	log      Log
	dir      Directory
	stager   *Stager
	mode     Mode
	options  Options
	input    string
	loading  bool
}

type ControllerOption func(*Controller)

func WithOptions(o Options) ControllerOption {
	return func(c *Controller) {
		c.options = o
	}
}

func WithStager(s *Stager) ControllerOption {
	return func(c *Controller) {
		c.stager = s
	}
}

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) {
		c.now = now
	}
}

// WithTimeout bounds every round trip. Zero means no limit.
func WithTimeout(d time.Duration) ControllerOption {
	return func(c *Controller) {
		c.timeout = d
	}
}

func NewController(ids Identity, backend Backend, opts ...ControllerOption) *Controller {
	c := &Controller{
		ids:     ids,
		backend: backend,
		now:     time.Now,
		mode:    ModeChat,
		options: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.stager == nil {
		c.stager = NewStager(DefaultMaxAttachmentKB)
	}
	return c
}

// Open loads the identity and greets an empty log. It does not touch the
// network; pair it with a session refresh.
func (c *Controller) Open() string {
	c.identity = c.ids.Get()
	if c.log.Len() == 0 {
		c.log.Append(welcomeMessage(c.now()))
	}
	return c.identity
}

// Startup is Open followed by a blocking directory refresh.
func (c *Controller) Startup(ctx context.Context) {
	c.Open()
	c.RefreshSessions(ctx)
}

// Reset starts a new conversation: fresh identity, empty log, chat mode,
// then Open again (which adds the single welcome message).
func (c *Controller) Reset() string {
	c.ids.Reset()
	c.log.Clear()
	c.mode = ModeChat
	return c.Open()
}

func (c *Controller) NewSession(ctx context.Context) string {
	id := c.Reset()
	c.RefreshSessions(ctx)
	return id
}

func (c *Controller) RefreshSessions(ctx context.Context) []Session {
	return c.dir.Refresh(ctx, c.backend, c.identity)
}

// ApplySessions replaces the directory with a list fetched elsewhere.
func (c *Controller) ApplySessions(sessions []Session) {
	c.dir.Replace(sessions)
}

// DeleteSession hides id from the directory. The open conversation is left
// alone even if it is the one removed.
func (c *Controller) DeleteSession(id string) bool {
	return c.dir.Remove(id)
}

func (c *Controller) SetInput(text string) {
	c.input = text
}

// Enter handles the Enter key: with shift it inserts a newline, otherwise it
// sends.
func (c *Controller) Enter(shift bool) (*Round, error) {
	if shift {
		c.input += "\n"
		return nil, nil
	}
	return c.BeginSend()
}

func (c *Controller) StageFile(path string) (*Attachment, error) {
	return c.stager.StageFile(path)
}

func (c *Controller) StageAttachment(a *Attachment) {
	c.stager.Stage(a)
}

func (c *Controller) ClearAttachment() {
	c.stager.Clear()
}

// SetMode switches modes. Log, input and attachment are kept.
func (c *Controller) SetMode(m Mode) error {
	parsed, err := ParseMode(string(m))
	if err != nil {
		return err
	}
	c.mode = parsed
	return nil
}

func (c *Controller) SetOption(key, value string) error {
	return c.options.Set(key, value)
}

// Round is one send in flight: a snapshot of everything the request needs.
type Round struct {
	Text       string
	SessionID  string
	Mode       Mode
	Options    Options
	Attachment *Attachment
}

// BeginSend checks the send guard, appends the optimistic user message,
// clears input and attachment and raises the loading flag. Every Round
// returned must be passed to Finish.
func (c *Controller) BeginSend() (*Round, error) {
	if c.loading {
		return nil, ErrSendInFlight
	}
	attachment := c.stager.Staged()
	if strings.TrimSpace(c.input) == "" && attachment == nil {
		return nil, ErrNothingToSend
	}

	fileName := ""
	if attachment != nil {
		fileName = attachment.Name
	}
	c.log.Append(userMessage(c.input, fileName, c.now()))

	r := &Round{
		Text:       c.input,
		SessionID:  c.identity,
		Mode:       c.mode,
		Options:    c.options,
		Attachment: attachment,
	}
	c.input = ""
	c.stager.Clear()
	c.loading = true
	return r, nil
}

// Exchange encodes the attachment, composes the payload and transmits it.
// It reads no Controller state beyond its fixed collaborators, so it can run
// off the UI goroutine.
func (c *Controller) Exchange(ctx context.Context, r *Round) Reply {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	var encoded *Encoded
	if r.Attachment != nil {
		e, err := r.Attachment.Encode()
		if err != nil {
			log.Printf("[Conversation] Exchange failed: encode attachment name=%q err=%v", r.Attachment.Name, err)
			return Failed(err.Error())
		}
		encoded = &e
	}

	payload := BuildPayload(r.Text, r.SessionID, r.Mode, encoded, r.Options)
	return c.backend.Send(ctx, payload)
}

// Finish drops the loading flag and appends the outcome: an ai message on
// success, a system message otherwise. It reports whether the directory
// should be refreshed, which the caller must do after this returns.
func (c *Controller) Finish(r *Round, reply Reply) bool {
	c.loading = false
	ok := reply.Status == StatusSuccess

	if r.SessionID != c.identity {
		// The user moved to another session while waiting
		log.Printf("[Conversation] Finish: dropping reply for session=%s active=%s", r.SessionID, c.identity)
		return ok
	}

	if ok {
		c.log.Append(replyMessage(reply, c.now()))
	} else {
		c.log.Append(errorMessage(reply.Error, c.now()))
	}
	return ok
}

// Send runs a whole round trip and blocks until it resolves.
func (c *Controller) Send(ctx context.Context) error {
	r, err := c.BeginSend()
	if err != nil {
		return err
	}
	if c.Finish(r, c.Exchange(ctx, r)) {
		c.RefreshSessions(ctx)
	}
	return nil
}

// Select makes id the active session. It returns false when id is already
// active.
func (c *Controller) Select(id string) bool {
	if id == "" || id == c.identity {
		return false
	}
	c.identity = id
	c.ids.Set(id)
	return true
}

// ApplySessionLog replaces the log with a loaded history. Logs for a session
// that is no longer active are ignored. Mode and options stay as they are.
func (c *Controller) ApplySessionLog(id string, entries []LogEntry) bool {
	if id != c.identity {
		log.Printf("[Conversation] ApplySessionLog: stale log session=%s active=%s", id, c.identity)
		return false
	}
	now := c.now()
	msgs := make([]Message, 0, len(entries))
	for i, e := range entries {
		msgs = append(msgs, loadedMessage(id, i, e, now))
	}
	c.log.ReplaceAll(msgs)
	return true
}

func (c *Controller) SwitchSession(ctx context.Context, id string) {
	if !c.Select(id) {
		return
	}
	c.ApplySessionLog(id, c.backend.LoadSession(ctx, id))
}

func (c *Controller) Identity() string { return c.identity }
func (c *Controller) Messages() []Message { return c.log.Messages() }
func (c *Controller) Sessions() []Session { return c.dir.List() }
func (c *Controller) Mode() Mode { return c.mode }
func (c *Controller) Options() Options { return c.options }
func (c *Controller) Input() string { return c.input }
func (c *Controller) Loading() bool { return c.loading }
func (c *Controller) Attachment() *Attachment { return c.stager.Staged() }
func (c *Controller) LastReply() (Message, bool) { return c.log.LastReply() }
