package main

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kir-gadjello/anygem/conversation"
	"github.com/kir-gadjello/anygem/identity"
	"github.com/kir-gadjello/anygem/store"
)

type stubBackend struct {
	mu       sync.Mutex
	reply    conversation.Reply
	sessions []conversation.Session
	logs     map[string][]conversation.LogEntry
	sent     []conversation.Payload
}

func (b *stubBackend) Send(ctx context.Context, p conversation.Payload) conversation.Reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, p)
	return b.reply
}

func (b *stubBackend) ListSessions(ctx context.Context, identity string) []conversation.Session {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]conversation.Session(nil), b.sessions...)
}

func (b *stubBackend) LoadSession(ctx context.Context, id string) []conversation.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.logs[id]
}

func newTestModel(t *testing.T, backend *stubBackend) chatModel {
	t.Helper()
	kv, err := store.Open(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { kv.Close() })

	ctrl := conversation.NewController(identity.New(kv), backend)
	ctrl.Open()
	m := newChatModel(ctrl, backend, false)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return next.(chatModel)
}

// drive feeds a key to the model and runs the resulting commands, delivering
// the results of background work back into Update.
func drive(t *testing.T, m chatModel, msg tea.Msg) chatModel {
	t.Helper()
	next, cmd := m.Update(msg)
	return runCmd(t, next.(chatModel), cmd)
}

func runCmd(t *testing.T, m chatModel, cmd tea.Cmd) chatModel {
	t.Helper()
	if cmd == nil {
		return m
	}
	switch msg := cmd().(type) {
	case tea.BatchMsg:
		for _, c := range msg {
			m = runCmd(t, m, c)
		}
	case replyMsg, sessionsMsg, sessionLogMsg:
		m = drive(t, m, msg)
	}
	return m
}

func key(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func typeLine(m chatModel, text string) chatModel {
	m.textarea.SetValue(text)
	return m
}

func TestChatModel_Send(t *testing.T) {
	backend := &stubBackend{reply: conversation.Reply{Status: conversation.StatusSuccess, Reply: "pong"}}
	m := newTestModel(t, backend)

	m = typeLine(m, "ping")
	next, cmd := m.Update(key(tea.KeyEnter))
	m = next.(chatModel)

	if !m.ctrl.Loading() {
		t.Fatal("expected loading while the reply is pending")
	}
	if m.textarea.Value() != "" {
		t.Errorf("expected input cleared, got %q", m.textarea.Value())
	}
	msgs := m.ctrl.Messages()
	if last := msgs[len(msgs)-1]; last.Role != conversation.RoleUser || last.Text != "ping" {
		t.Errorf("expected optimistic user message, got %+v", last)
	}

	m = runCmd(t, m, cmd)

	if m.ctrl.Loading() {
		t.Error("expected loading cleared after the reply")
	}
	msgs = m.ctrl.Messages()
	if len(msgs) != 3 || msgs[2].Role != conversation.RoleAI || msgs[2].Text != "pong" {
		t.Errorf("unexpected log: %+v", msgs)
	}
	if len(backend.sent) != 1 || backend.sent[0].Message != "ping" || backend.sent[0].SessionID != m.ctrl.Identity() {
		t.Errorf("unexpected requests: %+v", backend.sent)
	}
}

func TestChatModel_EmptyEnterIsIgnored(t *testing.T) {
	backend := &stubBackend{}
	m := newTestModel(t, backend)

	m = drive(t, typeLine(m, "   "), key(tea.KeyEnter))
	if len(m.ctrl.Messages()) != 1 || len(backend.sent) != 0 {
		t.Errorf("expected nothing sent, got log %+v", m.ctrl.Messages())
	}
}

func TestChatModel_AltEnterInsertsNewline(t *testing.T) {
	backend := &stubBackend{}
	m := newTestModel(t, backend)

	m = drive(t, typeLine(m, "line one"), tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	if m.textarea.Value() != "line one\n" {
		t.Errorf("expected newline appended, got %q", m.textarea.Value())
	}
	if len(backend.sent) != 0 {
		t.Error("alt+enter must not send")
	}
}

func TestChatModel_ModeCycling(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	m = drive(t, m, key(tea.KeyTab))
	if m.ctrl.Mode() != conversation.ModeSearch {
		t.Errorf("expected search, got %s", m.ctrl.Mode())
	}
	m = drive(t, m, key(tea.KeyShiftTab))
	m = drive(t, m, key(tea.KeyShiftTab))
	if m.ctrl.Mode() != conversation.ModeDrawing {
		t.Errorf("expected drawing after wrapping back, got %s", m.ctrl.Mode())
	}
	if !strings.Contains(m.View(), "DRAWING") {
		t.Error("expected mode in the status line")
	}
}

func TestChatModel_SlashCommands(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	m = drive(t, typeLine(m, "/mode slides"), key(tea.KeyEnter))
	if m.ctrl.Mode() != conversation.ModePresentation {
		t.Errorf("expected presentation mode, got %s", m.ctrl.Mode())
	}
	if m.textarea.Value() != "" {
		t.Errorf("expected command line cleared, got %q", m.textarea.Value())
	}

	m = drive(t, typeLine(m, "/set length 10"), key(tea.KeyEnter))
	if m.ctrl.Options().Presentation.Length != 10 || m.statusErr {
		t.Errorf("expected length 10, got %+v (status %q)", m.ctrl.Options().Presentation, m.status)
	}

	m = drive(t, typeLine(m, "/set density sparse"), key(tea.KeyEnter))
	if !m.statusErr || m.ctrl.Options().Presentation.Density != conversation.DensityDetailed {
		t.Errorf("expected rejected density, got status %q", m.status)
	}

	path := filepath.Join(t.TempDir(), "brief.txt")
	writeFile(t, path, "some notes")
	m = drive(t, typeLine(m, "/attach "+path), key(tea.KeyEnter))
	if a := m.ctrl.Attachment(); a == nil || a.Name != "brief.txt" {
		t.Fatalf("expected brief.txt staged, got %+v (status %q)", a, m.status)
	}
	if !strings.Contains(m.View(), "brief.txt") {
		t.Error("expected attachment in the status line")
	}

	m = drive(t, typeLine(m, "/detach"), key(tea.KeyEnter))
	if m.ctrl.Attachment() != nil {
		t.Error("expected attachment removed")
	}

	m = drive(t, typeLine(m, "/nope"), key(tea.KeyEnter))
	if !m.statusErr {
		t.Error("expected unknown command to be reported")
	}
}

func TestChatModel_NewChat(t *testing.T) {
	backend := &stubBackend{reply: conversation.Reply{Status: conversation.StatusSuccess, Reply: "ok"}}
	m := newTestModel(t, backend)

	m = drive(t, typeLine(m, "hello"), key(tea.KeyEnter))
	before := m.ctrl.Identity()

	m = drive(t, m, key(tea.KeyCtrlN))
	if m.ctrl.Identity() == before {
		t.Error("expected a fresh identity")
	}
	msgs := m.ctrl.Messages()
	if len(msgs) != 1 || msgs[0].ID != conversation.WelcomeID {
		t.Errorf("expected only the welcome message, got %+v", msgs)
	}
}

func TestChatModel_SessionPicker(t *testing.T) {
	backend := &stubBackend{
		sessions: []conversation.Session{
			{ID: "S1", Title: "Trip", Preview: "Kyoto"},
			{ID: "S2", Title: "Deck", Preview: "Q3 review"},
		},
		logs: map[string][]conversation.LogEntry{
			"S2": {{Role: "user", Text: "make slides"}, {Role: "ai", Text: "here they are"}},
		},
	}
	m := newTestModel(t, backend)

	m = drive(t, m, key(tea.KeyCtrlO))
	if !m.inPicker || len(m.picker.Items()) != 2 {
		t.Fatalf("expected picker with 2 sessions, got %d (open=%t)", len(m.picker.Items()), m.inPicker)
	}

	// d hides the highlighted session locally
	m = drive(t, m, runeKey('d'))
	if len(m.ctrl.Sessions()) != 1 || m.ctrl.Sessions()[0].ID != "S2" {
		t.Fatalf("expected S1 removed, got %+v", m.ctrl.Sessions())
	}

	m = drive(t, m, key(tea.KeyEnter))
	if m.inPicker {
		t.Error("expected picker closed after selection")
	}
	if m.ctrl.Identity() != "S2" {
		t.Errorf("expected identity S2, got %s", m.ctrl.Identity())
	}
	msgs := m.ctrl.Messages()
	if len(msgs) != 2 || msgs[0].ID != "S2_0" || msgs[1].Text != "here they are" {
		t.Errorf("unexpected loaded log: %+v", msgs)
	}
}

func TestChatModel_DropsStaleSessionList(t *testing.T) {
	m := newTestModel(t, &stubBackend{})

	m = drive(t, m, sessionsMsg{identity: "UID_other", sessions: []conversation.Session{{ID: "X"}}})
	if len(m.ctrl.Sessions()) != 0 {
		t.Errorf("expected stale list ignored, got %+v", m.ctrl.Sessions())
	}
}
