package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kir-gadjello/anygem/conversation"
	"github.com/spf13/cobra"
)

var TEXTINPUT_PLACEHOLDER = "Type a message and press Enter to send (/help for commands)..."

var (
	modeStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFF")).Background(lipgloss.Color("#7D56F4")).Padding(0, 1)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	attachStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("51"))
)

const slashHelp = "/attach <path> · /detach · /mode <chat|search|report|slides|drawing> · /set <key> <value> · /new"

// chatModel is the interactive front end. All Controller mutations happen in
// Update; network calls run as commands and report back as messages.
type chatModel struct {
	ctrl    *conversation.Controller
	backend conversation.Backend

	spinner        spinner.Model
	viewport       viewport.Model
	textarea       textarea.Model
	renderMarkdown bool
	viewportWidth  int
	mdPaddingWidth int

	status    string
	statusErr bool

	inPicker bool
	picker   list.Model
}

type replyMsg struct {
	round *conversation.Round
	reply conversation.Reply
}

type sessionsMsg struct {
	identity string
	sessions []conversation.Session
}

type sessionLogMsg struct {
	id      string
	entries []conversation.LogEntry
}

func sendCmd(ctrl *conversation.Controller, round *conversation.Round) tea.Cmd {
	return func() tea.Msg {
		return replyMsg{round: round, reply: ctrl.Exchange(context.Background(), round)}
	}
}

func refreshCmd(backend conversation.Backend, identity string) tea.Cmd {
	return func() tea.Msg {
		return sessionsMsg{identity: identity, sessions: backend.ListSessions(context.Background(), identity)}
	}
}

func loadCmd(backend conversation.Backend, id string) tea.Cmd {
	return func() tea.Msg {
		return sessionLogMsg{id: id, entries: backend.LoadSession(context.Background(), id)}
	}
}

// newChatModel expects an opened Controller.
func newChatModel(ctrl *conversation.Controller, backend conversation.Backend, renderMarkdown bool) chatModel {
	ta := textarea.New()
	ta.Placeholder = TEXTINPUT_PLACEHOLDER
	ta.Focus()

	ta.Prompt = "┃ "
	ta.CharLimit = 100000
	ta.MaxHeight = 32
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.ShowLineNumbers = false
	ta.KeyMap.InsertNewline.SetEnabled(false)

	vp := viewport.New(32, 12)
	vp.MouseWheelEnabled = true

	sp := spinner.New()
	sp.Spinner = spinner.Pulse
	sp.Spinner.FPS = time.Second / 10
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("171"))

	m := chatModel{
		ctrl:           ctrl,
		backend:        backend,
		spinner:        sp,
		textarea:       ta,
		viewport:       vp,
		renderMarkdown: renderMarkdown,
		viewportWidth:  80,
		mdPaddingWidth: 0,
		picker:         newSessionPicker(),
	}
	m.refreshViewport()
	return m
}

func (m chatModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, refreshCmd(m.backend, m.ctrl.Identity()))
}

func (m *chatModel) setStatus(text string, isErr bool) {
	m.status = text
	m.statusErr = isErr
}

func (m *chatModel) refreshViewport() {
	suffix := ""
	if m.ctrl.Loading() {
		suffix = "\n\n" + m.spinner.View() + dimStyle.Render(" waiting for anyGem...")
	}
	m.viewport.SetContent(formatMessageLog(m.ctrl.Messages(), m.renderMarkdown, m.viewportWidth, m.mdPaddingWidth, suffix, true))
	m.viewport.GotoBottom()
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Results of background work apply whichever view is showing
	switch msg := msg.(type) {
	case replyMsg:
		var cmd tea.Cmd
		if m.ctrl.Finish(msg.round, msg.reply) {
			cmd = refreshCmd(m.backend, m.ctrl.Identity())
		}
		m.refreshViewport()
		return m, cmd

	case sessionsMsg:
		if msg.identity != m.ctrl.Identity() {
			log.Printf("[TUI] Dropping session list for identity=%s", msg.identity)
			return m, nil
		}
		m.ctrl.ApplySessions(msg.sessions)
		if m.inPicker {
			return m, m.picker.SetItems(sessionItems(m.ctrl.Sessions(), m.ctrl.Identity()))
		}
		return m, nil

	case sessionLogMsg:
		if m.ctrl.ApplySessionLog(msg.id, msg.entries) {
			m.setStatus(fmt.Sprintf("Loaded session %s (%d messages)", msg.id, len(msg.entries)), false)
			m.refreshViewport()
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Loading() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		m.refreshViewport()
		return m, cmd

	case tea.WindowSizeMsg:
		m.textarea.SetWidth(msg.Width - 2)
		m.viewport.Width = msg.Width - 2
		m.viewportWidth = msg.Width - 2
		m.viewport.Height = msg.Height - 2 - m.textarea.Height()
		h, v := pickerStyle.GetFrameSize()
		m.picker.SetSize(msg.Width-h, msg.Height-v)
		m.refreshViewport()
		return m, nil
	}

	if m.inPicker {
		return m.updatePicker(msg)
	}

	if key, ok := msg.(tea.KeyMsg); ok {
		if next, cmd, handled := m.handleKey(key); handled {
			return next, cmd
		}
	}

	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)
	m.textarea, tiCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd)
}

func (m chatModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd, bool) {
	switch msg.Type {
	case tea.KeyCtrlC, tea.KeyEsc:
		return m, tea.Quit, true

	case tea.KeyTab:
		m.ctrl.SetMode(m.ctrl.Mode().Shift(1))
		return m, nil, true

	case tea.KeyShiftTab:
		m.ctrl.SetMode(m.ctrl.Mode().Shift(-1))
		return m, nil, true

	case tea.KeyCtrlN:
		next, cmd := m.newChat()
		return next, cmd, true

	case tea.KeyCtrlO:
		next, cmd := m.openPicker()
		return next, cmd, true

	case tea.KeyCtrlE:
		if reply, ok := m.ctrl.LastReply(); ok {
			m.copyToClipboard(reply.Text, "Copied the last reply.")
		}
		return m, nil, true

	case tea.KeyCtrlS:
		if msgs := m.ctrl.Messages(); len(msgs) > 0 {
			m.copyToClipboard(formatMessageLog(msgs, false, 0, 0, "", false), "Copied the transcript.")
		}
		return m, nil, true

	case tea.KeyEnter:
		if msg.Alt {
			m.ctrl.SetInput(m.textarea.Value())
			m.ctrl.Enter(true)
			m.textarea.SetValue(m.ctrl.Input())
			return m, nil, true
		}

		text := m.textarea.Value()
		if strings.HasPrefix(strings.TrimSpace(text), "/") {
			next, cmd := m.runSlash(strings.TrimSpace(text))
			return next, cmd, true
		}

		m.ctrl.SetInput(text)
		round, err := m.ctrl.Enter(false)
		switch {
		case errors.Is(err, conversation.ErrNothingToSend):
			return m, nil, true
		case err != nil:
			m.setStatus("Still waiting for the previous reply.", true)
			return m, nil, true
		}

		m.setStatus("", false)
		m.textarea.Reset()
		m.textarea.Placeholder = TEXTINPUT_PLACEHOLDER
		m.textarea.Focus()
		m.refreshViewport()
		return m, tea.Batch(m.spinner.Tick, sendCmd(m.ctrl, round)), true
	}
	return m, nil, false
}

func (m chatModel) newChat() (chatModel, tea.Cmd) {
	id := m.ctrl.Reset()
	m.textarea.Reset()
	m.textarea.Placeholder = TEXTINPUT_PLACEHOLDER
	m.textarea.Focus()
	m.setStatus("New chat "+id, false)
	m.refreshViewport()
	return m, refreshCmd(m.backend, id)
}

func (m *chatModel) copyToClipboard(text, done string) {
	if err := clipboard.WriteAll(text); err != nil {
		m.setStatus("Clipboard unavailable: "+err.Error(), true)
		return
	}
	m.setStatus(done, false)
}

func (m chatModel) runSlash(line string) (tea.Model, tea.Cmd) {
	name, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	m.textarea.Reset()

	switch name {
	case "/attach":
		if rest == "" {
			m.setStatus("usage: /attach <path>", true)
			return m, nil
		}
		a, err := m.ctrl.StageFile(expandHome(rest))
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("Attached %s (%s, %d KB)", a.Name, a.MimeType, (a.Size+1023)/1024), false)

	case "/detach":
		m.ctrl.ClearAttachment()
		m.setStatus("Attachment removed.", false)

	case "/mode":
		mode, err := conversation.ParseMode(strings.ToLower(rest))
		if err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.ctrl.SetMode(mode)
		m.setStatus("", false)

	case "/set":
		key, value, ok := strings.Cut(rest, " ")
		if !ok {
			m.setStatus("usage: /set <key> <value> (keys: "+strings.Join(conversation.OptionKeys, ", ")+")", true)
			return m, nil
		}
		if err := m.ctrl.SetOption(key, strings.TrimSpace(value)); err != nil {
			m.setStatus(err.Error(), true)
			return m, nil
		}
		m.setStatus(fmt.Sprintf("%s = %s", key, strings.TrimSpace(value)), false)

	case "/new":
		return m.newChat()

	case "/help":
		m.setStatus(slashHelp, false)

	default:
		m.setStatus("unknown command "+name+": "+slashHelp, true)
	}
	return m, nil
}

func expandHome(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}
	return path
}

func modeLabel(mode conversation.Mode) string {
	if mode == conversation.ModePresentation {
		return "SLIDES"
	}
	return strings.ToUpper(string(mode))
}

// optionSummary shows the options the current mode makes use of.
func optionSummary(mode conversation.Mode, o conversation.Options) string {
	switch mode {
	case conversation.ModeReport:
		return "style " + o.ReportStyle
	case conversation.ModePresentation:
		p := o.Presentation
		parts := []string{fmt.Sprintf("%d slides", p.Length), string(p.Density), p.Theme, string(p.PptMode), p.Language}
		if p.VisualStyle != "" {
			parts = append(parts, p.VisualStyle)
		}
		return strings.Join(parts, " · ")
	}
	return ""
}

func (m chatModel) statusLine() string {
	parts := []string{modeStyle.Render(modeLabel(m.ctrl.Mode()))}
	if summary := optionSummary(m.ctrl.Mode(), m.ctrl.Options()); summary != "" {
		parts = append(parts, dimStyle.Render(summary))
	}
	if a := m.ctrl.Attachment(); a != nil {
		parts = append(parts, attachStyle.Render("📎 "+a.Name))
	}
	switch {
	case m.status != "" && m.statusErr:
		parts = append(parts, errorStyle.Render(m.status))
	case m.status != "":
		parts = append(parts, dimStyle.Render(m.status))
	default:
		parts = append(parts, dimStyle.Render("tab mode · ctrl+o sessions · ctrl+n new · ctrl+e copy reply"))
	}
	return strings.Join(parts, " ")
}

func (m chatModel) View() string {
	if m.inPicker {
		return pickerStyle.Render(m.picker.View())
	}

	return fmt.Sprintf(
		"%s\n%s\n%s",
		m.viewport.View(),
		m.statusLine(),
		m.textarea.View(),
	) + "\n"
}

func runTUI(cmd *cobra.Command) error {
	a, err := setup(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	// The screen belongs to bubbletea; verbose logs go to a file
	if a.cfg.Verbose {
		dir, err := configDir()
		if err != nil {
			return err
		}
		f, err := tea.LogToFile(filepath.Join(dir, "debug.log"), "anygem")
		if err != nil {
			return err
		}
		defer f.Close()
	}

	a.ctrl.Open()
	p := tea.NewProgram(newChatModel(a.ctrl, a.client, a.cfg.RenderMarkdown), tea.WithAltScreen(), tea.WithMouseCellMotion())
	if _, err := p.Run(); err != nil {
		log.Println(err)
		return err
	}
	return nil
}
