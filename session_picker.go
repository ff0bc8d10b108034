package main

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/kir-gadjello/anygem/conversation"
)

var pickerStyle = lipgloss.NewStyle().Margin(1, 2)

type sessionItem struct {
	session conversation.Session
	active  bool
}

func (s sessionItem) Title() string {
	title := s.session.Title
	if title == "" {
		title = s.session.ID
	}
	if s.active {
		title = "● " + title
	}
	if s.session.UpdatedAt > 0 {
		return fmt.Sprintf("%s (%s)", title, formatUpdatedAt(s.session.UpdatedAt))
	}
	return title
}
func (s sessionItem) Description() string { return s.session.Preview }
func (s sessionItem) FilterValue() string { return s.session.Title + " " + s.session.Preview }

func sessionItems(sessions []conversation.Session, activeID string) []list.Item {
	items := make([]list.Item, len(sessions))
	for i, s := range sessions {
		items[i] = sessionItem{session: s, active: s.ID == activeID}
	}
	return items
}

func newSessionPicker() list.Model {
	l := list.New([]list.Item{}, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Sessions · enter load · d delete · esc close"
	l.Styles.Title = lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFF")).
		Background(lipgloss.Color("#7D56F4")).
		Padding(0, 1)
	l.SetShowHelp(false)
	return l
}

func (m chatModel) openPicker() (tea.Model, tea.Cmd) {
	m.inPicker = true
	cmd := m.picker.SetItems(sessionItems(m.ctrl.Sessions(), m.ctrl.Identity()))
	return m, tea.Batch(cmd, refreshCmd(m.backend, m.ctrl.Identity()))
}

func (m chatModel) updatePicker(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && m.picker.FilterState() != list.Filtering {
		switch key.String() {
		case "ctrl+c":
			return m, tea.Quit

		case "esc", "ctrl+o":
			if m.picker.FilterState() == list.FilterApplied {
				break
			}
			m.inPicker = false
			return m, nil

		case "enter":
			m.inPicker = false
			item, ok := m.picker.SelectedItem().(sessionItem)
			if !ok || !m.ctrl.Select(item.session.ID) {
				return m, nil
			}
			m.setStatus("Loading "+item.Title()+"...", false)
			return m, loadCmd(m.backend, item.session.ID)

		case "d":
			item, ok := m.picker.SelectedItem().(sessionItem)
			if !ok {
				return m, nil
			}
			if !m.ctrl.DeleteSession(item.session.ID) {
				return m, nil
			}
			m.setStatus("Removed "+item.Title()+" from the list", false)
			return m, m.picker.SetItems(sessionItems(m.ctrl.Sessions(), m.ctrl.Identity()))
		}
	}

	var cmd tea.Cmd
	m.picker, cmd = m.picker.Update(msg)
	return m, cmd
}
