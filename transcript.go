package main

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/kir-gadjello/anygem/conversation"
	markdown "github.com/vlanse/go-term-markdown"
	"golang.org/x/term"
)

var markdownCache = struct {
	sync.Mutex
	cache map[string]string
}{cache: make(map[string]string)}

func renderMarkdown(content string, lineWidth, mdPadding int) string {
	key := fmt.Sprintf("%s__%d__%d", content, lineWidth, mdPadding)

	markdownCache.Lock()
	defer markdownCache.Unlock()
	if cached, ok := markdownCache.cache[key]; ok {
		return cached
	}
	rendered := string(markdown.Render(content, lineWidth, mdPadding))
	markdownCache.cache[key] = rendered
	return rendered
}

func roleLabel(msg conversation.Message) string {
	switch msg.Role {
	case conversation.RoleUser:
		return "YOU"
	case conversation.RoleSystem:
		return "SYSTEM"
	}
	if msg.Meta != nil && msg.Meta.Model != "" {
		return "ANYGEM (" + msg.Meta.Model + ")"
	}
	return "ANYGEM"
}

// messageBody is the markdown shown for a message, its extras included.
func messageBody(msg conversation.Message) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(msg.Text, " \t\r\n"))

	meta := msg.Meta
	if meta == nil {
		return b.String()
	}
	if meta.FileName != "" {
		fmt.Fprintf(&b, "\n\n📎 %s", meta.FileName)
	}
	if meta.Image != "" {
		fmt.Fprintf(&b, "\n\n🖼 image (%s)", meta.Mime)
	}
	if meta.DocURL != "" {
		fmt.Fprintf(&b, "\n\n📄 %s", meta.DocURL)
	}
	if len(meta.Sources) > 0 {
		b.WriteString("\n\n**Sources**\n")
		for _, s := range meta.Sources {
			title := s.Title
			if title == "" {
				title = s.URL
			}
			fmt.Fprintf(&b, "\n- [%s](%s)", title, s.URL)
		}
	}
	return b.String()
}

func formatMessageLog(msgs []conversation.Message, render bool, lineWidth int,
	mdPadding int, suffix string, renderNewlinesInUsermsgs bool) string {

	var ret strings.Builder

	for i, msg := range msgs {
		content := messageBody(msg)

		// Markdown swallows single newlines; typed ones become hard breaks
		if msg.Role == conversation.RoleUser && renderNewlinesInUsermsgs {
			content = strings.ReplaceAll(content, "\n", "  \n")
		}

		if render {
			content = renderMarkdown(content, lineWidth, mdPadding)
		}

		content = strings.TrimRight(content, " \t\r\n")

		sfx := ""
		if i == len(msgs)-1 && len(suffix) > 0 {
			sfx = suffix
		}

		fmt.Fprintf(&ret, "### %s:\n%s%s\n\n", roleLabel(msg), content, sfx)
	}

	return ret.String()
}

func terminalWidth(f *os.File) int {
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 {
		return 80
	}
	return width
}
