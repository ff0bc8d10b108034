package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
)

const defaultImageRows = 480

// detectTerminalImageSupport returns true if the terminal appears to support inline images (iTerm2, WezTerm, Kitty, etc.)
func detectTerminalImageSupport() bool {
	term := strings.ToLower(os.Getenv("TERM"))
	termProg := strings.ToLower(os.Getenv("TERM_PROGRAM"))

	if os.Getenv("ITERM_SESSION_ID") != "" || strings.Contains(termProg, "iterm") {
		return true
	}
	if strings.Contains(termProg, "wezterm") || strings.Contains(term, "wezterm") {
		return true
	}
	if strings.Contains(term, "kitty") || strings.Contains(term, "alacritty") {
		return true
	}
	// Windows Terminal 1.22+ speaks the iTerm2 protocol on some backends.
	// Konsole does not reliably, so it stays off.
	return strings.Contains(termProg, "windowsterminal")
}

// decodeReplyImage turns the base64 image of a reply into raw bytes.
func decodeReplyImage(b64 string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(b64))
	if err != nil {
		return nil, fmt.Errorf("base64 decode error: %w", err)
	}
	return data, nil
}

// displayImageInTerminal scales an image down to maxHeight pixels, keeping its
// aspect ratio, and prints it inline using the iTerm2 protocol (OSC 1337).
func displayImageInTerminal(w io.Writer, mime, b64 string, maxHeight int) error {
	if !strings.HasPrefix(mime, "image/") {
		return fmt.Errorf("unsupported image type %q", mime)
	}
	decoded, err := decodeReplyImage(b64)
	if err != nil {
		return err
	}

	img, err := imaging.Decode(bytes.NewReader(decoded))
	if err != nil {
		return fmt.Errorf("image decode error: %w", err)
	}
	if img.Bounds().Dy() > maxHeight {
		img = imaging.Resize(img, 0, maxHeight, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return fmt.Errorf("png encode error: %w", err)
	}

	encoded := base64.StdEncoding.EncodeToString(buf.Bytes())
	_, err = fmt.Fprintf(w, "\033]1337;File=name=%s;size=%d;inline=1:%s\a\n", "reply.png", len(encoded), encoded)
	return err
}

// saveReplyImage writes the decoded image of a reply to path.
func saveReplyImage(path, b64 string) error {
	data, err := decodeReplyImage(b64)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
