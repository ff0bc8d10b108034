package conversation

import "fmt"

type Mode string

const (
	ModeChat         Mode = "chat"
	ModeSearch       Mode = "search"
	ModeReport       Mode = "report"
	ModePresentation Mode = "presentation"
	ModeDrawing      Mode = "drawing"
)

// Modes lists every mode in display order.
var Modes = []Mode{ModeChat, ModeSearch, ModeReport, ModePresentation, ModeDrawing}

func ParseMode(s string) (Mode, error) {
	for _, m := range Modes {
		if string(m) == s {
			return m, nil
		}
	}
	// "slides" is what the UI calls presentation mode
	if s == "slides" {
		return ModePresentation, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Shift returns the mode delta steps away, wrapping around.
func (m Mode) Shift(delta int) Mode {
	idx := 0
	for i, candidate := range Modes {
		if candidate == m {
			idx = i
			break
		}
	}
	n := len(Modes)
	return Modes[((idx+delta)%n+n)%n]
}
