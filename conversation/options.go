package conversation

import (
	"fmt"
	"strconv"
	"strings"
)

type Density string

const (
	DensityDetailed Density = "detailed"
	DensityBrief    Density = "brief"
)

type PptMode string

const (
	PptHybrid    PptMode = "hybrid"
	PptGeometric PptMode = "geometric"
	PptAIVisual  PptMode = "ai_visual"
)

// PresentationOptions configure slide deck generation.
type PresentationOptions struct {
	Length      int
	Density     Density
	Theme       string
	PptMode     PptMode
	VisualStyle string
	Language    string
	Audience    string
}

// Options holds both option sets. They survive mode switches and sends and
// are sent with every message whatever the mode.
type Options struct {
	Presentation PresentationOptions
	ReportStyle  string
}

func DefaultOptions() Options {
	return Options{
		Presentation: PresentationOptions{
			Length:   6,
			Density:  DensityDetailed,
			Theme:    "modern_blue",
			PptMode:  PptHybrid,
			Language: "Traditional Chinese",
			Audience: "General",
		},
		ReportStyle: "Professional",
	}
}

// OptionKeys lists the keys accepted by Set.
var OptionKeys = []string{"length", "density", "theme", "ppt_mode", "visual_style", "language", "audience", "style"}

// Set updates a single option by key.
func (o *Options) Set(key, value string) error {
	p := &o.Presentation
	switch strings.ToLower(strings.ReplaceAll(key, "-", "_")) {
	case "length":
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil || n < 1 {
			return fmt.Errorf("%w: length must be a positive integer, got %q", ErrInvalidOption, value)
		}
		p.Length = n
	case "density":
		d, err := parseDensity(value)
		if err != nil {
			return err
		}
		p.Density = d
	case "theme":
		p.Theme = value
	case "ppt_mode", "pptmode":
		m, err := parsePptMode(value)
		if err != nil {
			return err
		}
		p.PptMode = m
	case "visual_style", "visualstyle":
		p.VisualStyle = value
	case "language", "lang":
		p.Language = value
	case "audience":
		p.Audience = value
	case "style", "report_style":
		o.ReportStyle = value
	default:
		return fmt.Errorf("%w: %q (known: %s)", ErrUnknownOption, key, strings.Join(OptionKeys, ", "))
	}
	return nil
}

func (o Options) Validate() error {
	if o.Presentation.Length < 1 {
		return fmt.Errorf("%w: length must be positive, got %d", ErrInvalidOption, o.Presentation.Length)
	}
	if _, err := parseDensity(string(o.Presentation.Density)); err != nil {
		return err
	}
	if _, err := parsePptMode(string(o.Presentation.PptMode)); err != nil {
		return err
	}
	return nil
}

func parseDensity(s string) (Density, error) {
	switch Density(s) {
	case DensityDetailed, DensityBrief:
		return Density(s), nil
	}
	return "", fmt.Errorf("%w: density must be detailed or brief, got %q", ErrInvalidOption, s)
}

func parsePptMode(s string) (PptMode, error) {
	switch PptMode(s) {
	case PptHybrid, PptGeometric, PptAIVisual:
		return PptMode(s), nil
	}
	return "", fmt.Errorf("%w: ppt_mode must be hybrid, geometric or ai_visual, got %q", ErrInvalidOption, s)
}
