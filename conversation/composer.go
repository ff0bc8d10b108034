package conversation

// PayloadOptions is the merged option set sent with every message.
type PayloadOptions struct {
	Length      int     `json:"length"`
	Density     Density `json:"density"`
	Theme       string  `json:"theme"`
	PptMode     PptMode `json:"pptMode"`
	VisualStyle string  `json:"visualStyle"`
	Language    string  `json:"language"`
	Audience    string  `json:"audience"`
	Style       string  `json:"style"`
}

type Payload struct {
	Message   string         `json:"message"`
	SessionID string         `json:"session_id"`
	Mode      Mode           `json:"mode"`
	FileData  string         `json:"file_data,omitempty"`
	MimeType  string         `json:"mime_type,omitempty"`
	Options   PayloadOptions `json:"options"`
}

// BuildPayload composes the outgoing request. The option set is never
// filtered by mode; the backend ignores what it does not need.
func BuildPayload(text, identity string, mode Mode, attachment *Encoded, opts Options) Payload {
	p := Payload{
		Message:   text,
		SessionID: identity,
		Mode:      mode,
		Options: PayloadOptions{
			Length:      opts.Presentation.Length,
			Density:     opts.Presentation.Density,
			Theme:       opts.Presentation.Theme,
			PptMode:     opts.Presentation.PptMode,
			VisualStyle: opts.Presentation.VisualStyle,
			Language:    opts.Presentation.Language,
			Audience:    opts.Presentation.Audience,
			Style:       opts.ReportStyle,
		},
	}
	if attachment != nil {
		p.FileData = attachment.Base64Payload
		p.MimeType = attachment.MimeType
	}
	return p
}
