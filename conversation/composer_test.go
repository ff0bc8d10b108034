package conversation

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildPayload_WireShape(t *testing.T) {
	opts := DefaultOptions()
	p := BuildPayload("Hello", "UID_1", ModeReport, nil, opts)

	raw, err := json.Marshal(p)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))

	assert.Equal(t, "Hello", got["message"])
	assert.Equal(t, "UID_1", got["session_id"])
	assert.Equal(t, "report", got["mode"])
	assert.NotContains(t, got, "file_data")
	assert.NotContains(t, got, "mime_type")

	options := got["options"].(map[string]any)
	assert.Equal(t, map[string]any{
		"length":      float64(6),
		"density":     "detailed",
		"theme":       "modern_blue",
		"pptMode":     "hybrid",
		"visualStyle": "",
		"language":    "Traditional Chinese",
		"audience":    "General",
		"style":       "Professional",
	}, options)
}

func TestBuildPayload_AttachmentAndAllOptionsRegardlessOfMode(t *testing.T) {
	opts := DefaultOptions()
	opts.ReportStyle = "Academic"

	p := BuildPayload("", "UID_1", ModeChat, &Encoded{MimeType: "image/png", Base64Payload: "AAAA"}, opts)
	assert.Equal(t, "AAAA", p.FileData)
	assert.Equal(t, "image/png", p.MimeType)
	assert.Equal(t, "Academic", p.Options.Style, "report style travels in chat mode too")
	assert.Equal(t, 6, p.Options.Length)
}
