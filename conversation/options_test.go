package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOptionsSet(t *testing.T) {
	o := DefaultOptions()

	require.NoError(t, o.Set("length", "10"))
	require.NoError(t, o.Set("density", "brief"))
	require.NoError(t, o.Set("ppt-mode", "ai_visual"))
	require.NoError(t, o.Set("visual_style", "watercolor"))
	require.NoError(t, o.Set("style", "Casual"))

	assert.Equal(t, 10, o.Presentation.Length)
	assert.Equal(t, DensityBrief, o.Presentation.Density)
	assert.Equal(t, PptAIVisual, o.Presentation.PptMode)
	assert.Equal(t, "watercolor", o.Presentation.VisualStyle)
	assert.Equal(t, "Casual", o.ReportStyle)
	assert.NoError(t, o.Validate())
}

func TestOptionsSet_Rejects(t *testing.T) {
	o := DefaultOptions()

	assert.ErrorIs(t, o.Set("length", "0"), ErrInvalidOption)
	assert.ErrorIs(t, o.Set("length", "six"), ErrInvalidOption)
	assert.ErrorIs(t, o.Set("density", "sparse"), ErrInvalidOption)
	assert.ErrorIs(t, o.Set("ppt_mode", "3d"), ErrInvalidOption)
	assert.ErrorIs(t, o.Set("colour", "red"), ErrUnknownOption)

	assert.Equal(t, DefaultOptions(), o, "failed sets leave options untouched")
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("slides")
	require.NoError(t, err)
	assert.Equal(t, ModePresentation, m)

	_, err = ParseMode("poetry")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestModeShift(t *testing.T) {
	assert.Equal(t, ModeSearch, ModeChat.Shift(1))
	assert.Equal(t, ModeDrawing, ModeChat.Shift(-1))
	assert.Equal(t, ModeChat, ModeDrawing.Shift(1))
}
