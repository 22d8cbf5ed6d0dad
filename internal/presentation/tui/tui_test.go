package tui

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintBanner_PlainWriter(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "intro", "v1.2.0")

	out := buf.String()
	assert.NotContains(t, out, "\x1b[", "a buffer is not a terminal")
	assert.Contains(t, out, "intro · v1.2.0")
}

func TestNewRenderer(t *testing.T) {
	render, err := NewRenderer("notty", 40)
	require.NoError(t, err)

	out, err := render("# Welcome\n\nSome **bold** words.")
	require.NoError(t, err)
	assert.Contains(t, out, "Welcome")
	assert.Contains(t, out, "bold")

	_, err = NewRenderer("no-such-style", 0)
	assert.Error(t, err)
}
