package runner

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/domain"
)

func TestTextHandler_RendersCompleteRuns(t *testing.T) {
	var out bytes.Buffer
	h := NewTextHandler(strings.NewReader(""), &out, WithTextHandlerRenderer(func(s string) (string, error) {
		return "Rendered: " + s, nil
	}))
	ctx := context.Background()

	for _, r := range "Hi" {
		require.NoError(t, h.Output(ctx, domain.Frame{Type: domain.FrameText, Content: string(r)}))
	}
	assert.Empty(t, out.String(), "text is held until the run ends")
	require.NoError(t, h.Output(ctx, domain.Frame{Type: domain.FrameTextEnd, Content: ""}))
	require.NoError(t, h.Output(ctx, domain.Frame{Type: domain.FrameButtons, Content: domain.ButtonsContent{
		Buttons: []domain.Button{{Label: "Yes", Value: "y"}, {Label: "No", Value: "n"}},
	}}))
	require.NoError(t, h.Output(ctx, domain.Frame{Type: domain.FrameError, Content: "broken"}))

	assert.Equal(t, "Rendered: Hi\n  [1] Yes\n  [2] No\n! broken\n", out.String())
}

func TestTextHandler_InputMapsChoices(t *testing.T) {
	h := NewTextHandler(strings.NewReader("2\n1, 3\nfree text\n"), &bytes.Buffer{})
	ctx := context.Background()
	buttons := []domain.Button{{Label: "A", Value: "a"}, {Label: "B", Value: "b"}, {Label: "C", Value: "c"}}

	got, err := h.Input(ctx, Prompt{Kind: domain.InputSelect, Buttons: buttons})
	require.NoError(t, err)
	assert.Equal(t, "b", got)

	got, err = h.Input(ctx, Prompt{Kind: domain.InputSelect, Buttons: buttons, Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, "a,c", got)

	got, err = h.Input(ctx, Prompt{Kind: domain.InputSelect, Buttons: buttons})
	require.NoError(t, err)
	assert.Equal(t, "free text", got)
}

func TestTextHandler_InputRetriesRejectedLines(t *testing.T) {
	t.Setenv(EnvMaxInputSize, "5")
	var out bytes.Buffer
	h := NewTextHandler(strings.NewReader("far too long\nok\n"), &out)

	got, err := h.Input(context.Background(), Prompt{Kind: domain.InputText})
	require.NoError(t, err)
	assert.Equal(t, "ok", got)
	assert.Contains(t, out.String(), "Please try again")
}

func TestJSONHandler_Input(t *testing.T) {
	h := NewJSONHandler(strings.NewReader("\"quoted\"\nraw\x07\n[\"a\", \"c\"]\n"), &bytes.Buffer{})
	got, err := h.Input(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "quoted", got)

	got, err = h.Input(context.Background(), Prompt{})
	require.NoError(t, err)
	assert.Equal(t, "raw", got)

	got, err = h.Input(context.Background(), Prompt{Multiple: true})
	require.NoError(t, err)
	assert.Equal(t, "a,c", got)

	_, err = h.Input(context.Background(), Prompt{})
	assert.ErrorIs(t, err, io.EOF)
}
