package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/domain"
)

func TestParseCheckResult(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		want    CheckResult
		wantErr bool
	}{
		{
			name:  "plain object",
			reply: `{"success": true, "variables": {"city": "Lisbon"}}`,
			want:  CheckResult{Success: true, Variables: map[string]string{"city": "Lisbon"}},
		},
		{
			name:  "wrapped in prose with loose types",
			reply: "Here you go:\n{\"success\": \"1\", \"variables\": {\"age\": 42}}\nBye",
			want:  CheckResult{Success: true, Variables: map[string]string{"age": "42"}},
		},
		{
			name:  "failure with reason",
			reply: `{"success": false, "reason": "Say more"}`,
			want:  CheckResult{Reason: "Say more"},
		},
		{name: "no object", reply: "yes", wantErr: true},
		{name: "broken object", reply: `{"success": }`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseCheckResult(tt.reply)
			if tt.wantErr {
				var upstream *domain.UpstreamError
				assert.ErrorAs(t, err, &upstream)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseSelection(t *testing.T) {
	assert.Nil(t, parseSelection("  ", true))
	assert.Equal(t, []string{"a, b"}, parseSelection("a, b", false))
	assert.Equal(t, []string{"a", "b"}, parseSelection("a, b,", true))
	assert.Equal(t, []string{"x", "y"}, parseSelection(`["x", " ", "y"]`, true))
}

func TestAccepts(t *testing.T) {
	assert.True(t, accepts(domain.InteractionContinue, domain.InputButton))
	assert.True(t, accepts(domain.InteractionButton, domain.InputContinue))
	assert.True(t, accepts(domain.InteractionInput, domain.InputText))
	assert.False(t, accepts(domain.InteractionInput, domain.InputContinue))
	assert.False(t, accepts(domain.InteractionNone, domain.InputText))
}

func TestActionKey(t *testing.T) {
	k := actionKey("p", "b", domain.InputText, "hi")
	assert.Len(t, k, 64)
	assert.Equal(t, k, actionKey("p", "b", domain.InputText, "hi"))
	assert.NotEqual(t, k, actionKey("p", "b", domain.InputText, "hi!"))
	assert.NotEqual(t, actionKey("ab", "c", domain.InputText, ""), actionKey("a", "bc", domain.InputText, ""))
}

func TestFrameWriter_ClosesTextRuns(t *testing.T) {
	c := &collector{}
	w := &frameWriter{ctx: context.Background(), emit: c.emit}

	require.NoError(t, w.text("l1", "b1", "x", "a"))
	require.NoError(t, w.text("l1", "b2", "y", "b"))
	require.NoError(t, w.send(domain.Frame{Type: domain.FrameButtons}))
	require.NoError(t, w.closeText())
	require.NoError(t, w.message("l1", "", "done"))

	assert.Equal(t, []domain.FrameType{
		domain.FrameText, domain.FrameTextEnd,
		domain.FrameText, domain.FrameTextEnd,
		domain.FrameButtons,
		domain.FrameText, domain.FrameTextEnd,
	}, c.types())
	assert.Equal(t, "x", c.frames[1].LogID)
	assert.Equal(t, 7, w.sent)
}

func TestFrameWriter_StopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := &collector{}
	w := &frameWriter{ctx: ctx, emit: c.emit}
	assert.ErrorIs(t, w.typed("l1", "b1", "", "abc"), context.Canceled)
	assert.Empty(t, c.frames)
}
