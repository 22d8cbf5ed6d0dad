package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/pkg/domain"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHooks_FeedCollectors(t *testing.T) {
	ctx := context.Background()
	m := New()
	var chained int
	hooks := m.Hooks(domain.LifecycleHooks{
		OnTurnEnd: func(context.Context, *domain.TurnEvent) { chained++ },
	})

	hooks.OnTurnEnd(ctx, &domain.TurnEvent{Outcome: "ok", Duration: 30 * time.Millisecond})
	hooks.OnTurnEnd(ctx, &domain.TurnEvent{Outcome: "busy"})
	hooks.OnFrame(ctx, domain.Frame{Type: domain.FrameText})
	hooks.OnFrame(ctx, domain.Frame{Type: domain.FrameText})
	hooks.OnStatusChange(ctx, &domain.StatusEvent{To: domain.StatusCompleted})
	hooks.OnBlock(ctx, &domain.BlockEvent{Content: domain.ContentPrompt, Replayed: true})

	body := scrape(t, m)
	assert.Contains(t, body, `lectern_turns_total{outcome="ok"} 1`)
	assert.Contains(t, body, `lectern_turns_total{outcome="busy"} 1`)
	assert.Contains(t, body, `lectern_frames_total{type="text"} 2`)
	assert.Contains(t, body, `lectern_status_transitions_total{status="completed"} 1`)
	assert.Contains(t, body, `lectern_blocks_total{content="prompt",replayed="true"} 1`)
	assert.Contains(t, body, "lectern_turn_duration_seconds_count 2")
	assert.Contains(t, body, "go_goroutines")
	assert.Equal(t, 2, chained)
}

func TestNew_PrivateRegistries(t *testing.T) {
	a, b := New(), New()
	a.Hooks(domain.LifecycleHooks{}).OnFrame(context.Background(), domain.Frame{Type: domain.FrameBusy})
	assert.NotContains(t, scrape(t, b), `type="busy"`)
}
