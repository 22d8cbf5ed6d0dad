package runner_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/internal/runtime"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/runner"
)

func greeting(t *testing.T) *runtime.Engine {
	t.Helper()
	loader, err := memory.NewLoader(domain.Course{
		ID: "intro",
		Items: []domain.OutlineItem{
			{ID: "ch", Order: 1, Title: "Chapter"},
			{ID: "l1", ParentID: "ch", Order: 1, Title: "Lesson"},
		},
		Blocks: []domain.Block{
			{ID: "ask", OutlineItemID: "l1", Order: 1, Content: domain.ContentFixed, Interaction: domain.InteractionInput,
				Payload: domain.Payload{Label: "Your name?", Variable: "name"}},
			{ID: "pick", OutlineItemID: "l1", Order: 2, Content: domain.ContentFixed, Interaction: domain.InteractionSelect,
				Payload: domain.Payload{Text: "Favorite?", Variable: "fav", Options: []string{"go", "rust"}}},
			{ID: "hi", OutlineItemID: "l1", Order: 3, Content: domain.ContentFixed, Interaction: domain.InteractionContinue,
				Payload: domain.Payload{Text: "Hello {name}, you like {fav}"}},
		},
	})
	require.NoError(t, err)
	return runtime.NewEngine(loader, memory.NewStore())
}

func TestRunner_TextPlaysCourseToEnd(t *testing.T) {
	var out bytes.Buffer
	handler := runner.NewTextHandler(strings.NewReader("Ann\n2\n\n"), &out)
	r := runner.NewRunner(runner.WithUser("u1"), runner.WithCourse("intro"), runner.WithHandler(handler))

	require.NoError(t, r.Run(context.Background(), greeting(t)))

	text := out.String()
	assert.Contains(t, text, "Your name?")
	assert.Contains(t, text, "[2] rust")
	assert.Contains(t, text, "Hello Ann, you like rust")
	assert.Contains(t, text, domain.DefaultMessages().CourseFinished)
}

func TestRunner_JSONLines(t *testing.T) {
	var out bytes.Buffer
	handler := runner.NewJSONHandler(strings.NewReader("\"Ann\"\ngo\n\"\"\n"), &out)
	r := runner.NewRunner(runner.WithUser("u1"), runner.WithCourse("intro"), runner.WithHandler(handler))

	require.NoError(t, r.Run(context.Background(), greeting(t)))

	var types []string
	var text strings.Builder
	scanner := bufio.NewScanner(&out)
	for scanner.Scan() {
		var f struct {
			Type    string          `json:"type"`
			Content json.RawMessage `json:"content"`
		}
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &f))
		types = append(types, f.Type)
		if f.Type == "text" {
			var s string
			require.NoError(t, json.Unmarshal(f.Content, &s))
			text.WriteString(s)
		}
	}
	assert.Contains(t, types, "input")
	assert.Contains(t, types, "buttons")
	assert.Contains(t, text.String(), "Hello Ann, you like go")
}

func TestRunner_EOFEndsSession(t *testing.T) {
	handler := runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})
	r := runner.NewRunner(runner.WithUser("u1"), runner.WithCourse("intro"), runner.WithHandler(handler))
	assert.NoError(t, r.Run(context.Background(), greeting(t)))
}

// scripted replays canned frames, one slice per turn, and records the requests.
type scripted struct {
	turns    [][]domain.Frame
	requests []domain.Request
}

func (s *scripted) Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error {
	s.requests = append(s.requests, req)
	if len(s.turns) == 0 {
		return nil
	}
	frames := s.turns[0]
	s.turns = s.turns[1:]
	for _, f := range frames {
		if err := emit(f); err != nil {
			return err
		}
		if f.Type == domain.FrameBusy {
			return domain.ErrLockBusy
		}
	}
	return nil
}

func TestRunner_RetriesBusyTurns(t *testing.T) {
	engine := &scripted{turns: [][]domain.Frame{
		{{Type: domain.FrameBusy, Content: "wait"}},
		{{Type: domain.FrameChapterUpdate, Content: domain.StatusContent{PositionCode: "01", Status: domain.StatusCompleted}}},
	}}
	r := runner.NewRunner(
		runner.WithUser("u1"), runner.WithCourse("c"), runner.WithBusyBackoff(time.Millisecond),
		runner.WithHandler(runner.NewTextHandler(strings.NewReader(""), &bytes.Buffer{})),
	)

	require.NoError(t, r.Run(context.Background(), engine))
	require.Len(t, engine.requests, 2)
	assert.Equal(t, engine.requests[0], engine.requests[1], "a busy turn is retried unchanged")
}

func TestRunner_FollowsNextChapterAndAnswersPrompt(t *testing.T) {
	engine := &scripted{turns: [][]domain.Frame{
		{{Type: domain.FrameNextChapter, OutlineItemID: "l2", Content: domain.StatusContent{OutlineItemID: "l2"}}},
		{{Type: domain.FrameButtons, OutlineItemID: "l2", BlockID: "b7", Content: domain.ButtonsContent{
			Buttons: []domain.Button{{Label: "Next", Value: "continue"}}, Kind: domain.InputContinue,
		}}},
	}}
	r := runner.NewRunner(
		runner.WithUser("u1"), runner.WithCourse("c"), runner.WithPreview(true),
		runner.WithHandler(runner.NewTextHandler(strings.NewReader("\n"), &bytes.Buffer{})),
	)

	require.NoError(t, r.Run(context.Background(), engine))
	require.GreaterOrEqual(t, len(engine.requests), 3)
	assert.Equal(t, "l2", engine.requests[1].OutlineItemID)
	assert.Equal(t, domain.Request{
		UserID: "u1", CourseID: "c", Preview: true,
		OutlineItemID: "l2", BlockID: "b7", InputKind: domain.InputContinue, Input: "continue",
	}, engine.requests[2])
}

func TestRunner_RequiresUserAndCourse(t *testing.T) {
	assert.Error(t, runner.NewRunner().Run(context.Background(), &scripted{}))
}

func TestRunner_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := runner.NewRunner(runner.WithUser("u1"), runner.WithCourse("intro"),
		runner.WithHandler(runner.NewTextHandler(strings.NewReader("x\n"), &bytes.Buffer{})))
	assert.ErrorIs(t, r.Run(ctx, greeting(t)), context.Canceled)
}
