package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/internal/runtime"
	"github.com/aretw0/lectern/pkg/adapters/memory"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/runner"
	"github.com/aretw0/lectern/pkg/stream"
)

func newEngine(t *testing.T) (*runtime.Engine, *memory.Loader) {
	t.Helper()
	loader, err := memory.NewLoader(domain.Course{
		ID: "intro",
		Items: []domain.OutlineItem{
			{ID: "ch", Order: 1, Title: "Chapter"},
			{ID: "l1", ParentID: "ch", Order: 1, Title: "Lesson"},
		},
		Blocks: []domain.Block{
			{ID: "ask", OutlineItemID: "l1", Order: 1, Content: domain.ContentFixed, Interaction: domain.InteractionInput,
				Payload: domain.Payload{Label: "Name?", Variable: "name"}},
			{ID: "hi", OutlineItemID: "l1", Order: 2, Content: domain.ContentFixed, Interaction: domain.InteractionContinue,
				Payload: domain.Payload{Text: "Hi {name}"}},
		},
	})
	require.NoError(t, err)
	return runtime.NewEngine(loader, memory.NewStore()), loader
}

func do(t *testing.T, h http.Handler, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	if user != "" {
		req.Header.Set(DefaultUserHeader, user)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func frames(t *testing.T, body io.Reader) []domain.Frame {
	t.Helper()
	dec := stream.NewDecoder(body)
	var out []domain.Frame
	for {
		f, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			return out
		}
		require.NoError(t, err)
		out = append(out, f)
	}
}

func textOf(fs []domain.Frame) string {
	var b strings.Builder
	for _, f := range fs {
		if f.Type == domain.FrameText {
			b.WriteString(f.Content.(string))
		}
	}
	return b.String()
}

func TestRun_StreamsTurns(t *testing.T) {
	engine, _ := newEngine(t)
	h := NewHandler(engine)

	w := do(t, h, http.MethodPost, "/v1/courses/intro/run", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, stream.ContentType, w.Header().Get("Content-Type"))

	first := frames(t, w.Body)
	require.NotEmpty(t, first)
	prompt := first[len(first)-1]
	assert.Equal(t, domain.FrameInput, prompt.Type)
	assert.Equal(t, "ask", prompt.BlockID)
	assert.Equal(t, domain.InputContent{Label: "Name?", Kind: domain.InputText}, prompt.Content)

	w = do(t, h, http.MethodPost, "/v1/courses/intro/run", "u1", RunRequest{
		OutlineItemID: "l1", BlockID: "ask", InputKind: domain.InputText, Input: "Ann\x00",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Hi Ann", textOf(frames(t, w.Body)), "control characters are stripped before the engine sees them")
}

func TestRun_RejectsBadRequests(t *testing.T) {
	engine, _ := newEngine(t)
	h := NewHandler(engine)

	w := do(t, h, http.MethodPost, "/v1/courses/intro/run", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/courses/intro/run", strings.NewReader("{"))
	req.Header.Set(DefaultUserHeader, "u1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	t.Setenv(runner.EnvMaxInputSize, "4")
	w = do(t, h, http.MethodPost, "/v1/courses/intro/run", "u1", RunRequest{Input: "too long", InputKind: domain.InputText})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid input")
}

func TestRun_UnknownCourseStreamsError(t *testing.T) {
	engine, _ := newEngine(t)
	w := do(t, NewHandler(engine), http.MethodPost, "/v1/courses/nope/run", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var types []domain.FrameType
	for _, f := range frames(t, w.Body) {
		types = append(types, f.Type)
	}
	assert.Contains(t, types, domain.FrameError)
}

func TestProgressAndReset(t *testing.T) {
	engine, _ := newEngine(t)
	h := NewHandler(engine)
	do(t, h, http.MethodPost, "/v1/courses/intro/run", "u1", nil)

	w := do(t, h, http.MethodGet, "/v1/courses/intro/progress", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Items []runtime.ItemProgress `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.NotEmpty(t, body.Items)
	byID := map[string]domain.Status{}
	for _, it := range body.Items {
		byID[it.OutlineItemID] = it.Status
	}
	assert.Equal(t, domain.StatusInProgress, byID["l1"])

	w = do(t, h, http.MethodGet, "/v1/courses/intro/progress?preview=maybe", "u1", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, http.MethodPost, "/v1/courses/intro/items/l1/reset", "u1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rec domain.ProgressRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "l1", rec.OutlineItemID)

	w = do(t, h, http.MethodPost, "/v1/courses/nope/items/l1/reset", "u1", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// failingEngine answers every management call with err.
type failingEngine struct{ err error }

func (f failingEngine) Turn(ctx context.Context, req domain.Request, emit func(domain.Frame) error) error {
	return f.err
}

func (f failingEngine) Progress(ctx context.Context, userID, courseID string, preview bool) ([]runtime.ItemProgress, error) {
	return nil, f.err
}

func (f failingEngine) Reset(ctx context.Context, userID, courseID, itemID string) (*domain.ProgressRecord, error) {
	return nil, f.err
}

func TestErrorStatusCodes(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrLockBusy, http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := do(t, NewHandler(failingEngine{err: tt.err}), http.MethodGet, "/v1/courses/c/progress", "u1", nil)
			assert.Equal(t, tt.want, w.Code)
			assert.NotContains(t, w.Body.String(), "disk on fire")
		})
	}
}

func TestOptionalRoutes(t *testing.T) {
	engine, loader := newEngine(t)
	payments := memory.NewPayments()
	order, err := payments.CreateOrder(context.Background(), "u1", "pro", 990)
	require.NoError(t, err)

	metrics := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { io.WriteString(w, "lectern_turns_total 0\n") })
	h := NewHandler(engine, WithCourses(loader), WithOrders(payments), WithMetrics(metrics))

	w := do(t, h, http.MethodGet, "/v1/courses", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"courses":["intro"]}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/v1/orders/"+order.ID+"/paid", "", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	paid, err := payments.FindOrder(context.Background(), "u1", "pro")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, paid.Status)

	w = do(t, h, http.MethodPost, "/v1/orders/missing/paid", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, h, http.MethodGet, "/metrics", "", nil)
	assert.Contains(t, w.Body.String(), "lectern_turns_total")

	w = do(t, h, http.MethodGet, "/healthz", "", nil)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	bare := NewHandler(engine)
	assert.Equal(t, http.StatusNotFound, do(t, bare, http.MethodGet, "/metrics", "", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	engine, _ := newEngine(t)
	w := do(t, NewHandler(engine), http.MethodOptions, "/v1/courses/intro/run", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), DefaultUserHeader)
}

func TestEvents_MirrorsTurns(t *testing.T) {
	engine, _ := newEngine(t)
	srv := httptest.NewServer(NewHandler(engine))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	watch, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/courses/intro/events", nil)
	require.NoError(t, err)
	watch.Header.Set(DefaultUserHeader, "u1")
	resp, err := http.DefaultClient.Do(watch)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	run, err := http.NewRequest(http.MethodPost, srv.URL+"/v1/courses/intro/run", nil)
	require.NoError(t, err)
	run.Header.Set(DefaultUserHeader, "u1")
	runResp, err := http.DefaultClient.Do(run)
	require.NoError(t, err)
	direct := frames(t, runResp.Body)
	runResp.Body.Close()

	dec := stream.NewDecoder(resp.Body)
	for i := range direct {
		f, err := dec.Decode()
		require.NoError(t, err)
		assert.Equal(t, direct[i].Type, f.Type)
	}
}

func TestStreamManager(t *testing.T) {
	sm := NewStreamManager()
	a, cancelA := sm.Subscribe("k")
	_, cancelB := sm.Subscribe("k")
	assert.Equal(t, 2, sm.Watchers("k"))

	sm.Broadcast("k", domain.Frame{Type: domain.FrameText, Content: "x"})
	sm.Broadcast("other", domain.Frame{Type: domain.FrameError})
	assert.Equal(t, domain.FrameText, (<-a).Type)

	cancelA()
	cancelA()
	cancelB()
	assert.Zero(t, sm.Watchers("k"))
	_, open := <-a
	assert.False(t, open)

	slow, cancel := sm.Subscribe("slow")
	defer cancel()
	for i := 0; i < subscriberBuffer+10; i++ {
		sm.Broadcast("slow", domain.Frame{Type: domain.FrameText})
	}
	assert.Len(t, slow, subscriberBuffer, "a full watcher drops frames instead of blocking the turn")
}
