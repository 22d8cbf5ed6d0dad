package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/internal/config"
	"github.com/aretw0/lectern/internal/logging"
	"github.com/aretw0/lectern/pkg/domain"
)

const course = `id: hello
title: Hello
items:
  - id: basics
    title: Basics
    items:
      - id: first
        title: First steps
        blocks:
          - id: ask
            interaction: input
            label: What should I call you?
            variable: name
          - id: greet
            interaction: continue
            text: Nice to meet you, {name}.
`

func testConfig(t *testing.T) config.Config {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hello.yaml"), []byte(course), 0o644))
	return config.Config{
		CoursesDir:    dir,
		Store:         config.StoreMemory,
		SQLitePath:    filepath.Join(t.TempDir(), "lectern.db"),
		RedisPrefix:   "lectern:",
		LockTTL:       time.Minute,
		LockWait:      time.Second,
		MaxHops:       16,
		ShutdownGrace: time.Second,
	}
}

func TestBuild_Backends(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T, cfg *config.Config)
	}{
		{name: "memory"},
		{name: "sqlite", setup: func(t *testing.T, cfg *config.Config) { cfg.Store = config.StoreSQLite }},
		{name: "encrypted sqlite", setup: func(t *testing.T, cfg *config.Config) {
			cfg.Store = config.StoreSQLite
			cfg.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
		}},
		{name: "process risk checker", setup: func(t *testing.T, cfg *config.Config) {
			cfg.ModelsFile = filepath.Join(t.TempDir(), "models.yaml")
			doc := "models:\n  - name: default\n    command: cat\nrisk:\n  command: sh\n  args: [-c, 'cat >/dev/null']\n"
			require.NoError(t, os.WriteFile(cfg.ModelsFile, []byte(doc), 0o644))
		}},
		{name: "redis locks and codes", setup: func(t *testing.T, cfg *config.Config) {
			cfg.RedisAddr = miniredis.RunT(t).Addr()
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			if tt.setup != nil {
				tt.setup(t, &cfg)
			}
			app, err := Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
			require.NoError(t, err)
			defer app.Close()

			var out bytes.Buffer
			err = Play(context.Background(), app, PlayOptions{
				UserID: "u1", CourseID: "hello", Quiet: true, Style: "notty",
				In: strings.NewReader("Ann\n\n"), Out: &out,
			}, logging.NewNop())
			require.NoError(t, err)
			assert.Contains(t, out.String(), "Nice to meet you, Ann.")
		})
	}
}

func TestBuild_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.RedisAddr = "127.0.0.1:1"
	_, err := Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	assert.ErrorContains(t, err, "redis")

	cfg = testConfig(t)
	cfg.MessagesFile = filepath.Join(t.TempDir(), "missing.yaml")
	_, err = Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.EncryptionKey = base64.StdEncoding.EncodeToString([]byte("too short"))
	_, err = Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	assert.ErrorContains(t, err, "32 bytes")
}

func TestPlay_JSON(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	require.NoError(t, err)

	var out bytes.Buffer
	err = Play(context.Background(), app, PlayOptions{
		UserID: "u1", CourseID: "hello", JSON: true,
		In: strings.NewReader("\"Bo\"\n\"\"\n"), Out: &out,
	}, logging.NewNop())
	require.NoError(t, err)
	assert.Contains(t, out.String(), `"type":"input"`)
	assert.NotContains(t, out.String(), "lectern", "no banner in JSON mode")
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Serve(ctx, ln, app, cfg, logging.NewNop()) }()

	url := "http://" + ln.Addr().String()
	resp, err := http.Get(url + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(url + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestValidateFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "hello.yaml")
	bad := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(good, []byte(course), 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("id: broken\nitems: [{id: x, blocks: [{interaction: warp}]}]\n"), 0o644))

	var out bytes.Buffer
	err := ValidateFiles(&out, good, bad)
	require.Error(t, err)
	assert.Contains(t, out.String(), "ok   "+good)
	assert.Contains(t, out.String(), "FAIL "+bad)

	out.Reset()
	assert.NoError(t, ValidateFiles(&out, good))
}

func TestGraph(t *testing.T) {
	cfg := testConfig(t)
	app, err := Build(context.Background(), cfg, logging.NewNop(), domain.LifecycleHooks{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	ctx := context.Background()

	var plain bytes.Buffer
	require.NoError(t, Graph(ctx, app, &plain, GraphOptions{CourseID: "hello"}))
	assert.Contains(t, plain.String(), `first["0101 First steps"]`)
	assert.NotContains(t, plain.String(), "class ")

	require.NoError(t, app.Engine.Turn(ctx, domain.Request{UserID: "u1", CourseID: "hello"}, func(domain.Frame) error { return nil }))

	var overlaid bytes.Buffer
	require.NoError(t, Graph(ctx, app, &overlaid, GraphOptions{CourseID: "hello", UserID: "u1"}))
	assert.Contains(t, overlaid.String(), "class first current;")

	assert.ErrorIs(t, Graph(ctx, app, &plain, GraphOptions{CourseID: "nope"}), domain.ErrNotFound)
}
