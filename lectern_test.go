package lectern_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/runner"
)

const course = `id: tour
title: Tour
items:
  - id: one
    title: One
    items:
      - id: only
        title: Only lesson
        blocks:
          - interaction: continue
            text: Welcome aboard
`

func TestNew_RequiresDirOrLoader(t *testing.T) {
	_, err := lectern.New("")
	assert.Error(t, err)
}

func TestEngine_PlaysCourseDirectory(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tour.yaml"), []byte(course), 0o644))

	var seen []domain.FrameType
	eng, err := lectern.New(dir, lectern.WithLifecycleHooks(domain.LifecycleHooks{
		OnFrame: func(ctx context.Context, f domain.Frame) { seen = append(seen, f.Type) },
	}))
	require.NoError(t, err)

	var out bytes.Buffer
	err = eng.Play(context.Background(),
		runner.WithUser("u1"), runner.WithCourse("tour"),
		runner.WithHandler(runner.NewTextHandler(strings.NewReader("\n"), &out)))
	require.NoError(t, err)
	assert.Contains(t, out.String(), "Welcome aboard")
	assert.Contains(t, out.String(), eng.Messages().CourseFinished)
	assert.Contains(t, seen, domain.FrameButtons)

	items, err := eng.Progress(context.Background(), "u1", "tour", false)
	require.NoError(t, err)
	for _, it := range items {
		assert.Equal(t, domain.StatusCompleted, it.Status, it.OutlineItemID)
	}

	rec, err := eng.Reset(context.Background(), "u1", "tour", "only")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, rec.Status)
}
