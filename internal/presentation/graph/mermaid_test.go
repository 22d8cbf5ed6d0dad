package graph_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/lectern/internal/presentation/graph"
	"github.com/aretw0/lectern/pkg/domain"
	"github.com/aretw0/lectern/pkg/dsl"
)

func quizTree(t *testing.T) *domain.Tree {
	t.Helper()
	c := dsl.NewCourse("quiz")
	ch := c.Chapter("ch-1", "Quiz \"one\"")
	ch.Lesson("ask", "Ask").Trial().
		Select("answer", "yes", "no").
		Goto("answer", dsl.When("no", "retry"))
	ch.Lesson("retry", "Retry").Hidden().Continue("Again")
	course, err := c.Build()
	require.NoError(t, err)
	tree, err := domain.NewTree(course)
	require.NoError(t, err)
	return tree
}

func TestGenerateMermaid(t *testing.T) {
	out := graph.GenerateMermaid(quizTree(t), nil)

	for _, want := range []string{
		"graph TD\n",
		`ch_1[["01 Quiz 'one'"]]`,
		`ask(["0101 Ask"])`,
		`retry[/"0102 Retry"/]`,
		"ch_1 --> ask",
		"ch_1 --> retry",
		`ask -. "answer = no" .-> retry`,
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "classDef", "no overlay, no styles")
}

func TestGenerateMermaid_Overlay(t *testing.T) {
	out := graph.GenerateMermaid(quizTree(t), &graph.Overlay{
		Statuses: map[string]domain.Status{
			"ch-1":  domain.StatusInProgress,
			"ask":   domain.StatusCompleted,
			"retry": domain.StatusLocked,
		},
		Current: "retry",
	})

	assert.Contains(t, out, "class ch_1 started;")
	assert.Contains(t, out, "class ask completed;")
	assert.Contains(t, out, "class retry locked;")
	assert.True(t, strings.HasSuffix(out, "class retry current;\n"))
}
