package gemini

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"text/template"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/generation"
)

// newPromptOnlyGenerator builds a generator without a Gemini client for
// exercising input preparation and prompt construction.
func newPromptOnlyGenerator(t *testing.T, tmpl string, maxInputChars int) *PlanGenerator {
	t.Helper()

	parsed, err := template.New("plan").Parse(tmpl)
	require.NoError(t, err)

	return &PlanGenerator{
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		config:         config.LLMConfig{MaxInputChars: maxInputChars},
		promptTemplate: parsed,
	}
}

func TestPrepareInputNormalizes(t *testing.T) {
	t.Parallel()

	g := newPromptOnlyGenerator(t, "{{.Topic}}", 4000)

	prepared, meta := g.prepareInput(generation.Input{
		Topic:         "  machine   learning \n basics ",
		LearningStyle: "hands-on",
	})

	assert.Equal(t, "machine learning basics", prepared.Topic)
	assert.True(t, meta.InputNormalized)
	assert.False(t, meta.InputTruncated)
}

func TestPrepareInputAlreadyClean(t *testing.T) {
	t.Parallel()

	g := newPromptOnlyGenerator(t, "{{.Topic}}", 4000)

	prepared, meta := g.prepareInput(generation.Input{Topic: "compilers"})
	assert.Equal(t, "compilers", prepared.Topic)
	assert.False(t, meta.InputNormalized)
	assert.False(t, meta.InputTruncated)
}

func TestPrepareInputTruncates(t *testing.T) {
	t.Parallel()

	g := newPromptOnlyGenerator(t, "{{.Topic}}", 10)

	prepared, meta := g.prepareInput(generation.Input{
		Topic:     strings.Repeat("a", 50),
		Overrides: strings.Repeat("b", 50),
	})

	assert.Len(t, prepared.Topic, 10)
	assert.Len(t, prepared.Overrides, 10)
	assert.True(t, meta.InputTruncated)
}

func TestCreatePrompt(t *testing.T) {
	t.Parallel()

	g := newPromptOnlyGenerator(t,
		"Topic: {{.Topic}} Level: {{.SkillLevel}} Hours: {{.WeeklyHours}}{{if .Overrides}} Adjust: {{.Overrides}}{{end}}",
		4000,
	)

	prompt, err := g.createPrompt(context.Background(), generation.Input{
		Topic:       "databases",
		SkillLevel:  "intermediate",
		WeeklyHours: 6,
	})
	require.NoError(t, err)
	assert.Equal(t, "Topic: databases Level: intermediate Hours: 6", prompt)

	withOverrides, err := g.createPrompt(context.Background(), generation.Input{
		Topic:       "databases",
		SkillLevel:  "intermediate",
		WeeklyHours: 6,
		Overrides:   "focus on indexing",
	})
	require.NoError(t, err)
	assert.Contains(t, withOverrides, "Adjust: focus on indexing")
}

func TestFingerprintStable(t *testing.T) {
	t.Parallel()

	a := fingerprint("same prompt")
	b := fingerprint("same prompt")
	c := fingerprint("different prompt")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestGenerateRejectsEmptyTopic(t *testing.T) {
	t.Parallel()

	g := newPromptOnlyGenerator(t, "{{.Topic}}", 4000)

	_, _, err := g.Generate(context.Background(), generation.Input{Topic: "   "})
	assert.ErrorIs(t, err, ErrEmptyTopic)
}
