package gemini

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"text/template"

	"google.golang.org/genai"

	"github.com/planforge/planforge-api/internal/config"
	"github.com/planforge/planforge-api/internal/generation"
)

// PlanGenerator implements the generation.PlanGenerator interface using
// Google's Gemini API to generate learning plan structures.
type PlanGenerator struct {
	logger *slog.Logger

	// config contains LLM-specific configuration
	config config.LLMConfig

	// promptTemplate is the parsed template for creating prompts
	promptTemplate *template.Template

	// client is the Gemini API client for making requests
	client *genai.Client

	// model is the name of the Gemini model to use
	model string
}

// NewPlanGenerator creates a new instance of PlanGenerator with the
// provided dependencies. It loads and parses the prompt template and
// initializes the Gemini client; configuration problems are reported as
// generation.ErrInvalidConfig.
func NewPlanGenerator(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*PlanGenerator, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	if cfg.PromptTemplatePath == "" {
		return nil, fmt.Errorf("%w: prompt template path cannot be empty", generation.ErrInvalidConfig)
	}

	templateContent, err := os.ReadFile(cfg.PromptTemplatePath)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read prompt template from %s: %v",
			generation.ErrInvalidConfig, cfg.PromptTemplatePath, err)
	}

	promptTemplate, err := template.New("plan").Parse(string(templateContent))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse prompt template: %v",
			generation.ErrInvalidConfig, err)
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v",
			generation.ErrInvalidConfig, err)
	}

	return &PlanGenerator{
		logger:         logger,
		config:         cfg,
		promptTemplate: promptTemplate,
		client:         client,
		model:          cfg.ModelName,
	}, nil
}

// Generate starts one streaming generation call. The returned stream
// emits module/task chunks parsed from the model output and ends with a
// terminal summary chunk; errors surface as generation sentinel errors
// through Stream.Err.
func (g *PlanGenerator) Generate(ctx context.Context, input generation.Input) (generation.Stream, generation.Metadata, error) {
	if strings.TrimSpace(input.Topic) == "" {
		return nil, generation.Metadata{}, ErrEmptyTopic
	}

	prepared, meta := g.prepareInput(input)

	prompt, err := g.createPrompt(ctx, prepared)
	if err != nil {
		return nil, meta, err
	}
	meta.PromptFingerprint = fingerprint(prompt)

	streamCtx, cancel := context.WithCancel(ctx)
	s := &stream{
		chunks: make(chan generation.Chunk),
		cancel: cancel,
	}

	go g.consume(streamCtx, s, prompt)

	return s, meta, nil
}

// consume drives the Gemini streaming call, accumulates the streamed
// text, parses the final JSON document, and replays it as structured
// chunks. It always closes the chunk channel.
func (g *PlanGenerator) consume(ctx context.Context, s *stream, prompt string) {
	defer close(s.chunks)

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	}

	var raw strings.Builder
	for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, genai.Text(prompt), cfg) {
		if err != nil {
			s.setErr(mapProviderError(ctx, err))
			return
		}
		raw.WriteString(resp.Text())
	}

	if err := ctx.Err(); err != nil {
		s.setErr(mapProviderError(ctx, err))
		return
	}

	var parsed planSchema
	if err := json.Unmarshal([]byte(raw.String()), &parsed); err != nil {
		s.setErr(fmt.Errorf("%w: failed to parse JSON response: %v",
			generation.ErrInvalidResponse, err))
		return
	}

	tasksTotal := 0
	for _, m := range parsed.Modules {
		select {
		case s.chunks <- generation.Chunk{
			Kind:              generation.ChunkModule,
			ModuleTitle:       m.Title,
			ModuleDescription: m.Description,
			Week:              m.Week,
		}:
		case <-ctx.Done():
			s.setErr(mapProviderError(ctx, ctx.Err()))
			return
		}

		for _, t := range m.Tasks {
			select {
			case s.chunks <- generation.Chunk{
				Kind:             generation.ChunkTask,
				TaskTitle:        t.Title,
				TaskDescription:  t.Description,
				EstimatedMinutes: t.EstimatedMinutes,
			}:
				tasksTotal++
			case <-ctx.Done():
				s.setErr(mapProviderError(ctx, ctx.Err()))
				return
			}
		}
	}

	select {
	case s.chunks <- generation.Chunk{
		Kind:         generation.ChunkTerminal,
		ModulesTotal: len(parsed.Modules),
		TasksTotal:   tasksTotal,
	}:
	case <-ctx.Done():
		s.setErr(mapProviderError(ctx, ctx.Err()))
	}
}

// prepareInput normalizes whitespace and clips the topic and overrides to
// the provider's input limit, recording both adjustments in the metadata.
// The prepared input is what is actually sent; it is never altered again
// between retries of the same job.
func (g *PlanGenerator) prepareInput(input generation.Input) (generation.Input, generation.Metadata) {
	var meta generation.Metadata

	normalize := func(s string) string {
		collapsed := strings.Join(strings.Fields(s), " ")
		if collapsed != s {
			meta.InputNormalized = true
		}
		return collapsed
	}

	input.Topic = normalize(input.Topic)
	input.LearningStyle = normalize(input.LearningStyle)
	input.Overrides = normalize(input.Overrides)

	limit := g.config.MaxInputChars
	clip := func(s string) string {
		if limit > 0 && len(s) > limit {
			meta.InputTruncated = true
			return s[:limit]
		}
		return s
	}

	input.Topic = clip(input.Topic)
	input.Overrides = clip(input.Overrides)

	return input, meta
}

// createPrompt generates a prompt string from the template with the
// provided generation input.
func (g *PlanGenerator) createPrompt(ctx context.Context, input generation.Input) (string, error) {
	data := promptData{
		Topic:         input.Topic,
		SkillLevel:    input.SkillLevel,
		WeeklyHours:   input.WeeklyHours,
		LearningStyle: input.LearningStyle,
		Overrides:     input.Overrides,
	}

	g.logger.DebugContext(ctx, "generating prompt from template",
		"topic_length", len(input.Topic),
		"template_name", g.promptTemplate.Name())

	var promptBuffer bytes.Buffer
	if err := g.promptTemplate.Execute(&promptBuffer, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}

	return promptBuffer.String(), nil
}

// fingerprint returns a stable hex digest of the final prompt.
func fingerprint(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}
