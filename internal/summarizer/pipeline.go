package summarizer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"clinisum/internal/domain"
	"clinisum/internal/reference"
)

const (
	DefaultModel           = "gpt-3.5-turbo"
	DefaultMaxModelContext = 4096
	DefaultSafetyBuffer    = 100
	DefaultMinOutputTokens = 200
	DefaultTemperature     = 0.5
)

// Options holds the generation and attribution settings of a Pipeline.
type Options struct {
	Model           string
	MaxModelContext int
	SafetyBuffer    int
	MinOutputTokens int
	Temperature     float64
	Threshold       float64
}

// DefaultOptions returns the settings used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		Model:           DefaultModel,
		MaxModelContext: DefaultMaxModelContext,
		SafetyBuffer:    DefaultSafetyBuffer,
		MinOutputTokens: DefaultMinOutputTokens,
		Temperature:     DefaultTemperature,
		Threshold:       reference.DefaultThreshold,
	}
}

// Pipeline sizes the prompt, generates the summary and matches references.
// It holds no per-request state and is safe for concurrent use.
type Pipeline struct {
	completer Completer
	counter   TokenCounter
	matcher   Matcher
	opts      Options
	log       *slog.Logger
}

// NewPipeline wires the collaborators of a Pipeline.
func NewPipeline(
	completer Completer,
	counter TokenCounter,
	matcher Matcher,
	opts Options,
	log *slog.Logger,
) *Pipeline {
	return &Pipeline{
		completer: completer,
		counter:   counter,
		matcher:   matcher,
		opts:      opts,
		log:       log,
	}
}

// Summarize summarizes text for role. A blank role means domain.DefaultRole.
func (p *Pipeline) Summarize(
	ctx context.Context,
	text string,
	role string,
) (domain.SummaryResult, error) {
	if strings.TrimSpace(text) == "" {
		return domain.SummaryResult{}, domain.ErrEmptyInput
	}

	role = strings.TrimSpace(role)
	if role == "" {
		role = domain.DefaultRole
	}

	prompt := buildPrompt(text, role)

	promptTokens, err := p.counter.Count(prompt, p.opts.Model)
	if err != nil {
		return domain.SummaryResult{}, fmt.Errorf("count prompt tokens: %w", err)
	}

	budget := computeBudget(promptTokens, p.opts)
	if budget.Overflow {
		p.log.WarnContext(ctx, "Prompt exceeds context window",
			"promptTokens", budget.PromptTokens,
			"maxModelContext", p.opts.MaxModelContext,
			"safetyBuffer", p.opts.SafetyBuffer,
			"generationTokens", budget.GenerationTokens,
			"model", p.opts.Model)
	}

	start := time.Now()
	completion, err := p.completer.Complete(ctx, domain.CompletionRequest{
		SystemInstruction: systemInstruction,
		UserPrompt:        prompt,
		Temperature:       p.opts.Temperature,
		MaxOutputTokens:   budget.GenerationTokens,
	})
	duration := time.Since(start)
	if err != nil {
		return domain.SummaryResult{}, &domain.GenerationError{Err: err}
	}

	summary := strings.TrimSpace(completion.Text)

	references, err := p.matcher.Match(ctx, summary, text, p.opts.Threshold)
	if err != nil {
		return domain.SummaryResult{}, &domain.GenerationError{Err: err}
	}

	p.log.DebugContext(ctx, "Summary is generated",
		"role", role,
		"promptTokens", budget.PromptTokens,
		"generationTokens", budget.GenerationTokens,
		"totalTokens", completion.TotalTokens,
		"durationSeconds", duration.Seconds(),
		"references", len(references),
		"noMedicalText", summary == domain.NoMedicalText)

	return domain.SummaryResult{
		Summary:    summary,
		Tokens:     completion.TotalTokens,
		Duration:   duration,
		References: references,
		Budget:     budget,
	}, nil
}
