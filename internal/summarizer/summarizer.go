package summarizer

import (
	"context"

	"clinisum/internal/domain"
)

// Completer generates text for a system/user prompt pair.
type Completer interface {
	Complete(ctx context.Context, req domain.CompletionRequest) (domain.Completion, error)
}

// TokenCounter estimates the token length of text for a model.
type TokenCounter interface {
	Count(text, model string) (int, error)
}

// Matcher attributes summary sentences back to the source text.
type Matcher interface {
	Match(ctx context.Context, summary, source string, threshold float64) ([]domain.Reference, error)
}

// Summarizer produces a role-tailored summary with references.
type Summarizer interface {
	Summarize(ctx context.Context, text, role string) (domain.SummaryResult, error)
}
