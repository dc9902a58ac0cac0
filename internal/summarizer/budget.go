package summarizer

import "clinisum/internal/domain"

// computeBudget sizes the output cap so prompt and output fit the context window.
// The cap never drops below minOutput, even when the prompt alone overflows;
// that case is flagged instead of truncating the input.
func computeBudget(promptTokens int, opts Options) domain.Budget {
	available := opts.MaxModelContext - promptTokens - opts.SafetyBuffer

	return domain.Budget{
		PromptTokens:     promptTokens,
		GenerationTokens: max(opts.MinOutputTokens, available),
		Overflow:         available < 0,
	}
}
