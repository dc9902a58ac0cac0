package domain

import "time"

// NoMedicalText is emitted verbatim by the model when the input has no clinical content.
const NoMedicalText = "<|no_medical_text|>"

// DefaultRole is used when the caller does not name a clinician role.
const DefaultRole = "physician"

type Reference struct {
	SummarySentence       string  `json:"summary_sentence"`
	MatchedSourceSentence string  `json:"matched_source_sentence"`
	SimilarityScore       float64 `json:"similarity_score"`
}

type Budget struct {
	PromptTokens     int
	GenerationTokens int
	// Overflow is set when the prompt alone does not fit the context window.
	Overflow bool
}

type SummaryResult struct {
	Summary    string
	Tokens     int64
	Duration   time.Duration
	References []Reference
	Budget     Budget
}

// IsNoMedicalText reports whether the model flagged the input as non-clinical.
func (r SummaryResult) IsNoMedicalText() bool {
	return r.Summary == NoMedicalText
}

type CompletionRequest struct {
	SystemInstruction string
	UserPrompt        string
	Temperature       float64
	MaxOutputTokens   int
}

type Completion struct {
	Text string
	// TotalTokens is zero when the service does not report usage.
	TotalTokens int64
}
