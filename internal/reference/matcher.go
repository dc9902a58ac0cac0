// Package reference attributes summary sentences to the source sentences they
// most likely came from, using embedding cosine similarity.
package reference

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"clinisum/internal/domain"
	"clinisum/internal/sentence"
)

// DefaultThreshold is the minimum similarity for a reference to be kept.
const DefaultThreshold = 0.7

// Embedder returns one vector per text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// Matcher aligns summary sentences with source sentences.
type Matcher struct {
	embedder Embedder
	log      *slog.Logger
}

// NewMatcher returns a Matcher that embeds through embedder.
func NewMatcher(embedder Embedder, log *slog.Logger) *Matcher {
	return &Matcher{embedder: embedder, log: log}
}

// Match pairs every summary sentence with its most similar source sentence
// and keeps the pairs scoring at least threshold.
func (m *Matcher) Match(
	ctx context.Context,
	summary string,
	source string,
	threshold float64,
) ([]domain.Reference, error) {
	summarySentences := sentence.Split(summary)
	sourceSentences := sentence.Split(source)

	all := make([]string, 0, len(summarySentences)+len(sourceSentences))
	all = append(all, summarySentences...)
	all = append(all, sourceSentences...)

	references := []domain.Reference{}
	if len(all) == 0 {
		return references, nil
	}

	// Both sides go into one batch to save a round trip.
	embeddings, err := m.embedder.Embed(ctx, all)
	if err != nil {
		return nil, fmt.Errorf("embed sentences: %w", err)
	}
	if len(embeddings) != len(all) {
		return nil, fmt.Errorf(
			"embed sentences: got %d vectors for %d sentences",
			len(embeddings),
			len(all),
		)
	}

	dims := len(embeddings[0])
	for i, v := range embeddings {
		if len(v) != dims {
			return nil, fmt.Errorf(
				"embed sentences: vector %d has %d dimensions, want %d",
				i,
				len(v),
				dims,
			)
		}
	}

	summaryEmbeddings := embeddings[:len(summarySentences)]
	sourceEmbeddings := embeddings[len(summarySentences):]

	similarity := similarityMatrix(summaryEmbeddings, sourceEmbeddings)

	for i, summarySentence := range summarySentences {
		j, score, ok := argmax(similarity[i])
		if !ok || score < threshold {
			continue
		}

		references = append(references, domain.Reference{
			SummarySentence:       summarySentence,
			MatchedSourceSentence: sourceSentences[j],
			SimilarityScore:       round2(score),
		})
	}

	m.log.DebugContext(ctx, "References are matched",
		"summarySentences", len(summarySentences),
		"sourceSentences", len(sourceSentences),
		"references", len(references),
		"threshold", threshold)

	return references, nil
}

func similarityMatrix(rows, cols [][]float64) [][]float64 {
	colNorms := make([]float64, len(cols))
	for j, c := range cols {
		colNorms[j] = norm(c)
	}

	matrix := make([][]float64, len(rows))
	for i, r := range rows {
		rowNorm := norm(r)
		matrix[i] = make([]float64, len(cols))
		for j, c := range cols {
			matrix[i][j] = cosine(r, c, rowNorm, colNorms[j])
		}
	}
	return matrix
}

// cosine treats zero-magnitude vectors as dissimilar to everything.
func cosine(a, b []float64, normA, normB float64) float64 {
	if normA == 0 || normB == 0 {
		return 0
	}

	var dot float64
	for k := range a {
		dot += a[k] * b[k]
	}

	return max(-1, min(1, dot/(normA*normB)))
}

func norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}

// argmax returns the first index holding the maximum value.
func argmax(row []float64) (int, float64, bool) {
	best := -1
	bestScore := math.Inf(-1)

	for j, score := range row {
		if score > bestScore {
			best, bestScore = j, score
		}
	}

	return best, bestScore, best >= 0
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
