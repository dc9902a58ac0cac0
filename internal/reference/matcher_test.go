package reference_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"

	"clinisum/internal/domain"
	"clinisum/internal/reference"
)

type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float64
	calls   [][]string
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, slices.Clone(texts))
	if s.err != nil {
		return nil, s.err
	}

	out := make([][]float64, len(texts))
	for i, text := range texts {
		v, ok := s.vectors[text]
		if !ok {
			v = []float64{0, 0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

func newMatcher(e reference.Embedder) *reference.Matcher {
	return reference.NewMatcher(e, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestMatchUsesSingleBatchInOrder(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Fever noted.":           {1, 0, 0, 0},
		"Needs an X-ray.":        {0, 1, 0, 0},
		"The patient has fever.": {1, 0.1, 0, 0},
		"Order chest X-ray.":     {0, 1, 0.1, 0},
	}}

	refs, err := newMatcher(e).Match(
		context.Background(),
		"Fever noted. Needs an X-ray.",
		"The patient has fever. Order chest X-ray.",
		reference.DefaultThreshold,
	)
	if err != nil {
		t.Fatalf("match: %v", err)
	}

	if len(e.calls) != 1 {
		t.Fatalf("expected exactly one embedding call, got %d", len(e.calls))
	}
	wantBatch := []string{"Fever noted.", "Needs an X-ray.", "The patient has fever.", "Order chest X-ray."}
	if !slices.Equal(e.calls[0], wantBatch) {
		t.Fatalf("unexpected batch: %q", e.calls[0])
	}

	want := []domain.Reference{
		{SummarySentence: "Fever noted.", MatchedSourceSentence: "The patient has fever.", SimilarityScore: 1},
		{SummarySentence: "Needs an X-ray.", MatchedSourceSentence: "Order chest X-ray.", SimilarityScore: 1},
	}
	if !slices.Equal(refs, want) {
		t.Fatalf("unexpected references: %+v", refs)
	}
}

func TestMatchThresholdBoundary(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Exact.": {1, 1, 1, 1},
		"Below.": {1, 1, 1, 1},
		// cosine with {1,1,1,1} is 7/10
		"Source exact.": {3, 4, 0, 0},
	}}

	refs, err := newMatcher(e).Match(context.Background(), "Exact.", "Source exact.", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 1 || refs[0].SimilarityScore != 0.7 {
		t.Fatalf("expected score equal to threshold to be kept, got %+v", refs)
	}

	// cosine is about 0.699, which rounds to 0.70 but must still be dropped.
	e.vectors["Source below."] = []float64{3, 4, 0, -0.01}
	refs, err = newMatcher(e).Match(context.Background(), "Below.", "Source below.", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected score below threshold to be dropped, got %+v", refs)
	}
}

func TestMatchTiesPickFirstSource(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Cough.":        {1, 0, 0, 0},
		"Cough first.":  {2, 0, 0, 0},
		"Cough second.": {3, 0, 0, 0},
	}}

	refs, err := newMatcher(e).Match(context.Background(), "Cough.", "Cough first. Cough second.", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 1 || refs[0].MatchedSourceSentence != "Cough first." {
		t.Fatalf("expected first maximal source sentence, got %+v", refs)
	}
}

func TestMatchScoresStayInRange(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Opposite.": {-1, 0, 0, 0},
		"Source.":   {1, 0, 0, 0},
		"Same.":     {0.1, 0.2, 0.3, 0.4},
		"Twin.":     {0.1, 0.2, 0.3, 0.4},
	}}

	refs, err := newMatcher(e).Match(context.Background(), "Opposite. Same.", "Source. Twin.", -1)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 2 {
		t.Fatalf("expected a reference per summary sentence, got %+v", refs)
	}
	for _, r := range refs {
		if r.SimilarityScore < -1 || r.SimilarityScore > 1 {
			t.Fatalf("score out of range: %+v", r)
		}
	}
}

func TestMatchZeroVectorIsNotSimilar(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Blank.":  {0, 0, 0, 0},
		"Source.": {1, 0, 0, 0},
	}}

	refs, err := newMatcher(e).Match(context.Background(), "Blank.", "Source.", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected zero vector to produce no reference, got %+v", refs)
	}
}

func TestMatchEmptySummary(t *testing.T) {
	e := &stubEmbedder{}

	refs, err := newMatcher(e).Match(context.Background(), "", "Patient is stable. Discharge tomorrow.", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if refs == nil || len(refs) != 0 {
		t.Fatalf("expected empty non-nil references, got %#v", refs)
	}
	if len(e.calls) != 1 || len(e.calls[0]) != 2 {
		t.Fatalf("expected one batch with only source sentences, got %q", e.calls)
	}
}

func TestMatchBothEmptySkipsEmbedding(t *testing.T) {
	e := &stubEmbedder{}

	refs, err := newMatcher(e).Match(context.Background(), "  ", "", 0.7)
	if err != nil {
		t.Fatalf("match: %v", err)
	}
	if len(refs) != 0 {
		t.Fatalf("expected no references, got %+v", refs)
	}
	if len(e.calls) != 0 {
		t.Fatalf("expected no embedding calls, got %d", len(e.calls))
	}
}

func TestMatchPropagatesEmbeddingError(t *testing.T) {
	cause := &domain.ServiceError{Service: domain.ServiceEmbedding, Err: errors.New("quota exceeded")}
	e := &stubEmbedder{err: cause}

	_, err := newMatcher(e).Match(context.Background(), "Fever.", "Fever noted.", 0.7)
	var svcErr *domain.ServiceError
	if !errors.As(err, &svcErr) || svcErr.Service != domain.ServiceEmbedding {
		t.Fatalf("expected embedding service error, got %v", err)
	}
}

type shortEmbedder struct{}

func (shortEmbedder) Embed(context.Context, []string) ([][]float64, error) {
	return [][]float64{{1}}, nil
}

func TestMatchRejectsMisalignedBatch(t *testing.T) {
	_, err := newMatcher(shortEmbedder{}).Match(context.Background(), "A. B.", "C.", 0.7)
	if err == nil {
		t.Fatalf("expected error when the embedder drops entries")
	}
}

func TestMatchRejectsMixedDimensions(t *testing.T) {
	e := &stubEmbedder{vectors: map[string][]float64{
		"Fever noted.":           {1, 0},
		"The patient has fever.": {1, 0, 1e-4},
	}}

	refs, err := newMatcher(e).Match(context.Background(), "Fever noted.", "The patient has fever.", 0.7)
	if err == nil {
		t.Fatalf("expected error for vectors of different length, got %v", refs)
	}
}
