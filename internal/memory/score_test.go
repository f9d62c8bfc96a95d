package memory

import "testing"

func TestCosine_ZeroForMismatchedOrMissing(t *testing.T) {
	if cosine(nil, []float32{1, 2}) != 0 {
		t.Fatal("expected 0 for missing a")
	}
	if cosine([]float32{1, 2}, nil) != 0 {
		t.Fatal("expected 0 for missing b")
	}
	if cosine([]float32{1, 2}, []float32{1, 2, 3}) != 0 {
		t.Fatal("expected 0 for mismatched length")
	}
	if cosine([]float32{0, 0}, []float32{1, 2}) != 0 {
		t.Fatal("expected 0 for zero-norm vector")
	}
}

func TestCosine_IdenticalVectorsScoreOne(t *testing.T) {
	got := cosine([]float32{1, 2, 3}, []float32{1, 2, 3})
	if got < 0.999999 || got > 1.000001 {
		t.Fatalf("expected ~1.0, got %v", got)
	}
}

func TestBM25Scorer_FavorsHigherTermFrequency(t *testing.T) {
	docs := map[string]docIndex{
		"a": newDocIndex([]string{"cat", "dog", "cat"}),
		"b": newDocIndex([]string{"cat"}),
		"c": newDocIndex([]string{"fish"}),
	}
	scorer := newBM25Scorer(docs)

	scoreA := scorer.score("a", []string{"cat"})
	scoreB := scorer.score("b", []string{"cat"})
	scoreC := scorer.score("c", []string{"cat"})

	if scoreC != 0 {
		t.Fatalf("doc without the query term must score 0, got %v", scoreC)
	}
	if scoreA <= scoreB {
		t.Fatalf("doc with higher term frequency must score higher: a=%v b=%v", scoreA, scoreB)
	}
}
