package rag

import (
	"context"
	"log/slog"
	"strings"
	"testing"
)

// stubEmbedder maps text onto a tiny vocabulary-count vector so similarity
// is deterministic without a network call.
type stubEmbedder struct {
	vocab []string
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vocab: []string{"whale", "ocean", "contract", "policy", "return"}}
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	lower := strings.ToLower(text)
	vec := make([]float32, len(s.vocab))
	for i, term := range s.vocab {
		vec[i] = float32(strings.Count(lower, term))
	}
	return vec, nil
}

func (s *stubEmbedder) Dimension() int { return len(s.vocab) }

func openTestIndex(t *testing.T, emb Embedder) *Index {
	t.Helper()
	ix, err := OpenIndex(IndexOptions{
		InMemory: true,
		Embedder: emb,
		Logger:   slog.New(slog.DiscardHandler),
	})
	if err != nil {
		t.Fatalf("OpenIndex: %v", err)
	}
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestIndex_AddFetchLen(t *testing.T) {
	ix := openTestIndex(t, nil)
	ctx := context.Background()

	docs := []Document{
		{ID: "guide_0", Title: "guide.md", Content: "Returns are accepted within 30 days."},
		{ID: "guide_1", Title: "guide.md", Content: "Shipping takes 3 to 5 business days."},
	}
	for _, d := range docs {
		if err := ix.Add(ctx, d); err != nil {
			t.Fatalf("Add(%s): %v", d.ID, err)
		}
	}
	if got := ix.Len(); got != 2 {
		t.Errorf("Len = %d; want 2", got)
	}

	fetched, err := ix.Fetch(ctx, []string{"guide_1", "missing", "guide_0"})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(fetched) != 2 {
		t.Fatalf("Fetch returned %d docs; want 2 (unknown IDs skipped)", len(fetched))
	}
	if fetched[0].ID != "guide_1" || fetched[0].Content != docs[1].Content {
		t.Errorf("fetched[0] = %+v; want guide_1 verbatim", fetched[0])
	}
}

func TestIndex_AddRequiresID(t *testing.T) {
	ix := openTestIndex(t, nil)
	if err := ix.Add(context.Background(), Document{Content: "x"}); err == nil {
		t.Error("Add without ID must fail")
	}
}

func TestIndex_AddOverwrites(t *testing.T) {
	ix := openTestIndex(t, nil)
	ctx := context.Background()

	ix.Add(ctx, Document{ID: "d", Content: "old"})
	ix.Add(ctx, Document{ID: "d", Content: "new"})

	if got := ix.Len(); got != 1 {
		t.Errorf("Len = %d; want 1 after overwrite", got)
	}
	docs, _ := ix.Fetch(ctx, []string{"d"})
	if len(docs) != 1 || docs[0].Content != "new" {
		t.Errorf("Fetch = %+v; want the overwritten content", docs)
	}
}

func TestIndex_VectorSearchRanksBySimilarity(t *testing.T) {
	ix := openTestIndex(t, newStubEmbedder())
	ctx := context.Background()

	ix.Add(ctx, Document{ID: "sea", Content: "The whale swims in the ocean. The ocean is deep."})
	ix.Add(ctx, Document{ID: "legal", Content: "The contract describes the return policy."})

	hits, err := ix.Search(ctx, "whale in the ocean", 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) == 0 || hits[0].ID != "sea" {
		t.Fatalf("hits = %+v; want sea ranked first", hits)
	}
	if hits[0].Score <= 0 {
		t.Errorf("top score = %v; want positive similarity", hits[0].Score)
	}
}

func TestIndex_KeywordFallbackWithoutEmbedder(t *testing.T) {
	ix := openTestIndex(t, nil)
	ctx := context.Background()

	ix.Add(ctx, Document{ID: "returns", Content: "Our return policy allows refunds within 30 days."})
	ix.Add(ctx, Document{ID: "hours", Content: "Store hours are 9am to 5pm on weekdays."})

	hits, err := ix.Search(ctx, "return policy refunds", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "returns" {
		t.Fatalf("hits = %+v; want only the returns doc", hits)
	}
}

func TestIndex_SearchHonorsTopK(t *testing.T) {
	ix := openTestIndex(t, nil)
	ctx := context.Background()
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		ix.Add(ctx, Document{ID: id, Content: "common term " + id})
	}

	hits, err := ix.Search(ctx, "common term", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != 3 {
		t.Errorf("got %d hits; want topK = 3", len(hits))
	}

	hits, err = ix.Search(ctx, "common term", 0)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(hits) != DefaultTopK {
		t.Errorf("got %d hits; want DefaultTopK = %d", len(hits), DefaultTopK)
	}
}

func TestIndex_EmptyQuery(t *testing.T) {
	ix := openTestIndex(t, nil)
	ix.Add(context.Background(), Document{ID: "a", Content: "anything"})

	hits, err := ix.Search(context.Background(), "   ", 5)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if hits != nil {
		t.Errorf("hits = %+v; want none for an empty query", hits)
	}
}
