package embcache

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain"
)

func TestEmbed_MissThenHit(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.1, 0.2}, TotalTokens: 10}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	first, err := ce.Embed(ctx, "pointer arithmetic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.TotalTokens != 10 || ms.sets != 1 {
		t.Fatalf("miss: tokens=%d sets=%d", first.TotalTokens, ms.sets)
	}

	second, err := ce.Embed(ctx, "pointer arithmetic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit must report zero tokens, got %d", second.TotalTokens)
	}
	if second.Embedding[1] != 0.2 {
		t.Errorf("cached vector = %v", second.Embedding)
	}
}

func TestEmbed_ModelScopesKey(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ms := &mockKVStore{data: map[string][]byte{}}
	a := New(inner, ms, "model-a", nil, zap.NewNop())
	b := New(inner, ms, "model-b", nil, zap.NewNop())
	if a.cacheKey("x") == b.cacheKey("x") {
		t.Error("different models must not share cache keys")
	}
}

func TestCacheKey_OutsideCollectionKeyspaces(t *testing.T) {
	ce := New(&mockEmbedder{}, &mockKVStore{data: map[string][]byte{}}, "text-embedding-3-small", nil, zap.NewNop())
	key := ce.cacheKey("Explain pointer arithmetic.")

	if !strings.HasPrefix(key, domain.CacheKeyPrefix+"emb:") {
		t.Fatalf("key %q not under %q", key, domain.CacheKeyPrefix)
	}
	// A collection owns "pastq:<name>:*"; the segment holding the cache
	// must not be a name any collection can take.
	segment, _, _ := strings.Cut(strings.TrimPrefix(key, domain.KeyPrefix), ":")
	if db.IsValidCollectionName(segment) {
		t.Errorf("collection %q would share the cache keyspace", segment)
	}
	for _, name := range []string{"emb_cache", "emb", "cache_questions"} {
		if strings.HasPrefix(key, domain.KeyPrefix+name+":") {
			t.Errorf("collection %q shares the cache keyspace", name)
		}
	}
}

func TestEmbed_InnerError(t *testing.T) {
	inner := &mockEmbedder{err: errors.New("provider down")}
	ce, ms := newTestCachedEmbedder(t, inner)

	if _, err := ce.Embed(context.Background(), "q"); err == nil {
		t.Fatal("expected error")
	}
	if ms.sets != 0 {
		t.Error("errors must not be cached")
	}
}

func TestEmbed_StoreErrorFallsThrough(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{1}}}
	ce, ms := newTestCachedEmbedder(t, inner)
	ms.getErr = errors.New("redis down")

	res, err := ce.Embed(context.Background(), "q")
	if err != nil {
		t.Fatalf("cache failure must not fail the embed: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("embedding = %v", res.Embedding)
	}
}

func TestBatchEmbed_OnlyMissesReachInner(t *testing.T) {
	inner := &mockEmbedder{result: domain.EmbeddingResult{Embedding: []float32{0.5}, TotalTokens: 2}}
	ce, _ := newTestCachedEmbedder(t, inner)
	ctx := context.Background()

	if _, err := ce.Embed(ctx, "cached"); err != nil {
		t.Fatal(err)
	}

	res, err := ce.BatchEmbed(ctx, []string{"new-1", "cached", "new-2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(inner.batchTexts) != 1 {
		t.Fatalf("expected one inner batch, got %d", len(inner.batchTexts))
	}
	if got := inner.batchTexts[0]; len(got) != 2 || got[0] != "new-1" || got[1] != "new-2" {
		t.Errorf("inner batch = %v", got)
	}
	if len(res.Embeddings) != 3 || res.Embeddings[1] == nil {
		t.Errorf("embeddings = %v", res.Embeddings)
	}
	if res.TotalTokens != 4 {
		t.Errorf("tokens = %d, want 4", res.TotalTokens)
	}
}

func TestBytesToVector_Invalid(t *testing.T) {
	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for truncated data")
	}
}
