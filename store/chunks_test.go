package store

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/c360studio/clausereview/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestChunkStoreWithoutCache(t *testing.T) {
	s := newTestStore(t)
	cs := NewChunkStore(s, nil)
	ctx := context.Background()

	chunk := &model.DocumentChunk{
		ID:         "c1",
		DocumentID: "doc-1",
		ClauseID:   "4.1",
		Text:       "Each party shall provide sixty (60) days notice.",
		Embedding:  []float32{0.1, 0.2, 0.3},
		Source:     model.TextSpan{Start: 100, End: 150},
	}
	require.NoError(t, cs.PutChunk(ctx, chunk))

	got, err := cs.GetChunk(ctx, "doc-1", "c1")
	require.NoError(t, err)
	require.Equal(t, chunk.Text, got.Text)
}

func TestChunkStoreListChunks(t *testing.T) {
	s := newTestStore(t)
	cs := NewChunkStore(s, nil)
	ctx := context.Background()

	require.NoError(t, cs.PutChunk(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc-1", Text: "a"}))
	require.NoError(t, cs.PutChunk(ctx, &model.DocumentChunk{ID: "c2", DocumentID: "doc-1", Text: "b"}))
	require.NoError(t, cs.PutChunk(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc-2", Text: "c"}))

	chunks, err := cs.ListChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, chunks, 2)
}

func TestGetChunkNotFound(t *testing.T) {
	s := newTestStore(t)
	cs := NewChunkStore(s, nil)

	_, err := cs.GetChunk(context.Background(), "doc-1", "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

// newCachedChunkStore backs the ChunkStore's cache with a miniredis
// server, so the Redis read-through and invalidation branches run in the
// suite without an external broker.
func newCachedChunkStore(t *testing.T) (*ChunkStore, *miniredis.Miniredis) {
	t.Helper()
	s := newTestStore(t)
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewChunkStore(s, rdb), mr
}

func TestChunkStoreCachePopulatedOnPut(t *testing.T) {
	cs, mr := newCachedChunkStore(t)
	ctx := context.Background()

	chunk := &model.DocumentChunk{ID: "c1", DocumentID: "doc-1", Text: "sixty (60) days notice"}
	require.NoError(t, cs.PutChunk(ctx, chunk))

	require.True(t, mr.Exists(chunkCacheKey("doc-1", "c1")))

	got, err := cs.GetChunk(ctx, "doc-1", "c1")
	require.NoError(t, err)
	require.Equal(t, chunk.Text, got.Text)
}

func TestChunkStoreReadThroughRepopulatesCache(t *testing.T) {
	cs, mr := newCachedChunkStore(t)
	ctx := context.Background()

	require.NoError(t, cs.PutChunk(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc-1", Text: "a"}))
	mr.FlushAll()
	require.False(t, mr.Exists(chunkCacheKey("doc-1", "c1")))

	got, err := cs.GetChunk(ctx, "doc-1", "c1")
	require.NoError(t, err)
	require.Equal(t, "a", got.Text)

	// The miss fell through to JetStream and wrote the entry back.
	require.True(t, mr.Exists(chunkCacheKey("doc-1", "c1")))
}

func TestChunkStoreServesFromCacheWhenBackingEntryGone(t *testing.T) {
	cs, _ := newCachedChunkStore(t)
	ctx := context.Background()

	require.NoError(t, cs.PutChunk(ctx, &model.DocumentChunk{ID: "c1", DocumentID: "doc-1", Text: "cached"}))
	require.NoError(t, cs.store.documentChunks.Delete(ctx, chunkKey("doc-1", "c1")))

	got, err := cs.GetChunk(ctx, "doc-1", "c1")
	require.NoError(t, err)
	require.Equal(t, "cached", got.Text)
}
