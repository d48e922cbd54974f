package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/c360studio/clausereview/model"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/redis/go-redis/v9"
)

// chunkCacheTTL bounds how long an embedding stays in the Redis front
// cache before falling back to the JetStream-backed source of truth.
const chunkCacheTTL = 30 * time.Minute

// ChunkStore layers a Redis read-through cache in front of the durable
// document_chunks bucket, since embeddings are re-read far more often
// (every skill invocation against a clause) than they are written (once,
// at document ingestion).
type ChunkStore struct {
	store *Store
	redis *redis.Client
}

// NewChunkStore wraps a Store with an optional Redis cache. A nil redis
// client disables caching and every read goes straight to JetStream.
func NewChunkStore(s *Store, rdb *redis.Client) *ChunkStore {
	return &ChunkStore{store: s, redis: rdb}
}

func chunkKey(documentID, chunkID string) string {
	return documentID + "." + chunkID
}

func chunkCacheKey(documentID, chunkID string) string {
	return "clausereview:chunk:" + documentID + ":" + chunkID
}

// PutChunk stores a chunk durably and invalidates any stale cache entry.
func (c *ChunkStore) PutChunk(ctx context.Context, chunk *model.DocumentChunk) error {
	data, err := json.Marshal(chunk)
	if err != nil {
		return fmt.Errorf("marshal chunk: %w", err)
	}
	if _, err := c.store.documentChunks.Put(ctx, chunkKey(chunk.DocumentID, chunk.ID), data); err != nil {
		return fmt.Errorf("put chunk: %w", err)
	}
	if c.redis != nil {
		if err := c.redis.Set(ctx, chunkCacheKey(chunk.DocumentID, chunk.ID), data, chunkCacheTTL).Err(); err != nil {
			// Cache is an optimization, not a source of truth; a write
			// failure here must not fail document ingestion.
			return nil
		}
	}
	return nil
}

// GetChunk reads a chunk, preferring the Redis cache when configured.
func (c *ChunkStore) GetChunk(ctx context.Context, documentID, chunkID string) (*model.DocumentChunk, error) {
	if c.redis != nil {
		if cached, err := c.redis.Get(ctx, chunkCacheKey(documentID, chunkID)).Bytes(); err == nil {
			var chunk model.DocumentChunk
			if err := json.Unmarshal(cached, &chunk); err == nil {
				return &chunk, nil
			}
		}
	}

	entry, err := c.store.documentChunks.Get(ctx, chunkKey(documentID, chunkID))
	if err != nil {
		if isNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get chunk: %w", err)
	}
	var chunk model.DocumentChunk
	if err := json.Unmarshal(entry.Value(), &chunk); err != nil {
		return nil, fmt.Errorf("unmarshal chunk: %w", err)
	}
	if c.redis != nil {
		_ = c.redis.Set(ctx, chunkCacheKey(documentID, chunkID), entry.Value(), chunkCacheTTL).Err()
	}
	return &chunk, nil
}

// ListChunks returns every chunk stored for a document, ordered as stored
// (no ordering guarantee beyond key iteration — callers that need document
// order should sort by Source.Start).
func (c *ChunkStore) ListChunks(ctx context.Context, documentID string) ([]*model.DocumentChunk, error) {
	keys, err := c.store.documentChunks.Keys(ctx)
	if err != nil {
		if err == jetstream.ErrNoKeysFound {
			return nil, nil
		}
		return nil, fmt.Errorf("list chunk keys: %w", err)
	}

	prefix := documentID + "."
	out := make([]*model.DocumentChunk, 0)
	for _, key := range keys {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		entry, err := c.store.documentChunks.Get(ctx, key)
		if err != nil {
			continue
		}
		var chunk model.DocumentChunk
		if err := json.Unmarshal(entry.Value(), &chunk); err != nil {
			continue
		}
		out = append(out, &chunk)
	}
	return out, nil
}
