// Package ingest loads a processed video's captioned chunks into the
// vector index. The offline pipeline writes the metadata document; this
// package only consumes it.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/store"
)

// MetadataReader is the slice of the state store the indexer needs.
type MetadataReader interface {
	ReadMetadata(ctx context.Context, videoID string) (store.VideoMetadata, error)
}

// BatchEmbedder generates embeddings for a batch of captions.
type BatchEmbedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Indexer embeds chunk captions and upserts them into the vector index.
type Indexer struct {
	metadata MetadataReader
	embedder BatchEmbedder
	vectors  retrieval.VectorStore
	logger   *slog.Logger
}

// NewIndexer creates an Indexer with the given dependencies.
func NewIndexer(metadata MetadataReader, embedder BatchEmbedder, vectors retrieval.VectorStore, logger *slog.Logger) *Indexer {
	return &Indexer{
		metadata: metadata,
		embedder: embedder,
		vectors:  vectors,
		logger:   logger,
	}
}

// IndexVideo indexes every captioned chunk of a finished video and
// returns the number of records written. Records are keyed
// videoID#chunkNumber, so re-indexing replaces in place.
func (ix *Indexer) IndexVideo(ctx context.Context, videoID string) (int, error) {
	meta, err := ix.metadata.ReadMetadata(ctx, videoID)
	if err != nil {
		return 0, err
	}
	if meta.ProcessingStatus != store.VideoFinished {
		return 0, fmt.Errorf("video %s is %s, not %s", videoID, meta.ProcessingStatus, store.VideoFinished)
	}
	if len(meta.Chunks) == 0 {
		return 0, nil
	}

	captions := make([]string, len(meta.Chunks))
	for i, chunk := range meta.Chunks {
		captions[i] = chunk.Caption
	}

	embeddings, err := ix.embedder.EmbedBatch(ctx, captions)
	if err != nil {
		return 0, fmt.Errorf("embedding captions for %s: %w", videoID, err)
	}

	now := time.Now().UTC()
	records := make([]retrieval.Record, len(meta.Chunks))
	for i, chunk := range meta.Chunks {
		records[i] = retrieval.Record{
			ID:              fmt.Sprintf("%s#%d", videoID, chunk.ChunkNumber),
			VideoID:         videoID,
			ChunkNumber:     chunk.ChunkNumber,
			StartTimestamp:  chunk.StartTimestamp,
			EndTimestamp:    chunk.EndTimestamp,
			NormalizedStart: chunk.NormalizedStartTime,
			NormalizedEnd:   chunk.NormalizedEndTime,
			Caption:         chunk.Caption,
			Embedding:       embeddings[i],
			CreatedAt:       now,
		}
	}

	if err := ix.vectors.Upsert(records); err != nil {
		return 0, fmt.Errorf("upserting records for %s: %w", videoID, err)
	}

	ix.logger.Info("video indexed",
		slog.String("video_id", videoID),
		slog.Int("records", len(records)))

	return len(records), nil
}
