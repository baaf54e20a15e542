package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/store"
)

type fakeMetadataReader struct {
	readFunc func(ctx context.Context, videoID string) (store.VideoMetadata, error)
}

func (f *fakeMetadataReader) ReadMetadata(ctx context.Context, videoID string) (store.VideoMetadata, error) {
	return f.readFunc(ctx, videoID)
}

type fakeBatchEmbedder struct {
	embedFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (f *fakeBatchEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return f.embedFunc(ctx, texts)
}

type fakeVectorStore struct {
	upserted []retrieval.Record
	upsertFn func(records []retrieval.Record) error
}

func (f *fakeVectorStore) Upsert(records []retrieval.Record) error {
	f.upserted = append(f.upserted, records...)
	if f.upsertFn != nil {
		return f.upsertFn(records)
	}
	return nil
}
func (f *fakeVectorStore) Search(videoID string, vector []float32, topK int) ([]retrieval.ScoredRecord, error) {
	return nil, nil
}
func (f *fakeVectorStore) Count(videoID string) (int, error) { return 0, nil }
func (f *fakeVectorStore) DeleteVideo(videoID string) error  { return nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func finishedMeta(videoID string) store.VideoMetadata {
	return store.VideoMetadata{
		VideoID:          videoID,
		ProcessingStatus: store.VideoFinished,
		Chunks: []store.ChunkMetadata{
			{ChunkNumber: 0, Caption: "a chef dices onions", StartTimestamp: "00:00:00", EndTimestamp: "00:00:10", NormalizedStartTime: 0.0, NormalizedEndTime: 0.1},
			{ChunkNumber: 1, Caption: "pasta boils in a pot", StartTimestamp: "00:00:10", EndTimestamp: "00:00:20", NormalizedStartTime: 0.1, NormalizedEndTime: 0.2},
		},
	}
}

func countingEmbedder() *fakeBatchEmbedder {
	return &fakeBatchEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			out := make([][]float32, len(texts))
			for i := range texts {
				out[i] = []float32{float32(i)}
			}
			return out, nil
		},
	}
}

func TestIndexVideo(t *testing.T) {
	reader := &fakeMetadataReader{
		readFunc: func(ctx context.Context, videoID string) (store.VideoMetadata, error) {
			return finishedMeta(videoID), nil
		},
	}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(reader, countingEmbedder(), vectors, discardLogger())

	n, err := ix.IndexVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("IndexVideo: %v", err)
	}
	if n != 2 {
		t.Fatalf("indexed %d records, want 2", n)
	}
	if len(vectors.upserted) != 2 {
		t.Fatalf("upserted %d records, want 2", len(vectors.upserted))
	}

	first := vectors.upserted[0]
	if first.ID != "vid-1#0" {
		t.Errorf("ID = %q, want vid-1#0", first.ID)
	}
	if first.Caption != "a chef dices onions" {
		t.Errorf("Caption = %q", first.Caption)
	}
	if first.NormalizedStart != 0.0 || first.NormalizedEnd != 0.1 {
		t.Errorf("normalized = (%f, %f), want (0.0, 0.1)", first.NormalizedStart, first.NormalizedEnd)
	}
	if first.CreatedAt.IsZero() {
		t.Error("CreatedAt not set")
	}
	if vectors.upserted[1].ID != "vid-1#1" {
		t.Errorf("second ID = %q, want vid-1#1", vectors.upserted[1].ID)
	}
}

func TestIndexVideo_RequiresFinished(t *testing.T) {
	reader := &fakeMetadataReader{
		readFunc: func(ctx context.Context, videoID string) (store.VideoMetadata, error) {
			meta := finishedMeta(videoID)
			meta.ProcessingStatus = store.VideoProcessing
			return meta, nil
		},
	}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(reader, countingEmbedder(), vectors, discardLogger())

	_, err := ix.IndexVideo(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected error for unfinished video")
	}
	if len(vectors.upserted) != 0 {
		t.Error("records upserted for unfinished video")
	}
}

func TestIndexVideo_UnknownVideo(t *testing.T) {
	reader := &fakeMetadataReader{
		readFunc: func(ctx context.Context, videoID string) (store.VideoMetadata, error) {
			return store.VideoMetadata{}, store.ErrNotFound
		},
	}
	ix := NewIndexer(reader, countingEmbedder(), &fakeVectorStore{}, discardLogger())

	_, err := ix.IndexVideo(context.Background(), "missing")
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestIndexVideo_NoChunks(t *testing.T) {
	reader := &fakeMetadataReader{
		readFunc: func(ctx context.Context, videoID string) (store.VideoMetadata, error) {
			return store.VideoMetadata{VideoID: videoID, ProcessingStatus: store.VideoFinished}, nil
		},
	}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(reader, countingEmbedder(), vectors, discardLogger())

	n, err := ix.IndexVideo(context.Background(), "vid-1")
	if err != nil {
		t.Fatalf("IndexVideo: %v", err)
	}
	if n != 0 {
		t.Errorf("indexed %d records, want 0", n)
	}
}

func TestIndexVideo_EmbedFailure(t *testing.T) {
	reader := &fakeMetadataReader{
		readFunc: func(ctx context.Context, videoID string) (store.VideoMetadata, error) {
			return finishedMeta(videoID), nil
		},
	}
	embedder := &fakeBatchEmbedder{
		embedFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("rate limited")
		},
	}
	vectors := &fakeVectorStore{}
	ix := NewIndexer(reader, embedder, vectors, discardLogger())

	_, err := ix.IndexVideo(context.Background(), "vid-1")
	if err == nil {
		t.Fatal("expected embedding error")
	}
	if len(vectors.upserted) != 0 {
		t.Error("records upserted despite embedding failure")
	}
}
