package retrieval

import "time"

// VectorStore is the interface for the per-video vector index.
// The current implementation uses SQLite with brute-force cosine
// similarity; an ANN-capable backend can replace it as long as it
// supports upsert-by-id and video-scoped search.
type VectorStore interface {
	// Upsert inserts or replaces records by ID.
	Upsert(records []Record) error

	// Search returns the top-K records for the video most similar to
	// the query vector, ordered by score descending.
	Search(videoID string, vector []float32, topK int) ([]ScoredRecord, error)

	// Count returns the number of records indexed for the video.
	Count(videoID string) (int, error)

	// DeleteVideo removes all records for the video. Used when a video
	// is re-indexed from scratch.
	DeleteVideo(videoID string) error
}

// Record is one indexed video segment. NormalizedStart and
// NormalizedEnd place the segment within the video as fractions of its
// total duration.
type Record struct {
	ID              string
	VideoID         string
	ChunkNumber     int
	StartTimestamp  string
	EndTimestamp    string
	NormalizedStart float64
	NormalizedEnd   float64
	Caption         string
	Embedding       []float32
	CreatedAt       time.Time
}

// ScoredRecord is a Record with a similarity score attached.
type ScoredRecord struct {
	Record
	Score float32
}
