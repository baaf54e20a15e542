package retrieval

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrInvalidQuery is returned when the query text is empty or blank.
// Detected before any provider call is made.
var ErrInvalidQuery = errors.New("invalid query")

// ErrUnavailable wraps embedding-provider or index failures. An empty
// result set is not an error.
var ErrUnavailable = errors.New("retrieval unavailable")

// DefaultTopK is used when the caller does not request a segment count.
const DefaultTopK = 3

// Segment is one retrieved piece of video context. Ephemeral: segments
// are assembled into a prompt and never persisted. NormalizedStart and
// NormalizedEnd are fractions of the video's total duration.
type Segment struct {
	Text            string
	Score           float32
	StartTime       string
	EndTime         string
	NormalizedStart float64
	NormalizedEnd   float64
	VideoID         string
}

// Retriever turns a question into the most relevant indexed segments of
// one video.
type Retriever struct {
	embedder *Embedder
	vectors  VectorStore
	logger   *slog.Logger
}

// NewRetriever creates a Retriever over the given embedder and index.
func NewRetriever(embedder *Embedder, vectors VectorStore, logger *slog.Logger) *Retriever {
	return &Retriever{
		embedder: embedder,
		vectors:  vectors,
		logger:   logger,
	}
}

// Retrieve embeds the query and searches the video's vectors, returning
// up to topK segments ordered by similarity descending. A video with no
// indexed segments yields an empty slice, not an error.
func (r *Retriever) Retrieve(ctx context.Context, videoID, query string, topK int) ([]Segment, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is blank", ErrInvalidQuery)
	}
	if topK <= 0 {
		topK = DefaultTopK
	}

	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding query: %v", ErrUnavailable, err)
	}

	scored, err := r.vectors.Search(videoID, vector, topK)
	if err != nil {
		return nil, fmt.Errorf("%w: searching index: %v", ErrUnavailable, err)
	}

	segments := make([]Segment, 0, len(scored))
	for _, s := range scored {
		segments = append(segments, Segment{
			Text:            s.Caption,
			Score:           s.Score,
			StartTime:       s.StartTimestamp,
			EndTime:         s.EndTimestamp,
			NormalizedStart: s.NormalizedStart,
			NormalizedEnd:   s.NormalizedEnd,
			VideoID:         s.VideoID,
		})
	}

	r.logger.Debug("retrieved segments",
		slog.String("video_id", videoID),
		slog.Int("count", len(segments)))

	return segments, nil
}
