package store

import "errors"

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnavailable wraps any object-store I/O failure. Callers must not
// assume a partial write occurred when they see it.
var ErrUnavailable = errors.New("storage unavailable")

// Video processing statuses, owned by the offline processing job.
const (
	VideoProcessing = "PROCESSING"
	VideoFinished   = "FINISHED"
	VideoFailed     = "FAILED"
)

// Interaction statuses. Transitions are monotonic: processing may move
// to completed or failed, terminal states never change.
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ChunkMetadata describes one captioned scene chunk of a video, written
// by the offline processing pipeline.
type ChunkMetadata struct {
	ChunkName            string  `json:"chunk_name"`
	StartTimestamp       string  `json:"start_timestamp"`
	EndTimestamp         string  `json:"end_timestamp"`
	ChunkNumber          int     `json:"chunk_number"`
	ChunkDurationSeconds float64 `json:"chunk_duration_seconds"`
	NormalizedStartTime  float64 `json:"normalized_start_time"`
	NormalizedEndTime    float64 `json:"normalized_end_time"`
	Caption              string  `json:"caption"`
}

// VideoMetadata is the per-video metadata document. The offline job
// owns it; this service only reads it.
type VideoMetadata struct {
	VideoID              string          `json:"video_id"`
	SourceURL            string          `json:"source_url,omitempty"`
	OverallSummary       string          `json:"overall_summary,omitempty"`
	KeyThemes            string          `json:"key_themes,omitempty"`
	TotalDurationSeconds float64         `json:"total_duration_seconds,omitempty"`
	Chunks               []ChunkMetadata `json:"chunks,omitempty"`
	ProcessingStatus     string          `json:"processing_status,omitempty"`
	LikeCount            int             `json:"like_count,omitempty"`
	UploaderName         string          `json:"uploader_name,omitempty"`
}

// Interaction is one user question and its lifecycle for a video.
// UserQuery and QueryTimestamp are immutable after creation;
// AnswerTimestamp is set exactly once, at the terminal transition.
type Interaction struct {
	InteractionID   string `json:"interaction_id"`
	UserName        string `json:"user_name,omitempty"`
	UserQuery       string `json:"user_query"`
	QueryTimestamp  string `json:"query_timestamp"`
	Status          string `json:"status"`
	AIAnswer        string `json:"ai_answer,omitempty"`
	AnswerTimestamp string `json:"answer_timestamp,omitempty"`
}

// InteractionLog is the per-video interaction document: insertion order
// is chronological and never changes. The whole log is the unit of
// mutation — every write replaces the full document.
type InteractionLog []Interaction

// Find returns the index of the interaction with the given ID, or -1.
func (l InteractionLog) Find(interactionID string) int {
	for i := range l {
		if l[i].InteractionID == interactionID {
			return i
		}
	}
	return -1
}
