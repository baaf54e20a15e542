package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
)

const videoDataPrefix = "video-data"

// MetadataKey returns the object key of a video's metadata document.
func MetadataKey(videoID string) string {
	return fmt.Sprintf("%s/%s/%s.json", videoDataPrefix, videoID, videoID)
}

// InteractionsKey returns the object key of a video's interaction log.
func InteractionsKey(videoID string) string {
	return fmt.Sprintf("%s/%s/interactions.json", videoDataPrefix, videoID)
}

// Store is the typed adapter over the object store. All operations are
// whole-document; mutations of the interaction log run under a
// per-video mutex so two concurrent runs can never clobber each
// other's read-modify-write (last-write-wins on a stale copy).
type Store struct {
	objects ObjectStore

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a Store over the given ObjectStore.
func New(objects ObjectStore) *Store {
	return &Store{
		objects: objects,
		locks:   make(map[string]*sync.Mutex),
	}
}

// videoLock returns the mutex serializing writes for one video.
func (s *Store) videoLock(videoID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[videoID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[videoID] = l
	}
	return l
}

// ReadMetadata returns the video's metadata document.
// Returns ErrNotFound if the document does not exist.
func (s *Store) ReadMetadata(ctx context.Context, videoID string) (VideoMetadata, error) {
	data, err := s.objects.Get(ctx, MetadataKey(videoID))
	if errors.Is(err, ErrNotFound) {
		return VideoMetadata{}, ErrNotFound
	}
	if err != nil {
		return VideoMetadata{}, fmt.Errorf("%w: reading metadata for %s: %v", ErrUnavailable, videoID, err)
	}

	var meta VideoMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return VideoMetadata{}, fmt.Errorf("decoding metadata for %s: %w", videoID, err)
	}
	return meta, nil
}

// WriteMetadata overwrites the video's metadata document.
func (s *Store) WriteMetadata(ctx context.Context, videoID string, meta VideoMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding metadata for %s: %w", videoID, err)
	}
	if err := s.objects.Put(ctx, MetadataKey(videoID), data); err != nil {
		return fmt.Errorf("%w: writing metadata for %s: %v", ErrUnavailable, videoID, err)
	}
	return nil
}

// ReadInteractions returns the video's interaction log. A missing
// document is an empty log, not an error.
func (s *Store) ReadInteractions(ctx context.Context, videoID string) (InteractionLog, error) {
	data, err := s.objects.Get(ctx, InteractionsKey(videoID))
	if errors.Is(err, ErrNotFound) {
		return InteractionLog{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: reading interactions for %s: %v", ErrUnavailable, videoID, err)
	}

	var log InteractionLog
	if err := json.Unmarshal(data, &log); err != nil {
		return nil, fmt.Errorf("decoding interactions for %s: %w", videoID, err)
	}
	return log, nil
}

// WriteInteractions overwrites the video's interaction log.
func (s *Store) WriteInteractions(ctx context.Context, videoID string, log InteractionLog) error {
	data, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding interactions for %s: %w", videoID, err)
	}
	if err := s.objects.Put(ctx, InteractionsKey(videoID), data); err != nil {
		return fmt.Errorf("%w: writing interactions for %s: %v", ErrUnavailable, videoID, err)
	}
	return nil
}

// AppendInteraction appends a new interaction to the video's log via a
// serialized read-modify-write.
func (s *Store) AppendInteraction(ctx context.Context, videoID string, interaction Interaction) error {
	lock := s.videoLock(videoID)
	lock.Lock()
	defer lock.Unlock()

	log, err := s.ReadInteractions(ctx, videoID)
	if err != nil {
		return err
	}
	log = append(log, interaction)
	return s.WriteInteractions(ctx, videoID, log)
}

// ResolveInteraction moves one interaction to a terminal status,
// setting the answer timestamp and, for completed, the answer text.
// The log is re-read immediately before the write so only this
// interaction's delta is applied against the freshest document.
// An interaction already in a terminal state is left untouched.
func (s *Store) ResolveInteraction(ctx context.Context, videoID, interactionID, status, answer, answerTimestamp string) error {
	if status != StatusCompleted && status != StatusFailed {
		return fmt.Errorf("resolving interaction %s: status %q is not terminal", interactionID, status)
	}

	lock := s.videoLock(videoID)
	lock.Lock()
	defer lock.Unlock()

	log, err := s.ReadInteractions(ctx, videoID)
	if err != nil {
		return err
	}

	i := log.Find(interactionID)
	if i < 0 {
		return fmt.Errorf("resolving interaction %s for %s: %w", interactionID, videoID, ErrNotFound)
	}
	if log[i].Status != StatusProcessing {
		// Terminal statuses never revert.
		return nil
	}

	log[i].Status = status
	log[i].AnswerTimestamp = answerTimestamp
	if status == StatusCompleted {
		log[i].AIAnswer = answer
	}

	return s.WriteInteractions(ctx, videoID, log)
}

// ListVideoIDs returns the IDs of all videos with a stored metadata
// document, in lexical order.
func (s *Store) ListVideoIDs(ctx context.Context) ([]string, error) {
	ids, err := s.objects.List(ctx, videoDataPrefix)
	if err != nil {
		return nil, fmt.Errorf("%w: listing videos: %v", ErrUnavailable, err)
	}
	return ids, nil
}
