// Package api exposes the question pipeline over HTTP: async submission
// plus a pollable status endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/clipsight/clipsight/internal/pipeline"
	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/store"
)

const maxRequestBodySize = 1 << 20 // 1MB

// Orchestrator accepts questions for processed videos.
type Orchestrator interface {
	Submit(ctx context.Context, videoID, userQuery, userName string) (string, error)
}

// Indexer loads a processed video's chunks into the vector index.
type Indexer interface {
	IndexVideo(ctx context.Context, videoID string) (int, error)
}

// Deps holds dependencies for the HTTP handler.
type Deps struct {
	Store        *store.Store
	Orchestrator Orchestrator
	Indexer      Indexer
	VideoBaseURL string // public URL prefix for serving video files
	Logger       *slog.Logger
}

// NewHandler builds the router with all pipeline endpoints registered.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Post("/api/query/async", handleQueryAsync(deps))
	r.Get("/api/query/status/{video_id}", handleQueryStatus(deps))
	r.Get("/api/videos/foryou", handleForYou(deps))
	r.Post("/api/videos/{video_id}/index", handleIndexVideo(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// QueryRequest is the async submission payload.
type QueryRequest struct {
	VideoID   string `json:"video_id"`
	UserQuery string `json:"user_query"`
	UserName  string `json:"user_name"`
}

func handleQueryAsync(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req QueryRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if req.VideoID == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "video_id is required")
			return
		}

		interactionID, err := deps.Orchestrator.Submit(r.Context(), req.VideoID, req.UserQuery, req.UserName)
		switch {
		case errors.Is(err, store.ErrNotFound):
			httpError(w, http.StatusNotFound, "not_found", "video %s is unknown", req.VideoID)
			return
		case errors.Is(err, pipeline.ErrVideoNotReady):
			httpError(w, http.StatusConflict, "video_not_ready", "video %s has not finished processing", req.VideoID)
			return
		case errors.Is(err, retrieval.ErrInvalidQuery):
			httpError(w, http.StatusBadRequest, "invalid_request_error", "user_query must not be blank")
			return
		case errors.Is(err, store.ErrUnavailable):
			httpError(w, http.StatusServiceUnavailable, "storage_unavailable", "storage is unavailable, try again later")
			return
		case err != nil:
			httpError(w, http.StatusInternalServerError, "api_error", "failed to submit query: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{
			"status":         "processing_started",
			"video_id":       req.VideoID,
			"interaction_id": interactionID,
		})
	}
}

// StatusResponse is the pollable per-video status document.
type StatusResponse struct {
	VideoID          string               `json:"video_id"`
	ProcessingStatus string               `json:"processing_status"`
	Interactions     store.InteractionLog `json:"interactions"`
}

func handleQueryStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "video_id")

		meta, err := deps.Store.ReadMetadata(r.Context(), videoID)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "status not available for video %s", videoID)
			return
		}
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "storage_unavailable", "failed to read status: %v", err)
			return
		}

		interactions, err := deps.Store.ReadInteractions(r.Context(), videoID)
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "storage_unavailable", "failed to read interactions: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(StatusResponse{
			VideoID:          videoID,
			ProcessingStatus: meta.ProcessingStatus,
			Interactions:     interactions,
		})
	}
}

func handleIndexVideo(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "video_id")

		count, err := deps.Indexer.IndexVideo(r.Context(), videoID)
		if errors.Is(err, store.ErrNotFound) {
			httpError(w, http.StatusNotFound, "not_found", "video %s is unknown", videoID)
			return
		}
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "failed to index video: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]any{
			"video_id": videoID,
			"indexed":  count,
		})
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
