package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/clipsight/clipsight/internal/pipeline"
	"github.com/clipsight/clipsight/internal/retrieval"
	"github.com/clipsight/clipsight/internal/store"
)

type fakeOrchestrator struct {
	submitFunc func(ctx context.Context, videoID, userQuery, userName string) (string, error)
}

func (f *fakeOrchestrator) Submit(ctx context.Context, videoID, userQuery, userName string) (string, error) {
	return f.submitFunc(ctx, videoID, userQuery, userName)
}

type fakeIndexer struct {
	indexFunc func(ctx context.Context, videoID string) (int, error)
}

func (f *fakeIndexer) IndexVideo(ctx context.Context, videoID string) (int, error) {
	return f.indexFunc(ctx, videoID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testDeps(t *testing.T) (Deps, *store.Store) {
	t.Helper()
	st := store.New(store.NewMemStore())
	deps := Deps{
		Store: st,
		Orchestrator: &fakeOrchestrator{
			submitFunc: func(ctx context.Context, videoID, userQuery, userName string) (string, error) {
				return "ix-1", nil
			},
		},
		Indexer: &fakeIndexer{
			indexFunc: func(ctx context.Context, videoID string) (int, error) {
				return 5, nil
			},
		},
		Logger: discardLogger(),
	}
	return deps, st
}

func postJSON(t *testing.T, handler http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("GET", path, nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func errType(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	return body.Error.Type
}

func TestHealth(t *testing.T) {
	deps, _ := testDeps(t)
	rec := getPath(t, NewHandler(deps), "/health")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status = %q, want ok", body["status"])
	}
}

func TestQueryAsync_Accepted(t *testing.T) {
	deps, _ := testDeps(t)
	rec := postJSON(t, NewHandler(deps), "/api/query/async",
		`{"video_id":"vid-1","user_query":"what is cooked?","user_name":"alice"}`)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "processing_started" {
		t.Errorf("status = %q, want processing_started", body["status"])
	}
	if body["video_id"] != "vid-1" {
		t.Errorf("video_id = %q", body["video_id"])
	}
	if body["interaction_id"] != "ix-1" {
		t.Errorf("interaction_id = %q", body["interaction_id"])
	}
}

func TestQueryAsync_PassesFieldsThrough(t *testing.T) {
	deps, _ := testDeps(t)
	var gotVideo, gotQuery, gotUser string
	deps.Orchestrator = &fakeOrchestrator{
		submitFunc: func(ctx context.Context, videoID, userQuery, userName string) (string, error) {
			gotVideo, gotQuery, gotUser = videoID, userQuery, userName
			return "ix-1", nil
		},
	}
	postJSON(t, NewHandler(deps), "/api/query/async",
		`{"video_id":"vid-1","user_query":"why?","user_name":"alice"}`)

	if gotVideo != "vid-1" || gotQuery != "why?" || gotUser != "alice" {
		t.Errorf("got (%q, %q, %q)", gotVideo, gotQuery, gotUser)
	}
}

func TestQueryAsync_ErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantType string
	}{
		{"unknown video", store.ErrNotFound, http.StatusNotFound, "not_found"},
		{"video not ready", pipeline.ErrVideoNotReady, http.StatusConflict, "video_not_ready"},
		{"blank query", retrieval.ErrInvalidQuery, http.StatusBadRequest, "invalid_request_error"},
		{"storage down", store.ErrUnavailable, http.StatusServiceUnavailable, "storage_unavailable"},
		{"internal", errors.New("boom"), http.StatusInternalServerError, "api_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, _ := testDeps(t)
			deps.Orchestrator = &fakeOrchestrator{
				submitFunc: func(ctx context.Context, videoID, userQuery, userName string) (string, error) {
					return "", fmt.Errorf("submitting: %w", tt.err)
				},
			}
			rec := postJSON(t, NewHandler(deps), "/api/query/async",
				`{"video_id":"vid-1","user_query":"q"}`)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantCode, rec.Body)
			}
			if got := errType(t, rec); got != tt.wantType {
				t.Errorf("error type = %q, want %q", got, tt.wantType)
			}
		})
	}
}

func TestQueryAsync_InvalidBody(t *testing.T) {
	deps, _ := testDeps(t)
	rec := postJSON(t, NewHandler(deps), "/api/query/async", "{not json")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryAsync_MissingVideoID(t *testing.T) {
	deps, _ := testDeps(t)
	rec := postJSON(t, NewHandler(deps), "/api/query/async", `{"user_query":"q"}`)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestQueryStatus(t *testing.T) {
	deps, st := testDeps(t)
	ctx := context.Background()
	if err := st.WriteMetadata(ctx, "vid-1", store.VideoMetadata{
		VideoID:          "vid-1",
		ProcessingStatus: store.VideoFinished,
	}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}
	if err := st.AppendInteraction(ctx, "vid-1", store.Interaction{
		InteractionID: "ix-1",
		UserQuery:     "what is cooked?",
		Status:        store.StatusCompleted,
		AIAnswer:      "carbonara",
	}); err != nil {
		t.Fatalf("AppendInteraction: %v", err)
	}

	rec := getPath(t, NewHandler(deps), "/api/query/status/vid-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body)
	}

	var body StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.VideoID != "vid-1" {
		t.Errorf("VideoID = %q", body.VideoID)
	}
	if body.ProcessingStatus != store.VideoFinished {
		t.Errorf("ProcessingStatus = %q", body.ProcessingStatus)
	}
	if len(body.Interactions) != 1 || body.Interactions[0].AIAnswer != "carbonara" {
		t.Errorf("Interactions = %+v", body.Interactions)
	}
}

func TestQueryStatus_UnknownVideo(t *testing.T) {
	deps, _ := testDeps(t)
	rec := getPath(t, NewHandler(deps), "/api/query/status/missing")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if got := errType(t, rec); got != "not_found" {
		t.Errorf("error type = %q, want not_found", got)
	}
}

func TestQueryStatus_NoInteractionsYet(t *testing.T) {
	deps, st := testDeps(t)
	if err := st.WriteMetadata(context.Background(), "vid-1", store.VideoMetadata{
		VideoID:          "vid-1",
		ProcessingStatus: store.VideoProcessing,
	}); err != nil {
		t.Fatalf("WriteMetadata: %v", err)
	}

	rec := getPath(t, NewHandler(deps), "/api/query/status/vid-1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body StatusResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Interactions) != 0 {
		t.Errorf("Interactions = %+v, want empty", body.Interactions)
	}
}

func TestIndexVideo(t *testing.T) {
	deps, _ := testDeps(t)
	rec := postJSON(t, NewHandler(deps), "/api/videos/vid-1/index", "")

	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body)
	}
	var body struct {
		VideoID string `json:"video_id"`
		Indexed int    `json:"indexed"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.VideoID != "vid-1" || body.Indexed != 5 {
		t.Errorf("body = %+v", body)
	}
}

func TestIndexVideo_Unknown(t *testing.T) {
	deps, _ := testDeps(t)
	deps.Indexer = &fakeIndexer{
		indexFunc: func(ctx context.Context, videoID string) (int, error) {
			return 0, store.ErrNotFound
		},
	}
	rec := postJSON(t, NewHandler(deps), "/api/videos/missing/index", "")

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestForYou_OnlyFinishedVideos(t *testing.T) {
	deps, st := testDeps(t)
	ctx := context.Background()
	for id, status := range map[string]string{
		"vid-1": store.VideoFinished,
		"vid-2": store.VideoProcessing,
		"vid-3": store.VideoFailed,
	} {
		if err := st.WriteMetadata(ctx, id, store.VideoMetadata{
			VideoID:          id,
			ProcessingStatus: status,
		}); err != nil {
			t.Fatalf("WriteMetadata %s: %v", id, err)
		}
	}

	rec := getPath(t, NewHandler(deps), "/api/videos/foryou")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var videos []VideoInfo
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(videos) != 1 {
		t.Fatalf("got %d videos, want 1: %+v", len(videos), videos)
	}
	if videos[0].VideoID != "vid-1" {
		t.Errorf("VideoID = %q, want vid-1", videos[0].VideoID)
	}
}

func TestForYou_CapsAtSampleSize(t *testing.T) {
	deps, st := testDeps(t)
	ctx := context.Background()
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("vid-%d", i)
		if err := st.WriteMetadata(ctx, id, store.VideoMetadata{
			VideoID:          id,
			ProcessingStatus: store.VideoFinished,
		}); err != nil {
			t.Fatalf("WriteMetadata %s: %v", id, err)
		}
	}

	rec := getPath(t, NewHandler(deps), "/api/videos/foryou")
	var videos []VideoInfo
	if err := json.NewDecoder(rec.Body).Decode(&videos); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(videos) != forYouSampleSize {
		t.Errorf("got %d videos, want %d", len(videos), forYouSampleSize)
	}
}

func TestVideoURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
		meta    store.VideoMetadata
		want    string
	}{
		{"source url wins", "http://cdn.local", store.VideoMetadata{VideoID: "v", SourceURL: "http://youtube.com/w"}, "http://youtube.com/w"},
		{"base url fallback", "http://cdn.local/", store.VideoMetadata{VideoID: "v"}, "http://cdn.local/video-data/v/v.mp4"},
		{"no url at all", "", store.VideoMetadata{VideoID: "v"}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := videoURL(tt.baseURL, tt.meta); got != tt.want {
				t.Errorf("videoURL = %q, want %q", got, tt.want)
			}
		})
	}
}
