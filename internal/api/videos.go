package api

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"strings"

	"github.com/clipsight/clipsight/internal/store"
)

const forYouSampleSize = 3

// VideoInfo is one entry of the for-you feed.
type VideoInfo struct {
	VideoID  string `json:"video_id"`
	VideoURL string `json:"video_url"`
}

// handleForYou returns up to three random finished videos. Videos still
// processing or with unreadable metadata are skipped.
func handleForYou(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ids, err := deps.Store.ListVideoIDs(r.Context())
		if err != nil {
			httpError(w, http.StatusServiceUnavailable, "storage_unavailable", "failed to list videos: %v", err)
			return
		}

		var finished []store.VideoMetadata
		for _, id := range ids {
			meta, err := deps.Store.ReadMetadata(r.Context(), id)
			if err != nil {
				deps.Logger.Warn("skipping unreadable video metadata",
					"video_id", id, "error", err)
				continue
			}
			if meta.ProcessingStatus == store.VideoFinished {
				finished = append(finished, meta)
			}
		}

		rand.Shuffle(len(finished), func(i, j int) {
			finished[i], finished[j] = finished[j], finished[i]
		})
		if len(finished) > forYouSampleSize {
			finished = finished[:forYouSampleSize]
		}

		videos := make([]VideoInfo, 0, len(finished))
		for _, meta := range finished {
			videos = append(videos, VideoInfo{
				VideoID:  meta.VideoID,
				VideoURL: videoURL(deps.VideoBaseURL, meta),
			})
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(videos)
	}
}

// videoURL prefers the stored source URL, falling back to the
// conventional path under the configured base URL.
func videoURL(baseURL string, meta store.VideoMetadata) string {
	if meta.SourceURL != "" {
		return meta.SourceURL
	}
	if baseURL == "" {
		return ""
	}
	return fmt.Sprintf("%s/video-data/%s/%s.mp4",
		strings.TrimRight(baseURL, "/"), meta.VideoID, meta.VideoID)
}
