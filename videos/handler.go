// Package videos serves the authenticated user's recent videos and runs
// single-video analyses.
package videos

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/Olegcreabuilder/createshorts-backend/analysis"
	"github.com/Olegcreabuilder/createshorts-backend/auth"
	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/httputil"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// DefaultFetchDelay spaces out upstream calls so the free scraping tier
// never rate-limits us.
const DefaultFetchDelay = 1500 * time.Millisecond

var videoIDPattern = regexp.MustCompile(`video/(\d+)`)

// VideoIDFromURL extracts the numeric video ID from a TikTok video URL.
// Returns "" when the URL carries no recognizable ID.
func VideoIDFromURL(rawURL string) string {
	m := videoIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return ""
	}
	return m[1]
}

// Handler holds dependencies for video endpoints.
type Handler struct {
	DB      *db.CompatDB
	Fetcher *tiktok.Fetcher
	AI      *analysis.Client

	// FetchDelay overrides DefaultFetchDelay when positive. Tests use a
	// tiny value to stay fast.
	FetchDelay time.Duration
}

func (h *Handler) fetchDelay() time.Duration {
	if h.FetchDelay > 0 {
		return h.FetchDelay
	}
	return DefaultFetchDelay
}

// HandleListVideos returns the connected account's recent videos with fresh
// counters from upstream.
func (h *Handler) HandleListVideos(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	var username string
	err := h.DB.QueryRowContext(r.Context(),
		"SELECT tiktok_username FROM connected_accounts WHERE user_id = ? AND is_connected = 1",
		userID).Scan(&username)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, 404, "aucun compte TikTok connecté")
		return
	}
	if err != nil {
		log.Printf("load account for %s: %v", userID, err)
		httputil.WriteError(w, 500, "échec du chargement du compte")
		return
	}

	select {
	case <-r.Context().Done():
		return
	case <-time.After(h.fetchDelay()):
	}

	fetched := h.Fetcher.FetchVideos(r.Context(), username, tiktok.DefaultVideoCount)

	list := make([]map[string]interface{}, 0, len(fetched))
	for _, v := range fetched {
		list = append(list, map[string]interface{}{
			"id":         v.ID,
			"title":      v.Title,
			"cover_url":  v.CoverURL,
			"duration":   v.Duration,
			"views":      v.Views,
			"likes":      v.Likes,
			"comments":   v.Comments,
			"shares":     v.Shares,
			"url":        tiktok.WatchURL(username, v.ID),
			"created_at": v.CreatedAt.UTC().Format(time.RFC3339),
		})
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"username": username,
		"videos":   list,
	})
}

// HandleAnalyzeVideo fetches one video by URL, runs the AI analysis and
// records the result in the user's history.
func (h *Handler) HandleAnalyzeVideo(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req struct {
		VideoURL string `json:"videoUrl"`
		URL      string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, 400, "corps de requête invalide")
		return
	}
	videoURL := req.VideoURL
	if videoURL == "" {
		videoURL = req.URL
	}
	videoID := VideoIDFromURL(videoURL)
	if videoID == "" {
		httputil.WriteError(w, 400, "URL de vidéo TikTok invalide")
		return
	}

	video, err := h.Fetcher.FetchVideo(r.Context(), videoURL)
	if err != nil {
		if errors.Is(err, tiktok.ErrNotFound) {
			httputil.WriteError(w, 404, "vidéo introuvable")
			return
		}
		log.Printf("fetch video %s: %v", videoID, err)
		httputil.WriteError(w, 502, "impossible de récupérer la vidéo")
		return
	}
	if video.ID == "" {
		video.ID = videoID
	}

	result, err := h.AI.AnalyzeVideo(r.Context(), video)
	if err != nil {
		log.Printf("video analysis for %s fell back to defaults: %v", videoID, err)
		result = analysis.VideoFallback()
	}

	analysisJSON, err := json.Marshal(result)
	if err != nil {
		httputil.WriteError(w, 500, "échec de l'analyse")
		return
	}

	_, err = h.DB.ExecContext(r.Context(), `
		INSERT INTO video_analyses (id, user_id, video_id, title, views, likes, comments, shares, score, analysis, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, video.ID, video.Title,
		video.Views, video.Likes, video.Comments, video.Shares,
		result.Score, string(analysisJSON), db.NowUTC())
	if err != nil {
		log.Printf("save video analysis for %s: %v", userID, err)
		httputil.WriteError(w, 500, "échec de l'enregistrement de l'analyse")
		return
	}

	httputil.WriteJSON(w, 200, map[string]interface{}{
		"video":    video,
		"analysis": result,
	})
}
