// Package accounts implements TikTok account connection and the stored
// account report endpoints.
package accounts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Olegcreabuilder/createshorts-backend/analysis"
	"github.com/Olegcreabuilder/createshorts-backend/archive"
	"github.com/Olegcreabuilder/createshorts-backend/auth"
	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/httputil"
	"github.com/Olegcreabuilder/createshorts-backend/stats"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// Handler holds dependencies for account connection endpoints.
type Handler struct {
	DB      *db.CompatDB
	Fetcher *tiktok.Fetcher
	AI      *analysis.Client
	Archive *archive.Store
}

// NormalizeUsername strips the @ prefix, surrounding whitespace and a full
// profile URL down to the bare TikTok handle.
func NormalizeUsername(raw string) string {
	u := strings.TrimSpace(raw)
	if idx := strings.Index(u, "tiktok.com/@"); idx != -1 {
		u = u[idx+len("tiktok.com/@"):]
		if slash := strings.IndexAny(u, "/?"); slash != -1 {
			u = u[:slash]
		}
	}
	u = strings.TrimPrefix(u, "@")
	return strings.ToLower(u)
}

// HandleConnect links a TikTok account to the authenticated user: it fetches
// the profile and recent videos, computes the stats report, runs the AI
// account analysis and stores everything as the user's connected account.
func (h *Handler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)
	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.WriteError(w, 400, "corps de requête invalide")
		return
	}
	username := NormalizeUsername(req.Username)
	if username == "" {
		httputil.WriteError(w, 400, "nom d'utilisateur requis")
		return
	}

	profile, err := h.Fetcher.FetchProfile(r.Context(), username)
	if err != nil {
		if errors.Is(err, tiktok.ErrNotFound) {
			httputil.WriteError(w, 404, "compte TikTok introuvable")
			return
		}
		log.Printf("fetch profile %s: %v", username, err)
		httputil.WriteError(w, 502, "impossible de récupérer le compte TikTok")
		return
	}

	videos := h.Fetcher.FetchVideos(r.Context(), username, tiktok.DefaultVideoCount)
	report := stats.Compute(profile, videos)

	acct, err := h.AI.AnalyzeAccount(r.Context(), profile, videos, report)
	if err != nil {
		log.Printf("account analysis for %s fell back to defaults: %v", username, err)
		acct = analysis.AccountFallback(profile)
	}

	if err := h.saveAccount(r.Context(), userID, profile, report, acct); err != nil {
		log.Printf("save account for %s: %v", userID, err)
		httputil.WriteError(w, 500, "échec de l'enregistrement du compte")
		return
	}

	payload := accountPayload(profile, report, acct, db.NowUTC())
	if key, err := h.Archive.Put(r.Context(), userID, payload); err != nil {
		log.Printf("archive report for %s: %v", userID, err)
	} else if key != "" {
		log.Printf("archived report %s", key)
	}

	httputil.WriteJSON(w, 200, payload)
}

func (h *Handler) saveAccount(ctx context.Context, userID string, p tiktok.Profile, report stats.Stats, acct analysis.AccountAnalysis) error {
	statsJSON, err := json.Marshal(report)
	if err != nil {
		return err
	}
	strengths, _ := json.Marshal(acct.Strengths)
	weaknesses, _ := json.Marshal(acct.Weaknesses)
	recommendations, _ := json.Marshal(acct.Recommendations)

	verified := 0
	if p.Verified {
		verified = 1
	}

	return db.WithTx(ctx, h.DB, func(tx *db.CompatConn) error {
		// The profile row may not exist yet when the identity provider
		// created the user without touching this API.
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO profiles (user_id, created_at) VALUES (?, ?)
			ON CONFLICT(user_id) DO NOTHING`, userID, db.NowUTC()); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO connected_accounts (
				user_id, tiktok_username, tiktok_user_id, display_name, avatar_url, bio,
				followers_count, following_count, total_likes, video_count, verified,
				niche, account_summary, strengths, weaknesses, recommendations,
				stats, last_sync, is_connected
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)
			ON CONFLICT(user_id) DO UPDATE SET
				tiktok_username = excluded.tiktok_username,
				tiktok_user_id  = excluded.tiktok_user_id,
				display_name    = excluded.display_name,
				avatar_url      = excluded.avatar_url,
				bio             = excluded.bio,
				followers_count = excluded.followers_count,
				following_count = excluded.following_count,
				total_likes     = excluded.total_likes,
				video_count     = excluded.video_count,
				verified        = excluded.verified,
				niche           = excluded.niche,
				account_summary = excluded.account_summary,
				strengths       = excluded.strengths,
				weaknesses      = excluded.weaknesses,
				recommendations = excluded.recommendations,
				stats           = excluded.stats,
				last_sync       = excluded.last_sync,
				is_connected    = 1`,
			userID, p.Username, p.ID, p.Nickname, p.AvatarURL, p.Bio,
			p.Followers, p.Following, p.TotalLikes, p.VideoCount, verified,
			acct.Niche, acct.Summary, string(strengths), string(weaknesses), string(recommendations),
			string(statsJSON), db.NowUTC())
		return err
	})
}

func accountPayload(p tiktok.Profile, report stats.Stats, acct analysis.AccountAnalysis, lastSync string) map[string]interface{} {
	return map[string]interface{}{
		"profile":   p,
		"stats":     report,
		"analysis":  acct,
		"last_sync": lastSync,
	}
}

// HandleGetAccount returns the stored account report for the authenticated
// user without hitting upstream APIs.
func (h *Handler) HandleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID := r.Context().Value(auth.UserIDKey).(string)

	var p tiktok.Profile
	var verified int
	var niche, summary, strengthsJSON, weaknessesJSON, recommendationsJSON string
	var statsJSON, lastSync string

	err := h.DB.QueryRowContext(r.Context(), `
		SELECT tiktok_username, tiktok_user_id, display_name, avatar_url, bio,
		       followers_count, following_count, total_likes, video_count, verified,
		       niche, account_summary, strengths, weaknesses, recommendations,
		       stats, last_sync
		FROM connected_accounts
		WHERE user_id = ? AND is_connected = 1`, userID).Scan(
		&p.Username, &p.ID, &p.Nickname, &p.AvatarURL, &p.Bio,
		&p.Followers, &p.Following, &p.TotalLikes, &p.VideoCount, &verified,
		&niche, &summary, &strengthsJSON, &weaknessesJSON, &recommendationsJSON,
		&statsJSON, &lastSync)
	if errors.Is(err, sql.ErrNoRows) {
		httputil.WriteError(w, 404, "aucun compte TikTok connecté")
		return
	}
	if err != nil {
		log.Printf("load account for %s: %v", userID, err)
		httputil.WriteError(w, 500, "échec du chargement du compte")
		return
	}
	p.Verified = verified == 1

	var report stats.Stats
	if err := json.Unmarshal([]byte(statsJSON), &report); err != nil {
		report = stats.Compute(p, nil)
	}

	acct := analysis.AccountAnalysis{Niche: niche, Summary: summary}
	json.Unmarshal([]byte(strengthsJSON), &acct.Strengths)
	json.Unmarshal([]byte(weaknessesJSON), &acct.Weaknesses)
	json.Unmarshal([]byte(recommendationsJSON), &acct.Recommendations)

	httputil.WriteJSON(w, 200, accountPayload(p, report, acct, lastSync))
}

// HandleTestLookup fetches a public profile preview without persisting
// anything. Used to validate a handle before connecting it.
func (h *Handler) HandleTestLookup(w http.ResponseWriter, r *http.Request) {
	username := NormalizeUsername(chi.URLParam(r, "username"))
	if username == "" {
		httputil.WriteError(w, 400, "nom d'utilisateur requis")
		return
	}

	profile, err := h.Fetcher.FetchProfile(r.Context(), username)
	if err != nil {
		if errors.Is(err, tiktok.ErrNotFound) {
			httputil.WriteError(w, 404, "compte TikTok introuvable")
			return
		}
		log.Printf("test lookup %s: %v", username, err)
		httputil.WriteError(w, 502, "impossible de récupérer le compte TikTok")
		return
	}

	videos := h.Fetcher.FetchVideos(r.Context(), username, tiktok.DefaultVideoCount)
	httputil.WriteJSON(w, 200, map[string]interface{}{
		"profile":      profile,
		"videos_found": len(videos),
		"stats":        stats.Compute(profile, videos),
	})
}
