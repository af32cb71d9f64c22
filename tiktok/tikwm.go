package tiktok

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultTimeout is applied to all outbound source calls unless the
// caller supplies its own http.Client.
const DefaultTimeout = 15 * time.Second

// TikWM is the primary data source (free tier, ~1 req/s rate limit on
// the hosted instance; callers pace themselves, this client does not).
type TikWM struct {
	BaseURL string
	HTTP    *http.Client
}

// NewTikWM creates a TikWM client. baseURL defaults to the public
// instance when empty.
func NewTikWM(baseURL string, client *http.Client) *TikWM {
	if baseURL == "" {
		baseURL = "https://www.tikwm.com"
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &TikWM{BaseURL: baseURL, HTTP: client}
}

func (t *TikWM) Name() string { return "tikwm" }

// TikWM wraps everything in {"code":0,"msg":"success","data":{...}}.
// Field casing has drifted between instances, so counts carry both the
// camelCase and snake_case aliases and the first non-zero one wins.

type tikwmEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type tikwmUserData struct {
	User  tikwmUser  `json:"user"`
	Stats tikwmStats `json:"stats"`
}

type tikwmUser struct {
	ID            string `json:"id"`
	UniqueID      string `json:"uniqueId"`
	UniqueIDSnake string `json:"unique_id"`
	Nickname      string `json:"nickname"`
	AvatarLarger  string `json:"avatarLarger"`
	AvatarMedium  string `json:"avatarMedium"`
	Avatar        string `json:"avatar"`
	Signature     string `json:"signature"`
	Verified      bool   `json:"verified"`
}

type tikwmStats struct {
	FollowerCount       int `json:"followerCount"`
	FollowerCountSnake  int `json:"follower_count"`
	FollowingCount      int `json:"followingCount"`
	FollowingCountSnake int `json:"following_count"`
	HeartCount          int `json:"heartCount"`
	HeartCountSnake     int `json:"heart_count"`
	VideoCount          int `json:"videoCount"`
	VideoCountSnake     int `json:"video_count"`
}

type tikwmPostsData struct {
	Videos []tikwmVideo `json:"videos"`
}

type tikwmVideo struct {
	VideoID      string `json:"video_id"`
	ID           string `json:"id"`
	Title        string `json:"title"`
	Cover        string `json:"cover"`
	Duration     int    `json:"duration"`
	PlayCount    int    `json:"play_count"`
	DiggCount    int    `json:"digg_count"`
	CommentCount int    `json:"comment_count"`
	ShareCount   int    `json:"share_count"`
	CreateTime   int64  `json:"create_time"`
}

// Profile fetches account info for a handle.
func (t *TikWM) Profile(ctx context.Context, handle string) (Profile, error) {
	data, err := t.get(ctx, "/api/user/info?unique_id="+url.QueryEscape(handle))
	if err != nil {
		return Profile{}, err
	}

	var u tikwmUserData
	if err := json.Unmarshal(data, &u); err != nil {
		return Profile{}, fmt.Errorf("decode user info: %w", ErrInvalidResponse)
	}
	if u.User.ID == "" && u.User.UniqueID == "" && u.User.UniqueIDSnake == "" {
		return Profile{}, fmt.Errorf("empty user object for @%s: %w", handle, ErrNotFound)
	}

	username := firstNonEmpty(u.User.UniqueID, u.User.UniqueIDSnake, handle)
	return Profile{
		ID:         u.User.ID,
		Username:   username,
		Nickname:   u.User.Nickname,
		AvatarURL:  firstNonEmpty(u.User.AvatarLarger, u.User.AvatarMedium, u.User.Avatar),
		Bio:        u.User.Signature,
		Followers:  firstNonZero(u.Stats.FollowerCount, u.Stats.FollowerCountSnake),
		Following:  firstNonZero(u.Stats.FollowingCount, u.Stats.FollowingCountSnake),
		TotalLikes: firstNonZero(u.Stats.HeartCount, u.Stats.HeartCountSnake),
		VideoCount: firstNonZero(u.Stats.VideoCount, u.Stats.VideoCountSnake),
		Verified:   u.User.Verified,
	}, nil
}

// Videos fetches up to count recent posts for a handle, in source order.
func (t *TikWM) Videos(ctx context.Context, handle string, count int) ([]Video, error) {
	path := "/api/user/posts?unique_id=" + url.QueryEscape(handle) + "&count=" + strconv.Itoa(count)
	data, err := t.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var posts tikwmPostsData
	if err := json.Unmarshal(data, &posts); err != nil {
		return nil, fmt.Errorf("decode posts: %w", ErrInvalidResponse)
	}

	videos := make([]Video, 0, len(posts.Videos))
	for _, v := range posts.Videos {
		videos = append(videos, parseTikwmVideo(v))
	}
	return videos, nil
}

// VideoByURL fetches a single video by its public TikTok URL.
func (t *TikWM) VideoByURL(ctx context.Context, videoURL string) (Video, error) {
	data, err := t.get(ctx, "/api/?url="+url.QueryEscape(videoURL))
	if err != nil {
		return Video{}, err
	}

	var v tikwmVideo
	if err := json.Unmarshal(data, &v); err != nil {
		return Video{}, fmt.Errorf("decode video: %w", ErrInvalidResponse)
	}
	if v.ID == "" && v.VideoID == "" {
		return Video{}, fmt.Errorf("video not found: %w", ErrNotFound)
	}
	return parseTikwmVideo(v), nil
}

func parseTikwmVideo(v tikwmVideo) Video {
	return Video{
		ID:        firstNonEmpty(v.VideoID, v.ID),
		Title:     v.Title,
		CoverURL:  v.Cover,
		Duration:  v.Duration,
		Views:     v.PlayCount,
		Likes:     v.DiggCount,
		Comments:  v.CommentCount,
		Shares:    v.ShareCount,
		CreatedAt: time.Unix(v.CreateTime, 0),
	}
}

// get performs a GET against the TikWM API and unwraps the envelope.
func (t *TikWM) get(ctx context.Context, path string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", t.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("tikwm request: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("tikwm status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("tikwm read body: %w", ErrUnavailable)
	}

	var env tikwmEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("tikwm envelope: %w", ErrInvalidResponse)
	}
	if env.Code != 0 || len(env.Data) == 0 {
		return nil, fmt.Errorf("tikwm code=%d msg=%q: %w", env.Code, env.Msg, ErrNotFound)
	}
	return env.Data, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonZero(values ...int) int {
	for _, v := range values {
		if v != 0 {
			return v
		}
	}
	return 0
}
