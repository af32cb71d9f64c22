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

// RapidAPI is the paid fallback source. It speaks the official web-app
// payload dialect (camelCase, nested stats objects) rather than TikWM's
// flattened snake_case, so it gets its own raw structs and mapping.
type RapidAPI struct {
	BaseURL string
	Host    string
	APIKey  string
	HTTP    *http.Client
}

// NewRapidAPI creates a RapidAPI client for a tiktok-scraper style host.
func NewRapidAPI(host, apiKey string, client *http.Client) *RapidAPI {
	if host == "" {
		host = "tiktok-scraper7.p.rapidapi.com"
	}
	if client == nil {
		client = &http.Client{Timeout: DefaultTimeout}
	}
	return &RapidAPI{
		BaseURL: "https://" + host,
		Host:    host,
		APIKey:  apiKey,
		HTTP:    client,
	}
}

func (r *RapidAPI) Name() string { return "rapidapi" }

type rapidUserResponse struct {
	UserInfo struct {
		User  rapidUser      `json:"user"`
		Stats rapidUserStats `json:"stats"`
	} `json:"userInfo"`
}

type rapidUser struct {
	ID           string `json:"id"`
	UniqueID     string `json:"uniqueId"`
	Nickname     string `json:"nickname"`
	AvatarLarger string `json:"avatarLarger"`
	AvatarThumb  string `json:"avatarThumb"`
	Signature    string `json:"signature"`
	Verified     bool   `json:"verified"`
}

type rapidUserStats struct {
	FollowerCount  int `json:"followerCount"`
	FollowingCount int `json:"followingCount"`
	Heart          int `json:"heart"`
	HeartCount     int `json:"heartCount"`
	VideoCount     int `json:"videoCount"`
}

type rapidPostsResponse struct {
	ItemList []rapidItem `json:"itemList"`
}

type rapidItem struct {
	ID         string `json:"id"`
	Desc       string `json:"desc"`
	CreateTime int64  `json:"createTime"`
	Video      struct {
		Cover    string `json:"cover"`
		Duration int    `json:"duration"`
	} `json:"video"`
	Stats rapidItemStats `json:"stats"`
}

type rapidItemStats struct {
	PlayCount    int `json:"playCount"`
	DiggCount    int `json:"diggCount"`
	CommentCount int `json:"commentCount"`
	ShareCount   int `json:"shareCount"`
}

// Profile fetches account info through the RapidAPI host.
func (r *RapidAPI) Profile(ctx context.Context, handle string) (Profile, error) {
	body, err := r.get(ctx, "/user/info?unique_id="+url.QueryEscape(handle))
	if err != nil {
		return Profile{}, err
	}

	var res rapidUserResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return Profile{}, fmt.Errorf("decode user info: %w", ErrInvalidResponse)
	}
	u := res.UserInfo.User
	if u.ID == "" && u.UniqueID == "" {
		return Profile{}, fmt.Errorf("empty user object for @%s: %w", handle, ErrNotFound)
	}

	s := res.UserInfo.Stats
	return Profile{
		ID:         u.ID,
		Username:   firstNonEmpty(u.UniqueID, handle),
		Nickname:   u.Nickname,
		AvatarURL:  firstNonEmpty(u.AvatarLarger, u.AvatarThumb),
		Bio:        u.Signature,
		Followers:  s.FollowerCount,
		Following:  s.FollowingCount,
		TotalLikes: firstNonZero(s.HeartCount, s.Heart),
		VideoCount: s.VideoCount,
		Verified:   u.Verified,
	}, nil
}

// Videos fetches up to count recent posts for a handle.
func (r *RapidAPI) Videos(ctx context.Context, handle string, count int) ([]Video, error) {
	path := "/user/posts?unique_id=" + url.QueryEscape(handle) + "&count=" + strconv.Itoa(count)
	body, err := r.get(ctx, path)
	if err != nil {
		return nil, err
	}

	var res rapidPostsResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("decode posts: %w", ErrInvalidResponse)
	}

	videos := make([]Video, 0, len(res.ItemList))
	for _, item := range res.ItemList {
		videos = append(videos, parseRapidItem(item))
	}
	return videos, nil
}

// VideoByURL fetches a single video by its public TikTok URL.
func (r *RapidAPI) VideoByURL(ctx context.Context, videoURL string) (Video, error) {
	body, err := r.get(ctx, "/?url="+url.QueryEscape(videoURL))
	if err != nil {
		return Video{}, err
	}

	var item rapidItem
	if err := json.Unmarshal(body, &item); err != nil {
		return Video{}, fmt.Errorf("decode video: %w", ErrInvalidResponse)
	}
	if item.ID == "" {
		return Video{}, fmt.Errorf("video not found: %w", ErrNotFound)
	}
	return parseRapidItem(item), nil
}

func parseRapidItem(item rapidItem) Video {
	return Video{
		ID:        item.ID,
		Title:     item.Desc,
		CoverURL:  item.Video.Cover,
		Duration:  item.Video.Duration,
		Views:     item.Stats.PlayCount,
		Likes:     item.Stats.DiggCount,
		Comments:  item.Stats.CommentCount,
		Shares:    item.Stats.ShareCount,
		CreatedAt: time.Unix(item.CreateTime, 0),
	}
}

func (r *RapidAPI) get(ctx context.Context, path string) ([]byte, error) {
	if r.APIKey == "" {
		return nil, fmt.Errorf("rapidapi key not configured: %w", ErrUnavailable)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", r.BaseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-RapidAPI-Key", r.APIKey)
	req.Header.Set("X-RapidAPI-Host", r.Host)

	resp, err := r.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rapidapi request: %v: %w", err, ErrUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, fmt.Errorf("rapidapi status 404: %w", ErrNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("rapidapi status %d: %w", resp.StatusCode, ErrUnavailable)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("rapidapi read body: %w", ErrUnavailable)
	}
	return body, nil
}
