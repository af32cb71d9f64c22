package tiktok

import "time"

// Profile is the canonical creator profile shape. Both upstream sources are
// normalized into it; provider-specific field names never leak past this
// package.
type Profile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	Nickname   string `json:"displayName"`
	AvatarURL  string `json:"avatarUrl"`
	Bio        string `json:"bio"`
	Followers  int    `json:"followers"`
	Following  int    `json:"following"`
	TotalLikes int    `json:"totalLikes"`
	VideoCount int    `json:"videoCount"`
	Verified   bool   `json:"verified"`
}

// Video is a single published video with its engagement metrics.
// Ordering follows the source API (most recent first).
type Video struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CoverURL  string    `json:"thumbnail"`
	Duration  int       `json:"duration"`
	Views     int       `json:"views"`
	Likes     int       `json:"likes"`
	Comments  int       `json:"comments"`
	Shares    int       `json:"shares"`
	CreatedAt time.Time `json:"-"`
}

// WatchURL builds the canonical browser URL for a video.
func WatchURL(username, videoID string) string {
	return "https://www.tiktok.com/@" + username + "/video/" + videoID
}
