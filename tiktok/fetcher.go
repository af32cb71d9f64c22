package tiktok

import (
	"context"
	"fmt"
	"log"
)

// DefaultVideoCount is the video window size used when callers pass 0.
const DefaultVideoCount = 10

// Source is a single upstream data provider. Implementations map their
// own payload dialect into the canonical Profile/Video shapes.
type Source interface {
	Name() string
	Profile(ctx context.Context, handle string) (Profile, error)
	Videos(ctx context.Context, handle string, count int) ([]Video, error)
	VideoByURL(ctx context.Context, videoURL string) (Video, error)
}

// Fetcher tries an ordered list of sources with early return on the
// first success. One attempt per source, no retries.
type Fetcher struct {
	sources []Source
}

// NewFetcher creates a Fetcher that consults sources in order.
func NewFetcher(sources ...Source) *Fetcher {
	return &Fetcher{sources: sources}
}

// FetchProfile resolves a handle to a normalized profile. When every
// source fails or returns an empty user object, the error wraps
// ErrNotFound regardless of the underlying cause so the caller can map
// it to a 404.
func (f *Fetcher) FetchProfile(ctx context.Context, handle string) (Profile, error) {
	for _, s := range f.sources {
		p, err := s.Profile(ctx, handle)
		if err == nil {
			return p, nil
		}
		log.Printf("profile lookup via %s failed for @%s: %v", s.Name(), handle, err)
	}
	return Profile{}, fmt.Errorf("no source returned a profile for @%s: %w", handle, ErrNotFound)
}

// FetchVideos returns up to count recent videos for a handle. It never
// fails: downstream stat computation tolerates an empty window, so
// total source failure degrades to an empty slice. A source that
// succeeds with zero videos falls through to the next one.
func (f *Fetcher) FetchVideos(ctx context.Context, handle string, count int) []Video {
	if count <= 0 {
		count = DefaultVideoCount
	}
	for _, s := range f.sources {
		videos, err := s.Videos(ctx, handle, count)
		if err != nil {
			log.Printf("video listing via %s failed for @%s: %v", s.Name(), handle, err)
			continue
		}
		if len(videos) == 0 {
			continue
		}
		if len(videos) > count {
			videos = videos[:count]
		}
		return videos
	}
	return []Video{}
}

// FetchVideo resolves a single video by its public URL, with the same
// fallback walk as FetchProfile.
func (f *Fetcher) FetchVideo(ctx context.Context, videoURL string) (Video, error) {
	for _, s := range f.sources {
		v, err := s.VideoByURL(ctx, videoURL)
		if err == nil {
			return v, nil
		}
		log.Printf("video lookup via %s failed: %v", s.Name(), err)
	}
	return Video{}, fmt.Errorf("no source returned the video: %w", ErrNotFound)
}
