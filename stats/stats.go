// Package stats computes aggregate performance statistics and the two
// derived scores (virality, growth potential) for a creator's recent
// video window. Pure functions with no I/O: Compute never fails, and
// missing numerics count as zero.
package stats

import (
	"math"
	"sort"

	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// TopVideo is one entry of the top-3-by-views ranking.
type TopVideo struct {
	Title string `json:"title"`
	Views int    `json:"views"`
	Likes int    `json:"likes"`
	URL   string `json:"url"`
}

// Stats is the aggregate snapshot persisted alongside the account.
// The JSON keys are the storage contract; existing rows were written
// with these names.
type Stats struct {
	AvgViews       int        `json:"avgViews"`
	AvgLikes       int        `json:"avgLikes"`
	AvgComments    int        `json:"avgComments"`
	AvgShares      int        `json:"avgShares"`
	EngagementRate float64    `json:"engagementRate"`
	ViralityScore  float64    `json:"viralityScore"`
	ViralityLabel  string     `json:"viralityLabel"`
	GrowthTier     string     `json:"growthPotential"`
	GrowthLabel    string     `json:"growthLabel"`
	GrowthColor    string     `json:"growthColor"`
	TopVideo       *TopVideo  `json:"topVideo"`
	Top3Videos     []TopVideo `json:"top3Videos"`
}

// Sentinel values for an empty video window. Textual fields say "no
// data" explicitly; nothing is ever null except topVideo.
const (
	NoDataLabel      = "Aucune donnée disponible"
	noDataGrowthTier = "none"
	noDataGrowthText = "Aucune donnée"
	neutralColor     = "#9ca3af"
)

// Compute derives the aggregate stats for a profile and its recent
// video window. The engagement rate is view-relative, not
// follower-relative: an earlier follower-relative formula produced
// misleading rates for small accounts with viral outliers.
func Compute(p tiktok.Profile, videos []tiktok.Video) Stats {
	if len(videos) == 0 {
		return Stats{
			ViralityLabel: NoDataLabel,
			GrowthTier:    noDataGrowthTier,
			GrowthLabel:   noDataGrowthText,
			GrowthColor:   neutralColor,
			Top3Videos:    []TopVideo{},
		}
	}

	var totalViews, totalLikes, totalComments, totalShares int
	for _, v := range videos {
		totalViews += v.Views
		totalLikes += v.Likes
		totalComments += v.Comments
		totalShares += v.Shares
	}

	n := float64(len(videos))
	avgViews := roundInt(float64(totalViews) / n)
	avgLikes := roundInt(float64(totalLikes) / n)
	avgComments := roundInt(float64(totalComments) / n)
	avgShares := roundInt(float64(totalShares) / n)

	engagementRate := 0.0
	if totalViews > 0 {
		engagementRate = round1(float64(totalLikes+totalComments+totalShares) / float64(totalViews) * 100)
	}

	sorted := make([]tiktok.Video, len(videos))
	copy(sorted, videos)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Views > sorted[j].Views })

	topN := sorted
	if len(topN) > 3 {
		topN = topN[:3]
	}
	top3 := make([]TopVideo, 0, len(topN))
	top3ViewSum := 0
	for _, v := range topN {
		top3 = append(top3, TopVideo{
			Title: v.Title,
			Views: v.Views,
			Likes: v.Likes,
			URL:   tiktok.WatchURL(p.Username, v.ID),
		})
		top3ViewSum += v.Views
	}

	ratio := 0.0
	if p.Followers > 0 {
		ratio = float64(avgViews) / float64(p.Followers)
	}

	top3Avg := float64(avgViews)
	if len(top3) > 0 {
		top3Avg = float64(top3ViewSum) / float64(len(top3))
	}
	consistency := 0.0
	if top3Avg > 0 {
		consistency = float64(avgViews) / top3Avg
	}

	score := round1(viewsScore(ratio) + engagementScore(engagementRate) + consistencyScore(consistency))
	tier, tierLabel, tierColor := growthPotential(ratio, engagementRate)

	return Stats{
		AvgViews:       avgViews,
		AvgLikes:       avgLikes,
		AvgComments:    avgComments,
		AvgShares:      avgShares,
		EngagementRate: engagementRate,
		ViralityScore:  score,
		ViralityLabel:  viralityLabel(score),
		GrowthTier:     tier,
		GrowthLabel:    tierLabel,
		GrowthColor:    tierColor,
		TopVideo:       &top3[0],
		Top3Videos:     top3,
	}
}

// viewsScore maps reach-relative-to-audience onto 0–6.
func viewsScore(ratio float64) float64 {
	switch {
	case ratio >= 50:
		return 6
	case ratio >= 30:
		return 5.5
	case ratio >= 10:
		return 5
	case ratio >= 5:
		return 4
	case ratio >= 2:
		return 3
	case ratio >= 1:
		return 2
	case ratio >= 0.5:
		return 1
	default:
		return 0.5
	}
}

// engagementScore maps the view-relative engagement rate onto 0–3.
func engagementScore(rate float64) float64 {
	switch {
	case rate >= 8:
		return 3
	case rate >= 6:
		return 2.5
	case rate >= 4:
		return 2
	case rate >= 3:
		return 1.5
	case rate >= 2:
		return 1
	case rate >= 1:
		return 0.7
	default:
		return 0.5
	}
}

// consistencyScore maps avgViews/top3Avg onto 0–1. A ratio near 1
// means performance does not depend on a single outlier.
func consistencyScore(consistency float64) float64 {
	switch {
	case consistency >= 0.6:
		return 1
	case consistency >= 0.4:
		return 0.8
	case consistency >= 0.25:
		return 0.6
	case consistency >= 0.15:
		return 0.4
	default:
		return 0.2
	}
}

func viralityLabel(score float64) string {
	switch {
	case score >= 8:
		return "Potentiel viral excellent"
	case score >= 6:
		return "Bon potentiel viral"
	case score >= 4:
		return "Potentiel viral moyen"
	default:
		return "Potentiel viral limité"
	}
}

// growthPotential derives the coarse tier from the same two inputs as
// the virality score. Rule order matters: the first match wins.
func growthPotential(ratio, engagementRate float64) (tier, label, color string) {
	switch {
	case ratio >= 30 && engagementRate >= 4:
		return "excellent", "Excellente", "#22c55e"
	case ratio >= 10 && engagementRate >= 2:
		return "very_good", "Très bonne", "#84cc16"
	case ratio >= 5 || engagementRate >= 2:
		return "good", "Bonne", "#eab308"
	case ratio < 1 && engagementRate < 1:
		return "low", "Faible", "#ef4444"
	default:
		return "medium", "Moyenne", "#f97316"
	}
}

func roundInt(f float64) int {
	return int(math.Round(f))
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
