package analysis

import (
	"fmt"
	"strings"

	"github.com/Olegcreabuilder/createshorts-backend/stats"
	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// AccountPrompt builds the account-analysis prompt. The aggregate
// numbers come straight from the metric engine so the narrative and
// the displayed stats can never disagree.
func AccountPrompt(p tiktok.Profile, videos []tiktok.Video, st stats.Stats) string {
	var b strings.Builder

	b.WriteString("Tu es un expert en analyse de comptes TikTok. Analyse ce compte et fournis une analyse détaillée.\n\n")
	b.WriteString("**Informations du compte:**\n")
	fmt.Fprintf(&b, "- Username: @%s\n", p.Username)
	fmt.Fprintf(&b, "- Nom: %s\n", p.Nickname)
	bio := p.Bio
	if bio == "" {
		bio = "Aucune bio"
	}
	fmt.Fprintf(&b, "- Bio: %q\n", bio)
	fmt.Fprintf(&b, "- Followers: %d\n", p.Followers)
	fmt.Fprintf(&b, "- Following: %d\n", p.Following)
	fmt.Fprintf(&b, "- Total likes: %d\n", p.TotalLikes)
	fmt.Fprintf(&b, "- Nombre de vidéos: %d\n", p.VideoCount)

	fmt.Fprintf(&b, "\n**Statistiques calculées:**\n")
	fmt.Fprintf(&b, "- Vues moyennes: %d\n", st.AvgViews)
	fmt.Fprintf(&b, "- Taux d'engagement: %.1f%%\n", st.EngagementRate)
	fmt.Fprintf(&b, "- Score de viralité: %.1f/10 (%s)\n", st.ViralityScore, st.ViralityLabel)

	if len(videos) > 10 {
		videos = videos[:10]
	}
	fmt.Fprintf(&b, "\n**Dernières vidéos (%d):**\n", len(videos))
	for i, v := range videos {
		fmt.Fprintf(&b, "%d. %q - %d vues, %d likes\n", i+1, v.Title, v.Views, v.Likes)
	}

	b.WriteString(`
**Format de réponse attendu (JSON strict):**
{
  "niche": "Titre court de la niche (ex: Fitness & Lifestyle)",
  "resume": "Un paragraphe de 2-3 phrases résumant le compte, son contenu principal, son audience et son engagement.",
  "points_forts": ["Point fort 1", "Point fort 2", "Point fort 3", "Point fort 4"],
  "points_faibles": ["Point faible 1", "Point faible 2", "Point faible 3", "Point faible 4"],
  "recommandations": ["Recommandation 1", "Recommandation 2", "Recommandation 3", "Recommandation 4"]
}

**Instructions importantes:**
1. Sois spécifique et basé sur les données réelles
2. Les points faibles doivent être constructifs
3. Les recommandations doivent être actionnables
4. RETOURNE UNIQUEMENT LE JSON, rien d'autre`)

	return b.String()
}

// VideoPrompt builds the single-video analysis prompt.
func VideoPrompt(v tiktok.Video) string {
	title := v.Title
	if title == "" {
		title = "Sans titre"
	}

	var b strings.Builder
	b.WriteString("Tu es un expert en analyse de vidéos TikTok. Analyse cette vidéo et fournis un rapport détaillé.\n\n")
	b.WriteString("**Informations de la vidéo:**\n")
	fmt.Fprintf(&b, "- Titre: %q\n", title)
	fmt.Fprintf(&b, "- Vues: %d\n", v.Views)
	fmt.Fprintf(&b, "- Likes: %d\n", v.Likes)
	fmt.Fprintf(&b, "- Commentaires: %d\n", v.Comments)
	fmt.Fprintf(&b, "- Partages: %d\n", v.Shares)
	fmt.Fprintf(&b, "- Durée: %d secondes\n", v.Duration)

	b.WriteString(`
**Format de réponse attendu (JSON strict):**
{
  "summary": "Un paragraphe résumant la performance et le contenu de la vidéo.",
  "strengths": ["Point fort 1", "Point fort 2", "Point fort 3"],
  "improvements": ["Amélioration 1", "Amélioration 2", "Amélioration 3"],
  "recommendations": ["Recommandation 1", "Recommandation 2", "Recommandation 3"],
  "score": 8.5
}

**Instructions:**
1. Base ton analyse sur les métriques de performance
2. Sois spécifique et actionnable
3. Fournis un score entre 0 et 10
4. RETOURNE UNIQUEMENT LE JSON`)

	return b.String()
}
