package analysis

import (
	"fmt"

	"github.com/Olegcreabuilder/createshorts-backend/tiktok"
)

// AccountFallback is the deterministic narrative substituted when the
// model call fails or returns garbage. Templated from the same fetched
// data, so the response payload stays complete.
func AccountFallback(p tiktok.Profile) AccountAnalysis {
	return AccountAnalysis{
		Niche:   "Contenu Général",
		Summary: fmt.Sprintf("Compte TikTok avec %d abonnés. Le compte nécessite une analyse plus approfondie pour déterminer sa stratégie de contenu.", p.Followers),
		Strengths: []string{
			"Présence établie sur TikTok",
			"Base d'abonnés existante",
			"Contenu régulier",
			"Engagement de la communauté",
		},
		Weaknesses: []string{
			"Stratégie de contenu à affiner",
			"Optimisation de la bio recommandée",
			"Cohérence visuelle à améliorer",
			"Fréquence de publication à analyser",
		},
		Recommendations: []string{
			"Définir une ligne éditoriale claire",
			"Optimiser les descriptions avec des CTA",
			"Analyser les meilleurs horaires de publication",
			"Créer du contenu basé sur les tendances actuelles",
		},
	}
}

// VideoFallback is the deterministic single-video narrative.
func VideoFallback() VideoAnalysis {
	return VideoAnalysis{
		Summary: "Analyse basée sur les métriques de performance de la vidéo.",
		Strengths: []string{
			"Bon taux d'engagement",
			"Format adapté à TikTok",
			"Métriques positives",
		},
		Improvements: []string{
			"Optimiser le titre",
			"Améliorer le hook",
			"Augmenter l'engagement",
		},
		Recommendations: []string{
			"Créer du contenu similaire",
			"Analyser les commentaires",
			"Tester différents horaires",
		},
		Score: 7.0,
	}
}
