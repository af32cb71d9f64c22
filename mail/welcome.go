package mail

import (
	"strings"
	"text/template"
)

// WelcomeSubject is the subject line for the onboarding email.
const WelcomeSubject = "Bienvenue sur CreateShorts !"

var welcomeTmpl = template.Must(template.New("welcome").Parse(`<html><body style="font-family: sans-serif; color: #1f2937;">
<h2>Bonjour{{if .Name}} {{.Name}}{{end}},</h2>
<p>Bienvenue sur <strong>CreateShorts</strong> !</p>
<p>Connectez votre compte TikTok pour obtenir votre première analyse&nbsp;:
statistiques détaillées, score de viralité et recommandations personnalisées.</p>
<p>À très vite,<br>L'équipe CreateShorts</p>
</body></html>`))

// WelcomeBody renders the onboarding email. The display name is omitted
// from the greeting when the profile has no TikTok account yet.
func WelcomeBody(displayName string) string {
	var b strings.Builder
	welcomeTmpl.Execute(&b, struct{ Name string }{Name: displayName})
	return b.String()
}
