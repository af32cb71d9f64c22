// Package notify runs the background sweep that delivers onboarding email
// to profiles that have not received it yet.
package notify

import (
	"context"
	"log"
	"time"

	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/mail"
)

const (
	// DefaultInterval is the pause between sweeps.
	DefaultInterval = 10 * time.Minute
	// DefaultSendDelay spaces out deliveries within one sweep so the SMTP
	// relay never sees a burst.
	DefaultSendDelay = time.Second
)

// Sweeper periodically finds profiles awaiting their welcome email and
// delivers it.
type Sweeper struct {
	DB     *db.CompatDB
	Mailer mail.Sender

	Interval  time.Duration
	SendDelay time.Duration
}

func (s *Sweeper) interval() time.Duration {
	if s.Interval > 0 {
		return s.Interval
	}
	return DefaultInterval
}

func (s *Sweeper) sendDelay() time.Duration {
	if s.SendDelay > 0 {
		return s.SendDelay
	}
	return DefaultSendDelay
}

// Run sweeps until ctx is canceled. One sweep runs immediately on start.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval())
	defer ticker.Stop()

	if n, err := s.Sweep(ctx); err != nil {
		log.Printf("welcome sweep failed: %v", err)
	} else if n > 0 {
		log.Printf("welcome sweep: %d emails sent", n)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("welcome sweep failed: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("welcome sweep: %d emails sent", n)
			}
		}
	}
}

type pendingProfile struct {
	userID      string
	email       string
	displayName string
}

// Sweep sends the welcome email to every pending profile and marks each one
// only after its delivery succeeded, so a failed send is retried next sweep.
// Returns the number of emails sent.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	rows, err := s.DB.QueryContext(ctx, `
		SELECT p.user_id, p.email, COALESCE(ca.display_name, '')
		FROM profiles p
		LEFT JOIN connected_accounts ca ON ca.user_id = p.user_id
		WHERE p.welcome_email_sent = 0 AND p.email != ''
		ORDER BY p.created_at`)
	if err != nil {
		return 0, err
	}

	var pending []pendingProfile
	for rows.Next() {
		var p pendingProfile
		if err := rows.Scan(&p.userID, &p.email, &p.displayName); err != nil {
			rows.Close()
			return 0, err
		}
		pending = append(pending, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	sent := 0
	for i, p := range pending {
		if i > 0 {
			select {
			case <-ctx.Done():
				return sent, ctx.Err()
			case <-time.After(s.sendDelay()):
			}
		}

		err := s.Mailer.Send(ctx, p.email, mail.WelcomeSubject, mail.WelcomeBody(p.displayName))
		if err != nil {
			log.Printf("welcome email to %s failed: %v", p.email, err)
			continue
		}

		if _, err := s.DB.ExecContext(ctx,
			"UPDATE profiles SET welcome_email_sent = 1 WHERE user_id = ?", p.userID); err != nil {
			log.Printf("mark welcome sent for %s failed: %v", p.userID, err)
			continue
		}
		sent++
	}
	return sent, nil
}
