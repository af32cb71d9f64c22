// Package billing processes payment-provider webhooks and keeps the
// profile's plan and subscription status current.
package billing

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log"
	"net/http"

	"github.com/Olegcreabuilder/createshorts-backend/db"
	"github.com/Olegcreabuilder/createshorts-backend/httputil"
)

// Event is the provider's webhook envelope.
type Event struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ClientReferenceID string `json:"client_reference_id"`
			CustomerEmail     string `json:"customer_email"`
			Metadata          struct {
				UserID string `json:"user_id"`
			} `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

// userID resolves the profile the event refers to. Checkout sessions carry
// client_reference_id; subscription events carry it in metadata.
func (e *Event) userID() string {
	if e.Data.Object.ClientReferenceID != "" {
		return e.Data.Object.ClientReferenceID
	}
	return e.Data.Object.Metadata.UserID
}

// Handler processes payment webhooks.
type Handler struct {
	DB *db.CompatDB

	// Secret, when set, must match the X-Webhook-Secret header.
	Secret string
}

// HandleWebhook ingests one provider event. Events are recorded by ID
// before any state change, so a replayed delivery is acknowledged without
// being applied twice.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	if h.Secret != "" {
		got := r.Header.Get("X-Webhook-Secret")
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.Secret)) != 1 {
			httputil.WriteError(w, 401, "signature invalide")
			return
		}
	}

	httputil.MaxBody(r, httputil.DefaultBodyLimit)

	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		httputil.WriteError(w, 400, "payload invalide")
		return
	}
	var event Event
	if err := json.Unmarshal(raw, &event); err != nil || event.ID == "" || event.Type == "" {
		httputil.WriteError(w, 400, "événement invalide")
		return
	}

	applied, err := h.process(r.Context(), event, raw)
	if err != nil {
		log.Printf("webhook %s (%s): %v", event.ID, event.Type, err)
		httputil.WriteError(w, 500, "échec du traitement de l'événement")
		return
	}

	status := "processed"
	if !applied {
		status = "already_processed"
	}
	httputil.WriteJSON(w, 200, map[string]string{"status": status, "id": event.ID})
}

// process returns false when the event ID was already recorded.
func (h *Handler) process(ctx context.Context, event Event, raw json.RawMessage) (bool, error) {
	applied := false
	err := db.WithTx(ctx, h.DB, func(tx *db.CompatConn) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO webhook_events (id, event_type, payload, received_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING`,
			event.ID, event.Type, string(raw), db.NowUTC())
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			// Replay; leave profile state untouched.
			return nil
		}
		applied = true
		return h.apply(ctx, tx, event)
	})
	return applied, err
}

func (h *Handler) apply(ctx context.Context, tx *db.CompatConn, event Event) error {
	userID := event.userID()
	if userID == "" {
		// Events we cannot attribute are recorded but otherwise ignored.
		log.Printf("webhook %s (%s) carries no user reference", event.ID, event.Type)
		return nil
	}

	// Make sure a profile row exists to update; checkout can complete
	// before the user ever called this API.
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO profiles (user_id, email, created_at) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO NOTHING`,
		userID, event.Data.Object.CustomerEmail, db.NowUTC()); err != nil {
		return err
	}

	switch event.Type {
	case "checkout.session.completed":
		_, err := tx.ExecContext(ctx,
			"UPDATE profiles SET plan = 'pro', subscription_status = 'active' WHERE user_id = ?", userID)
		return err
	case "customer.subscription.deleted":
		_, err := tx.ExecContext(ctx,
			"UPDATE profiles SET plan = 'free', subscription_status = 'canceled' WHERE user_id = ?", userID)
		return err
	case "invoice.payment_failed":
		_, err := tx.ExecContext(ctx,
			"UPDATE profiles SET subscription_status = 'past_due' WHERE user_id = ?", userID)
		return err
	default:
		log.Printf("webhook %s: unhandled event type %s", event.ID, event.Type)
		return nil
	}
}
