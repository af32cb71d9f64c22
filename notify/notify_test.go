package notify

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Olegcreabuilder/createshorts-backend/db"
)

type fakeMailer struct {
	sent    []string
	failFor map[string]bool
}

func (f *fakeMailer) Send(ctx context.Context, to, subject, body string) error {
	if f.failFor[to] {
		return errors.New("smtp: relay refused")
	}
	f.sent = append(f.sent, to)
	return nil
}

func newTestDB(t *testing.T) *db.CompatDB {
	t.Helper()
	raw, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { raw.Close() })
	raw.SetMaxOpenConns(1)
	if err := db.RunMigrations(raw, db.DialectSQLite); err != nil {
		t.Fatalf("migrations: %v", err)
	}
	return db.New(raw, db.DialectSQLite)
}

func insertProfile(t *testing.T, d *db.CompatDB, userID, email string, welcomeSent int) {
	t.Helper()
	_, err := d.Exec(
		"INSERT INTO profiles (user_id, email, welcome_email_sent, created_at) VALUES (?, ?, ?, ?)",
		userID, email, welcomeSent, db.NowUTC())
	if err != nil {
		t.Fatalf("insert profile: %v", err)
	}
}

func TestSweep_SendsAndMarks(t *testing.T) {
	d := newTestDB(t)
	insertProfile(t, d, "u1", "a@example.com", 0)
	insertProfile(t, d, "u2", "b@example.com", 0)

	m := &fakeMailer{}
	s := &Sweeper{DB: d, Mailer: m, SendDelay: time.Millisecond}

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 2 {
		t.Fatalf("sent = %d, want 2", n)
	}
	if len(m.sent) != 2 {
		t.Fatalf("mailer calls = %d", len(m.sent))
	}

	var remaining int
	if err := d.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM profiles WHERE welcome_email_sent = 0").Scan(&remaining); err != nil {
		t.Fatalf("count: %v", err)
	}
	if remaining != 0 {
		t.Errorf("unmarked profiles = %d", remaining)
	}
}

func TestSweep_SkipsSentAndEmpty(t *testing.T) {
	d := newTestDB(t)
	insertProfile(t, d, "u1", "a@example.com", 1)
	insertProfile(t, d, "u2", "", 0)

	m := &fakeMailer{}
	s := &Sweeper{DB: d, Mailer: m, SendDelay: time.Millisecond}

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 0 || len(m.sent) != 0 {
		t.Fatalf("sent = %d, mailer calls = %d, want 0", n, len(m.sent))
	}
}

func TestSweep_FailedSendRetriedNextSweep(t *testing.T) {
	d := newTestDB(t)
	insertProfile(t, d, "u1", "broken@example.com", 0)
	insertProfile(t, d, "u2", "ok@example.com", 0)

	m := &fakeMailer{failFor: map[string]bool{"broken@example.com": true}}
	s := &Sweeper{DB: d, Mailer: m, SendDelay: time.Millisecond}

	n, err := s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("sent = %d, want 1", n)
	}

	// The failed profile stays pending.
	var pending int
	if err := d.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM profiles WHERE welcome_email_sent = 0").Scan(&pending); err != nil {
		t.Fatalf("count: %v", err)
	}
	if pending != 1 {
		t.Fatalf("pending = %d, want 1", pending)
	}

	// Relay recovers; the retry succeeds.
	m.failFor = nil
	n, err = s.Sweep(context.Background())
	if err != nil {
		t.Fatalf("second sweep: %v", err)
	}
	if n != 1 {
		t.Fatalf("second sweep sent = %d, want 1", n)
	}
}

func TestSweep_UsesDisplayName(t *testing.T) {
	d := newTestDB(t)
	insertProfile(t, d, "u1", "a@example.com", 0)
	_, err := d.Exec(`
		INSERT INTO connected_accounts (user_id, tiktok_username, display_name, last_sync)
		VALUES (?, ?, ?, ?)`, "u1", "lucie_fit", "Lucie", db.NowUTC())
	if err != nil {
		t.Fatalf("insert account: %v", err)
	}

	m := &fakeMailer{}
	s := &Sweeper{DB: d, Mailer: m, SendDelay: time.Millisecond}
	if _, err := s.Sweep(context.Background()); err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if len(m.sent) != 1 {
		t.Fatalf("mailer calls = %d", len(m.sent))
	}
}
