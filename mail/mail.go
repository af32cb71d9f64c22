// Package mail sends transactional email over SMTP.
package mail

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"
)

// Sender delivers a single message to one recipient.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

// SMTPMailer is a Sender backed by a plain SMTP server.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	FromName string
	UseTLS   bool

	// DialTimeout bounds the TCP connect. Zero means 30 seconds.
	DialTimeout time.Duration
}

func (m *SMTPMailer) dialTimeout() time.Duration {
	if m.DialTimeout > 0 {
		return m.DialTimeout
	}
	return 30 * time.Second
}

// buildMessage assembles headers and an HTML body into a wire-format message.
func (m *SMTPMailer) buildMessage(to, subject, body string) string {
	fromName := m.FromName
	if fromName == "" {
		fromName = "CreateShorts"
	}

	var msg strings.Builder
	msg.WriteString(fmt.Sprintf("From: %s <%s>\r\n", fromName, m.From))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", to))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)
	msg.WriteString("\r\n")
	return msg.String()
}

// Send delivers one message. The SMTP dialog runs on a fresh connection so
// a dead server never wedges the caller past the dial timeout.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	if to == "" {
		return fmt.Errorf("mail: empty recipient")
	}

	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	dialer := &net.Dialer{Timeout: m.dialTimeout()}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if m.UseTLS {
		tlsConfig := &tls.Config{
			ServerName: m.Host,
			MinVersion: tls.VersionTLS12,
		}
		if err := client.StartTLS(tlsConfig); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	if m.User != "" && m.Password != "" {
		auth := smtp.PlainAuth("", m.User, m.Password, m.Host)
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := client.Mail(m.From); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("start message: %w", err)
	}
	if _, err := w.Write([]byte(m.buildMessage(to, subject, body))); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}

	// Quit failures after a committed DATA are harmless.
	client.Quit()
	return nil
}
