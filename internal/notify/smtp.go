package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/sitewatch/sitewatch/internal/store"
)

const smtpDialTimeout = 15 * time.Second

// EmailMessage is one outbound alert email, addressed to a single
// recipient (the evaluator isolates failures per recipient).
type EmailMessage struct {
	To       string
	Subject  string
	HTMLBody string
	TextBody string
}

// SmtpSender is the capability surface consumed by the alert evaluator,
// mockable for tests (spec.md §9).
type SmtpSender interface {
	Send(ctx context.Context, settings store.SmtpSettings, password string, msg EmailMessage) error
}

// NetSmtpSender delivers mail over net/smtp + crypto/tls, dispatching on
// store.SecurityMode the way the security-mode enum is defined in spec.md
// §3. No pack repo sends mail, so this follows the ecosystem-standard
// stdlib approach rather than a third-party mail client.
type NetSmtpSender struct{}

// NewSmtpSender returns a sender with no held state; settings/credentials
// are supplied per call.
func NewSmtpSender() *NetSmtpSender {
	return &NetSmtpSender{}
}

func (s *NetSmtpSender) Send(ctx context.Context, settings store.SmtpSettings, password string, msg EmailMessage) error {
	addr := fmt.Sprintf("%s:%d", settings.Host, settings.Port)
	auth := authFor(settings, password)
	raw := buildMIME(settings.FromAddress, msg)

	switch settings.SecurityMode {
	case store.SecurityNone:
		return smtp.SendMail(addr, auth, settings.FromAddress, []string{msg.To}, raw)
	case store.SecurityStartTls:
		return sendStartTLS(ctx, addr, settings.Host, auth, settings.FromAddress, msg.To, raw)
	case store.SecuritySslTls:
		return sendImplicitTLS(ctx, addr, settings.Host, auth, settings.FromAddress, msg.To, raw)
	default:
		return fmt.Errorf("notify: unknown SMTP security mode %q", settings.SecurityMode)
	}
}

func authFor(settings store.SmtpSettings, password string) smtp.Auth {
	if settings.Username == nil || password == "" {
		return nil
	}
	return smtp.PlainAuth("", *settings.Username, password, settings.Host)
}

// sendStartTLS dials plaintext, upgrades with STARTTLS, then delivers.
func sendStartTLS(ctx context.Context, addr, host string, auth smtp.Auth, from, to string, raw []byte) error {
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: dial smtp %s: %w", addr, err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("notify: smtp handshake with %s: %w", addr, err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
		return fmt.Errorf("notify: starttls with %s: %w", addr, err)
	}
	return deliver(c, auth, from, to, raw)
}

// sendImplicitTLS dials directly over TLS (SMTPS).
func sendImplicitTLS(ctx context.Context, addr, host string, auth smtp.Auth, from, to string, raw []byte) error {
	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{Timeout: smtpDialTimeout},
		Config:    &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12},
	}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("notify: tls dial smtp %s: %w", addr, err)
	}
	defer conn.Close()

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		return fmt.Errorf("notify: smtp handshake with %s: %w", addr, err)
	}
	defer c.Close()

	return deliver(c, auth, from, to, raw)
}

func deliver(c *smtp.Client, auth smtp.Auth, from, to string, raw []byte) error {
	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return fmt.Errorf("notify: smtp auth: %w", err)
		}
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("notify: smtp MAIL FROM: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("notify: smtp RCPT TO: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("notify: smtp DATA: %w", err)
	}
	if _, err := w.Write(raw); err != nil {
		w.Close()
		return fmt.Errorf("notify: write smtp body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("notify: close smtp body: %w", err)
	}
	return c.Quit()
}

// buildMIME renders msg as a multipart/alternative message with a text
// fallback ahead of the HTML part, per RFC 2046 ordering.
func buildMIME(from string, msg EmailMessage) []byte {
	const boundary = "sitewatch-alert-boundary"
	var b bytes.Buffer
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "MIME-Version: 1.0\r\n")
	fmt.Fprintf(&b, "Content-Type: multipart/alternative; boundary=%q\r\n\r\n", boundary)

	if msg.TextBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: text/plain; charset=utf-8\r\n\r\n")
		b.WriteString(msg.TextBody)
		b.WriteString("\r\n\r\n")
	}
	if msg.HTMLBody != "" {
		fmt.Fprintf(&b, "--%s\r\n", boundary)
		fmt.Fprintf(&b, "Content-Type: text/html; charset=utf-8\r\n\r\n")
		b.WriteString(msg.HTMLBody)
		b.WriteString("\r\n\r\n")
	}
	fmt.Fprintf(&b, "--%s--\r\n", boundary)
	return b.Bytes()
}
