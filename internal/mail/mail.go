// Package mail delivers the rendered digest over SMTP as a
// multipart/alternative message with text and HTML parts.
package mail

import (
	"crypto/tls"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/regwatch/telebrief/internal/logger"
)

const boundary = "TelebriefDigestBoundary"

// TLS modes accepted by Options.TLSMode.
const (
	TLSImplicit = "tls"
	TLSStart    = "starttls"
	TLSNone     = "none"
)

type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	TLSMode  string
}

type Mailer struct {
	opts Options
}

func New(opts Options) *Mailer {
	return &Mailer{opts: opts}
}

// Send delivers one digest to all recipients in a single message.
func (m *Mailer) Send(to []string, subject, htmlBody, textBody string) error {
	if len(to) == 0 {
		return nil
	}

	msg := buildMessage(m.opts.From, to, subject, htmlBody, textBody)
	addr := fmt.Sprintf("%s:%d", m.opts.Host, m.opts.Port)

	var auth smtp.Auth
	if m.opts.Username != "" && m.opts.Password != "" {
		auth = smtp.PlainAuth("", m.opts.Username, m.opts.Password, m.opts.Host)
	}

	logger.Debug("sending digest email", "host", addr, "recipients", len(to))

	switch m.opts.TLSMode {
	case TLSImplicit:
		return m.sendImplicitTLS(addr, auth, to, msg)
	case TLSStart:
		return m.sendStartTLS(addr, auth, to, msg)
	default:
		if err := smtp.SendMail(addr, auth, m.opts.From, to, msg); err != nil {
			return fmt.Errorf("mail: send: %w", err)
		}
		return nil
	}
}

// sendImplicitTLS handles servers that expect TLS from the first byte,
// typically on port 465.
func (m *Mailer) sendImplicitTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	conn, err := tls.Dial("tcp", addr, &tls.Config{
		ServerName: m.opts.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("mail: tls dial: %w", err)
	}
	defer conn.Close()

	client, err := smtp.NewClient(conn, m.opts.Host)
	if err != nil {
		return fmt.Errorf("mail: smtp client: %w", err)
	}
	defer client.Close()

	return m.transmit(client, auth, to, msg)
}

// sendStartTLS upgrades a plain connection, typically on port 587.
func (m *Mailer) sendStartTLS(addr string, auth smtp.Auth, to []string, msg []byte) error {
	client, err := smtp.Dial(addr)
	if err != nil {
		return fmt.Errorf("mail: dial: %w", err)
	}
	defer client.Close()

	err = client.StartTLS(&tls.Config{
		ServerName: m.opts.Host,
		MinVersion: tls.VersionTLS12,
	})
	if err != nil {
		return fmt.Errorf("mail: starttls: %w", err)
	}

	return m.transmit(client, auth, to, msg)
}

func (m *Mailer) transmit(client *smtp.Client, auth smtp.Auth, to []string, msg []byte) error {
	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return fmt.Errorf("mail: auth: %w", err)
		}
	}

	if err := client.Mail(m.opts.From); err != nil {
		return fmt.Errorf("mail: mail from: %w", err)
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return fmt.Errorf("mail: rcpt %s: %w", rcpt, err)
		}
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("mail: data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("mail: write body: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("mail: close body: %w", err)
	}

	return client.Quit()
}

// buildMessage assembles the multipart/alternative MIME message. The
// subject is Q-encoded so non-ASCII characters survive strict servers.
func buildMessage(from string, to []string, subject, htmlBody, textBody string) []byte {
	var msg strings.Builder

	msg.WriteString(fmt.Sprintf("From: %s\r\n", from))
	msg.WriteString(fmt.Sprintf("To: %s\r\n", strings.Join(to, ", ")))
	msg.WriteString(fmt.Sprintf("Subject: %s\r\n", mime.QEncoding.Encode("UTF-8", subject)))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString(fmt.Sprintf("Content-Type: multipart/alternative; boundary=%q\r\n", boundary))
	msg.WriteString("\r\n")

	if textBody != "" {
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(textBody)
		msg.WriteString("\r\n")
	}

	if htmlBody != "" {
		msg.WriteString(fmt.Sprintf("--%s\r\n", boundary))
		msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
		msg.WriteString("\r\n")
		msg.WriteString(htmlBody)
		msg.WriteString("\r\n")
	}

	msg.WriteString(fmt.Sprintf("--%s--\r\n", boundary))
	return []byte(msg.String())
}
