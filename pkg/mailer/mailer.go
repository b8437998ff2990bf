// Package mailer sends report artifacts over SMTP.
package mailer

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime"
	"net/smtp"
	"strings"

	"github.com/noah-isme/lms-report-api/pkg/config"
)

// Attachment is one file sent with a message.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Mailer delivers mail through a single SMTP host.
type Mailer struct {
	host     string
	port     int
	username string
	password string
	from     string
}

func New(cfg config.MailConfig) *Mailer {
	return &Mailer{
		host:     cfg.Host,
		port:     cfg.Port,
		username: cfg.Username,
		password: cfg.Password,
		from:     cfg.From,
	}
}

// Send builds a multipart message with one attachment and submits it.
func (m *Mailer) Send(to []string, subject, body string, attachment *Attachment) error {
	if len(to) == 0 {
		return fmt.Errorf("mail needs at least one recipient")
	}

	msg := m.compose(to, subject, body, attachment)

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	var auth smtp.Auth
	if m.username != "" {
		auth = smtp.PlainAuth("", m.username, m.password, m.host)
	}
	if err := smtp.SendMail(addr, auth, m.from, to, msg); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

func (m *Mailer) compose(to []string, subject, body string, attachment *Attachment) []byte {
	const boundary = "report-artifact-boundary"
	buf := &bytes.Buffer{}

	fmt.Fprintf(buf, "From: %s\r\n", m.from)
	fmt.Fprintf(buf, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")

	if attachment == nil {
		buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
		buf.WriteString(body)
		return buf.Bytes()
	}

	fmt.Fprintf(buf, "Content-Type: multipart/mixed; boundary=%s\r\n\r\n", boundary)

	fmt.Fprintf(buf, "--%s\r\n", boundary)
	buf.WriteString("Content-Type: text/plain; charset=utf-8\r\n\r\n")
	buf.WriteString(body)
	buf.WriteString("\r\n")

	fmt.Fprintf(buf, "--%s\r\n", boundary)
	fmt.Fprintf(buf, "Content-Type: %s\r\n", attachment.ContentType)
	buf.WriteString("Content-Transfer-Encoding: base64\r\n")
	fmt.Fprintf(buf, "Content-Disposition: attachment; filename=%q\r\n\r\n", attachment.Filename)

	encoded := base64.StdEncoding.EncodeToString(attachment.Data)
	for len(encoded) > 76 {
		buf.WriteString(encoded[:76])
		buf.WriteString("\r\n")
		encoded = encoded[76:]
	}
	buf.WriteString(encoded)
	buf.WriteString("\r\n")
	fmt.Fprintf(buf, "--%s--\r\n", boundary)

	return buf.Bytes()
}
