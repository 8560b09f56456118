package mail

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	signup "github.com/goliatone/go-signup"
)

// SMTPMailer delivers rendered messages through a plain SMTP relay
type SMTPMailer struct {
	from     string
	addr     string
	auth     smtp.Auth
	renderer *Renderer
	send     func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

var _ signup.Mailer = (*SMTPMailer)(nil)

type SMTPOptions struct {
	From     string
	Host     string
	Port     int
	Username string
	Password string
}

func NewSMTPMailer(opts SMTPOptions, renderer *Renderer) *SMTPMailer {
	m := &SMTPMailer{
		from:     opts.From,
		addr:     net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)),
		renderer: renderer,
		send:     smtp.SendMail,
	}

	if opts.Username != "" {
		m.auth = smtp.PlainAuth("", opts.Username, opts.Password, opts.Host)
	}

	return m
}

func (m *SMTPMailer) Send(ctx context.Context, n signup.Notification) error {
	msg, err := m.renderer.Render(n)
	if err != nil {
		return err
	}
	msg.From = m.from

	done := make(chan error, 1)
	go func() {
		done <- m.send(m.addr, m.auth, m.from, []string{msg.To}, encode(msg, time.Now()))
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("smtp send %s: %w", n.Kind, err)
		}
		return nil
	}
}

func encode(msg Message, at time.Time) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s\r\n", msg.From)
	fmt.Fprintf(&buf, "To: %s\r\n", msg.To)
	fmt.Fprintf(&buf, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&buf, "Date: %s\r\n", at.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	buf.WriteString("\r\n")
	buf.WriteString(msg.Body)
	return buf.Bytes()
}
