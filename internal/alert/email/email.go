// Package email delivers alerts over SMTP submission with STARTTLS.
package email

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/jordan-wright/email"

	"github.com/JakeFAU/award-watcher/internal/alert"
	"github.com/JakeFAU/award-watcher/internal/points"
)

// Config carries the SMTP account and recipients.
type Config struct {
	From     string
	Password string
	To       string
	SMTPHost string
	SMTPPort int
}

// sendFunc submits a composed message; tests replace it to capture messages.
type sendFunc func(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error

// Channel implements points.AlertChannel over SMTP.
type Channel struct {
	cfg  Config
	to   []string
	send sendFunc
}

// New validates cfg and returns an SMTP channel.
func New(cfg Config) (*Channel, error) {
	if strings.TrimSpace(cfg.From) == "" {
		return nil, fmt.Errorf("email sender is required")
	}
	to := splitRecipients(cfg.To)
	if len(to) == 0 {
		return nil, fmt.Errorf("email recipient is required")
	}
	if cfg.SMTPHost == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if cfg.SMTPPort <= 0 {
		cfg.SMTPPort = 587
	}
	return &Channel{
		cfg:  cfg,
		to:   to,
		send: submit,
	}, nil
}

// Name identifies the channel in logs and metrics.
func (c *Channel) Name() string {
	return "email"
}

// Send renders the event and submits it. The SMTP connection is closed when
// ctx is done.
func (c *Channel) Send(ctx context.Context, event points.AlertEvent) error {
	mail := email.NewEmail()
	mail.From = c.cfg.From
	mail.To = append([]string(nil), c.to...)
	mail.Subject = alert.Subject(event)
	mail.Text = []byte(alert.EmailBody(event))

	addr := c.cfg.SMTPHost + ":" + strconv.Itoa(c.cfg.SMTPPort)
	var auth smtp.Auth
	if c.cfg.Password != "" {
		auth = smtp.PlainAuth("", c.cfg.From, c.cfg.Password, c.cfg.SMTPHost)
	}

	if err := c.send(ctx, mail, addr, auth); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("send email: %w", ctxErr)
		}
		return fmt.Errorf("send email: %w", err)
	}
	return nil
}

// submit runs the SMTP exchange of smtp.SendMail over a connection that is
// cut as soon as ctx is done.
func submit(ctx context.Context, e *email.Email, addr string, auth smtp.Auth) error {
	msg, err := e.Bytes()
	if err != nil {
		return fmt.Errorf("render message: %w", err)
	}
	from, err := mail.ParseAddress(e.From)
	if err != nil {
		return fmt.Errorf("parse sender: %w", err)
	}
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return fmt.Errorf("parse smtp address: %w", err)
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetDeadline(time.Now()) })
	defer stop()

	client, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp greeting: %w", err)
	}
	defer client.Close() //nolint:errcheck // Quit reports the meaningful error

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if auth != nil {
		if ok, _ := client.Extension("AUTH"); ok {
			if err := client.Auth(auth); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}
	if err := client.Mail(from.Address); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	for _, rcpt := range e.To {
		to, err := mail.ParseAddress(rcpt)
		if err != nil {
			return fmt.Errorf("parse recipient %q: %w", rcpt, err)
		}
		if err := client.Rcpt(to.Address); err != nil {
			return fmt.Errorf("rcpt to %s: %w", to.Address, err)
		}
	}
	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}
	return client.Quit()
}

func splitRecipients(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var _ points.AlertChannel = (*Channel)(nil)
