package notify

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"sort"
	"strconv"
	"strings"
	"time"
)

// SMTPDispatcher sends plain-text mail.
type SMTPDispatcher struct {
	addr string
	auth smtp.Auth
	from string
	to   []string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPDispatcher(host string, port int, username, password, from string, to []string) *SMTPDispatcher {
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPDispatcher{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		auth: auth,
		from: from,
		to:   to,
		send: smtp.SendMail,
	}
}

func (d *SMTPDispatcher) Send(ctx context.Context, msg Message) error {
	if len(d.to) == 0 {
		return nil
	}
	body := composeMail(d.from, d.to, msg, time.Now())
	errCh := make(chan error, 1)
	go func() { errCh <- d.send(d.addr, d.auth, d.from, d.to, body) }()
	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("smtp send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func composeMail(from string, to []string, msg Message, now time.Time) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", now.Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Body, "\n", "\r\n"))
	b.WriteString("\r\n")
	if len(msg.Facts) > 0 {
		keys := make([]string, 0, len(msg.Facts))
		for k := range msg.Facts {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("\r\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "%s: %s\r\n", k, msg.Facts[k])
		}
	}
	if len(msg.Attachments) > 0 {
		b.WriteString("\r\nAttachments:\r\n")
		for _, a := range msg.Attachments {
			fmt.Fprintf(&b, "  %s\r\n", a)
		}
	}
	return []byte(b.String())
}
