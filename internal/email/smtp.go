package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/mail"
	"net/smtp"
	"net/textproto"
	"strconv"
	"time"
)

const smtpDialTimeout = 10 * time.Second

// SMTPSender submits mail to an SMTP relay. Port 465 uses implicit TLS;
// any other port upgrades with STARTTLS when the server offers it.
type SMTPSender struct {
	name     string
	host     string
	port     int
	username string
	password string
	from     string
}

func NewSMTPSender(name, host string, port int, username, password, from string) *SMTPSender {
	return &SMTPSender{
		name:     name,
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (s *SMTPSender) Transport() string { return s.name }

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	fromAddr, err := mail.ParseAddress(s.from)
	if err != nil {
		return fmt.Errorf("parse from address: %w", err)
	}
	body, err := buildMIME(s.from, msg)
	if err != nil {
		return err
	}

	conn, err := s.dial(ctx)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if s.port != 465 {
		if ok, _ := c.Extension("STARTTLS"); ok {
			if err := c.StartTLS(&tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12}); err != nil {
				return fmt.Errorf("starttls: %w", err)
			}
		}
	}
	if s.username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := c.Mail(fromAddr.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(msg.To); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return c.Quit()
}

func (s *SMTPSender) dial(ctx context.Context) (net.Conn, error) {
	addr := net.JoinHostPort(s.host, strconv.Itoa(s.port))
	dialer := &net.Dialer{Timeout: smtpDialTimeout}
	if s.port == 465 {
		tlsDialer := &tls.Dialer{
			NetDialer: dialer,
			Config:    &tls.Config{ServerName: s.host, MinVersion: tls.VersionTLS12},
		}
		return tlsDialer.DialContext(ctx, "tcp", addr)
	}
	return dialer.DialContext(ctx, "tcp", addr)
}

// buildMIME renders a text/plain, text/html or multipart/alternative message.
func buildMIME(from string, msg Message) ([]byte, error) {
	var buf bytes.Buffer
	header := func(k, v string) { fmt.Fprintf(&buf, "%s: %s\r\n", k, v) }

	header("From", from)
	header("To", msg.To)
	header("Subject", mime.QEncoding.Encode("utf-8", msg.Subject))
	header("Date", time.Now().Format(time.RFC1123Z))
	header("MIME-Version", "1.0")

	switch {
	case msg.Text != "" && msg.HTML != "":
		mw := multipart.NewWriter(&buf)
		header("Content-Type", "multipart/alternative; boundary="+mw.Boundary())
		buf.WriteString("\r\n")
		for _, part := range []struct{ ctype, body string }{
			{"text/plain; charset=UTF-8", msg.Text},
			{"text/html; charset=UTF-8", msg.HTML},
		} {
			w, err := mw.CreatePart(textproto.MIMEHeader{"Content-Type": {part.ctype}})
			if err != nil {
				return nil, fmt.Errorf("build mime part: %w", err)
			}
			if _, err := w.Write([]byte(part.body)); err != nil {
				return nil, fmt.Errorf("build mime part: %w", err)
			}
		}
		if err := mw.Close(); err != nil {
			return nil, fmt.Errorf("build mime: %w", err)
		}
	case msg.HTML != "":
		header("Content-Type", "text/html; charset=UTF-8")
		buf.WriteString("\r\n" + msg.HTML)
	default:
		header("Content-Type", "text/plain; charset=UTF-8")
		buf.WriteString("\r\n" + msg.Text)
	}
	return buf.Bytes(), nil
}
