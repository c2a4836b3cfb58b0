package email

import (
	"bufio"
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewTransport_Precedence(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "sendgrid wins over everything",
			cfg: Config{
				SendGridAPIKey:     "SG.key",
				AccountUser:        "me@gmail.com",
				AccountAppPassword: "pw",
				SMTPHost:           "mail.local", SMTPPort: 25, SMTPUser: "u", SMTPPass: "p",
				ResendAPIKey: "re_key",
			},
			want: "sendgrid",
		},
		{
			name: "gmail before generic smtp",
			cfg: Config{
				AccountUser:        "me@gmail.com",
				AccountAppPassword: "pw",
				SMTPHost:           "mail.local", SMTPPort: 25, SMTPUser: "u", SMTPPass: "p",
			},
			want: "gmail",
		},
		{
			name: "gmail needs both user and password",
			cfg:  Config{AccountUser: "me@gmail.com", ResendAPIKey: "re_key"},
			want: "resend",
		},
		{
			name: "generic smtp before resend",
			cfg: Config{
				SMTPHost: "mail.local", SMTPPort: 25, SMTPUser: "u", SMTPPass: "p",
				ResendAPIKey: "re_key",
			},
			want: "smtp",
		},
		{
			name: "partial smtp config is ignored",
			cfg:  Config{SMTPHost: "mail.local", SMTPPort: 25},
			want: "console",
		},
		{
			name: "nothing configured",
			cfg:  Config{},
			want: "console",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewTransport(tt.cfg, discardLogger()).Transport()
			if got != tt.want {
				t.Errorf("transport = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNewTransport_SendGridRelay(t *testing.T) {
	s, ok := NewTransport(Config{SendGridAPIKey: "SG.key", From: "a@b.c"}, discardLogger()).(*SMTPSender)
	if !ok {
		t.Fatal("expected *SMTPSender")
	}
	if s.host != "smtp.sendgrid.net" || s.port != 587 || s.username != "apikey" || s.password != "SG.key" {
		t.Errorf("unexpected relay settings: %+v", s)
	}
}

func TestNewTransport_GmailDefaultsFromToAccount(t *testing.T) {
	s := NewTransport(Config{AccountUser: "me@gmail.com", AccountAppPassword: "pw"}, discardLogger()).(*SMTPSender)
	if s.from != "me@gmail.com" {
		t.Errorf("from = %q, want account address", s.from)
	}
	if s.host != "smtp.gmail.com" || s.port != 587 {
		t.Errorf("unexpected gmail settings: %s:%d", s.host, s.port)
	}
}

type fakeSender struct {
	sendFn func(ctx context.Context, msg Message) error
	sent   []Message
}

func (f *fakeSender) Send(ctx context.Context, msg Message) error {
	f.sent = append(f.sent, msg)
	if f.sendFn != nil {
		return f.sendFn(ctx, msg)
	}
	return nil
}

func (f *fakeSender) Transport() string { return "fake" }

func TestNotifier_SendEmailWithoutTransportLogsAndSucceeds(t *testing.T) {
	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	n := NewNotifier(NewTransport(Config{}, logger), logger)

	if !n.SendEmail(context.Background(), "user@example.com", "hi", "body", "") {
		t.Fatal("expected SendEmail to report success")
	}
	if !strings.Contains(logs.String(), "user@example.com") {
		t.Errorf("expected message to be logged, got %q", logs.String())
	}
}

func TestNotifier_SendEmailTransportError(t *testing.T) {
	sender := &fakeSender{sendFn: func(context.Context, Message) error {
		return errors.New("connection refused")
	}}
	n := NewNotifier(sender, discardLogger())

	if n.SendEmail(context.Background(), "user@example.com", "hi", "body", "") {
		t.Error("expected false on transport error")
	}
}

func TestNotifier_SendEmailTransportPanic(t *testing.T) {
	sender := &fakeSender{sendFn: func(context.Context, Message) error {
		panic("boom")
	}}
	n := NewNotifier(sender, discardLogger())

	if n.SendEmail(context.Background(), "user@example.com", "hi", "body", "") {
		t.Error("expected false on transport panic")
	}
}

func TestNotifier_SendMagicLink(t *testing.T) {
	sender := &fakeSender{}
	n := NewNotifier(sender, discardLogger())
	link := "https://app.layoffproof.com/auth/verify?token=abc&x=1"

	if !n.SendMagicLink(context.Background(), "user@example.com", link) {
		t.Fatal("expected success")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(sender.sent))
	}
	msg := sender.sent[0]
	if msg.To != "user@example.com" {
		t.Errorf("to = %q", msg.To)
	}
	if !strings.Contains(msg.Text, link) {
		t.Error("text body missing link")
	}
	if !strings.Contains(msg.Text, "15 minutes") || !strings.Contains(msg.HTML, "15 minutes") {
		t.Error("expiry notice missing")
	}
	if !strings.Contains(msg.HTML, "token=abc&amp;x=1") {
		t.Errorf("html link not escaped: %s", msg.HTML)
	}
}

func TestBuildMIME(t *testing.T) {
	t.Run("multipart when both bodies present", func(t *testing.T) {
		raw, err := buildMIME("Layoff Proof <noreply@layoffproof.com>", Message{
			To: "a@b.c", Subject: "Hello", Text: "plain", HTML: "<p>html</p>",
		})
		if err != nil {
			t.Fatal(err)
		}
		s := string(raw)
		if !strings.Contains(s, "Content-Type: multipart/alternative; boundary=") {
			t.Errorf("missing multipart header:\n%s", s)
		}
		if !strings.Contains(s, "plain") || !strings.Contains(s, "<p>html</p>") {
			t.Error("missing a body part")
		}
	})

	t.Run("text only", func(t *testing.T) {
		raw, err := buildMIME("noreply@layoffproof.com", Message{To: "a@b.c", Subject: "Hi", Text: "plain"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), "Content-Type: text/plain; charset=UTF-8\r\n\r\nplain") {
			t.Errorf("unexpected message:\n%s", raw)
		}
	})

	t.Run("non-ascii subject is encoded", func(t *testing.T) {
		raw, err := buildMIME("noreply@layoffproof.com", Message{To: "a@b.c", Subject: "Café", Text: "x"})
		if err != nil {
			t.Fatal(err)
		}
		if !strings.Contains(string(raw), "Subject: =?utf-8?q?") {
			t.Errorf("subject not encoded:\n%s", raw)
		}
	})
}

// fakeSMTP is a minimal plaintext SMTP server that records one delivery.
type fakeSMTP struct {
	ln net.Listener

	mu   sync.Mutex
	auth string
	from string
	rcpt string
	data string
}

func startFakeSMTP(t *testing.T) *fakeSMTP {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	s := &fakeSMTP{ln: ln}
	t.Cleanup(func() { ln.Close() })
	go s.serve()
	return s
}

func (s *fakeSMTP) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *fakeSMTP) serve() {
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = io.WriteString(conn, line+"\r\n") }

	reply("220 fake ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"):
			reply("250-fake")
			reply("250 AUTH PLAIN")
		case strings.HasPrefix(cmd, "AUTH PLAIN"):
			s.mu.Lock()
			s.auth = strings.TrimSpace(line[len("AUTH PLAIN"):])
			s.mu.Unlock()
			reply("235 ok")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = line[len("MAIL FROM:"):]
			s.mu.Unlock()
			reply("250 ok")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			s.mu.Lock()
			s.rcpt = line[len("RCPT TO:"):]
			s.mu.Unlock()
			reply("250 ok")
		case cmd == "DATA":
			reply("354 go ahead")
			var body strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				body.WriteString(l)
			}
			s.mu.Lock()
			s.data = body.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 ok")
		}
	}
}

func TestSMTPSender_Send(t *testing.T) {
	srv := startFakeSMTP(t)
	sender := NewSMTPSender("smtp", "127.0.0.1", srv.port(), "user", "secret", "Layoff Proof <noreply@layoffproof.com>")

	err := sender.Send(context.Background(), Message{
		To: "user@example.com", Subject: "Sign in", Text: "click", HTML: "<a>click</a>",
	})
	if err != nil {
		t.Fatalf("Send: %v", err)
	}

	srv.mu.Lock()
	defer srv.mu.Unlock()
	if srv.auth == "" {
		t.Error("expected AUTH PLAIN credentials")
	}
	if srv.from != "<noreply@layoffproof.com>" {
		t.Errorf("MAIL FROM = %q", srv.from)
	}
	if srv.rcpt != "<user@example.com>" {
		t.Errorf("RCPT TO = %q", srv.rcpt)
	}
	if !strings.Contains(srv.data, "Subject: Sign in") {
		t.Errorf("data missing subject:\n%s", srv.data)
	}
}

func TestSMTPSender_InvalidFrom(t *testing.T) {
	sender := NewSMTPSender("smtp", "127.0.0.1", 1, "", "", "not an address")
	if err := sender.Send(context.Background(), Message{To: "a@b.c", Text: "x"}); err == nil {
		t.Error("expected error for malformed from address")
	}
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	sender := NewSMTPSender("smtp", "127.0.0.1", port, "", "", "noreply@layoffproof.com")
	err = sender.Send(context.Background(), Message{To: "a@b.c", Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "dial smtp") {
		t.Errorf("err = %v, want dial error on port %s", err, strconv.Itoa(port))
	}
}
