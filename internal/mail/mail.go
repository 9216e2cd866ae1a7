// Package mail renders transactional emails and sends them over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	htmltemplate "html/template"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	texttemplate "text/template"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

//go:embed templates/*
var files embed.FS

var (
	htmlTemplates = htmltemplate.Must(htmltemplate.ParseFS(files, "templates/*.html"))
	textTemplates = texttemplate.Must(texttemplate.ParseFS(files, "templates/*.txt"))
)

// Message is a rendered email with both an HTML and a plain-text body.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

func render(to, subject, name string, data any) (Message, error) {
	var h, t bytes.Buffer
	if err := htmlTemplates.ExecuteTemplate(&h, name+".html", data); err != nil {
		return Message{}, errors.Wrapf(err, "render %s html", name)
	}
	if err := textTemplates.ExecuteTemplate(&t, name+".txt", data); err != nil {
		return Message{}, errors.Wrapf(err, "render %s text", name)
	}
	return Message{To: to, Subject: subject, HTML: h.String(), Text: t.String()}, nil
}

func Verification(to, name, link string) (Message, error) {
	return render(to, "Verifica tu correo", "verification", map[string]string{
		"Name": name, "Link": link,
	})
}

func PasswordReset(to, name, link string, ttl time.Duration) (Message, error) {
	return render(to, "Restablece tu contraseña", "password_reset", map[string]string{
		"Name": name, "Link": link, "TTL": ttl.String(),
	})
}

func RegistrationPending(to, name, role string) (Message, error) {
	return render(to, "Registro pendiente de aprobación", "registration_pending", map[string]string{
		"Name": name, "Role": role,
	})
}

func AccountDeleted(to, name string) (Message, error) {
	return render(to, "Tu cuenta fue eliminada", "account_deleted", map[string]string{
		"Name": name,
	})
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, m Message) error
}

// Encode builds the multipart/alternative RFC 5322 body of m.
func Encode(from string, m Message) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	var buf bytes.Buffer
	buf.WriteString("From: " + from + "\r\n")
	buf.WriteString("To: " + m.To + "\r\n")
	buf.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.Subject) + "\r\n")
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Date: " + time.Now().UTC().Format(time.RFC1123Z) + "\r\n")
	buf.WriteString(`Content-Type: multipart/alternative; boundary="` + mw.Boundary() + "\"\r\n\r\n")

	for _, part := range []struct{ ctype, content string }{
		{"text/plain; charset=utf-8", m.Text},
		{"text/html; charset=utf-8", m.HTML},
	} {
		w, err := mw.CreatePart(textproto.MIMEHeader{
			"Content-Type":              {part.ctype},
			"Content-Transfer-Encoding": {"8bit"},
		})
		if err != nil {
			return nil, errors.Wrap(err, "create part")
		}
		if _, err := w.Write([]byte(part.content)); err != nil {
			return nil, errors.Wrap(err, "write part")
		}
	}
	if err := mw.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart")
	}
	buf.Write(body.Bytes())
	return buf.Bytes(), nil
}

// SMTPSender relays messages through an SMTP server.
type SMTPSender struct {
	addr string
	auth smtp.Auth
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

func NewSMTPSender(host string, port int, username, password, from string) *SMTPSender {
	var a smtp.Auth
	if username != "" {
		a = smtp.PlainAuth("", username, password, host)
	}
	return &SMTPSender{
		addr: net.JoinHostPort(host, strconv.Itoa(port)),
		auth: a,
		from: from,
		send: smtp.SendMail,
	}
}

func (s *SMTPSender) Send(ctx context.Context, m Message) error {
	raw, err := Encode(s.from, m)
	if err != nil {
		return err
	}
	if err := s.send(s.addr, s.auth, s.from, []string{m.To}, raw); err != nil {
		return errors.Wrap(err, "smtp send")
	}
	zctx.From(ctx).Debug("Email sent", zap.String("to", m.To), zap.String("subject", m.Subject))
	return nil
}

// LogSender only logs messages. It is used when no SMTP host is configured.
type LogSender struct{}

func (LogSender) Send(ctx context.Context, m Message) error {
	zctx.From(ctx).Info("Email not sent: SMTP disabled",
		zap.String("to", m.To),
		zap.String("subject", m.Subject),
	)
	return nil
}

// SendAsync delivers m in the background and logs failures. A non-nil
// buildErr from rendering is logged and nothing is sent.
func SendAsync(ctx context.Context, s Sender, m Message, buildErr error) {
	lg := zctx.From(ctx)
	if buildErr != nil {
		lg.Warn("Render email", zap.Error(buildErr))
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
		if err := s.Send(ctx, m); err != nil {
			lg.Warn("Send email", zap.String("to", m.To), zap.Error(err))
		}
	}()
}
