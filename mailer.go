package auth

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"net/http"
	"net/smtp"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/template/django/v3"
	goerrors "github.com/goliatone/go-errors"
)

// DefaultConfirmEmailPath is where confirmation links land. It points at the
// JSON endpoint so a freshly wired application works without a front end.
var DefaultConfirmEmailPath = "/api/auth/confirm-email"

// DefaultPasswordResetPath is where reset links land. It points at the page
// that collects the new password, not at the API.
var DefaultPasswordResetPath = "/reset-password"

// MailerFunc adapts a function to the Mailer interface
type MailerFunc func(ctx context.Context, msg Email) error

// Send implements Mailer
func (f MailerFunc) Send(ctx context.Context, msg Email) error {
	return f(ctx, msg)
}

// LogMailer writes notifications to the logger instead of delivering them.
// It is the default mailer so development environments work out of the box.
// The debug line carries the rendered body, which is how you get at the
// confirmation and reset links locally.
type LogMailer struct {
	logger Logger
}

// NewLogMailer creates a mailer that only logs
func NewLogMailer(logger Logger) *LogMailer {
	if logger == nil {
		logger = defaultLogger()
	}
	return &LogMailer{logger: logger}
}

// Send implements Mailer
func (m *LogMailer) Send(_ context.Context, msg Email) error {
	m.logger.Info("email notification",
		"to", msg.To,
		"subject", msg.Subject,
	)
	m.logger.Debug("email notification body", "html", msg.HTMLBody)
	return nil
}

// SMTPMailer delivers notifications through a plain SMTP endpoint
type SMTPMailer struct {
	host     string
	port     int
	username string
	password string
	from     string
	logger   Logger
}

// NewSMTPMailer creates a mailer that talks to the given SMTP host
func NewSMTPMailer(host string, port int, from string) *SMTPMailer {
	return &SMTPMailer{
		host:   host,
		port:   port,
		from:   from,
		logger: defaultLogger(),
	}
}

// WithCredentials sets PLAIN auth credentials for the relay
func (m *SMTPMailer) WithCredentials(username, password string) *SMTPMailer {
	m.username = username
	m.password = password
	return m
}

// WithLogger sets the logger instance
func (m *SMTPMailer) WithLogger(logger Logger) *SMTPMailer {
	if logger != nil {
		m.logger = logger
	}
	return m
}

// Send implements Mailer
func (m *SMTPMailer) Send(ctx context.Context, msg Email) error {
	if err := ctx.Err(); err != nil {
		return goerrors.Wrap(
			err,
			goerrors.CategoryOperation,
			"context cancelled before email dispatch",
		)
	}

	payload, err := buildMIMEMessage(m.from, msg)
	if err != nil {
		return err
	}

	var smtpAuth smtp.Auth
	if m.username != "" {
		smtpAuth = smtp.PlainAuth("", m.username, m.password, m.host)
	}

	addr := fmt.Sprintf("%s:%d", m.host, m.port)
	if err := smtp.SendMail(addr, smtpAuth, m.from, []string{msg.To}, payload); err != nil {
		m.logger.Error("smtp delivery error", "error", err, "to", msg.To)
		return goerrors.Wrap(
			err,
			goerrors.CategoryOperation,
			"smtp delivery failed",
		).WithTextCode(TextCodeEmailUnavailable)
	}

	return nil
}

// buildMIMEMessage assembles a single part HTML message. Header values with
// line breaks are rejected, they would let a caller inject extra headers.
func buildMIMEMessage(from string, msg Email) ([]byte, error) {
	for _, v := range []string{from, msg.To, msg.Subject} {
		if strings.ContainsAny(v, "\r\n") {
			return nil, goerrors.New(
				"email header contains a line break",
				goerrors.CategoryBadInput,
			)
		}
	}

	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", msg.To)
	fmt.Fprintf(&b, "Subject: %s\r\n", msg.Subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	b.WriteString("\r\n")
	b.WriteString(msg.HTMLBody)

	return []byte(b.String()), nil
}

// EmailRenderer renders notification bodies from the embedded templates
type EmailRenderer struct {
	engine  *django.Engine
	once    sync.Once
	loadErr error
}

// NewEmailRenderer creates a renderer over the package templates
func NewEmailRenderer() *EmailRenderer {
	r := &EmailRenderer{}

	views, err := fs.Sub(GetEmailTemplatesFS(), "views")
	if err != nil {
		r.loadErr = err
		return r
	}

	r.engine = django.NewFileSystem(http.FS(views), ".html")
	return r
}

// Render executes the named template with the given bindings
func (r *EmailRenderer) Render(name string, data map[string]any) (string, error) {
	r.once.Do(func() {
		if r.loadErr == nil {
			r.loadErr = r.engine.Load()
		}
	})

	if r.loadErr != nil {
		return "", goerrors.Wrap(
			r.loadErr,
			goerrors.CategoryInternal,
			"failed to load email templates",
		)
	}

	var buf bytes.Buffer
	if err := r.engine.Render(&buf, name, data); err != nil {
		return "", goerrors.Wrap(
			err,
			goerrors.CategoryInternal,
			"failed to render email template",
		).WithMetadata(map[string]any{
			"template": name,
		})
	}

	return buf.String(), nil
}

// EmailComposer builds the confirmation and reset notifications that the
// account lifecycle commands dispatch. Links are anchored on the application
// base URL, the token travels as the code query parameter.
type EmailComposer struct {
	renderer    *EmailRenderer
	appName     string
	baseURL     string
	confirmPath string
	resetPath   string
	resetWindow time.Duration
}

// NewEmailComposer creates a composer for the given application base URL
func NewEmailComposer(baseURL string) *EmailComposer {
	return &EmailComposer{
		renderer:    NewEmailRenderer(),
		appName:     "Versify",
		baseURL:     strings.TrimRight(baseURL, "/"),
		confirmPath: DefaultConfirmEmailPath,
		resetPath:   DefaultPasswordResetPath,
		resetWindow: DefaultPurposeTokenWindow,
	}
}

// WithAppName sets the product name used in subjects and bodies
func (c *EmailComposer) WithAppName(name string) *EmailComposer {
	if name != "" {
		c.appName = name
	}
	return c
}

// WithConfirmEmailPath overrides the confirmation link path
func (c *EmailComposer) WithConfirmEmailPath(path string) *EmailComposer {
	if path != "" {
		c.confirmPath = path
	}
	return c
}

// WithPasswordResetPath overrides the reset link path
func (c *EmailComposer) WithPasswordResetPath(path string) *EmailComposer {
	if path != "" {
		c.resetPath = path
	}
	return c
}

// WithResetWindow sets the validity window shown in reset notifications.
// Keep it in sync with the window configured on the token service.
func (c *EmailComposer) WithResetWindow(window time.Duration) *EmailComposer {
	if window > 0 {
		c.resetWindow = window
	}
	return c
}

// ConfirmationEmail builds the message that carries a confirm email link
func (c *EmailComposer) ConfirmationEmail(user *User, token string) (Email, error) {
	if user == nil {
		return Email{}, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	confirmURL := c.link(c.confirmPath, url.Values{
		"userId": {user.ID.String()},
		"code":   {token},
	})

	body, err := c.renderer.Render("emails/confirm_email", map[string]any{
		"name":        user.FullName,
		"app_name":    c.appName,
		"confirm_url": confirmURL,
	})
	if err != nil {
		return Email{}, err
	}

	return Email{
		To:       user.Email,
		Subject:  fmt.Sprintf("Confirm your %s email", c.appName),
		HTMLBody: body,
	}, nil
}

// PasswordResetEmail builds the message that carries a reset password link
func (c *EmailComposer) PasswordResetEmail(user *User, token string) (Email, error) {
	if user == nil {
		return Email{}, goerrors.New("user is required", goerrors.CategoryBadInput)
	}

	resetURL := c.link(c.resetPath, url.Values{
		"email": {user.Email},
		"code":  {token},
	})

	body, err := c.renderer.Render("emails/password_reset", map[string]any{
		"name":          user.FullName,
		"app_name":      c.appName,
		"reset_url":     resetURL,
		"expires_hours": int(c.resetWindow.Hours()),
	})
	if err != nil {
		return Email{}, err
	}

	return Email{
		To:       user.Email,
		Subject:  fmt.Sprintf("Reset your %s password", c.appName),
		HTMLBody: body,
	}, nil
}

func (c *EmailComposer) link(path string, query url.Values) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path + "?" + query.Encode()
}
