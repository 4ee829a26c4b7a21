// Package notification delivers account emails: verification and password
// reset links.
package notification

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"text/template"

	"docshare/internal/pkg/logging"

	"github.com/dajohi/goemail"
)

const (
	routeVerifyEmail   = "/verify-email"
	routeResetPassword = "/reset-password"
)

var (
	verifyEmailTmpl = template.Must(template.New("verify_email").Parse(
		`Welcome to docshare!

Please confirm your email address by opening the link below:

{{.Link}}

If you did not create an account you can ignore this message.
`))

	resetPasswordTmpl = template.Must(template.New("reset_password").Parse(
		`A password reset was requested for your docshare account.

Open the link below to choose a new password:

{{.Link}}

If you did not request a reset you can ignore this message.
`))
)

type Config struct {
	Host       string
	User       string
	Password   string
	From       string
	SkipVerify bool
	BaseURL    string
	// HideLinks keeps a disabled mailer from writing links to the log.
	HideLinks bool
}

type smtpSender interface {
	Send(msg *goemail.Message) error
}

// Mailer sends account emails over SMTP. When SMTP is not configured the
// mailer is disabled and only logs the links it would have sent.
type Mailer struct {
	client      smtpSender
	mailName    string
	mailAddress string
	baseURL     string
	disabled    bool
	hideLinks   bool
	logger      logging.Logger
}

// NewMailer builds the process-wide mailer. Missing host, user or password
// yields a disabled mailer rather than an error.
func NewMailer(cfg Config, logger logging.Logger) (*Mailer, error) {
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}

	m := &Mailer{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		hideLinks: cfg.HideLinks,
		logger:    logger,
	}

	if cfg.Host == "" || cfg.User == "" || cfg.Password == "" {
		m.disabled = true
		return m, nil
	}

	u, err := url.Parse(fmt.Sprintf("smtps://%v:%v@%v", url.QueryEscape(cfg.User), url.QueryEscape(cfg.Password), cfg.Host))
	if err != nil {
		return nil, err
	}

	a, err := mail.ParseAddress(cfg.From)
	if err != nil {
		return nil, fmt.Errorf("invalid from address: %w", err)
	}

	client, err := goemail.NewSMTP(u.String(), &tls.Config{InsecureSkipVerify: cfg.SkipVerify})
	if err != nil {
		return nil, err
	}

	m.client = client
	m.mailName = a.Name
	m.mailAddress = a.Address
	return m, nil
}

func (m *Mailer) Enabled() bool {
	return !m.disabled
}

func (m *Mailer) SendVerificationLink(ctx context.Context, email, token string) error {
	return m.send(ctx, email, "Verify your email", routeVerifyEmail, token, verifyEmailTmpl)
}

func (m *Mailer) SendResetLink(ctx context.Context, email, token string) error {
	return m.send(ctx, email, "Reset your password", routeResetPassword, token, resetPasswordTmpl)
}

func (m *Mailer) send(ctx context.Context, email, subject, route, token string, tpl *template.Template) error {
	if email == "" {
		return errors.New("empty recipient")
	}

	link, err := m.link(route, token)
	if err != nil {
		return err
	}

	if m.disabled {
		if m.hideLinks {
			m.logger.Warn(ctx, "mail disabled, link not sent",
				"subject", subject, "to", logging.MaskEmail(email))
			return nil
		}
		m.logger.Info(ctx, "mail disabled, link not sent",
			"subject", subject, "to", logging.MaskEmail(email), "link", link)
		return nil
	}

	body, err := renderBody(tpl, link)
	if err != nil {
		return err
	}

	msg := goemail.NewMessage(m.mailAddress, subject, body)
	if msg == nil {
		return fmt.Errorf("invalid from address %q", m.mailAddress)
	}
	msg.SetName(m.mailName)
	msg.AddBCC(email)

	return m.client.Send(msg)
}

func (m *Mailer) link(route, token string) (string, error) {
	u, err := url.Parse(m.baseURL + route)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func renderBody(tpl *template.Template, link string) (string, error) {
	var buf bytes.Buffer
	if err := tpl.Execute(&buf, struct{ Link string }{Link: link}); err != nil {
		return "", err
	}
	return buf.String(), nil
}
