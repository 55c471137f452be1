package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

var (
	welcomeTemplate = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/welcome.html"))
	resetTemplate   = template.Must(template.ParseFS(templateFS, "templates/layout.html", "templates/password_reset.html"))
)

const (
	TagWelcome       = "welcome"
	TagPasswordReset = "password-reset"
)

// WelcomeData fills the welcome message sent with a temporary password.
type WelcomeData struct {
	To                string
	UserName          string
	SchoolName        string
	TemporaryPassword string
	LoginURL          string
}

// PasswordResetData fills the password reset message.
type PasswordResetData struct {
	To          string
	UserName    string
	SchoolName  string
	NewPassword string
	LoginURL    string
}

// Mailer renders platform messages and sends them through a Sender.
type Mailer struct {
	sender       Sender
	supportEmail string
}

// NewMailer returns a Mailer. supportEmail is shown in the footer.
func NewMailer(sender Sender, supportEmail string) *Mailer {
	return &Mailer{sender: sender, supportEmail: supportEmail}
}

// SendWelcome sends the account credentials to a new admin user.
func (m *Mailer) SendWelcome(ctx context.Context, data WelcomeData) error {
	body, err := render(welcomeTemplate, map[string]any{
		"Title":             "Bem-vindo ao " + data.SchoolName + "!",
		"SchoolName":        data.SchoolName,
		"SupportEmail":      m.supportEmail,
		"UserName":          data.UserName,
		"Email":             data.To,
		"TemporaryPassword": data.TemporaryPassword,
		"LoginURL":          data.LoginURL,
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   data.To,
		Subject:  "Bem-vindo ao " + data.SchoolName + "!",
		BodyHTML: body,
		BodyText: fmt.Sprintf("Olá, %s!\n\nEmail: %s\nSenha temporária: %s\n\nAcesse: %s\n",
			data.UserName, data.To, data.TemporaryPassword, data.LoginURL),
		Tag: TagWelcome,
	})
}

// SendPasswordReset sends a freshly generated password.
func (m *Mailer) SendPasswordReset(ctx context.Context, data PasswordResetData) error {
	body, err := render(resetTemplate, map[string]any{
		"Title":        "Redefinir senha",
		"SchoolName":   data.SchoolName,
		"SupportEmail": m.supportEmail,
		"UserName":     data.UserName,
		"NewPassword":  data.NewPassword,
		"LoginURL":     data.LoginURL,
	})
	if err != nil {
		return err
	}
	return m.sender.SendEmail(ctx, SendEmailParams{
		SendTo:   data.To,
		Subject:  "Nova senha - " + data.SchoolName,
		BodyHTML: body,
		BodyText: fmt.Sprintf("Olá, %s!\n\nSua nova senha: %s\n\nAcesse: %s\n",
			data.UserName, data.NewPassword, data.LoginURL),
		Tag: TagPasswordReset,
	})
}

func render(tpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tpl.ExecuteTemplate(&buf, "layout", data); err != nil {
		return "", fmt.Errorf("%w: render template: %v", ErrFailedToSendEmail, err)
	}
	return buf.String(), nil
}
