package email

import (
	"fmt"
	"net/smtp"
	"os"
)

type EmailService struct {
	host     string
	port     string
	user     string
	password string
	from     string
}

func NewEmailService() *EmailService {
	return &EmailService{
		host:     os.Getenv("SMTP_HOST"),
		port:     os.Getenv("SMTP_PORT"),
		user:     os.Getenv("SMTP_USER"),
		password: os.Getenv("SMTP_PASSWORD"),
		from:     os.Getenv("SMTP_FROM"),
	}
}

func domain() string {
	d := os.Getenv("DOMAIN")
	if d == "" {
		return "http://localhost:8080"
	}
	return d
}

func (e *EmailService) SendVerificationEmail(to, token string) error {
	verificationLink := fmt.Sprintf("%s/confirm/%s", domain(), token)

	subject := "Confirm your email - Solace"
	body := fmt.Sprintf(`
Hello!

Thanks for signing up to Solace.

To confirm your email and activate your account, click the link below:

%s

The link is valid for 24 hours. If you did not sign up, ignore this email.

---
Solace - A quiet place for quotes
`, verificationLink)

	return e.send(to, subject, body)
}

func (e *EmailService) SendPasswordResetEmail(to, token string) error {
	resetLink := fmt.Sprintf("%s/reset/%s", domain(), token)

	subject := "Reset your password - Solace"
	body := fmt.Sprintf(`
Hello!

Someone requested a password reset for this address.

To choose a new password, click the link below:

%s

The link is valid for 1 hour. If you did not ask for this, ignore this email.

---
Solace - A quiet place for quotes
`, resetLink)

	return e.send(to, subject, body)
}

func (e *EmailService) send(to, subject, body string) error {
	message := fmt.Sprintf("From: %s\r\n"+
		"To: %s\r\n"+
		"Subject: %s\r\n"+
		"\r\n"+
		"%s\r\n", e.from, to, subject, body)

	auth := smtp.PlainAuth("", e.user, e.password, e.host)
	addr := fmt.Sprintf("%s:%s", e.host, e.port)

	if err := smtp.SendMail(addr, auth, e.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("error sending email: %v", err)
	}

	return nil
}
