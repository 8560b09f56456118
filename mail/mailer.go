package mail

import (
	"fmt"

	signup "github.com/goliatone/go-signup"
	"github.com/goliatone/go-signup/config"
)

// New builds the mailer selected by cfg.Mail.Driver
func New(cfg *config.Config, logger signup.Logger) (signup.Mailer, error) {
	renderer, err := NewRenderer(cfg.Signup.BaseURL, cfg.Signup.Route, cfg.Signup.TokenTTL())
	if err != nil {
		return nil, err
	}

	switch cfg.Mail.Driver {
	case config.MailDriverSMTP:
		return NewSMTPMailer(SMTPOptions{
			From:     cfg.Mail.From,
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			Username: cfg.Mail.Username,
			Password: cfg.Mail.Password,
		}, renderer), nil
	case config.MailDriverLog, "":
		return NewLogMailer(cfg.Mail.From, renderer, logger), nil
	default:
		return nil, fmt.Errorf("unsupported mail driver %q", cfg.Mail.Driver)
	}
}
