package templates

import (
	"time"

	"github.com/foodmanager/user-service/config"
)

// Option pattern
type Option func(*EmailData)

func WithTime(t time.Time) Option {
	return func(d *EmailData) {
		d.Time = t.UTC().Format("02 January 2006, 15:04")
	}
}

// NewBaseEmailData fills company fields from config, then applies Options.
func NewBaseEmailData(cfg *config.Config, typ, name, email, login string, opts ...Option) EmailData {
	d := EmailData{
		Name:  name,
		Email: email,
		Login: login,
		Type:  typ,

		CompanyName:    cfg.CompanyName,
		CompanyAddress: cfg.CompanyAddress,
		AppName:        cfg.AppName,

		LogoURL:    cfg.LogoURL,
		SupportURL: cfg.SupportURL,
		PrivacyURL: cfg.PrivacyURL,
	}
	for _, opt := range opts {
		opt(&d)
	}
	return d
}

func NewWelcomeData(cfg *config.Config, name, email, login string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, Welcome, name, email, login, opts...)
	return ToMap(d)
}

func NewPasswordChangedData(cfg *config.Config, name, email, login string, opts ...Option) map[string]any {
	d := NewBaseEmailData(cfg, PasswordChanged, name, email, login, opts...)
	return ToMap(d)
}
