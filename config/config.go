package config

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	signup "github.com/goliatone/go-signup"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix of environment overrides. Nested keys are
// separated by a double underscore: SIGNUP_MAIL__DRIVER=smtp.
const EnvPrefix = "SIGNUP_"

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	MailDriverLog  = "log"
	MailDriverSMTP = "smtp"
)

type Config struct {
	Debug       bool        `koanf:"debug" json:"debug"`
	Server      Server      `koanf:"server" json:"server"`
	Persistence Persistence `koanf:"persistence" json:"persistence"`
	Signup      Signup      `koanf:"signup" json:"signup"`
	Mail        Mail        `koanf:"mail" json:"mail"`
}

type Server struct {
	Address         string `koanf:"address" json:"address"`
	ShutdownTimeout string `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type Persistence struct {
	Driver string `koanf:"driver" json:"driver"`
	DSN    string `koanf:"dsn" json:"-"`
	Debug  bool   `koanf:"debug" json:"debug"`
}

type Signup struct {
	Route           string `koanf:"route" json:"route"`
	BaseURL         string `koanf:"base_url" json:"base_url"`
	TokenExpiration string `koanf:"token_expiration" json:"token_expiration"`
	StrictErrors    bool   `koanf:"strict_errors" json:"strict_errors"`
	UseHashid       bool   `koanf:"use_hashid" json:"use_hashid"`
	Views           Views  `koanf:"views" json:"views"`
}

// Views holds optional view name overrides, empty values keep the
// built-in views.
type Views struct {
	Signup      string `koanf:"signup" json:"signup,omitempty"`
	SignedUp    string `koanf:"signed_up" json:"signed_up,omitempty"`
	Resend      string `koanf:"resend" json:"resend,omitempty"`
	LinkExpired string `koanf:"link_expired" json:"link_expired,omitempty"`
	Verified    string `koanf:"verified" json:"verified,omitempty"`
	Error       string `koanf:"error" json:"error,omitempty"`
}

type Mail struct {
	Driver   string `koanf:"driver" json:"driver"`
	From     string `koanf:"from" json:"from"`
	Host     string `koanf:"host" json:"host"`
	Port     int    `koanf:"port" json:"port"`
	Username string `koanf:"username" json:"username"`
	Password string `koanf:"password" json:"-"`
}

// Defaults returns the flat default values, keyed by koanf path
func Defaults() map[string]any {
	return map[string]any{
		"debug":                   false,
		"server.address":          ":8572",
		"server.shutdown_timeout": "10s",
		"persistence.driver":      DriverSQLite,
		"persistence.dsn":         "file:signup.db?cache=shared",
		"persistence.debug":       false,
		"signup.route":            "/signup",
		"signup.base_url":         "http://localhost:8572",
		"signup.token_expiration": "1 day",
		"signup.strict_errors":    false,
		"signup.use_hashid":       false,
		"mail.driver":             MailDriverLog,
		"mail.from":               "no-reply@localhost",
		"mail.host":               "localhost",
		"mail.port":               25,
	}
}

// Load reads defaults, then the optional JSON file at path, then
// SIGNUP_ prefixed environment variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, err
	}

	if path != "" {
		if err := k.Load(file.Provider(path), json.Parser()); err != nil {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func envKey(s string) string {
	s = strings.TrimPrefix(s, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(s), "__", ".")
}

// Validate will run validation rules
func (c *Config) Validate() error {
	return validation.Errors{
		"server":      c.Server.Validate(),
		"persistence": c.Persistence.Validate(),
		"signup":      c.Signup.Validate(),
		"mail":        c.Mail.Validate(),
	}.Filter()
}

func (s Server) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.ShutdownTimeout, validation.By(isDuration)),
	)
}

func (p Persistence) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Driver, validation.Required, validation.In(DriverSQLite, DriverPostgres)),
		validation.Field(&p.DSN, validation.Required),
	)
}

func (s Signup) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Route, validation.Required),
		validation.Field(&s.BaseURL, validation.Required),
		validation.Field(&s.TokenExpiration, validation.By(func(value any) error {
			_, err := signup.ParseTokenExpiration(value.(string))
			return err
		})),
	)
}

func (m Mail) Validate() error {
	fields := []*validation.FieldRules{
		validation.Field(&m.Driver, validation.Required, validation.In(MailDriverLog, MailDriverSMTP)),
		validation.Field(&m.From, validation.Required),
	}

	if m.Driver == MailDriverSMTP {
		fields = append(fields,
			validation.Field(&m.Host, validation.Required),
			validation.Field(&m.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		)
	}

	return validation.ValidateStruct(&m, fields...)
}

// TokenTTL returns the parsed signup token expiration
func (s Signup) TokenTTL() time.Duration {
	ttl, err := signup.ParseTokenExpiration(s.TokenExpiration)
	if err != nil {
		return signup.DefaultTokenExpiration
	}
	return ttl
}

// ShutdownTimeoutDuration returns the parsed shutdown timeout, 10s if unset
func (s Server) ShutdownTimeoutDuration() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

func isDuration(value any) error {
	s, _ := value.(string)
	if s == "" {
		return nil
	}
	_, err := time.ParseDuration(s)
	return err
}
