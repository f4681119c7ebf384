package config

import (
	"time"

	"github.com/caarlos0/env/v10"
)

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	AppEnv      string `env:"APP_ENV" envDefault:"production"`
	DatabaseURL string `env:"DATABASE_URL,required"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	PlaidClientID     string   `env:"PLAID_CLIENT_ID"`
	PlaidSecret       string   `env:"PLAID_SECRET"`
	PlaidEnv          string   `env:"PLAID_ENV" envDefault:"sandbox"`
	PlaidClientName   string   `env:"PLAID_CLIENT_NAME" envDefault:"Fundlink"`
	PlaidCountryCodes []string `env:"PLAID_COUNTRY_CODES" envSeparator:"," envDefault:"US"`
	PlaidRedirectURI  string   `env:"PLAID_REDIRECT_URI"`

	DwollaKey    string `env:"DWOLLA_KEY"`
	DwollaSecret string `env:"DWOLLA_SECRET"`
	DwollaEnv    string `env:"DWOLLA_ENV" envDefault:"sandbox"`

	ProviderTimeout      time.Duration `env:"PROVIDER_TIMEOUT" envDefault:"20s"`
	InstitutionCacheTTL  time.Duration `env:"INSTITUTION_CACHE_TTL" envDefault:"24h"`
	CORSAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	SignInAttemptsWindow time.Duration `env:"SIGN_IN_ATTEMPTS_WINDOW" envDefault:"10m"`
	SignInAttemptsMax    int           `env:"SIGN_IN_ATTEMPTS_MAX" envDefault:"5"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// IsDevelopment indica si el servicio corre en modo desarrollo.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}
