package config // package config loads application configuration from environment variables

import (
	"log"     // configuration errors halt startup before logging is configured
	"os"      // environment access
	"strings" // list parsing
	"time"    // durations and locations

	"github.com/kelseyhightower/envconfig" // struct-tag loading for grouped settings
)

// Config holds runtime configuration.  Core fields are read with must() so
// a missing database or secret stops the process at boot; grouped settings
// for the payment gateway, mail and scan tokens are loaded with envconfig.
type Config struct {
	Env            string   // application environment (dev, test, prod)
	Port           string   // HTTP port to listen on
	DBUser         string   // database username
	DBPass         string   // database password (optional)
	DBHost         string   // database host address
	DBPort         string   // database port number
	DBName         string   // database name
	JWTSecret      string   // secret used to sign access tokens
	AccessTTLMin   int      // access token time‑to‑live in minutes
	RefreshTTLDays int      // refresh token time‑to‑live in days
	BcryptCost     int      // bcrypt cost for password hashing
	LogLevel       string   // logrus level name
	Timezone       string   // venue timezone used for "today" and slot windows
	CORSOrigins    []string // allowed browser origins
	AdminEmail     string   // bootstrap admin account (optional)
	AdminPassword  string   // bootstrap admin password (optional)
	AMQPURL        string   // RabbitMQ URL, empty disables queued notifications

	Scan    ScanConfig
	Gateway GatewayConfig
	Mail    MailConfig
}

// ScanConfig controls the signed ticket tokens rendered into QR codes.
type ScanConfig struct {
	Secret    string        `envconfig:"QR_SCAN_SECRET"`
	ExpiresIn time.Duration `envconfig:"QR_SCAN_EXPIRES_IN" default:"720h"`
}

// GatewayConfig holds the Razorpay credentials.  Payments are disabled when
// either key is empty.
type GatewayConfig struct {
	KeyID     string `envconfig:"RAZORPAY_KEY_ID"`
	KeySecret string `envconfig:"RAZORPAY_KEY_SECRET"`
	Currency  string `envconfig:"PAYMENT_CURRENCY" default:"INR"`
}

// Enabled reports whether both gateway keys are present.
func (g GatewayConfig) Enabled() bool { return g.KeyID != "" && g.KeySecret != "" }

// MailConfig holds SMTP settings for confirmation emails.
type MailConfig struct {
	Host string `envconfig:"SMTP_HOST"`
	Port int    `envconfig:"SMTP_PORT" default:"587"`
	User string `envconfig:"SMTP_USER"`
	Pass string `envconfig:"SMTP_PASS"`
	From string `envconfig:"SMTP_FROM"`

	// Timeout bounds one delivery, dial to QUIT.
	Timeout time.Duration `envconfig:"SMTP_TIMEOUT" default:"10s"`
}

// Enabled reports whether enough settings exist to send mail.
func (m MailConfig) Enabled() bool { return m.Host != "" && m.From != "" }

// Load reads configuration from the environment.  Required variables are
// enforced by must() and missing values exit the process.
func Load() Config {
	cfg := Config{
		Env:            envStr("APP_ENV", "dev"),
		Port:           envStr("APP_PORT", "8080"),
		DBUser:         must("DB_USER"),
		DBPass:         os.Getenv("DB_PASS"),
		DBHost:         must("DB_HOST"),
		DBPort:         envStr("DB_PORT", "3306"),
		DBName:         must("DB_NAME"),
		JWTSecret:      must("JWT_SECRET"),
		AccessTTLMin:   envInt("ACCESS_TOKEN_TTL_MIN", 15),
		RefreshTTLDays: envInt("REFRESH_TOKEN_TTL_DAYS", 7),
		BcryptCost:     envInt("BCRYPT_COST", 12),
		LogLevel:       envStr("LOG_LEVEL", "info"),
		Timezone:       envStr("VENUE_TZ", "Asia/Kolkata"),
		CORSOrigins:    splitList(envStr("CORS_ORIGINS", "http://localhost:5173")),
		AdminEmail:     os.Getenv("ADMIN_EMAIL"),
		AdminPassword:  os.Getenv("ADMIN_PASSWORD"),
		AMQPURL:        firstNonEmpty(os.Getenv("RABBITMQ_URL"), os.Getenv("AMQP_URL")),
	}
	if err := envconfig.Process("", &cfg.Scan); err != nil {
		log.Fatalf("scan config: %v", err)
	}
	if err := envconfig.Process("", &cfg.Gateway); err != nil {
		log.Fatalf("gateway config: %v", err)
	}
	if err := envconfig.Process("", &cfg.Mail); err != nil {
		log.Fatalf("mail config: %v", err)
	}
	if cfg.Scan.Secret == "" {
		cfg.Scan.Secret = cfg.JWTSecret
	}
	return cfg
}

// AccessTTL returns the access token lifetime.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL returns the refresh token lifetime.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("unknown VENUE_TZ %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
