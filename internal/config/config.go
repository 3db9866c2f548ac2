// Package config loads and validates all environment variables at startup.
// Every other package receives typed values; nothing reads os.Getenv directly.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Asset store and email transport selectors.
const (
	AssetStoreS3   = "s3"
	AssetStoreHTTP = "http"

	EmailResend = "resend"
	EmailSMTP   = "smtp"
	EmailLog    = "log"
)

// Config is the fully-parsed application configuration.
type Config struct {
	// ── Server ────────────────────────────────────────────────────────────────
	Port              string `env:"PORT" env-default:"8080"`
	Env               string `env:"ENV" env-default:"development"` // "development" | "staging" | "production"
	CORSAllowedOrigin string `env:"CORS_ALLOWED_ORIGIN" env-default:"http://localhost:3000"`

	// ── Database ──────────────────────────────────────────────────────────────
	DatabaseURL    string `env:"DATABASE_URL"`
	MigrateOnStart bool   `env:"MIGRATE_ON_START" env-default:"true"`

	// ── Auth & gateway ────────────────────────────────────────────────────────
	AdminJWTSecret      string `env:"ADMIN_JWT_SECRET"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	// ── Organisation (printed on every receipt) ──────────────────────────────
	OrgName           string `env:"ORG_NAME" env-default:"Hope Foundation"`
	OrgAddress        string `env:"ORG_ADDRESS"`
	OrgContact        string `env:"ORG_CONTACT"`
	OrgRegistrationNo string `env:"ORG_REGISTRATION_NO"`
	OrgTaxExemptionNo string `env:"ORG_TAX_EXEMPTION_NO"`
	OrgPAN            string `env:"ORG_PAN"`
	OrgReceiptPrefix  string `env:"ORG_RECEIPT_PREFIX" env-default:"RECEIPT"`

	// ── Asset store ───────────────────────────────────────────────────────────
	AssetStore          string `env:"ASSET_STORE" env-default:"s3"`
	S3Bucket            string `env:"S3_BUCKET"`
	AWSRegion           string `env:"AWS_REGION" env-default:"ap-south-1"`
	S3KeyPrefix         string `env:"S3_KEY_PREFIX" env-default:"receipts"`
	S3Endpoint          string `env:"S3_ENDPOINT"`
	S3PublicBaseURL     string `env:"S3_PUBLIC_BASE_URL"`
	AssetUploadURL      string `env:"ASSET_UPLOAD_URL"`
	AssetUploadToken    string `env:"ASSET_UPLOAD_TOKEN"`
	AssetUploadEncoding string `env:"ASSET_UPLOAD_ENCODING" env-default:"raw"`
	ReceiptArchiveDir   string `env:"RECEIPT_ARCHIVE_DIR"`

	// ── Email ─────────────────────────────────────────────────────────────────
	EmailTransport string `env:"EMAIL_TRANSPORT" env-default:"resend"`
	ResendAPIKey   string `env:"RESEND_API_KEY"`
	EmailFromAddr  string `env:"EMAIL_FROM_ADDR" env-default:"receipts@example.org"`
	EmailFromName  string `env:"EMAIL_FROM_NAME" env-default:"Hope Foundation"`
	SMTPHost       string `env:"SMTP_HOST"`
	SMTPPort       int    `env:"SMTP_PORT" env-default:"587"`
	SMTPUser       string `env:"SMTP_USER"`
	SMTPPass       string `env:"SMTP_PASS"`

	// ── Pipeline timeouts ─────────────────────────────────────────────────────
	PublishTimeout time.Duration `env:"PUBLISH_TIMEOUT" env-default:"20s"`
	EmailTimeout   time.Duration `env:"EMAIL_TIMEOUT" env-default:"20s"`

	// ── Worker ────────────────────────────────────────────────────────────────
	WorkerCount  int           `env:"WORKER_COUNT" env-default:"3"`
	PollInterval time.Duration `env:"POLL_INTERVAL" env-default:"30s"`
	JobTimeout   time.Duration `env:"JOB_TIMEOUT" env-default:"2m"`
	StaleAfter   time.Duration `env:"STALE_AFTER" env-default:"10m"`

	// ── Kafka (optional) ──────────────────────────────────────────────────────
	// No brokers means dispatch events are discarded.
	KafkaBrokers []string `env:"KAFKA_BROKERS" env-separator:","`
	KafkaTopic   string   `env:"KAFKA_TOPIC" env-default:"donation-dispatch-events"`
}

// Load reads all environment variables and returns a validated Config.
// A .env file in the working directory is loaded first when present, so
// plain `go run ./cmd/api` works in development. Real environment variables
// always take precedence over .env values.
func Load() (*Config, error) {
	_ = godotenv.Load(".env") // file absent is fine

	c := &Config{}
	if err := cleanenv.ReadEnv(c); err != nil {
		return nil, fmt.Errorf("config: read env: %w", err)
	}
	c.normalize()
	return c, c.validate()
}

// IsProduction reports whether ENV is "production".
func (c *Config) IsProduction() bool { return c.Env == "production" }

func (c *Config) normalize() {
	c.AssetStore = strings.ToLower(strings.TrimSpace(c.AssetStore))
	c.EmailTransport = strings.ToLower(strings.TrimSpace(c.EmailTransport))
	c.AssetUploadEncoding = strings.ToLower(strings.TrimSpace(c.AssetUploadEncoding))

	brokers := c.KafkaBrokers[:0]
	for _, b := range c.KafkaBrokers {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	c.KafkaBrokers = brokers
}

func (c *Config) validate() error {
	var errs []error

	required := []struct{ name, val string }{
		{"DATABASE_URL", c.DatabaseURL},
		{"ADMIN_JWT_SECRET", c.AdminJWTSecret},
		{"ORG_NAME", c.OrgName},
	}
	for _, r := range required {
		if r.val == "" {
			errs = append(errs, fmt.Errorf("missing required env var: %s", r.name))
		}
	}

	switch c.AssetStore {
	case AssetStoreS3:
		if c.S3Bucket == "" {
			errs = append(errs, errors.New("ASSET_STORE=s3 requires S3_BUCKET"))
		}
	case AssetStoreHTTP:
		if c.AssetUploadURL == "" {
			errs = append(errs, errors.New("ASSET_STORE=http requires ASSET_UPLOAD_URL"))
		}
		if c.AssetUploadEncoding != "raw" && c.AssetUploadEncoding != "base64" {
			errs = append(errs, fmt.Errorf("ASSET_UPLOAD_ENCODING must be raw or base64, got %q", c.AssetUploadEncoding))
		}
	default:
		errs = append(errs, fmt.Errorf("ASSET_STORE must be s3 or http, got %q", c.AssetStore))
	}

	switch c.EmailTransport {
	case EmailResend:
		if c.ResendAPIKey == "" {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=resend requires RESEND_API_KEY"))
		}
	case EmailSMTP:
		if c.SMTPHost == "" {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=smtp requires SMTP_HOST"))
		}
	case EmailLog:
		if c.IsProduction() {
			errs = append(errs, errors.New("EMAIL_TRANSPORT=log is not allowed in production"))
		}
	default:
		errs = append(errs, fmt.Errorf("EMAIL_TRANSPORT must be resend, smtp or log, got %q", c.EmailTransport))
	}

	if c.EmailFromAddr == "" {
		errs = append(errs, errors.New("missing required env var: EMAIL_FROM_ADDR"))
	}
	if c.PublishTimeout <= 0 || c.EmailTimeout <= 0 {
		errs = append(errs, errors.New("PUBLISH_TIMEOUT and EMAIL_TIMEOUT must be positive"))
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount))
	}

	return errors.Join(errs...)
}
