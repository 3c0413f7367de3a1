// Package config reads the process environment (and an optional .env file)
// into a typed Config.
package config

import (
	"fmt"
	"net/netip"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	AppEnv  string
	Port    string
	BaseURL string

	DBDSN    string
	RedisURL string

	StripeSecretKey         string
	StripeTestSecretKey     string
	StripeWebhookSecret     string
	StripeTestWebhookSecret string

	PictoremAPIKey  string
	PictoremBaseURL string

	ResendAPIKey     string
	SMTPHost         string
	SMTPPort         int
	SMTPUsername     string
	SMTPPassword     string
	EmailFrom        string
	OrderNotifyEmail string

	R2Endpoint        string
	R2AccessKeyID     string
	R2SecretAccessKey string
	R2Bucket          string

	AdminAPIKey string
	ACPAPIKey   string
	// TrustedProxies lists the proxies whose X-Forwarded-For is believed.
	TrustedProxies []netip.Prefix

	MerchantName     string
	ACPTaxRate       decimal.Decimal
	ACPShippingCents int64
	ReturnPolicyURL  string
	ReturnWindowDays int

	NotifyQueue       string
	WorkerConcurrency int
	PhotosFile        string
}

// Load reads .env when present, then the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.LookupEnv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(lookup func(string) (string, bool)) (*Config, error) {
	e := env{lookup: lookup}
	c := &Config{
		AppEnv:  strings.ToLower(e.str("APP_ENV", "development")),
		Port:    e.str("PORT", "8080"),
		BaseURL: strings.TrimRight(e.str("BASE_URL", "http://localhost:8080"), "/"),

		DBDSN:    e.dsn(),
		RedisURL: e.str("REDIS_URL", ""),

		StripeSecretKey:         e.str("STRIPE_SECRET_KEY", ""),
		StripeTestSecretKey:     e.str("STRIPE_TEST_SECRET_KEY", ""),
		StripeWebhookSecret:     e.str("STRIPE_WEBHOOK_SECRET", ""),
		StripeTestWebhookSecret: e.str("STRIPE_TEST_WEBHOOK_SECRET", ""),

		PictoremAPIKey:  e.str("PICTOREM_API_KEY", ""),
		PictoremBaseURL: e.str("PICTOREM_BASE_URL", ""),

		ResendAPIKey:     e.str("RESEND_API_KEY", ""),
		SMTPHost:         e.str("SMTP_HOST", ""),
		SMTPPort:         e.intVal("SMTP_PORT", 587),
		SMTPUsername:     e.str("SMTP_USERNAME", ""),
		SMTPPassword:     e.str("SMTP_PASSWORD", ""),
		EmailFrom:        e.str("EMAIL_FROM", ""),
		OrderNotifyEmail: e.str("ORDER_NOTIFY_EMAIL", ""),

		R2Endpoint:        e.str("R2_ENDPOINT", ""),
		R2AccessKeyID:     e.str("R2_ACCESS_KEY_ID", ""),
		R2SecretAccessKey: e.str("R2_SECRET_ACCESS_KEY", ""),
		R2Bucket:          e.str("R2_ORIGINALS_BUCKET", ""),

		AdminAPIKey: e.str("ADMIN_API_KEY", ""),
		ACPAPIKey:   e.str("ACP_API_KEY", ""),

		TrustedProxies: e.prefixes("TRUSTED_PROXIES"),

		MerchantName:     e.str("MERCHANT_NAME", "Print Shop"),
		ACPTaxRate:       e.decimalVal("ACP_TAX_RATE", decimal.Zero),
		ACPShippingCents: int64(e.intVal("ACP_SHIPPING_CENTS", 0)),
		ReturnPolicyURL:  e.str("RETURN_POLICY_URL", ""),
		ReturnWindowDays: e.intVal("RETURN_WINDOW_DAYS", 30),

		NotifyQueue:       e.str("NOTIFY_QUEUE", "notifications"),
		WorkerConcurrency: e.intVal("WORKER_CONCURRENCY", 5),
		PhotosFile:        e.str("PHOTOS_FILE", ""),
	}
	if len(e.errs) > 0 {
		return nil, fmt.Errorf("config: %s", strings.Join(e.errs, "; "))
	}
	if c.ACPTaxRate.IsNegative() || c.ACPTaxRate.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("config: ACP_TAX_RATE must be a fraction between 0 and 1")
	}
	if c.ReturnPolicyURL == "" {
		c.ReturnPolicyURL = c.BaseURL + "/returns"
	}
	return c, nil
}

func (c *Config) IsProduction() bool { return c.AppEnv == "production" || c.AppEnv == "prod" }

func (c *Config) RedisEnabled() bool { return c.RedisURL != "" }

func (c *Config) StripeEnabled() bool { return c.StripeSecretKey != "" || c.StripeTestSecretKey != "" }

func (c *Config) PictoremEnabled() bool { return c.PictoremAPIKey != "" }

func (c *Config) R2Enabled() bool {
	return c.R2Endpoint != "" && c.R2AccessKeyID != "" && c.R2SecretAccessKey != "" && c.R2Bucket != ""
}

func (c *Config) EmailEnabled() bool {
	return c.EmailFrom != "" && (c.ResendAPIKey != "" || c.SMTPHost != "")
}

type env struct {
	lookup func(string) (string, bool)
	errs   []string
}

func (e *env) str(key, fallback string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func (e *env) intVal(key string, fallback int) int {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		e.errs = append(e.errs, key+" must be a non-negative integer")
		return fallback
	}
	return n
}

func (e *env) decimalVal(key string, fallback decimal.Decimal) decimal.Decimal {
	v := e.str(key, "")
	if v == "" {
		return fallback
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		e.errs = append(e.errs, key+" must be a decimal")
		return fallback
	}
	return d
}

// prefixes reads a comma separated list of CIDRs or bare addresses.
func (e *env) prefixes(key string) []netip.Prefix {
	var out []netip.Prefix
	for _, part := range strings.Split(e.str(key, ""), ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if p, err := netip.ParsePrefix(part); err == nil {
			out = append(out, p.Masked())
			continue
		}
		a, err := netip.ParseAddr(part)
		if err != nil {
			e.errs = append(e.errs, key+": invalid address "+part)
			continue
		}
		out = append(out, netip.PrefixFrom(a.Unmap(), a.Unmap().BitLen()))
	}
	return out
}

// dsn prefers DB_DSN and otherwise assembles one from the DB_* / POSTGRES_* pieces.
func (e *env) dsn() string {
	if v := e.str("DB_DSN", ""); v != "" {
		return v
	}
	user := e.str("DB_USER", e.str("POSTGRES_USER", "postgres"))
	pass := e.str("DB_PASSWORD", e.str("POSTGRES_PASSWORD", "postgres"))
	name := e.str("DB_NAME", e.str("POSTGRES_DB", "printshop"))
	return "host=" + e.str("DB_HOST", "localhost") +
		" user=" + user +
		" password=" + pass +
		" dbname=" + name +
		" port=" + e.str("DB_PORT", "5432") +
		" sslmode=" + e.str("DB_SSLMODE", "disable")
}
