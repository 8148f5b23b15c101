package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Server    ServerConfig    `mapstructure:"server"`
	DB        DBConfig        `mapstructure:"db"`
	Mongo     MongoConfig     `mapstructure:"mongo"`
	Session   SessionConfig   `mapstructure:"session"`
	Cart      CartConfig      `mapstructure:"cart"`
	Checkout  CheckoutConfig  `mapstructure:"checkout"`
	Payments  PaymentsConfig  `mapstructure:"payments"`
	Storage   StorageConfig   `mapstructure:"storage"`
	SMTP      SMTPConfig      `mapstructure:"smtp"`
	Email     EmailConfig     `mapstructure:"email"`
	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
}

type AppConfig struct {
	Env           string `mapstructure:"env"`
	BaseURL       string `mapstructure:"base_url"`
	StorefrontURL string `mapstructure:"storefront_url"`
	Secret        string `mapstructure:"secret"`
}

func (a AppConfig) IsProduction() bool { return strings.EqualFold(a.Env, "production") }

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DBConfig struct {
	Driver          string        `mapstructure:"driver"`
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
	LogQueries      bool          `mapstructure:"log_queries"`
}

type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type SessionConfig struct {
	CookieName string        `mapstructure:"cookie_name"`
	TTL        time.Duration `mapstructure:"ttl"`
	Secure     bool          `mapstructure:"secure"`
}

type CartConfig struct {
	CookieName         string `mapstructure:"cookie_name"`
	WishlistCookieName string `mapstructure:"wishlist_cookie_name"`
}

type CheckoutConfig struct {
	Currency                   string `mapstructure:"currency"`
	TaxRateBasisPoints         int    `mapstructure:"tax_rate_bp"`
	FreeShippingThresholdCents int    `mapstructure:"free_shipping_threshold_cents"`
	StandardShippingCents      int    `mapstructure:"standard_shipping_cents"`
	ExpressShippingCents       int    `mapstructure:"express_shipping_cents"`
}

type PaymentsConfig struct {
	Provider string       `mapstructure:"provider"`
	PayPal   PayPalConfig `mapstructure:"paypal"`
	Mock     MockConfig   `mapstructure:"mock"`
}

type PayPalConfig struct {
	ClientID  string `mapstructure:"client_id"`
	Secret    string `mapstructure:"secret"`
	Mode      string `mapstructure:"mode"` // sandbox|live
	WebhookID string `mapstructure:"webhook_id"`
	BrandName string `mapstructure:"brand_name"`
	APIBase   string `mapstructure:"api_base"` // overrides the mode's endpoint
}

type MockConfig struct {
	WebhookSecret string `mapstructure:"webhook_secret"`
}

type StorageConfig struct {
	Driver string             `mapstructure:"driver"`
	Local  LocalStorageConfig `mapstructure:"local"`
	S3     S3StorageConfig    `mapstructure:"s3"`
}

type LocalStorageConfig struct {
	Dir       string `mapstructure:"dir"`
	URLPrefix string `mapstructure:"url_prefix"`
}

type S3StorageConfig struct {
	Region        string `mapstructure:"region"`
	Bucket        string `mapstructure:"bucket"`
	Prefix        string `mapstructure:"prefix"`
	PublicBaseURL string `mapstructure:"public_base_url"`
}

type SMTPConfig struct {
	Host          string `mapstructure:"host"`
	Port          string `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Pass          string `mapstructure:"pass"`
	TLSMode       string `mapstructure:"tls_mode"` // none|starttls|tls
	SkipVerifyTLS bool   `mapstructure:"skip_verify_tls"`
}

type EmailConfig struct {
	Transport      string         `mapstructure:"transport"` // smtp|mailtrap|mock
	Mailtrap       MailtrapConfig `mapstructure:"mailtrap"`
	From           string         `mapstructure:"from"`
	FromName       string         `mapstructure:"from_name"`
	WorkerInterval time.Duration  `mapstructure:"worker_interval"`
	BatchSize      int            `mapstructure:"batch_size"`
	MaxAttempts    int            `mapstructure:"max_attempts"`
}

type MailtrapConfig struct {
	APIURL string `mapstructure:"api_url"`
	Token  string `mapstructure:"token"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"` // json|text
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type RateLimitConfig struct {
	AuthRPS       float64 `mapstructure:"auth_rps"`
	AuthBurst     int     `mapstructure:"auth_burst"`
	CheckoutRPS   float64 `mapstructure:"checkout_rps"`
	CheckoutBurst int     `mapstructure:"checkout_burst"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("app.base_url", "http://localhost:8080")
	v.SetDefault("app.storefront_url", "http://localhost:3000")
	v.SetDefault("app.secret", "dev-secret-change-me")

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("db.driver", "mysql")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.max_open_conns", 25)
	v.SetDefault("db.max_idle_conns", 5)
	v.SetDefault("db.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("db.auto_migrate", false)
	v.SetDefault("db.log_queries", false)

	v.SetDefault("mongo.uri", "")
	v.SetDefault("mongo.database", "shopdesk")
	v.SetDefault("mongo.collection", "order_documents")
	v.SetDefault("mongo.timeout", 5*time.Second)

	v.SetDefault("session.cookie_name", "shopdesk_session")
	v.SetDefault("session.ttl", 14*24*time.Hour)
	v.SetDefault("session.secure", false)

	v.SetDefault("cart.cookie_name", "shopdesk_cart")
	v.SetDefault("cart.wishlist_cookie_name", "shopdesk_wishlist")

	v.SetDefault("checkout.currency", "USD")
	v.SetDefault("checkout.tax_rate_bp", 1500)
	v.SetDefault("checkout.free_shipping_threshold_cents", 10000)
	v.SetDefault("checkout.standard_shipping_cents", 1000)
	v.SetDefault("checkout.express_shipping_cents", 2500)

	v.SetDefault("payments.provider", "mock")
	v.SetDefault("payments.paypal.mode", "sandbox")
	v.SetDefault("payments.paypal.brand_name", "Shopdesk")
	v.SetDefault("payments.mock.webhook_secret", "mock-webhook-secret")

	v.SetDefault("storage.driver", "local")
	v.SetDefault("storage.local.dir", "./storage/uploads")
	v.SetDefault("storage.local.url_prefix", "/uploads")
	v.SetDefault("storage.s3.prefix", "uploads")

	v.SetDefault("smtp.host", "localhost")
	v.SetDefault("smtp.port", "1025")
	v.SetDefault("smtp.tls_mode", "none")

	v.SetDefault("email.transport", "smtp")
	v.SetDefault("email.from", "no-reply@shopdesk.local")
	v.SetDefault("email.from_name", "Shopdesk")
	v.SetDefault("email.worker_interval", 10*time.Second)
	v.SetDefault("email.batch_size", 20)
	v.SetDefault("email.max_attempts", 5)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 28)

	v.SetDefault("ratelimit.auth_rps", 1.0)
	v.SetDefault("ratelimit.auth_burst", 10)
	v.SetDefault("ratelimit.checkout_rps", 0.5)
	v.SetDefault("ratelimit.checkout_burst", 5)
}

// Load reads .env, then config.yaml (optional), then STOREFRONT_* env vars.
// configFile overrides the search path when non-empty.
func Load(configFile string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./deploy/")
		v.AddConfigPath("./")
		v.AddConfigPath("$HOME/.storefront/")
		v.AddConfigPath("/etc/storefront/")
	}

	v.SetEnvPrefix("STOREFRONT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// noCentCurrencies lists ISO-4217 codes (and PayPal's whole-unit ones) whose
// minor unit is not 1/100. Prices are stored as cents, so they are refused.
var noCentCurrencies = map[string]bool{
	"BIF": true, "CLP": true, "DJF": true, "GNF": true, "ISK": true, "JPY": true,
	"KMF": true, "KRW": true, "PYG": true, "RWF": true, "UGX": true, "UYI": true,
	"VND": true, "VUV": true, "XAF": true, "XOF": true, "XPF": true,
	"HUF": true, "TWD": true,
	"BHD": true, "IQD": true, "JOD": true, "KWD": true, "LYD": true, "OMR": true, "TND": true,
}

func (c *Config) Validate() error {
	switch c.DB.Driver {
	case "mysql", "postgres", "sqlite":
	default:
		return fmt.Errorf("config: unknown db.driver %q", c.DB.Driver)
	}
	if strings.TrimSpace(c.DB.DSN) == "" {
		return errors.New("config: db.dsn is required")
	}
	if c.App.IsProduction() && (c.App.Secret == "" || c.App.Secret == "dev-secret-change-me") {
		return errors.New("config: app.secret must be set in production")
	}
	switch c.Payments.Provider {
	case "paypal":
		if c.Payments.PayPal.ClientID == "" || c.Payments.PayPal.Secret == "" {
			return errors.New("config: payments.paypal.client_id and secret are required")
		}
	case "mock":
		if c.App.IsProduction() {
			return errors.New("config: mock payment provider is not allowed in production")
		}
	default:
		return fmt.Errorf("config: unknown payments.provider %q", c.Payments.Provider)
	}
	switch c.Email.Transport {
	case "", "smtp", "mock":
	case "mailtrap":
		if c.Email.Mailtrap.APIURL == "" || c.Email.Mailtrap.Token == "" {
			return errors.New("config: email.mailtrap.api_url and token are required")
		}
	default:
		return fmt.Errorf("config: unknown email.transport %q", c.Email.Transport)
	}
	switch c.Storage.Driver {
	case "local", "s3":
	default:
		return fmt.Errorf("config: unknown storage.driver %q", c.Storage.Driver)
	}
	if len(c.Checkout.Currency) != 3 {
		return fmt.Errorf("config: checkout.currency must be an ISO-4217 code, got %q", c.Checkout.Currency)
	}
	c.Checkout.Currency = strings.ToUpper(c.Checkout.Currency)
	if noCentCurrencies[c.Checkout.Currency] {
		return fmt.Errorf("config: checkout.currency %q does not use two decimal places", c.Checkout.Currency)
	}
	if c.Checkout.TaxRateBasisPoints < 0 || c.Checkout.TaxRateBasisPoints > 10000 {
		return errors.New("config: checkout.tax_rate_bp must be within 0..10000")
	}
	return nil
}
