package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/catalog-reviews/internal/pkg/token"
)

// Store backends.
const (
	BackendDynamo = "dynamo"
	BackendMemory = "memory"
)

// Notifier kinds.
const (
	NotifierSMTP = "smtp"
	NotifierSNS  = "sns"
	NotifierLog  = "log"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppPort   string `env:"APP_PORT" envDefault:"3000"`
	AppEnv    string `env:"APP_ENV" envDefault:"development"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"dynamo"`

	AWSRegion      string `env:"AWS_REGION" envDefault:"us-east-1"`
	AWSEndpointURL string `env:"AWS_ENDPOINT_URL"` // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string `env:"AWS_ACCESS_KEY_ID"`
	AWSSecretKey   string `env:"AWS_SECRET_ACCESS_KEY"`
	DynamoTables   DynamoTables

	JWTPrivateKeyPath string        `env:"JWT_PRIVATE_KEY_PATH" envDefault:"./private_key.pem"`
	JWTPublicKeyPath  string        `env:"JWT_PUBLIC_KEY_PATH" envDefault:"./public_key.pem"`
	JWTExpiry         time.Duration `env:"JWT_EXPIRY" envDefault:"0s"` // 0 = tokens carry no exp claim

	CodeSecret          string        `env:"CODE_SECRET"`
	CodeSecretFallbacks []string      `env:"CODE_SECRET_FALLBACKS" envSeparator:","`
	CodeTTL             time.Duration `env:"CODE_TTL" envDefault:"0s"` // 0 = codes live until user state changes

	Notifier     string `env:"NOTIFIER" envDefault:"smtp"`
	SMTPHost     string `env:"SMTP_HOST" envDefault:"localhost"`
	SMTPPort     string `env:"SMTP_PORT" envDefault:"1025"`
	SMTPFrom     string `env:"SMTP_FROM" envDefault:"noreply@example.com"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	SNSRegion    string `env:"SNS_REGION" envDefault:"us-east-1"`
	SNSTopicARN  string `env:"SNS_TOPIC_ARN"`

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","` // CORS allowed origins
	AuthRateLimit  float64  `env:"AUTH_RATE_LIMIT" envDefault:"5"`                  // requests/second per IP on signup and token
	AuthRateBurst  int      `env:"AUTH_RATE_BURST" envDefault:"10"`

	// Only enable behind a proxy that overwrites X-Forwarded-For / X-Real-IP.
	TrustProxyHeaders bool `env:"TRUST_PROXY_HEADERS" envDefault:"false"`
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Users       string `env:"DYNAMO_TABLE_USERS" envDefault:"users"`
	UserUniques string `env:"DYNAMO_TABLE_USER_UNIQUES" envDefault:"user_uniques"`
	Titles      string `env:"DYNAMO_TABLE_TITLES" envDefault:"titles"`
	Reviews     string `env:"DYNAMO_TABLE_REVIEWS" envDefault:"reviews"`
	Comments    string `env:"DYNAMO_TABLE_COMMENTS" envDefault:"comments"`
}

// Load reads all configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config from environment: %w", err)
	}
	switch cfg.StoreBackend {
	case BackendDynamo, BackendMemory:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.StoreBackend)
	}
	switch cfg.Notifier {
	case NotifierSMTP, NotifierSNS, NotifierLog:
	default:
		return nil, fmt.Errorf("unknown NOTIFIER %q", cfg.Notifier)
	}
	if cfg.CodeSecret == "" {
		if cfg.AppEnv == "production" {
			return nil, fmt.Errorf("CODE_SECRET is required in production")
		}
		// Codes issued under a generated secret die with the process.
		secret, err := token.NewSecret(32)
		if err != nil {
			return nil, err
		}
		cfg.CodeSecret = secret
	}
	return cfg, nil
}
