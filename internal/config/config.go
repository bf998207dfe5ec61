package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"go.uber.org/zap"
)

// Config holds settings shared by the API server and the moderation worker.
type Config struct {
	HTTPPort    string `envconfig:"HTTP_PORT" default:"8080"`
	MetricsPort string `envconfig:"METRICS_PORT" default:"9091"` // worker only
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	LogEncoding string `envconfig:"LOG_ENCODING" default:"json"`
	SecretsDir  string `envconfig:"SECRETS_DIR" default:"/run/secrets"`

	CatalogFile        string   `envconfig:"CATALOG_FILE" default:"configs/catalog.yaml"`
	CORSAllowedOrigins []string `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// AI defaults, applied where the catalog leaves a setting empty.
	AITimeout           time.Duration `envconfig:"AI_TIMEOUT" default:"120s"`
	AIMaxAttempts       int           `envconfig:"AI_MAX_ATTEMPTS" default:"3"`
	AIBaseRetryDelay    time.Duration `envconfig:"AI_BASE_RETRY_DELAY" default:"1s"`
	AIMaxHistory        int           `envconfig:"AI_MAX_HISTORY" default:"20"`
	AIMaxResponseTokens int           `envconfig:"AI_MAX_RESPONSE_TOKENS" default:"1024"`
	AITemperature       float64       `envconfig:"AI_TEMPERATURE" default:"0.9"`
	AIDefaultModel      string        `envconfig:"AI_DEFAULT_MODEL" default:""`

	// PostgreSQL is used for chat history and moderation alerts when DBHost is set.
	DBHost        string        `envconfig:"DB_HOST" default:""`
	DBPort        string        `envconfig:"DB_PORT" default:"5432"`
	DBUser        string        `envconfig:"DB_USER" default:"postgres"`
	DBName        string        `envconfig:"DB_NAME" default:"persona_db"`
	DBSSLMode     string        `envconfig:"DB_SSL_MODE" default:"disable"`
	DBMaxConns    int           `envconfig:"DB_MAX_CONNECTIONS" default:"10"`
	DBIdleTimeout time.Duration `envconfig:"DB_MAX_IDLE_MINUTES" default:"5m"`
	DBPassword    string        // secret

	// Redis is used for session state when RedisAddr is set.
	RedisAddr       string        `envconfig:"REDIS_ADDR" default:""`
	RedisDB         int           `envconfig:"REDIS_DB" default:"0"`
	RedisSessionTTL time.Duration `envconfig:"REDIS_SESSION_TTL" default:"720h"`
	RedisPassword   string        // secret

	// RabbitMQ carries moderation tasks when set.
	RabbitMQURL string `envconfig:"RABBITMQ_URL" default:""`

	AdminToken string // secret
}

// LoadConfig reads the environment and the secret files.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	secrets := SecretReader{Dir: cfg.SecretsDir}
	var err error
	if cfg.DBHost != "" {
		if cfg.DBPassword, err = secrets.Read("db_password"); err != nil {
			return nil, err
		}
	}
	if cfg.RedisPassword, err = secrets.ReadOptional("redis_password"); err != nil {
		return nil, err
	}
	if cfg.AdminToken, err = secrets.ReadOptional("admin_token"); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Secrets returns a reader bound to the configured secrets directory.
func (c *Config) Secrets() SecretReader {
	return SecretReader{Dir: c.SecretsDir}
}

// GetDSN returns the PostgreSQL connection string.
func (c *Config) GetDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode)
}

// MaskedDSN returns the DSN with the password replaced for logging.
func (c *Config) MaskedDSN() string {
	dsn := c.GetDSN()
	parts := strings.Split(dsn, "@")
	if len(parts) != 2 {
		return "[invalid dsn format]"
	}
	userInfo := strings.Split(parts[0], ":")
	if len(userInfo) >= 3 {
		userInfo[len(userInfo)-1] = "********"
	}
	return strings.Join(userInfo, ":") + "@" + parts[1]
}

// LogFields describes the loaded configuration without secrets.
func (c *Config) LogFields() []zap.Field {
	fields := []zap.Field{
		zap.String("http_port", c.HTTPPort),
		zap.String("log_level", c.LogLevel),
		zap.String("catalog_file", c.CatalogFile),
		zap.Duration("ai_timeout", c.AITimeout),
		zap.Int("ai_max_attempts", c.AIMaxAttempts),
		zap.Duration("ai_base_retry_delay", c.AIBaseRetryDelay),
		zap.Int("ai_max_history", c.AIMaxHistory),
		zap.Bool("postgres_enabled", c.DBHost != ""),
		zap.Bool("redis_enabled", c.RedisAddr != ""),
		zap.Bool("rabbitmq_enabled", c.RabbitMQURL != ""),
		zap.Bool("admin_token_loaded", c.AdminToken != ""),
	}
	if c.DBHost != "" {
		fields = append(fields, zap.String("db_dsn", c.MaskedDSN()))
	}
	return fields
}
