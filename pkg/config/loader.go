package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads ./configs/config.yaml (if present) and APP_* environment
// variables into a Config seeded with defaults.
func Load() (*Config, error) {
	return LoadFrom(viper.New(), "./configs", ".", "/app/configs")
}

// LoadFrom is Load with an explicit viper instance and search paths.
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	setDefaults(v)

	v.SetEnvPrefix("APP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Allow common env vars without APP_ prefix for Docker/VM deploys
	v.BindEnv("http.port", "HTTP_PORT", "APP_HTTP_PORT")
	v.BindEnv("database.url", "DATABASE_URL", "APP_DATABASE_URL")
	v.BindEnv("redis.url", "REDIS_URL", "APP_REDIS_URL")
	v.BindEnv("queue.url", "NATS_URL", "AMQP_URL", "APP_QUEUE_URL")
	v.BindEnv("jwt.secret", "JWT_SECRET", "APP_JWT_SECRET")
	v.BindEnv("vault.address", "VAULT_ADDR", "APP_VAULT_ADDRESS")
	v.BindEnv("vault.token", "VAULT_TOKEN", "APP_VAULT_TOKEN")
	v.BindEnv("asr.url", "ASR_URL", "APP_ASR_URL")
	v.BindEnv("asr.api_key", "ASR_API_KEY", "APP_ASR_API_KEY")
	v.BindEnv("app.environment", "APP_ENVIRONMENT")
	v.BindEnv("logging.level", "LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
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

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "kogoto")
	v.SetDefault("app.version", "dev")
	v.SetDefault("app.environment", "development")

	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", "15s")
	v.SetDefault("http.write_timeout", "15s")
	v.SetDefault("http.idle_timeout", "60s")
	v.SetDefault("http.body_limit", 4*1024*1024)

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.port", 9090)
	v.SetDefault("grpc.health_interval", "10s")

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.key_prefix", "kogoto:")
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.url", "redis://localhost:6379/0")

	v.SetDefault("queue.driver", "none")
	v.SetDefault("queue.name", "kogoto.events")
	v.SetDefault("queue.events", []string{"answer", "wallet:update", "friend:update"})

	v.SetDefault("jwt.access_token_duration", "720h")
	v.SetDefault("jwt.issuer", "kogoto")

	v.SetDefault("vault.secret_path", "secret/data/kogoto")
	v.SetDefault("vault.secret_field", "jwt_secret")

	v.SetDefault("asr.language", "ja-JP")
	v.SetDefault("asr.sample_rate", 16000)
	v.SetDefault("asr.timeout", "10s")

	v.SetDefault("vocab.path", "data/vocab.csv")
	v.SetDefault("matcher.readings", false)

	v.SetDefault("attempt.lead", "250ms")
	v.SetDefault("attempt.beat", "600ms")
	v.SetDefault("attempt.beats", 3)
	v.SetDefault("attempt.cue_duration", "90ms")
	v.SetDefault("attempt.answer_window", "3s")
	v.SetDefault("attempt.max_tries", 3)

	v.SetDefault("session.idle_timeout", "30m")
	v.SetDefault("session.cleanup_interval", "1m")
	v.SetDefault("session.max_sessions", 10000)
	v.SetDefault("session.side_effect_timeout", "5s")

	v.SetDefault("mood.alpha", 0.8)
	v.SetDefault("mood.threshold", 0.18)
	v.SetDefault("mood.dwell", "1s")
	v.SetDefault("mood.smile_gate", 0.15)

	v.SetDefault("opentelemetry.service_name", "kogoto")
	v.SetDefault("opentelemetry.jaeger.endpoint", "http://localhost:14268/api/traces")
	v.SetDefault("opentelemetry.jaeger.sampler_param", 1.0)

	v.SetDefault("prometheus.enabled", true)
	v.SetDefault("prometheus.path", "/metrics")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("circuit_breaker.enabled", true)
	v.SetDefault("circuit_breaker.max_requests", 3)
	v.SetDefault("circuit_breaker.min_requests", 5)
	v.SetDefault("circuit_breaker.interval", "1m")
	v.SetDefault("circuit_breaker.timeout", "30s")
	v.SetDefault("circuit_breaker.failure_threshold", 0.6)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})
}

// Validate rejects settings the server cannot start with.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("config: unknown store driver %q", c.Store.Driver)
	}
	switch c.Queue.Driver {
	case "", "none", "nats", "rabbitmq":
	default:
		return fmt.Errorf("config: unknown queue driver %q", c.Queue.Driver)
	}
	if c.Store.Driver == "postgres" && c.Database.URL == "" {
		return errors.New("config: database.url is required for the postgres store")
	}
	if c.Attempt.Beats < 1 || c.Attempt.MaxTries < 1 || c.Attempt.AnswerWindow <= 0 {
		return errors.New("config: attempt beats, max_tries and answer_window must be positive")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}
