package config

import "time"

type Config struct {
	App            AppConfig            `mapstructure:"app"`
	HTTP           HTTPConfig           `mapstructure:"http"`
	GRPC           GRPCConfig           `mapstructure:"grpc"`
	Store          StoreConfig          `mapstructure:"store"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Redis          RedisConfig          `mapstructure:"redis"`
	Queue          QueueConfig          `mapstructure:"queue"`
	JWT            JWTConfig            `mapstructure:"jwt"`
	Vault          VaultConfig          `mapstructure:"vault"`
	ASR            ASRConfig            `mapstructure:"asr"`
	Vocab          VocabConfig          `mapstructure:"vocab"`
	Matcher        MatcherConfig        `mapstructure:"matcher"`
	Attempt        AttemptConfig        `mapstructure:"attempt"`
	Session        SessionConfig        `mapstructure:"session"`
	Mood           MoodConfig           `mapstructure:"mood"`
	OpenTelemetry  OpenTelemetryConfig  `mapstructure:"opentelemetry"`
	Prometheus     PrometheusConfig     `mapstructure:"prometheus"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	CORS           CORSConfig           `mapstructure:"cors"`
}

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type HTTPConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	BodyLimit    int           `mapstructure:"body_limit"`
}

type GRPCConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Port           int           `mapstructure:"port"`
	HealthInterval time.Duration `mapstructure:"health_interval"`
}

// StoreConfig selects the learner key-value backend: memory, redis or
// postgres.
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type DatabaseConfig struct {
	URL             string        `mapstructure:"url"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

// QueueConfig selects the event relay broker: none, nats or rabbitmq.
type QueueConfig struct {
	Driver string   `mapstructure:"driver"`
	URL    string   `mapstructure:"url"`
	Name   string   `mapstructure:"name"`
	Events []string `mapstructure:"events"`
}

type JWTConfig struct {
	Secret              string        `mapstructure:"secret"`
	AccessTokenDuration time.Duration `mapstructure:"access_token_duration"`
	Issuer              string        `mapstructure:"issuer"`
}

type VaultConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Address     string `mapstructure:"address"`
	Token       string `mapstructure:"token"`
	SecretPath  string `mapstructure:"secret_path"`
	SecretField string `mapstructure:"secret_field"`
}

// ASRConfig points at an external streaming recognizer. Voice answers sent
// as audio are rejected when URL is empty.
type ASRConfig struct {
	URL        string        `mapstructure:"url"`
	APIKey     string        `mapstructure:"api_key"`
	Language   string        `mapstructure:"language"`
	SampleRate int           `mapstructure:"sample_rate"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

type VocabConfig struct {
	Path string `mapstructure:"path"`
}

type MatcherConfig struct {
	Readings bool `mapstructure:"readings"`
}

type AttemptConfig struct {
	Lead         time.Duration `mapstructure:"lead"`
	Beat         time.Duration `mapstructure:"beat"`
	Beats        int           `mapstructure:"beats"`
	CueDuration  time.Duration `mapstructure:"cue_duration"`
	AnswerWindow time.Duration `mapstructure:"answer_window"`
	MaxTries     int           `mapstructure:"max_tries"`
}

type SessionConfig struct {
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
	CleanupInterval   time.Duration `mapstructure:"cleanup_interval"`
	MaxSessions       int           `mapstructure:"max_sessions"`
	SideEffectTimeout time.Duration `mapstructure:"side_effect_timeout"`
}

type MoodConfig struct {
	Alpha     float64       `mapstructure:"alpha"`
	Threshold float64       `mapstructure:"threshold"`
	Dwell     time.Duration `mapstructure:"dwell"`
	SmileGate float64       `mapstructure:"smile_gate"`
}

type OpenTelemetryConfig struct {
	Enabled     bool         `mapstructure:"enabled"`
	Jaeger      JaegerConfig `mapstructure:"jaeger"`
	ServiceName string       `mapstructure:"service_name"`
}

type JaegerConfig struct {
	Endpoint     string  `mapstructure:"endpoint"`
	SamplerParam float64 `mapstructure:"sampler_param"`
}

type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type CircuitBreakerConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	MaxRequests      int           `mapstructure:"max_requests"`
	MinRequests      int           `mapstructure:"min_requests"`
	Interval         time.Duration `mapstructure:"interval"`
	Timeout          time.Duration `mapstructure:"timeout"`
	FailureThreshold float64       `mapstructure:"failure_threshold"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
	ExposeHeaders  []string `mapstructure:"expose_headers"`
	MaxAge         int      `mapstructure:"max_age"`
	Credentials    bool     `mapstructure:"credentials"`
}
