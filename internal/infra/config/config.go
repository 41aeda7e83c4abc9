package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "TRACKER"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	Auth      AuthSettings      `mapstructure:"auth"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Policy    PolicySettings    `mapstructure:"policy"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// StorageSettings selects the persistence backend: "postgres" or "memory". SeedFile is only
// read by the memory backend.
type StorageSettings struct {
	Backend  string `mapstructure:"backend"`
	SeedFile string `mapstructure:"seed_file"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
}

// RedisSettings configures the Redis connection and the membership snapshot cache.
type RedisSettings struct {
	Enabled          bool          `mapstructure:"enabled"`
	Host             string        `mapstructure:"host"`
	Port             int           `mapstructure:"port"`
	DB               int           `mapstructure:"db"`
	Password         string        `mapstructure:"password"`
	TLSEnabled       bool          `mapstructure:"tls_enabled"`
	MembershipPrefix string        `mapstructure:"membership_prefix"`
	MembershipTTL    time.Duration `mapstructure:"membership_ttl"`
	ThrottlePrefix   string        `mapstructure:"throttle_prefix"`
}

// KafkaSettings configures the audit event producer and the cache invalidation consumer.
type KafkaSettings struct {
	Enabled             bool     `mapstructure:"enabled"`
	Brokers             []string `mapstructure:"brokers"`
	TopicPrefix         string   `mapstructure:"topic_prefix"`
	ConsumerGroup       string   `mapstructure:"consumer_group"`
	InvalidationEnabled bool     `mapstructure:"invalidation_enabled"`
}

// AuthSettings configures verification of bearer access tokens issued elsewhere.
type AuthSettings struct {
	AccessTokenSecret string        `mapstructure:"access_token_secret"`
	Issuer            string        `mapstructure:"issuer"`
	Audience          string        `mapstructure:"audience"`
	ClockSkew         time.Duration `mapstructure:"clock_skew"`
}

type TelemetrySettings struct {
	MetricsNamespace string  `mapstructure:"metrics_namespace"`
	TracingEnabled   bool    `mapstructure:"tracing_enabled"`
	OTLPEndpoint     string  `mapstructure:"otlp_endpoint"`
	ServiceName      string  `mapstructure:"service_name"`
	SamplingRate     float64 `mapstructure:"sampling_rate"`
}

// RateLimitSettings throttles mutating API calls per authenticated caller.
type RateLimitSettings struct {
	WindowDuration time.Duration `mapstructure:"window_duration"`
	WriteMaxCalls  int           `mapstructure:"write_max_calls"`
}

// PolicySettings selects the dependency graph behaviours.
type PolicySettings struct {
	CycleDetection string `mapstructure:"cycle_detection"`
	Blocking       string `mapstructure:"blocking"`
}

// DSN renders the Postgres connection string.
func (p PostgresSettings) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.Database, p.SSLMode)
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"storage.backend",
		"storage.seed_file",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"redis.enabled",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.membership_prefix",
		"redis.membership_ttl",
		"redis.throttle_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"kafka.consumer_group",
		"kafka.invalidation_enabled",
		"auth.access_token_secret",
		"auth.issuer",
		"auth.audience",
		"auth.clock_skew",
		"telemetry.metrics_namespace",
		"telemetry.tracing_enabled",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"rate_limit.window_duration",
		"rate_limit.write_max_calls",
		"policy.cycle_detection",
		"policy.blocking",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Kafka.Brokers = splitList(cfg.Kafka.Brokers)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ticket-tracker")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)

	v.SetDefault("storage.backend", "postgres")
	v.SetDefault("storage.seed_file", "")

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "tracker")
	v.SetDefault("postgres.password", "tracker_password")
	v.SetDefault("postgres.database", "tracker")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")

	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.membership_prefix", "tracker:membership")
	v.SetDefault("redis.membership_ttl", "5m")
	v.SetDefault("redis.throttle_prefix", "tracker:throttle")

	v.SetDefault("kafka.enabled", true)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "tracker")
	v.SetDefault("kafka.consumer_group", "ticket-tracker-cache")
	v.SetDefault("kafka.invalidation_enabled", true)

	v.SetDefault("auth.access_token_secret", "")
	v.SetDefault("auth.issuer", "")
	v.SetDefault("auth.audience", "")
	v.SetDefault("auth.clock_skew", "30s")

	v.SetDefault("telemetry.metrics_namespace", "tracker")
	v.SetDefault("telemetry.tracing_enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "localhost:4318")
	v.SetDefault("telemetry.service_name", "ticket-tracker")
	v.SetDefault("telemetry.sampling_rate", 1.0)

	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.write_max_calls", 120)

	v.SetDefault("policy.cycle_detection", "transitive")
	v.SetDefault("policy.blocking", "status_aware")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

// splitList accepts both repeated values and a single comma separated env value.
func splitList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
