package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

type Config struct {
	Debug      bool
	APIVersion string
	HTTPAddr   string
	GRPCAddr   string

	Database DatabaseConfig
	Redis    RedisConfig
	Email    EmailConfig
	Kafka    KafkaConfig
	Relay    RelayConfig

	OTLPEndpoint string
}

type DatabaseConfig struct {
	Host           string
	Port           int
	Username       string
	Password       string
	Name           string
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Addr string
}

type EmailConfig struct {
	Host string
	Port int
}

type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RelayConfig struct {
	Interval      time.Duration
	KeepEnvelopes bool
}

// Load reads the configuration from the environment.
func Load() (Config, error) {
	var errs []string
	intVar := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	boolVar := func(key string, def bool) bool {
		v, err := envBool(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}
	durationVar := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err.Error())
		}
		return v
	}

	cfg := Config{
		Debug:      boolVar("DEBUG", false),
		APIVersion: getEnvOrDefault("API_VERSION", "0.1.0"),
		HTTPAddr:   getEnvOrDefault("HTTP_ADDR", ":8080"),
		GRPCAddr:   getEnvOrDefault("GRPC_ADDR", ":50051"),
		Database: DatabaseConfig{
			Host:           getEnvOrDefault("DATABASE_HOST", "localhost"),
			Port:           intVar("DATABASE_PORT", 3306),
			Username:       getEnvOrDefault("DATABASE_USERNAME", "root"),
			Password:       getEnvOrDefault("DATABASE_PASSWORD", "root"),
			Name:           getEnvOrDefault("DATABASE_NAME", "allocation"),
			ConnectTimeout: durationVar("DATABASE_CONNECT_TIMEOUT", 30*time.Second),
		},
		Redis: RedisConfig{
			Addr: getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		},
		Email: EmailConfig{
			Host: getEnvOrDefault("EMAIL_HOST", "localhost"),
			Port: intVar("EMAIL_PORT", 1025),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(getEnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
			Topic:   getEnvOrDefault("KAFKA_TOPIC", "allocation.events"),
		},
		Relay: RelayConfig{
			Interval:      durationVar("RELAY_INTERVAL", time.Second),
			KeepEnvelopes: boolVar("OUTBOX_KEEP_ENVELOPES", false),
		},
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if len(cfg.Kafka.Brokers) == 0 {
		errs = append(errs, "KAFKA_BROKERS must list at least one broker")
	}
	if cfg.Relay.Interval <= 0 {
		errs = append(errs, "RELAY_INTERVAL must be positive")
	}
	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

// MySQLDSN is the DSN for the allocation database. Transactions default to
// REPEATABLE READ, which the version check relies on.
func (c Config) MySQLDSN() string {
	mc := mysql.NewConfig()
	mc.User = c.Database.Username
	mc.Passwd = c.Database.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(c.Database.Host, strconv.Itoa(c.Database.Port))
	mc.DBName = c.Database.Name
	mc.ParseTime = true
	mc.Params = map[string]string{"transaction_isolation": "'REPEATABLE-READ'"}
	return mc.FormatDSN()
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not an integer", key, v)
	}
	return n, nil
}

func envBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
