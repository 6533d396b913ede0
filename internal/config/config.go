package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

// Configはアプリ全体の設定
type Config struct {
	Port     string // サーバーポート（8080）
	GoEnv    string // dev/prod
	LogLevel string // debug/info/warn/error

	StoreDriver string // postgres / memory

	DatabaseURL      string // あれば最優先
	PostgresUser     string // DBユーザー
	PostgresPassword string // DBパスワード
	PostgresDB       string // DB名
	PostgresHost     string // DBホスト（localhost）
	PostgresPort     int    // DBポート（5432）
	PostgresSSLMode  string

	JWTSecret        string        // アクセストークン検証用
	GuestTokenSecret string        // ゲストトークン署名用
	GuestTokenTTL    time.Duration // ゲストトークンの有効期限

	RedisAddr    string        // 空ならキャッシュなし
	CartCacheTTL time.Duration // カート表示のキャッシュ期間

	KafkaBrokers       []string // 空ならアウトボックスは溜めるだけ
	KafkaOrderTopic    string
	OutboxPollInterval time.Duration

	OtelEndpoint string // 空ならトレースは出さない
}

// .envがあれば読んでから環境変数を読む
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnvは環境変数だけから組み立てる
func FromEnv() (Config, error) {
	pgPort, err := atoiOr("POSTGRES_PORT", 5432)
	if err != nil {
		return Config{}, err
	}
	guestTTL, err := durationOr("GUEST_TOKEN_TTL", 30*24*time.Hour)
	if err != nil {
		return Config{}, err
	}
	cacheTTL, err := durationOr("CART_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return Config{}, err
	}
	pollInterval, err := durationOr("OUTBOX_POLL_INTERVAL", time.Second)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Port:     getenv("PORT", "8080"),
		GoEnv:    getenv("GO_ENV", "dev"),
		LogLevel: getenv("LOG_LEVEL", "info"),

		StoreDriver: getenv("STORE_DRIVER", StoreDriverPostgres),

		DatabaseURL:      os.Getenv("DATABASE_URL"),
		PostgresUser:     getenv("POSTGRES_USER", "postgres"),
		PostgresPassword: getenv("POSTGRES_PASSWORD", "postgres"),
		PostgresDB:       getenv("POSTGRES_DB", "app"),
		PostgresHost:     getenv("POSTGRES_HOST", "localhost"),
		PostgresPort:     pgPort,
		PostgresSSLMode:  getenv("POSTGRES_SSLMODE", "disable"),

		JWTSecret:        os.Getenv("JWT_SECRET"),
		GuestTokenSecret: os.Getenv("GUEST_TOKEN_SECRET"),
		GuestTokenTTL:    guestTTL,

		RedisAddr:    os.Getenv("REDIS_ADDR"),
		CartCacheTTL: cacheTTL,

		KafkaBrokers:       splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaOrderTopic:    getenv("KAFKA_ORDER_TOPIC", "orders.placed"),
		OutboxPollInterval: pollInterval,

		OtelEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	//必須チェック
	if cfg.JWTSecret == "" {
		return Config{}, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.GuestTokenSecret == "" {
		return Config{}, fmt.Errorf("GUEST_TOKEN_SECRET is required")
	}
	if cfg.GuestTokenSecret == cfg.JWTSecret {
		return Config{}, fmt.Errorf("GUEST_TOKEN_SECRET must differ from JWT_SECRET")
	}
	switch cfg.StoreDriver {
	case StoreDriverPostgres, StoreDriverMemory:
	default:
		return Config{}, fmt.Errorf("STORE_DRIVER must be %q or %q", StoreDriverPostgres, StoreDriverMemory)
	}
	if cfg.GuestTokenTTL <= 0 {
		return Config{}, fmt.Errorf("GUEST_TOKEN_TTL must be positive")
	}

	return cfg, nil
}

func (c Config) IsProd() bool {
	return c.GoEnv == "prod"
}

// DSN はDATABASE_URLがあればそれ、無ければPOSTGRES_*から作る
func (c Config) DSN() string {
	if c.DatabaseURL != "" {
		return c.DatabaseURL
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPassword, c.PostgresDB, c.PostgresSSLMode,
	)
}

func (c Config) Addr() string {
	if strings.HasPrefix(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

func getenv(key string, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func atoiOr(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be number: %w", key, err)
	}
	return i, nil
}

func durationOr(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be duration: %w", key, err)
	}
	return d, nil
}

func splitList(v string) []string {
	if strings.TrimSpace(v) == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
