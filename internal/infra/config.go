package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации всей платформы.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Notifier NotifierConfig `mapstructure:"notifier"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера Console API.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (кэш здоровья и Pub/Sub событий).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig содержит пути к RSA ключам и настройки JWT.
type AuthConfig struct {
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	PrivateKeyPath string        `mapstructure:"private_key_path"` // Только для Console API
	TokenTTL       time.Duration `mapstructure:"token_ttl"`
	BcryptCost     int           `mapstructure:"bcrypt_cost"`
	PublicKey      []byte
	PrivateKey     []byte
}

// MonitorConfig содержит настройки ядра мониторинга: планировщик опроса,
// пересчет базовых линий и рейтинга надежности.
type MonitorConfig struct {
	Region        string        `mapstructure:"region"`         // Метка региона в ProbeResult
	ProbeInterval time.Duration `mapstructure:"probe_interval"` // Тик планировщика
	Concurrency   int           `mapstructure:"concurrency"`    // Максимум одновременных проверок
	RateLimit     float64       `mapstructure:"rate_limit"`     // Исходящих запросов в секунду
	RateBurst     int           `mapstructure:"rate_burst"`

	HealthTTL time.Duration `mapstructure:"health_ttl"` // TTL кэша HealthSummary

	BaselineInterval    time.Duration `mapstructure:"baseline_interval"`
	BaselineWindowHours int           `mapstructure:"baseline_window_hours"`
	ScoreInterval       time.Duration `mapstructure:"score_interval"`

	Thresholds ThresholdsConfig `mapstructure:"thresholds"`
}

// ThresholdsConfig — пороги детектора деградации. Передаются в детектор
// неизменяемым значением на каждый вызов (задел под per-tenant override).
type ThresholdsConfig struct {
	LatencyMultiplier   float64 `mapstructure:"latency_multiplier"`
	ErrorRateThreshold  float64 `mapstructure:"error_rate"`
	ConsecutiveFailures int     `mapstructure:"consecutive_failures"`
}

// NotifierConfig — вебхук уведомлений и настройки Circuit Breaker вокруг него.
type NotifierConfig struct {
	WebhookURL string        `mapstructure:"webhook_url"`
	Timeout    time.Duration `mapstructure:"timeout"`

	CBMaxRequests uint32        `mapstructure:"cb_max_requests"`
	CBInterval    time.Duration `mapstructure:"cb_interval"`
	CBTimeout     time.Duration `mapstructure:"cb_timeout"`
}

// MetricsConfig — адрес, на котором monitoring worker отдает /metrics.
type MetricsConfig struct {
	Addr string `mapstructure:"addr"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: MONITOR_CONCURRENCY=50 перекроет monitor.concurrency
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Загрузка ключей из Файла ИЛИ из ENV
	// Сначала проверяем, не лежит ли сам PEM-ключ в ENV (для Docker/K8s)
	// Если нет — читаем файл по указанному пути
	cfg.Auth.PublicKey = loadKeyResource(cfg.Auth.PublicKeyPath, "AUTH_PUBLIC_KEY_DATA")
	cfg.Auth.PrivateKey = loadKeyResource(cfg.Auth.PrivateKeyPath, "AUTH_PRIVATE_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	v.SetDefault("monitor.region", "default")
	v.SetDefault("monitor.probe_interval", 30*time.Second)
	v.SetDefault("monitor.concurrency", 20)
	v.SetDefault("monitor.rate_limit", 100)
	v.SetDefault("monitor.rate_burst", 20)
	v.SetDefault("monitor.health_ttl", 5*time.Minute)
	v.SetDefault("monitor.baseline_interval", 1*time.Hour)
	v.SetDefault("monitor.baseline_window_hours", 168)
	v.SetDefault("monitor.score_interval", 1*time.Hour)
	v.SetDefault("monitor.thresholds.latency_multiplier", 2.0)
	v.SetDefault("monitor.thresholds.error_rate", 0.10)
	v.SetDefault("monitor.thresholds.consecutive_failures", 3)

	v.SetDefault("notifier.timeout", 10*time.Second)
	v.SetDefault("notifier.cb_max_requests", 3)
	v.SetDefault("notifier.cb_interval", 5*time.Second)
	v.SetDefault("notifier.cb_timeout", 30*time.Second)

	v.SetDefault("metrics.addr", ":9090")
}

// loadKeyResource — универсальный хелпер архитектора
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
