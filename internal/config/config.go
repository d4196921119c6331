package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AppHost  string
	HTTPPort string
	AppEnv   string
	LogLevel string

	Freshdesk struct {
		BaseURL    string
		APIKey     string
		Timeout    time.Duration
		MaxRetries int
		Backoff    time.Duration
	}

	// PerPage: сколько тикетов фронтенд показывает на странице; TicketsPerRequest: сколько забирать из Freshdesk за раз (<= 100).
	PerPage           int
	TicketsPerRequest int
	// RoutesFile: YAML с маршрутами фронтенда, если пусто, берутся DefaultRoutes.
	RoutesFile string
	Routes     map[string]string

	KafkaBrokers     []string
	KafkaTopicTicket string

	// ActivityEnabled включает журнал операций в Postgres (DB_*).
	ActivityEnabled bool
	DB              struct {
		Host     string
		Port     string
		User     string
		Password string
		Database string
		SSLMode  string
	}
}

// DefaultRoutes: маршруты фронтенд-виджета тикетов по умолчанию.
var DefaultRoutes = map[string]string{
	"list": "/",
	"view": "/view",
	"new":  "/new",
}

func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Load("../.env")

	cfg := &Config{
		AppHost:          getEnv("APP_HOST", "0.0.0.0"),
		HTTPPort:         firstEnv("APP_PORT", "HTTP_PORT", "8098"),
		AppEnv:           getEnv("APP_ENV", "development"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		RoutesFile:       getEnv("FRESHDESK_ROUTES_FILE", ""),
		KafkaBrokers:     ParseList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicTicket: getEnv("KAFKA_TOPIC_TICKET", "freshdesk.tickets"),
	}
	cfg.Freshdesk.BaseURL = getEnv("FRESHDESK_BASE_URL", "")
	cfg.Freshdesk.APIKey = getEnv("FRESHDESK_API_KEY", "")

	var err error
	if cfg.Freshdesk.Timeout, err = getDuration("FRESHDESK_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.Freshdesk.Backoff, err = getDuration("FRESHDESK_BACKOFF", 200*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.Freshdesk.MaxRetries, err = getInt("FRESHDESK_MAX_RETRIES", 3); err != nil {
		return nil, err
	}
	if cfg.PerPage, err = getInt("FRESHDESK_PER_PAGE", 10); err != nil {
		return nil, err
	}
	if cfg.TicketsPerRequest, err = getInt("FRESHDESK_TICKETS_PER_REQUEST", 100); err != nil {
		return nil, err
	}
	if cfg.TicketsPerRequest > 100 {
		cfg.TicketsPerRequest = 100
	}

	cfg.Routes = DefaultRoutes
	if cfg.RoutesFile != "" {
		if cfg.Routes, err = LoadRoutes(cfg.RoutesFile); err != nil {
			return nil, err
		}
	}

	cfg.ActivityEnabled = getEnv("ACTIVITY_ENABLED", "false") == "true"
	cfg.DB.Host = getEnv("DB_HOST", "localhost")
	cfg.DB.Port = getEnv("DB_PORT", "5432")
	cfg.DB.User = getEnv("DB_USER", "postgres")
	cfg.DB.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.DB.Database = getEnv("DB_DATABASE", "freshdesk_service")
	cfg.DB.SSLMode = getEnv("DB_SSLMODE", "disable")
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Freshdesk.BaseURL == "" || c.Freshdesk.APIKey == "" {
		return errors.New("config: FRESHDESK_BASE_URL and FRESHDESK_API_KEY are required")
	}
	if !strings.HasPrefix(c.Freshdesk.BaseURL, "https://") {
		return errors.New("config: FRESHDESK_BASE_URL must use https")
	}
	if c.PerPage <= 0 || c.TicketsPerRequest <= 0 {
		return errors.New("config: FRESHDESK_PER_PAGE and FRESHDESK_TICKETS_PER_REQUEST must be positive")
	}
	if c.ActivityEnabled {
		if err := c.ValidateDB(); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDB проверяет только настройки БД (migrate запускается без ключей Freshdesk).
func (c *Config) ValidateDB() error {
	if c.DB.Host == "" || c.DB.Database == "" {
		return errors.New("config: DB_HOST and DB_DATABASE are required")
	}
	if c.AppEnv == "production" && c.DB.Password == "" {
		return errors.New("config: in production DB_PASSWORD is required")
	}
	return nil
}

func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) DatabaseURL() string {
	pass := url.QueryEscape(c.DB.Password)
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.DB.User, pass, c.DB.Host, c.DB.Port, c.DB.Database, c.DB.SSLMode)
}

func (c *Config) Addr() string {
	return c.AppHost + ":" + c.HTTPPort
}

// LoadRoutes читает плоский YAML: имя маршрута -> путь.
func LoadRoutes(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: routes file: %w", err)
	}
	var routes map[string]string
	if err := yaml.Unmarshal(data, &routes); err != nil {
		return nil, fmt.Errorf("config: routes file %s: %w", path, err)
	}
	if len(routes) == 0 {
		return nil, fmt.Errorf("config: routes file %s is empty", path)
	}
	return routes, nil
}

// ParseList разбивает строку "a,b,c" на слайс, пропуская пустые элементы.
func ParseList(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func firstEnv(keysAndDef ...string) string {
	if len(keysAndDef) == 0 {
		return ""
	}
	def := keysAndDef[len(keysAndDef)-1]
	for _, k := range keysAndDef[:len(keysAndDef)-1] {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
