package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config представляет основную конфигурацию агрегатора новостей.
// Содержит настройки сервера, логгера, конвейера обработки статей, HTTP-загрузки,
// кэша и необязательных внешних хранилищ (Redis, PostgreSQL).
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	App      AppConfig      `mapstructure:"app"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig содержит адрес, на котором слушает HTTP API.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// LoggerConfig содержит настройки системы логирования.
// Если File или ErrorFile не заданы, используются stdout и stderr.
type LoggerConfig struct {
	Level     string `mapstructure:"level"`
	File      string `mapstructure:"file"`
	ErrorFile string `mapstructure:"error_file"`
}

// FeedURL представляет конфигурацию отдельной RSS-ленты.
type FeedURL struct {
	Name string `mapstructure:"name"`
	URL  string `mapstructure:"url"`
}

// AppConfig содержит настройки конвейера: ленты, размеры фрагментов и лимиты параллелизма.
type AppConfig struct {
	Feeds                    []FeedURL     `mapstructure:"feeds"`
	ChunkSize                int           `mapstructure:"chunk_size"`
	ChunkOverlap             int           `mapstructure:"chunk_overlap"`
	MaxArticlesPerFeed       int           `mapstructure:"max_articles_per_feed"`
	MaxConcurrentFetches     int           `mapstructure:"max_concurrent_fetches"`
	MaxConcurrentExtractions int           `mapstructure:"max_concurrent_extractions"`
	MaxTotalArticles         int           `mapstructure:"max_total_articles"`
	AggregateTimeout         time.Duration `mapstructure:"aggregate_timeout"`
	RefreshInterval          time.Duration `mapstructure:"refresh_interval"`
	ExtractionRulesFile      string        `mapstructure:"extraction_rules_file"`
}

// FetchConfig управляет исходящими HTTP-запросами к лентам и страницам статей.
type FetchConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts"`
	MaxBodyBytes  int64         `mapstructure:"max_body_bytes"`
	UserAgent     string        `mapstructure:"user_agent"`
}

// CacheConfig задает окно свежести кэша результатов в секундах.
type CacheConfig struct {
	Duration int `mapstructure:"duration"`
}

// TTL возвращает окно свежести кэша.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.Duration) * time.Second
}

// RedisConfig содержит параметры подключения к Redis. Пустой Addr отключает Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// DatabaseConfig содержит параметры подключения к PostgreSQL, где могут храниться
// дополнительные источники лент. База необязательна.
type DatabaseConfig struct {
	URL      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// Enabled сообщает, настроено ли подключение к базе.
func (c *DatabaseConfig) Enabled() bool {
	return c.URL != "" || c.Username != ""
}

// DSN возвращает строку подключения к PostgreSQL в формате URI.
// Явно заданный dsn имеет приоритет над отдельными полями.
func (c *DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Username,
		c.Password,
		c.Host,
		c.Port,
		c.DBName,
		c.SSLMode)
}

// DefaultUserAgent - заголовок User-Agent обычного браузера: некоторые сайты
// блокируют стандартный клиент Go.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

// DefaultFeeds возвращает ленты, используемые, когда ни файл, ни RSS_FEEDS их не задают.
func DefaultFeeds() []FeedURL {
	return []FeedURL{
		{Name: "vietstock-co-phieu", URL: "https://vietstock.vn/830/chung-khoan/co-phieu.rss"},
		{Name: "cafef-thi-truong-chung-khoan", URL: "https://cafef.vn/thi-truong-chung-khoan.rss"},
		{Name: "vietstock-y-kien-chuyen-gia", URL: "https://vietstock.vn/145/chung-khoan/y-kien-chuyen-gia.rss"},
		{Name: "vietstock-hoat-dong-kinh-doanh", URL: "https://vietstock.vn/737/doanh-nghiep/hoat-dong-kinh-doanh.rss"},
		{Name: "vietstock-dong-duong", URL: "https://vietstock.vn/1328/dong-duong/thi-truong-chung-khoan.rss"},
	}
}

// New создает новый экземпляр Config со значениями по умолчанию.
func New() *Config {
	return &Config{
		Server: ServerConfig{
			Address: ":8080",
		},
		Logger: LoggerConfig{
			Level: "info",
		},
		App: AppConfig{
			Feeds:                    DefaultFeeds(),
			ChunkSize:                800,
			ChunkOverlap:             150,
			MaxArticlesPerFeed:       5,
			MaxConcurrentFetches:     5,
			MaxConcurrentExtractions: 10,
			MaxTotalArticles:         20,
			AggregateTimeout:         60 * time.Second,
		},
		Fetch: FetchConfig{
			Timeout:       10 * time.Second,
			RetryAttempts: 2,
			MaxBodyBytes:  5 << 20,
			UserAgent:     DefaultUserAgent,
		},
		Cache: CacheConfig{
			Duration: 3600,
		},
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
	}
}

// envBindings связывает ключи конфигурации с переменными окружения.
var envBindings = map[string]string{
	"server.address":                 "SERVER_ADDRESS",
	"logger.level":                   "LOG_LEVEL",
	"app.chunk_size":                 "CHUNK_SIZE",
	"app.chunk_overlap":              "CHUNK_OVERLAP",
	"app.max_articles_per_feed":      "MAX_ARTICLES_PER_FEED",
	"app.max_concurrent_fetches":     "MAX_CONCURRENT_FETCHES",
	"app.max_concurrent_extractions": "MAX_CONCURRENT_EXTRACTIONS",
	"app.max_total_articles":         "MAX_TOTAL_ARTICLES",
	"app.aggregate_timeout":          "AGGREGATE_TIMEOUT",
	"app.refresh_interval":           "REFRESH_INTERVAL",
	"app.extraction_rules_file":      "EXTRACTION_RULES_FILE",
	"fetch.timeout":                  "FETCH_TIMEOUT",
	"fetch.retry_attempts":           "FETCH_RETRY_ATTEMPTS",
	"cache.duration":                 "CACHE_DURATION",
	"redis.addr":                     "REDIS_ADDR",
	"redis.password":                 "REDIS_PASSWORD",
	"database.dsn":                   "DATABASE_DSN",
}

// Load загружает конфигурацию: значения по умолчанию, затем файл (JSON или YAML),
// затем переменные окружения. Пустой configPath означает поиск config.* в текущем
// каталоге и в configs/; отсутствие файла в этом случае не ошибка.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("configs")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
		}
	}
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", env, err)
		}
	}
	cfg := New()
	// mapstructure переиспользует непустой слайс, поэтому список лент по умолчанию
	// подставляется только после разбора.
	cfg.App.Feeds = nil
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if raw := strings.TrimSpace(os.Getenv("RSS_FEEDS")); raw != "" {
		feeds, err := ParseFeedList(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid RSS_FEEDS: %w", err)
		}
		cfg.App.Feeds = feeds
	}
	if len(cfg.App.Feeds) == 0 {
		cfg.App.Feeds = DefaultFeeds()
	}
	return cfg, nil
}

// ParseFeedList разбирает список лент вида "name=url,name2=url2".
// Элемент без имени получает имя по домену URL.
func ParseFeedList(raw string) ([]FeedURL, error) {
	var feeds []FeedURL
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, u, found := strings.Cut(part, "=")
		if !found || strings.Contains(name, "://") {
			u, name = part, ""
		}
		u = strings.TrimSpace(u)
		name = strings.TrimSpace(name)
		if name == "" {
			name = FeedNameFromURL(u)
		}
		if _, err := url.ParseRequestURI(u); err != nil {
			return nil, fmt.Errorf("invalid feed url %q: %w", u, err)
		}
		feeds = append(feeds, FeedURL{Name: name, URL: u})
	}
	if len(feeds) == 0 {
		return nil, fmt.Errorf("no feeds in %q", raw)
	}
	return feeds, nil
}

// FeedNameFromURL извлекает читаемое имя ленты из домена URL.
func FeedNameFromURL(u string) string {
	parts := strings.Split(u, "/")
	if len(parts) >= 3 && parts[2] != "" {
		return strings.TrimPrefix(parts[2], "www.")
	}
	return "Unknown"
}

// Validate проверяет корректность конфигурации.
// Возвращает ошибку с описанием первой найденной проблемы.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server.address is not set")
	}
	if c.App.ChunkSize <= 0 {
		return fmt.Errorf("app.chunk_size must be a positive number")
	}
	if c.App.ChunkOverlap < 0 {
		return fmt.Errorf("app.chunk_overlap must not be negative")
	}
	if c.App.MaxArticlesPerFeed <= 0 {
		return fmt.Errorf("app.max_articles_per_feed must be a positive number")
	}
	if c.App.MaxConcurrentFetches <= 0 {
		return fmt.Errorf("app.max_concurrent_fetches must be a positive number")
	}
	if c.App.MaxConcurrentExtractions <= 0 {
		return fmt.Errorf("app.max_concurrent_extractions must be a positive number")
	}
	if c.App.MaxTotalArticles < 0 {
		return fmt.Errorf("app.max_total_articles must not be negative")
	}
	if c.App.AggregateTimeout < 0 || c.App.RefreshInterval < 0 {
		return fmt.Errorf("app.aggregate_timeout and app.refresh_interval must not be negative")
	}
	if len(c.App.Feeds) == 0 {
		return fmt.Errorf("app.feeds must not be empty")
	}
	seen := make(map[string]struct{}, len(c.App.Feeds))
	for _, feed := range c.App.Feeds {
		if _, err := url.ParseRequestURI(feed.URL); err != nil {
			return fmt.Errorf("invalid url in app.feeds: %s", feed.URL)
		}
		if feed.Name == "" {
			return fmt.Errorf("feed name cannot be empty for url: %s", feed.URL)
		}
		if _, dup := seen[feed.Name]; dup {
			return fmt.Errorf("duplicate feed name: %s", feed.Name)
		}
		seen[feed.Name] = struct{}{}
	}
	if c.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if c.Fetch.RetryAttempts < 1 {
		return fmt.Errorf("fetch.retry_attempts must be at least 1")
	}
	if c.Fetch.MaxBodyBytes <= 0 {
		return fmt.Errorf("fetch.max_body_bytes must be positive")
	}
	if c.Cache.Duration <= 0 {
		return fmt.Errorf("cache.duration must be a positive number of seconds")
	}
	return nil
}
