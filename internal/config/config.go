package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// StorageBackend はセッション情報の永続化先。
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageRedis  StorageBackend = "redis"
	StorageMemory StorageBackend = "memory"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// API
	APIURL         string
	RequestTimeout time.Duration
	RateLimitRPS   float64
	RateLimitBurst int

	// Storage
	Home           string
	StorageBackend StorageBackend
	RedisURL       string
	RedisKeyPrefix string

	// Query
	CacheStaleTime time.Duration
	SearchDebounce time.Duration
	PageSize       int

	// Login
	CallbackPort int
	LoginTimeout time.Duration

	// Upload
	MaxUploadSize int64

	// Observability
	MetricsAddr string
	LogLevel    string
}

// LoadEnvFile は.envファイルを環境変数に読み込む。
// 既に設定済みの環境変数は上書きしない。ファイルが存在しない場合は何もしない。
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.APIURL = strings.TrimRight(os.Getenv("CAREERLOG_API_URL"), "/")
	if cfg.APIURL == "" {
		missing = append(missing, "CAREERLOG_API_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if u, err := url.Parse(cfg.APIURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("CAREERLOG_API_URL must be an absolute URL: %q", cfg.APIURL)
	}

	// Optional fields with defaults
	cfg.Home = getEnvString("CAREERLOG_HOME", defaultHome())
	cfg.StorageBackend = StorageBackend(strings.ToLower(getEnvString("STORAGE_BACKEND", string(StorageFile))))
	cfg.RedisURL = getEnvString("REDIS_URL", "")
	cfg.RedisKeyPrefix = getEnvString("REDIS_KEY_PREFIX", "careerlog:")
	cfg.RequestTimeout = getEnvDuration("REQUEST_TIMEOUT", 10*time.Second)
	cfg.RateLimitRPS = getEnvFloat("RATE_LIMIT_RPS", 10)
	cfg.RateLimitBurst = getEnvInt("RATE_LIMIT_BURST", 20)
	cfg.CacheStaleTime = getEnvDuration("CACHE_STALE_TIME", 30*time.Second)
	cfg.SearchDebounce = getEnvDuration("SEARCH_DEBOUNCE", 400*time.Millisecond)
	cfg.PageSize = getEnvInt("PAGE_SIZE", 10)
	cfg.CallbackPort = getEnvInt("CALLBACK_PORT", 5173)
	cfg.LoginTimeout = getEnvDuration("LOGIN_TIMEOUT", 5*time.Minute)
	cfg.MaxUploadSize = getEnvInt64("MAX_UPLOAD_SIZE", 5242880)
	cfg.MetricsAddr = getEnvString("METRICS_ADDR", "")
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")

	switch cfg.StorageBackend {
	case StorageFile, StorageMemory:
	case StorageRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required when STORAGE_BACKEND=redis")
		}
	default:
		return nil, fmt.Errorf("unknown STORAGE_BACKEND: %q", cfg.StorageBackend)
	}

	return cfg, nil
}

// StatePath はFileStoreが使う状態ファイルのパスを返す。
func (c *Config) StatePath() string {
	return filepath.Join(c.Home, "state.json")
}

// CallbackAddr はログインコールバックを待ち受けるアドレスを返す。
func (c *Config) CallbackAddr() string {
	return "127.0.0.1:" + strconv.Itoa(c.CallbackPort)
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".careerlog"
	}
	return filepath.Join(home, ".careerlog")
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvFloat(key string, defaultVal float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return defaultVal
	}
	return f
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
