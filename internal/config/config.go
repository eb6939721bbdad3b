package config

import (
	_ "embed"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Upload      UploadConfig      `yaml:"upload"`
	Content     ContentConfig     `yaml:"content"`
	Search      SearchConfig      `yaml:"search"`
	Index       IndexConfig       `yaml:"index"`
	Web         WebConfig         `yaml:"web"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

type DatabaseConfig struct {
	URL          string `yaml:"-"`              // PostgreSQL connection URL
	MaxOpenConns int    `yaml:"max_open_conns"` // Maximum open connections
	MaxIdleConns int    `yaml:"max_idle_conns"` // Maximum idle connections
}

type UploadConfig struct {
	Dir           string `yaml:"dir"`            // Temporary directory for uploaded content
	CacheSize     int    `yaml:"cache_size"`     // Number of upload properties kept in memory
	MaxBytes      int64  `yaml:"max_bytes"`      // Largest accepted upload
	ThumbnailSize int    `yaml:"thumbnail_size"` // Longest edge of generated thumbnails
	MaxPixels     int64  `yaml:"max_pixels"`     // Largest decoded width*height
}

// ContentConfig selects where post content is stored. A bucket endpoint
// takes precedence over the directory.
type ContentConfig struct {
	Dir            string `yaml:"dir"`            // Directory holding <post_id>.<ext> files
	BucketEndpoint string `yaml:"-"`              // S3 compatible endpoint (host:port)
	Bucket         string `yaml:"-"`              // Bucket name
	BucketPrefix   string `yaml:"bucket_prefix"`  // Key prefix inside the bucket
	BucketUseSSL   bool   `yaml:"bucket_use_ssl"` // Use HTTPS for the bucket endpoint
	AccessKey      string `yaml:"-"`
	SecretKey      string `yaml:"-"`
}

type SearchConfig struct {
	Threshold      float64 `yaml:"threshold"`       // Largest distance reported as similar
	Limit          int     `yaml:"limit"`           // Maximum number of similar posts returned
	CandidateLimit int     `yaml:"candidate_limit"` // Maximum number of candidates compared per query
}

type IndexConfig struct {
	Words        bool   `yaml:"words"`          // Keep an in-memory word index instead of querying words in SQL
	WordsPath    string `yaml:"-"`              // Path to persist the word index (optional, rebuilt on startup if empty)
	HNSW         bool   `yaml:"hnsw"`           // Keep an HNSW graph as fallback when no words match
	HNSWPath     string `yaml:"-"`              // Path to persist the HNSW graph (optional)
	HNSWM        int    `yaml:"hnsw_m"`         // Maximum neighbors per HNSW node
	HNSWEfSearch int    `yaml:"hnsw_ef_search"` // HNSW search width
}

type WebConfig struct {
	Host      string  `yaml:"host"`
	Port      int     `yaml:"port"`
	RateLimit float64 `yaml:"rate_limit"` // Requests per second per client on upload and search routes
	RateBurst int     `yaml:"rate_burst"`

	AllowedOrigins string `yaml:"allowed_origins"` // Comma separated CORS origins
}

type MaintenanceConfig struct {
	Concurrency int     `yaml:"concurrency"` // Parallel workers used to recompute signatures
	BatchSize   int     `yaml:"batch_size"`  // Rows written per transaction when recomputing words
	Rate        float64 `yaml:"rate"`        // Signature writes per second, 0 for unlimited
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable and parses it as a non-negative
// float. Zero is accepted so that rate limits can be switched off.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

// envBool reads an environment variable as a boolean.
func envBool(key string, defaultVal bool) bool {
	s := strings.TrimSpace(os.Getenv(key))
	if s == "" {
		return defaultVal
	}
	if b, err := strconv.ParseBool(s); err == nil {
		return b
	}
	return defaultVal
}

// envString returns the environment variable or the default when unset.
func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

// Defaults returns the configuration embedded in the binary.
func Defaults() Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultsYAML, &cfg); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}
	return cfg
}

func Load() *Config {
	d := Defaults()

	return &Config{
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", d.Database.MaxOpenConns),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", d.Database.MaxIdleConns),
		},
		Upload: UploadConfig{
			Dir:           envString("UPLOAD_DIR", d.Upload.Dir),
			CacheSize:     envInt("UPLOAD_CACHE_SIZE", d.Upload.CacheSize),
			MaxBytes:      int64(envInt("UPLOAD_MAX_BYTES", int(d.Upload.MaxBytes))),
			ThumbnailSize: envInt("THUMBNAIL_SIZE", d.Upload.ThumbnailSize),
			MaxPixels:     int64(envInt("UPLOAD_MAX_PIXELS", int(d.Upload.MaxPixels))),
		},
		Content: ContentConfig{
			Dir:            envString("CONTENT_DIR", d.Content.Dir),
			BucketEndpoint: os.Getenv("CONTENT_BUCKET_ENDPOINT"),
			Bucket:         os.Getenv("CONTENT_BUCKET"),
			BucketPrefix:   envString("CONTENT_BUCKET_PREFIX", d.Content.BucketPrefix),
			BucketUseSSL:   envBool("CONTENT_BUCKET_USE_SSL", d.Content.BucketUseSSL),
			AccessKey:      os.Getenv("CONTENT_BUCKET_ACCESS_KEY"),
			SecretKey:      os.Getenv("CONTENT_BUCKET_SECRET_KEY"),
		},
		Search: SearchConfig{
			Threshold:      envFloat("SIMILARITY_THRESHOLD", d.Search.Threshold),
			Limit:          envInt("SIMILARITY_LIMIT", d.Search.Limit),
			CandidateLimit: envInt("SIMILARITY_CANDIDATE_LIMIT", d.Search.CandidateLimit),
		},
		Index: IndexConfig{
			Words:        envBool("WORD_INDEX", d.Index.Words),
			WordsPath:    os.Getenv("WORD_INDEX_PATH"),
			HNSW:         envBool("HNSW_INDEX", d.Index.HNSW),
			HNSWPath:     os.Getenv("HNSW_INDEX_PATH"),
			HNSWM:        envInt("HNSW_M", d.Index.HNSWM),
			HNSWEfSearch: envInt("HNSW_EF_SEARCH", d.Index.HNSWEfSearch),
		},
		Web: WebConfig{
			Host:      envString("WEB_HOST", d.Web.Host),
			Port:      envInt("WEB_PORT", d.Web.Port),
			RateLimit: envFloat("WEB_RATE_LIMIT", d.Web.RateLimit),
			RateBurst: envInt("WEB_RATE_BURST", d.Web.RateBurst),

			AllowedOrigins: envString("WEB_ALLOWED_ORIGINS", d.Web.AllowedOrigins),
		},
		Maintenance: MaintenanceConfig{
			Concurrency: envInt("MAINTENANCE_CONCURRENCY", d.Maintenance.Concurrency),
			BatchSize:   envInt("MAINTENANCE_BATCH_SIZE", d.Maintenance.BatchSize),
			Rate:        envFloat("MAINTENANCE_RATE", d.Maintenance.Rate),
		},
	}
}
