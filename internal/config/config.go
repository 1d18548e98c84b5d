package config

import "time"

// Config is the root application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Auth     AuthConfig     `yaml:"auth"`
	Log      LogConfig      `yaml:"log"`
	Store    StoreConfig    `yaml:"store"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Pipeline PipelineConfig `yaml:"pipeline"`
	Upload   UploadConfig   `yaml:"upload"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            string        `yaml:"port"             env:"PORT"                    env-default:"8090"`
	ReadTimeout     time.Duration `yaml:"read_timeout"     env:"SERVER_READ_TIMEOUT"     env-default:"30s"`
	WriteTimeout    time.Duration `yaml:"write_timeout"    env:"SERVER_WRITE_TIMEOUT"    env-default:"60s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"     env:"SERVER_IDLE_TIMEOUT"     env-default:"120s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SERVER_SHUTDOWN_TIMEOUT" env-default:"30s"`
}

// AuthConfig holds the bearer key guarding the API.
type AuthConfig struct {
	APIKey string `yaml:"api_key" env:"DOCANNOT_API_KEY"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"  env:"LOG_LEVEL"  env-default:"info"`
	Format string `yaml:"format" env:"LOG_FORMAT" env-default:"json"`
}

// StoreConfig selects and configures the annotation store backend.
type StoreConfig struct {
	Driver          string        `yaml:"driver"             env:"STORE_DRIVER"             env-default:"sqlite"`
	Path            string        `yaml:"path"               env:"STORE_PATH"               env-default:"./docannot.db"`
	DSN             string        `yaml:"dsn"                env:"STORE_DSN"`
	MaxConns        int32         `yaml:"max_conns"          env:"STORE_MAX_CONNS"          env-default:"10"`
	MinConns        int32         `yaml:"min_conns"          env:"STORE_MIN_CONNS"          env-default:"1"`
	MaxConnLifetime time.Duration `yaml:"max_conn_lifetime"  env:"STORE_MAX_CONN_LIFETIME"  env-default:"1h"`
	MaxConnIdleTime time.Duration `yaml:"max_conn_idle_time" env:"STORE_MAX_CONN_IDLE_TIME" env-default:"30m"`
}

// AnalysisConfig controls language resources and annotation defaults.
type AnalysisConfig struct {
	DataDir         string        `yaml:"data_dir"         env:"ANALYSIS_DATA_DIR"         env-default:"./data"`
	DefaultLanguage string        `yaml:"default_language" env:"ANALYSIS_DEFAULT_LANGUAGE" env-default:"spa"`
	OutputSet       string        `yaml:"output_set"       env:"ANALYSIS_OUTPUT_SET"       env-default:"Analysis"`
	AppendLanguage  bool          `yaml:"append_language"  env:"ANALYSIS_APPEND_LANGUAGE"  env-default:"false"`
	SentenceWorkers int           `yaml:"sentence_workers" env:"ANALYSIS_SENTENCE_WORKERS" env-default:"4"`
	Preload         []string      `yaml:"preload"          env:"ANALYSIS_PRELOAD"          env-separator:","`
	StatsWindow     time.Duration `yaml:"stats_window"     env:"ANALYSIS_STATS_WINDOW"     env-default:"1h"`
}

// PipelineConfig sizes the annotation job queue.
type PipelineConfig struct {
	WorkerCount  int           `yaml:"worker_count"   env:"WORKER_COUNT"   env-default:"4"`
	MaxQueueSize int           `yaml:"max_queue_size" env:"MAX_QUEUE_SIZE" env-default:"100"`
	JobTTL       time.Duration `yaml:"job_ttl"        env:"JOB_TTL"        env-default:"1h"`
}

// UploadConfig bounds document uploads.
type UploadConfig struct {
	MaxUploadBytes       int64 `yaml:"max_upload_bytes"       env:"MAX_UPLOAD_BYTES"       env-default:"52428800"`
	PDFFallbackPdftotext bool  `yaml:"pdf_fallback_pdftotext" env:"PDF_FALLBACK_PDFTOTEXT" env-default:"true"`
}
