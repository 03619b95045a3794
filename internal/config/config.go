package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	app "github.com/mohammadpnp/tabular-import/internal/application/importing"
)

var ErrInvalidConfig = errors.New("invalid configuration")

type ImportOptions struct {
	SessionTTL          time.Duration `env:"IMPORT_SESSION_TTL" envDefault:"24h"`
	BaseDir             string        `env:"IMPORT_BASE_DIR" envDefault:"."`
	Workers             int           `env:"IMPORT_WORKERS" envDefault:"4"`
	RowTimeout          time.Duration `env:"IMPORT_ROW_TIMEOUT" envDefault:"10s"`
	MaxErrors           int           `env:"IMPORT_MAX_ERRORS" envDefault:"100"`
	SampleRows          int           `env:"IMPORT_SAMPLE_ROWS" envDefault:"5"`
	SuggestThreshold    float64       `env:"IMPORT_SUGGEST_THRESHOLD" envDefault:"0.75"`
	RetainManualMatches bool          `env:"IMPORT_RETAIN_MANUAL_MATCHES" envDefault:"false"`
	DateFormats         []string      `env:"IMPORT_DATE_FORMATS" envSeparator:"|"`
	MaxUploadSize       int64         `env:"IMPORT_MAX_UPLOAD_SIZE" envDefault:"10485760"`
	MaxRows             int           `env:"IMPORT_MAX_ROWS" envDefault:"100000"`
}

type Config struct {
	Port        string `env:"PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`
	RedisURL    string `env:"REDIS_URL"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json"`
	MetricsPath string `env:"METRICS_PATH" envDefault:"/metrics"`

	Import ImportOptions
}

// Load reads .env and .env.local when present, then the process
// environment. Variables already set in the environment win.
func Load() (Config, error) {
	if err := loadEnvFiles(".env", ".env.local"); err != nil {
		return Config{}, err
	}
	return Parse()
}

func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "parse environment")
	}
	cfg.Import.Workers = clampWorkers(cfg.Import.Workers)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadEnvFiles(files ...string) error {
	existing := make([]string, 0, len(files))
	for _, file := range files {
		if _, err := os.Stat(file); err == nil {
			existing = append(existing, file)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return errors.Wrap(godotenv.Load(existing...), "load env files")
}

func clampWorkers(workers int) int {
	if workers <= 0 {
		return 1
	}
	if workers > 10 {
		return 10
	}
	return workers
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Port) == "" {
		return errors.Wrap(ErrInvalidConfig, "PORT must not be empty")
	}
	if c.Import.SessionTTL <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_SESSION_TTL must be positive, got %s", c.Import.SessionTTL)
	}
	if c.Import.RowTimeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_ROW_TIMEOUT must be positive, got %s", c.Import.RowTimeout)
	}
	if c.Import.MaxErrors <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_MAX_ERRORS must be positive, got %d", c.Import.MaxErrors)
	}
	if c.Import.SampleRows < 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_SAMPLE_ROWS must be non-negative, got %d", c.Import.SampleRows)
	}
	if c.Import.SuggestThreshold <= 0 || c.Import.SuggestThreshold > 1 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_SUGGEST_THRESHOLD must be in (0, 1], got %v", c.Import.SuggestThreshold)
	}
	if c.Import.MaxUploadSize <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_MAX_UPLOAD_SIZE must be positive, got %d", c.Import.MaxUploadSize)
	}
	if c.Import.MaxRows < 0 {
		return errors.Wrapf(ErrInvalidConfig, "IMPORT_MAX_ROWS must be non-negative, got %d", c.Import.MaxRows)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrapf(ErrInvalidConfig, "LOG_LEVEL %q is unknown", c.LogLevel)
	}
	if c.LogFormat != "json" && c.LogFormat != "text" {
		return errors.Wrapf(ErrInvalidConfig, "LOG_FORMAT must be json or text, got %q", c.LogFormat)
	}
	if !strings.HasPrefix(c.MetricsPath, "/") {
		return errors.Wrapf(ErrInvalidConfig, "METRICS_PATH must start with /, got %q", c.MetricsPath)
	}
	return nil
}

// Pipeline converts the import options into the pipeline configuration.
func (c Config) Pipeline() app.Config {
	return app.Config{
		SampleRows:          c.Import.SampleRows,
		SuggestThreshold:    c.Import.SuggestThreshold,
		MaxErrors:           c.Import.MaxErrors,
		Workers:             c.Import.Workers,
		RowTimeout:          c.Import.RowTimeout,
		RetainManualMatches: c.Import.RetainManualMatches,
		DateFormats:         c.Import.DateFormats,
	}
}

// MaxUploadLimit renders the upload size in the unit syntax echo's BodyLimit
// middleware expects. Multipart framing gets a little headroom.
func (c Config) MaxUploadLimit() string {
	return strconv.FormatInt(c.Import.MaxUploadSize+64*1024, 10) + "B"
}
