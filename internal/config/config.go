package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultModelName is the Gemini model used when GEMINI_MODEL is unset.
const DefaultModelName = "gemini-2.5-flash"

// Config holds all run configuration. It is built once at startup and
// passed by value; components never modify it.
type Config struct {
	// TestMode swaps every external collaborator for a fixed fixture.
	TestMode bool
	// DisableRemote forces the local OCR path even when a key is present.
	DisableRemote bool
	LogLevel      string

	Gemini    GeminiConfig
	OCR       OCRConfig
	Normalize NormalizeConfig
	Output    OutputConfig
	Storage   StorageConfig
	API       APIConfig
}

// GeminiConfig holds remote model configuration.
type GeminiConfig struct {
	APIKey      string
	Model       string
	APIVersion  string
	BaseURL     string
	Timeout     time.Duration
	Temperature float32
	UseVertexAI bool
	Project     string
	Location    string
}

// OCRConfig holds document rendering and recognition configuration.
type OCRConfig struct {
	Language       string
	TessdataPrefix string
	Concurrency    int
	PdftoppmPath   string
	DPI            int
	// MinTextDensity is the number of recognized alphanumeric runes per KiB
	// of page image below which a page is reported as possibly rotated.
	MinTextDensity float64
}

// NormalizeConfig holds reconciliation settings.
type NormalizeConfig struct {
	Tolerance float64
	DayFirst  bool
}

// OutputConfig controls where artifacts are written.
type OutputConfig struct {
	Dir  string
	XLSX bool
}

// StorageConfig configures gs:// input fetching.
type StorageConfig struct {
	CredentialsFile string
}

// APIConfig holds HTTP server and background job settings.
type APIConfig struct {
	Port           int
	MaxUploadBytes int64
	JobWorkers     int
	JobQueueSize   int
	JobMaxRetries  int
}

// Load reads configuration from the process environment.
func Load() Config {
	return LoadFrom(os.Getenv)
}

// LoadFrom reads configuration through the given lookup function.
func LoadFrom(getenv func(string) string) Config {
	e := env{getenv: getenv}
	apiKey := e.str("GEMINI_API_KEY", "")
	if apiKey == "" {
		apiKey = e.str("GOOGLE_API_KEY", "")
	}

	return Config{
		TestMode:      e.boolean("STATEMENT_TEST_MODE", false),
		DisableRemote: e.boolean("STATEMENT_DISABLE_REMOTE", false),
		LogLevel:      e.str("LOG_LEVEL", "info"),
		Gemini: GeminiConfig{
			APIKey:      apiKey,
			Model:       e.str("GEMINI_MODEL", e.str("GEMINI_DEFAULT_MODEL", DefaultModelName)),
			APIVersion:  e.str("GEMINI_API_VERSION", "v1"),
			BaseURL:     e.str("GEMINI_BASE_URL", ""),
			Timeout:     e.duration("GEMINI_TIMEOUT", 60*time.Second),
			Temperature: float32(e.float("GEMINI_TEMPERATURE", 0)),
			UseVertexAI: e.boolean("GOOGLE_GENAI_USE_VERTEXAI", false),
			Project:     e.str("GOOGLE_CLOUD_PROJECT", ""),
			Location:    e.str("GOOGLE_CLOUD_LOCATION", ""),
		},
		OCR: OCRConfig{
			Language:       e.str("OCR_LANGUAGE", "eng"),
			TessdataPrefix: e.str("TESSDATA_PREFIX", ""),
			Concurrency:    e.integer("OCR_CONCURRENCY", 2),
			PdftoppmPath:   e.str("PDFTOPPM_PATH", "pdftoppm"),
			DPI:            e.integer("RENDER_DPI", 200),
			MinTextDensity: e.float("OCR_MIN_TEXT_DENSITY", 2),
		},
		Normalize: NormalizeConfig{
			Tolerance: e.float("RECONCILE_TOLERANCE", 1.0),
			DayFirst:  e.boolean("DATE_DAY_FIRST", true),
		},
		Output: OutputConfig{
			Dir:  e.str("OUTPUT_DIR", ""),
			XLSX: e.boolean("OUTPUT_XLSX", false),
		},
		Storage: StorageConfig{
			CredentialsFile: e.str("GCS_CREDENTIALS_FILE", ""),
		},
		API: APIConfig{
			Port:           e.integer("PORT", 8080),
			MaxUploadBytes: int64(e.integer("API_MAX_UPLOAD_MB", 32)) << 20,
			JobWorkers:     e.integer("JOB_WORKERS", 2),
			JobQueueSize:   e.integer("JOB_QUEUE_SIZE", 32),
			JobMaxRetries:  e.integer("JOB_MAX_RETRIES", 1),
		},
	}
}

// RemoteEnabled reports whether the remote model may be called at all.
func (c Config) RemoteEnabled() bool {
	if c.TestMode || c.DisableRemote {
		return false
	}
	return c.Gemini.APIKey != "" || c.Gemini.UseVertexAI
}

// Validate checks the configuration for values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.Gemini.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("GEMINI_TIMEOUT must be positive, got %s", c.Gemini.Timeout))
	}
	if strings.TrimSpace(c.Gemini.Model) == "" {
		errs = append(errs, errors.New("GEMINI_MODEL must not be empty"))
	}
	if c.Gemini.UseVertexAI && (c.Gemini.Project == "" || c.Gemini.Location == "") {
		errs = append(errs, errors.New("GOOGLE_CLOUD_PROJECT and GOOGLE_CLOUD_LOCATION are required with GOOGLE_GENAI_USE_VERTEXAI"))
	}
	if c.OCR.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("OCR_CONCURRENCY must be at least 1, got %d", c.OCR.Concurrency))
	}
	if c.OCR.DPI < 72 || c.OCR.DPI > 600 {
		errs = append(errs, fmt.Errorf("RENDER_DPI must be between 72 and 600, got %d", c.OCR.DPI))
	}
	if c.API.MaxUploadBytes <= 0 {
		errs = append(errs, fmt.Errorf("API_MAX_UPLOAD_MB must be positive, got %d bytes", c.API.MaxUploadBytes))
	}
	if c.API.JobWorkers < 1 || c.API.JobQueueSize < 1 {
		errs = append(errs, fmt.Errorf("JOB_WORKERS and JOB_QUEUE_SIZE must be at least 1, got %d and %d", c.API.JobWorkers, c.API.JobQueueSize))
	}
	if c.Normalize.Tolerance < 0 {
		errs = append(errs, fmt.Errorf("RECONCILE_TOLERANCE must not be negative, got %v", c.Normalize.Tolerance))
	}
	return errors.Join(errs...)
}

type env struct {
	getenv func(string) string
}

func (e env) str(key, defaultValue string) string {
	if value := strings.TrimSpace(e.getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func (e env) integer(key string, defaultValue int) int {
	if value := e.getenv(key); value != "" {
		if intVal, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func (e env) float(key string, defaultValue float64) float64 {
	if value := e.getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(strings.TrimSpace(value), 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func (e env) boolean(key string, defaultValue bool) bool {
	if value := e.getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func (e env) duration(key string, defaultValue time.Duration) time.Duration {
	if value := e.getenv(key); value != "" {
		if duration, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return duration
		}
	}
	return defaultValue
}
