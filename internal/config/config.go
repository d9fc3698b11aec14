package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	ScreenshotsDir string `toml:"screenshots_dir"`
	ArchiveDir     string `toml:"archive_dir"`
	DataDir        string `toml:"data_dir"`
	LogDir         string `toml:"log_dir"`
	APIBind        string `toml:"api_bind"`
	// APIToken, when set, is required as a bearer token by the HTTP API.
	APIToken string `toml:"api_token"`
}

// Capture contains settings for the periodic capture cycle and the saved images.
type Capture struct {
	IntervalSeconds      int      `toml:"interval_seconds"`
	IdleThresholdSeconds int      `toml:"idle_threshold_seconds"`
	MaxWidth             int      `toml:"max_width"`
	MaxHeight            int      `toml:"max_height"`
	ImageFormat          string   `toml:"image_format"`
	Quality              int      `toml:"quality"`
	SelfAppNames         []string `toml:"self_app_names"`
	BrowserAppNames      []string `toml:"browser_app_names"`
}

// Detector contains the change detection thresholds.
type Detector struct {
	// SimilarityThreshold is the SSIM score at or above which a frame may be a duplicate.
	SimilarityThreshold float64 `toml:"similarity_threshold"`
	// HammingThreshold is the fingerprint distance at or below which a frame may be a duplicate.
	HammingThreshold int `toml:"hamming_threshold"`
	WindowSize       int `toml:"window_size"`
	Stride           int `toml:"stride"`
}

// Archive contains configuration for cold screenshot compression.
type Archive struct {
	Enabled       bool `toml:"enabled"`
	ColdAgeDays   int  `toml:"cold_age_days"`
	IntervalHours int  `toml:"interval_hours"`
	MinFreeMiB    int  `toml:"min_free_mib"`
}

// OCR contains configuration for the tesseract text extraction collaborator.
type OCR struct {
	Enabled        bool     `toml:"enabled"`
	Binary         string   `toml:"binary"`
	Languages      []string `toml:"languages"`
	TimeoutSeconds int      `toml:"timeout_seconds"`
}

// Embedding contains connection settings for an OpenAI-compatible embeddings endpoint.
type Embedding struct {
	Enabled        bool   `toml:"enabled"`
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxInputChars  int    `toml:"max_input_chars"`
}

// Activity configures how idle time and the frontmost window are discovered.
type Activity struct {
	IdleCommand   string `toml:"idle_command"`
	WindowCommand string `toml:"window_command"`
}

// Notifications configures ntfy push notifications. An empty topic disables them.
type Notifications struct {
	NtfyTopic             string `toml:"ntfy_topic"`
	RequestTimeoutSeconds int    `toml:"request_timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for glimpse.
//
// Configuration sections by subsystem:
//   - Paths: screenshot, archive, database and log directories plus the API bind address
//   - Capture: capture cadence, idle suppression and saved image format
//   - Detector: SSIM and fingerprint thresholds used to drop duplicate frames
//   - Archive: cold-age window and archiver cadence
//   - OCR: tesseract text extraction
//   - Embedding: OpenAI-compatible embeddings endpoint
//   - Activity: idle and frontmost-window probes
//   - Notifications: ntfy topic for archive results and failures
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Capture       Capture       `toml:"capture"`
	Detector      Detector      `toml:"detector"`
	Archive       Archive       `toml:"archive"`
	OCR           OCR           `toml:"ocr"`
	Embedding     Embedding     `toml:"embedding"`
	Activity      Activity      `toml:"activity"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	cfg, err := loadFile(resolvedPath, exists)
	if err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

func loadFile(resolvedPath string, exists bool) (*Config, error) {
	cfg := Default()

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("glimpse.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
// The archive directory is created on a best-effort basis; the archiver
// re-checks it on every run and aborts that run when it is unavailable.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ScreenshotsDir, c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) != "" {
		_ = os.MkdirAll(c.Paths.ArchiveDir, 0o755)
	}
	return nil
}

// DatabasePath returns the location of the entries database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "glimpse.db")
}

// SocketPath returns the control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "glimpse.sock")
}

// PIDPath returns where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "glimpsed.pid")
}

// CaptureInterval returns the periodic capture interval.
func (c *Config) CaptureInterval() time.Duration {
	return time.Duration(c.Capture.IntervalSeconds) * time.Second
}

// IdleThreshold returns the idle duration after which periodic capture is skipped.
func (c *Config) IdleThreshold() time.Duration {
	return time.Duration(c.Capture.IdleThresholdSeconds) * time.Second
}

// ArchiveInterval returns the time between archiver runs.
func (c *Config) ArchiveInterval() time.Duration {
	return time.Duration(c.Archive.IntervalHours) * time.Hour
}

// ColdAge returns the age after which entries become eligible for archiving.
func (c *Config) ColdAge() time.Duration {
	return time.Duration(c.Archive.ColdAgeDays) * 24 * time.Hour
}

// ImageExtension returns the file extension for saved screenshots.
func (c *Config) ImageExtension() string {
	if c.Capture.ImageFormat == ImageFormatPNG {
		return ".png"
	}
	return ".jpg"
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
