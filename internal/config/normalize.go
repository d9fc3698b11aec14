package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeCapture()
	c.normalizeDetector()
	c.normalizeArchive()
	c.normalizeOCR()
	c.normalizeEmbedding()
	c.normalizeActivity()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ScreenshotsDir) == "" {
		c.Paths.ScreenshotsDir = defaultScreenshotsDir
	}
	if c.Paths.ScreenshotsDir, err = expandPath(c.Paths.ScreenshotsDir); err != nil {
		return fmt.Errorf("paths.screenshots_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.ArchiveDir) == "" {
		c.Paths.ArchiveDir = defaultArchiveDir
	}
	if c.Paths.ArchiveDir, err = expandPath(c.Paths.ArchiveDir); err != nil {
		return fmt.Errorf("paths.archive_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	// An empty api_bind disables the HTTP API, so it is only trimmed.
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	c.Paths.APIToken = strings.TrimSpace(c.Paths.APIToken)
	if c.Paths.APIToken == "" {
		c.Paths.APIToken = strings.TrimSpace(os.Getenv("GLIMPSE_API_TOKEN"))
	}
	return nil
}

func (c *Config) normalizeCapture() {
	c.Capture.ImageFormat = strings.ToLower(strings.TrimSpace(c.Capture.ImageFormat))
	switch c.Capture.ImageFormat {
	case "", "jpg", ImageFormatJPEG:
		c.Capture.ImageFormat = ImageFormatJPEG
	case ImageFormatPNG:
	}
	c.Capture.SelfAppNames = normalizeNames(c.Capture.SelfAppNames, []string{defaultSelfAppName})
	c.Capture.BrowserAppNames = normalizeNames(c.Capture.BrowserAppNames, defaultBrowserAppNames)
}

func (c *Config) normalizeDetector() {
	if c.Detector.WindowSize <= 0 {
		c.Detector.WindowSize = defaultWindowSize
	}
	if c.Detector.Stride <= 0 {
		c.Detector.Stride = defaultStride
	}
}

func (c *Config) normalizeArchive() {
	if c.Archive.MinFreeMiB < 0 {
		c.Archive.MinFreeMiB = 0
	}
}

func (c *Config) normalizeOCR() {
	c.OCR.Binary = strings.TrimSpace(c.OCR.Binary)
	if c.OCR.Binary == "" {
		c.OCR.Binary = defaultOCRBinary
	}
	langs := make([]string, 0, len(c.OCR.Languages))
	seen := make(map[string]struct{}, len(c.OCR.Languages))
	for _, lang := range c.OCR.Languages {
		normalized := strings.ToLower(strings.TrimSpace(lang))
		if normalized == "" {
			continue
		}
		if _, exists := seen[normalized]; exists {
			continue
		}
		seen[normalized] = struct{}{}
		langs = append(langs, normalized)
	}
	if len(langs) == 0 {
		langs = []string{"eng"}
	}
	c.OCR.Languages = langs
	if c.OCR.TimeoutSeconds <= 0 {
		c.OCR.TimeoutSeconds = defaultOCRTimeoutSeconds
	}
}

func (c *Config) normalizeEmbedding() {
	c.Embedding.BaseURL = strings.TrimRight(strings.TrimSpace(c.Embedding.BaseURL), "/")
	if c.Embedding.BaseURL == "" {
		c.Embedding.BaseURL = defaultEmbeddingBaseURL
	}
	c.Embedding.Model = strings.TrimSpace(c.Embedding.Model)
	if c.Embedding.Model == "" {
		c.Embedding.Model = defaultEmbeddingModel
	}
	c.Embedding.APIKey = strings.TrimSpace(c.Embedding.APIKey)
	if c.Embedding.APIKey == "" {
		if value, ok := os.LookupEnv("GLIMPSE_EMBEDDING_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		} else if value, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
			c.Embedding.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Embedding.TimeoutSeconds <= 0 {
		c.Embedding.TimeoutSeconds = defaultEmbeddingTimeoutSeconds
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = defaultEmbeddingMaxInputChars
	}
}

func (c *Config) normalizeActivity() {
	c.Activity.IdleCommand = strings.TrimSpace(c.Activity.IdleCommand)
	c.Activity.WindowCommand = strings.TrimSpace(c.Activity.WindowCommand)
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeoutSeconds <= 0 {
		c.Notifications.RequestTimeoutSeconds = defaultNtfyTimeoutSeconds
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func normalizeNames(values, fallback []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		key := strings.ToLower(trimmed)
		if _, exists := seen[key]; exists {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	if len(out) == 0 {
		return append([]string(nil), fallback...)
	}
	return out
}
