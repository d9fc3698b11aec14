package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateCapture(); err != nil {
		return err
	}
	if err := c.validateDetector(); err != nil {
		return err
	}
	if err := c.validateArchive(); err != nil {
		return err
	}
	if err := c.validateEmbedding(); err != nil {
		return err
	}
	if err := c.validateNotifications(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateCapture() error {
	if err := ensurePositiveMap(map[string]int{
		"capture.interval_seconds":       c.Capture.IntervalSeconds,
		"capture.idle_threshold_seconds": c.Capture.IdleThresholdSeconds,
		"capture.max_width":              c.Capture.MaxWidth,
		"capture.max_height":             c.Capture.MaxHeight,
	}); err != nil {
		return err
	}
	switch c.Capture.ImageFormat {
	case ImageFormatJPEG, ImageFormatPNG:
	default:
		return fmt.Errorf("capture.image_format must be %q or %q, got %q", ImageFormatJPEG, ImageFormatPNG, c.Capture.ImageFormat)
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return errors.New("capture.quality must be between 1 and 100")
	}
	return nil
}

func (c *Config) validateDetector() error {
	if c.Detector.SimilarityThreshold < 0 || c.Detector.SimilarityThreshold > 1 {
		return errors.New("detector.similarity_threshold must be between 0 and 1")
	}
	if c.Detector.HammingThreshold < 0 || c.Detector.HammingThreshold > 64 {
		return errors.New("detector.hamming_threshold must be between 0 and 64")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if !c.Archive.Enabled {
		return nil
	}
	return ensurePositiveMap(map[string]int{
		"archive.cold_age_days":  c.Archive.ColdAgeDays,
		"archive.interval_hours": c.Archive.IntervalHours,
	})
}

func (c *Config) validateEmbedding() error {
	if !c.Embedding.Enabled {
		return nil
	}
	if strings.TrimSpace(c.Embedding.BaseURL) == "" {
		return errors.New("embedding.base_url must be set when embedding.enabled is true")
	}
	if c.Embedding.Dimensions < 0 {
		return errors.New("embedding.dimensions must not be negative")
	}
	return nil
}

func (c *Config) validateNotifications() error {
	topic := c.Notifications.NtfyTopic
	if topic == "" {
		return nil
	}
	u, err := url.Parse(topic)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("notifications.ntfy_topic must be an http(s) URL, got %q", topic)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
