package config

// Supported values for capture.image_format.
const (
	ImageFormatJPEG = "jpeg"
	ImageFormatPNG  = "png"
)

const (
	defaultConfigPath              = "~/.config/glimpse/config.toml"
	defaultScreenshotsDir          = "~/.local/share/glimpse/screenshots"
	defaultArchiveDir              = "~/.local/share/glimpse/archive"
	defaultDataDir                 = "~/.local/share/glimpse"
	defaultLogDir                  = "~/.local/share/glimpse/logs"
	defaultAPIBind                 = "127.0.0.1:7489"
	defaultCaptureIntervalSeconds  = 5
	defaultIdleThresholdSeconds    = 60
	defaultMaxWidth                = 960
	defaultMaxHeight               = 600
	defaultImageFormat             = ImageFormatJPEG
	defaultImageQuality            = 80
	defaultSimilarityThreshold     = 0.85
	defaultHammingThreshold        = 7
	defaultWindowSize              = 8
	defaultStride                  = 4
	defaultColdAgeDays             = 30
	defaultArchiveIntervalHours    = 6
	defaultArchiveMinFreeMiB       = 512
	defaultOCRBinary               = "tesseract"
	defaultOCRTimeoutSeconds       = 30
	defaultEmbeddingBaseURL        = "http://127.0.0.1:11434/v1"
	defaultEmbeddingModel          = "nomic-embed-text"
	defaultEmbeddingTimeoutSeconds = 20
	defaultEmbeddingMaxInputChars  = 8000
	defaultIdleCommand             = "xprintidle"
	defaultWindowCommand           = "xdotool"
	defaultNtfyTimeoutSeconds      = 10
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 30
	defaultSelfAppName             = "glimpse"
)

var defaultBrowserAppNames = []string{
	"Safari",
	"Google Chrome",
	"Chromium",
	"Firefox",
	"Arc",
	"Brave Browser",
	"Microsoft Edge",
	"Opera",
	"Vivaldi",
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			ScreenshotsDir: defaultScreenshotsDir,
			ArchiveDir:     defaultArchiveDir,
			DataDir:        defaultDataDir,
			LogDir:         defaultLogDir,
			APIBind:        defaultAPIBind,
		},
		Capture: Capture{
			IntervalSeconds:      defaultCaptureIntervalSeconds,
			IdleThresholdSeconds: defaultIdleThresholdSeconds,
			MaxWidth:             defaultMaxWidth,
			MaxHeight:            defaultMaxHeight,
			ImageFormat:          defaultImageFormat,
			Quality:              defaultImageQuality,
			SelfAppNames:         []string{defaultSelfAppName},
			BrowserAppNames:      append([]string(nil), defaultBrowserAppNames...),
		},
		Detector: Detector{
			SimilarityThreshold: defaultSimilarityThreshold,
			HammingThreshold:    defaultHammingThreshold,
			WindowSize:          defaultWindowSize,
			Stride:              defaultStride,
		},
		Archive: Archive{
			Enabled:       true,
			ColdAgeDays:   defaultColdAgeDays,
			IntervalHours: defaultArchiveIntervalHours,
			MinFreeMiB:    defaultArchiveMinFreeMiB,
		},
		OCR: OCR{
			Binary:         defaultOCRBinary,
			Languages:      []string{"eng"},
			TimeoutSeconds: defaultOCRTimeoutSeconds,
		},
		Embedding: Embedding{
			BaseURL:        defaultEmbeddingBaseURL,
			Model:          defaultEmbeddingModel,
			TimeoutSeconds: defaultEmbeddingTimeoutSeconds,
			MaxInputChars:  defaultEmbeddingMaxInputChars,
		},
		Activity: Activity{
			IdleCommand:   defaultIdleCommand,
			WindowCommand: defaultWindowCommand,
		},
		Notifications: Notifications{
			RequestTimeoutSeconds: defaultNtfyTimeoutSeconds,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
