package config

const (
	defaultDataDir          = "~/.local/share/quizbooth"
	defaultLogDir           = "~/.local/share/quizbooth/logs"
	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultRequestTimeout   = 30
	defaultPollInterval     = 2
	defaultPollFloorSeconds = 1
	defaultPollTimeout      = 600
	defaultMaxUploadBytes   = 10 * 1024 * 1024
	defaultMaxEdge          = 1536
	defaultMinEdge          = 512
	defaultStartQuality     = 92
	defaultQualityFloor     = 40
	defaultQualityStep      = 7
	defaultShrinkDamping    = 0.85
	defaultGrabTimeout      = 15
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Service: Service{
			RequestTimeout:   defaultRequestTimeout,
			PollInterval:     defaultPollInterval,
			PollFloorSeconds: defaultPollFloorSeconds,
			PollTimeout:      defaultPollTimeout,
		},
		Upload: Upload{
			MaxBytes:      defaultMaxUploadBytes,
			MaxEdge:       defaultMaxEdge,
			MinEdge:       defaultMinEdge,
			StartQuality:  defaultStartQuality,
			QualityFloor:  defaultQualityFloor,
			QualityStep:   defaultQualityStep,
			ShrinkDamping: defaultShrinkDamping,
		},
		Capture: Capture{
			GrabTimeout: defaultGrabTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
