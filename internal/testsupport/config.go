package testsupport

import (
	"path/filepath"
	"testing"

	"quizbooth/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	cfg *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Service.BaseURL = "http://127.0.0.1:0"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")

	builder := &configBuilder{cfg: &cfgVal}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the generation service at the provided endpoint.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.BaseURL = url
	}
}

// WithCompositeURL enables the composite service on the test config.
func WithCompositeURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.CompositeURL = url
	}
}

// WithSurvey enables survey mode with the provided companion endpoints.
func WithSurvey(workshopURL, lookupURL, registrationURL string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Survey.WorkshopURL = workshopURL
		b.cfg.Survey.LookupURL = lookupURL
		b.cfg.Survey.RegistrationURL = registrationURL
	}
}

// WithGrabCommand sets the camera grab tool on the test config.
func WithGrabCommand(command string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Capture.GrabCommand = command
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
