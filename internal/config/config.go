package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Service contains the generation backend endpoints and timing knobs.
type Service struct {
	BaseURL          string `toml:"base_url"`
	CompositeURL     string `toml:"composite_url"`
	AnalyticsURL     string `toml:"analytics_url"`
	RequestTimeout   int    `toml:"request_timeout"`
	PollInterval     int    `toml:"poll_interval"`
	PollFloorSeconds int    `toml:"poll_floor_seconds"`
	PollTimeout      int    `toml:"poll_timeout"`
}

// Survey contains the remote survey-data endpoints used to populate
// workshop and attendee display data. Disabled when the workshop URL is empty.
type Survey struct {
	WorkshopURL     string `toml:"workshop_url"`
	LookupURL       string `toml:"lookup_url"`
	RegistrationURL string `toml:"registration_url"`
}

// Upload contains the photo normalization budget.
type Upload struct {
	MaxBytes      int64   `toml:"max_bytes"`
	MaxEdge       int     `toml:"max_edge"`
	MinEdge       int     `toml:"min_edge"`
	StartQuality  int     `toml:"start_quality"`
	QualityFloor  int     `toml:"quality_floor"`
	QualityStep   int     `toml:"quality_step"`
	ShrinkDamping float64 `toml:"shrink_damping"`
}

// Capture contains the camera grab tool configuration.
type Capture struct {
	GrabCommand string `toml:"grab_command"`
	GrabTimeout int    `toml:"grab_timeout"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for quizbooth.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Service: generation/composite/analytics endpoints and polling cadence
//   - Survey: workshop list, attendee lookup, and registration endpoints
//   - Upload: photo size budget and normalization bounds
//   - Capture: external still-grab tool
//   - Logging: log format and level
type Config struct {
	Paths   Paths   `toml:"paths"`
	Service Service `toml:"service"`
	Survey  Survey  `toml:"survey"`
	Upload  Upload  `toml:"upload"`
	Capture Capture `toml:"capture"`
	Logging Logging `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/quizbooth/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
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

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("quizbooth.toml")
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

func (c *Config) normalize() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}

	c.Service.BaseURL = strings.TrimRight(strings.TrimSpace(c.Service.BaseURL), "/")
	c.Service.CompositeURL = strings.TrimSpace(c.Service.CompositeURL)
	c.Service.AnalyticsURL = strings.TrimSpace(c.Service.AnalyticsURL)
	c.Survey.WorkshopURL = strings.TrimSpace(c.Survey.WorkshopURL)
	c.Survey.LookupURL = strings.TrimSpace(c.Survey.LookupURL)
	c.Survey.RegistrationURL = strings.TrimSpace(c.Survey.RegistrationURL)

	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format
	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
	return nil
}

// EnsureDirectories creates the directories quizbooth needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// SurveyEnabled reports whether the workshop-selection flow has a backend.
func (c *Config) SurveyEnabled() bool {
	return c.Survey.WorkshopURL != ""
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
