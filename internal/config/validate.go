package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateService(); err != nil {
		return err
	}
	if err := c.validateUpload(); err != nil {
		return err
	}
	if err := c.validateSurvey(); err != nil {
		return err
	}
	if err := c.validateCapture(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateService() error {
	if strings.TrimSpace(c.Service.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/quizbooth/config.toml"
		}
		return fmt.Errorf("service.base_url is required. Edit %s (create with 'quizbooth config init')", defaultPath)
	}
	if err := ensurePositiveMap(map[string]int{
		"service.request_timeout":    c.Service.RequestTimeout,
		"service.poll_interval":      c.Service.PollInterval,
		"service.poll_floor_seconds": c.Service.PollFloorSeconds,
		"service.poll_timeout":       c.Service.PollTimeout,
	}); err != nil {
		return err
	}
	if c.Service.PollFloorSeconds > c.Service.PollInterval {
		return errors.New("service.poll_floor_seconds must not exceed service.poll_interval")
	}
	return nil
}

func (c *Config) validateUpload() error {
	if c.Upload.MaxBytes <= 0 {
		return errors.New("upload.max_bytes must be greater than zero")
	}
	if err := ensurePositiveMap(map[string]int{
		"upload.max_edge":      c.Upload.MaxEdge,
		"upload.min_edge":      c.Upload.MinEdge,
		"upload.start_quality": c.Upload.StartQuality,
		"upload.quality_floor": c.Upload.QualityFloor,
		"upload.quality_step":  c.Upload.QualityStep,
	}); err != nil {
		return err
	}
	if c.Upload.MinEdge > c.Upload.MaxEdge {
		return errors.New("upload.min_edge must not exceed upload.max_edge")
	}
	if c.Upload.StartQuality > 100 || c.Upload.QualityFloor > 100 {
		return errors.New("upload quality values must be at most 100")
	}
	if c.Upload.QualityFloor > c.Upload.StartQuality {
		return errors.New("upload.quality_floor must not exceed upload.start_quality")
	}
	if c.Upload.ShrinkDamping <= 0 || c.Upload.ShrinkDamping >= 1 {
		return errors.New("upload.shrink_damping must be between 0 and 1 exclusive")
	}
	return nil
}

func (c *Config) validateSurvey() error {
	if !c.SurveyEnabled() {
		return nil
	}
	if strings.TrimSpace(c.Survey.LookupURL) == "" {
		return errors.New("survey.lookup_url must be set when survey.workshop_url is set")
	}
	if strings.TrimSpace(c.Survey.RegistrationURL) == "" {
		return errors.New("survey.registration_url must be set when survey.workshop_url is set")
	}
	return nil
}

func (c *Config) validateCapture() error {
	if c.Capture.GrabTimeout <= 0 {
		return errors.New("capture.grab_timeout must be greater than zero")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level: unsupported value %q", c.Logging.Level)
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be greater than zero", name)
		}
	}
	return nil
}
