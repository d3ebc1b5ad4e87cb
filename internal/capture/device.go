package capture

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"quizbooth/internal/config"
	"quizbooth/internal/logging"
	"quizbooth/internal/services"
)

// Device abstracts the booth camera. Open acquires the underlying stream,
// Grab reads the current frame as encoded image bytes, and Release frees the
// stream. Implementations must tolerate Release without a prior Open.
type Device interface {
	Open(ctx context.Context) error
	Grab(ctx context.Context) ([]byte, error)
	Release() error
}

// CommandDevice drives a camera through an external grab command that
// writes one encoded frame to stdout, such as libcamera-still or an ffmpeg
// single-frame invocation. Open only validates configuration; the stream is
// owned by the external tool for the duration of each grab.
type CommandDevice struct {
	command []string
	timeout time.Duration
	logger  *slog.Logger
}

func NewCommandDevice(cfg *config.Config, logger *slog.Logger) *CommandDevice {
	return &CommandDevice{
		command: strings.Fields(cfg.Capture.GrabCommand),
		timeout: time.Duration(cfg.Capture.GrabTimeout) * time.Second,
		logger:  logging.NewComponentLogger(logger, "capture"),
	}
}

func (d *CommandDevice) Open(ctx context.Context) error {
	if len(d.command) == 0 {
		return services.Wrap(services.ErrConfiguration, "capture", "open",
			"no camera grab command configured", nil)
	}
	if _, err := exec.LookPath(d.command[0]); err != nil {
		return services.Wrap(services.ErrConfiguration, "capture", "open",
			fmt.Sprintf("camera grab command %q not found", d.command[0]), err)
	}
	return nil
}

func (d *CommandDevice) Grab(ctx context.Context) ([]byte, error) {
	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, d.command[0], d.command[1:]...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if detail == "" {
			detail = err.Error()
		}
		return nil, services.Wrap(services.ErrTransient, "capture", "grab",
			fmt.Sprintf("camera grab failed: %s", detail), err)
	}
	d.logger.Debug("frame grabbed",
		"bytes", stdout.Len(),
		"duration", time.Since(start).Round(time.Millisecond).String())

	if stdout.Len() == 0 {
		return nil, services.Wrap(services.ErrTransient, "capture", "grab",
			"camera grab produced no output", nil)
	}
	return stdout.Bytes(), nil
}

func (d *CommandDevice) Release() error {
	// Nothing persistent to free. The external tool holds the device only
	// while a grab is running.
	return nil
}
