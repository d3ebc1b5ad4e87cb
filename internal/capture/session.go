package capture

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"quizbooth/internal/logging"
	"quizbooth/internal/services"
)

// State tracks the camera lifecycle for one capture session.
type State int

const (
	StateIdle State = iota
	StateRequesting
	StateLive
	StateCaptured
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRequesting:
		return "requesting"
	case StateLive:
		return "live"
	case StateCaptured:
		return "captured"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Source records where the confirmed still came from.
type Source int

const (
	SourceNone Source = iota
	SourceCamera
	SourceUpload
)

func (s Source) String() string {
	switch s {
	case SourceCamera:
		return "camera"
	case SourceUpload:
		return "upload"
	default:
		return "none"
	}
}

// Session owns the camera stream and the still derived from it. The stream
// is released as soon as a still is confirmed, and selecting an uploaded
// file stops any active stream so camera and upload are never live at once.
// All methods are safe for concurrent use.
type Session struct {
	device Device
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	still  []byte
	source Source
}

func NewSession(device Device, logger *slog.Logger) *Session {
	return &Session{
		device: device,
		logger: logging.NewComponentLogger(logger, "capture"),
		state:  StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Still returns the confirmed still and its source, or nil if none exists.
func (s *Session) Still() ([]byte, Source) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.still, s.source
}

// Start acquires the camera. Failure leaves the session idle so the caller
// can fall back to the upload path.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateIdle && s.state != StateCaptured {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrValidation, "capture", "start",
			fmt.Sprintf("cannot start camera while %s", state), nil)
	}
	s.state = StateRequesting
	s.mu.Unlock()

	if err := s.device.Open(ctx); err != nil {
		s.mu.Lock()
		s.state = StateIdle
		s.mu.Unlock()
		s.logger.Warn("camera unavailable", logging.Error(err))
		return err
	}

	s.mu.Lock()
	s.state = StateLive
	s.mu.Unlock()
	s.logger.Info("camera live")
	return nil
}

// Capture grabs the current frame as the confirmed still and releases the
// stream immediately.
func (s *Session) Capture(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	if s.state != StateLive {
		state := s.state
		s.mu.Unlock()
		return nil, services.Wrap(services.ErrValidation, "capture", "capture",
			fmt.Sprintf("cannot capture while %s", state), nil)
	}
	s.mu.Unlock()

	frame, err := s.device.Grab(ctx)
	if err != nil {
		// The stream stays live so the guest can simply try again.
		return nil, err
	}

	s.release()
	s.mu.Lock()
	s.state = StateCaptured
	s.still = frame
	s.source = SourceCamera
	s.mu.Unlock()
	s.logger.Info("still captured", "bytes", len(frame))
	return frame, nil
}

// Retake discards the confirmed still and re-acquires the stream.
func (s *Session) Retake(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateCaptured {
		state := s.state
		s.mu.Unlock()
		return services.Wrap(services.ErrValidation, "capture", "retake",
			fmt.Sprintf("cannot retake while %s", state), nil)
	}
	s.still = nil
	s.source = SourceNone
	s.state = StateIdle
	s.mu.Unlock()

	return s.Start(ctx)
}

// SelectUpload stops any active stream and records an uploaded file as the
// confirmed still.
func (s *Session) SelectUpload(data []byte) error {
	if len(data) == 0 {
		return services.Wrap(services.ErrValidation, "capture", "upload", "empty upload", nil)
	}
	s.release()
	s.mu.Lock()
	s.state = StateCaptured
	s.still = append([]byte(nil), data...)
	s.source = SourceUpload
	s.mu.Unlock()
	s.logger.Info("upload selected", "bytes", len(data))
	return nil
}

// Stop releases any active stream, discards the still, and returns the
// session to idle. Safe to call in any state.
func (s *Session) Stop() {
	s.release()
	s.mu.Lock()
	s.state = StateIdle
	s.still = nil
	s.source = SourceNone
	s.mu.Unlock()
}

func (s *Session) release() {
	s.mu.Lock()
	live := s.state == StateLive || s.state == StateRequesting
	s.mu.Unlock()
	if !live {
		return
	}
	if err := s.device.Release(); err != nil {
		s.logger.Warn("camera release failed", logging.Error(err))
	}
}
