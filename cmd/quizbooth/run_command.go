package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"quizbooth/internal/analytics"
	"quizbooth/internal/capture"
	"quizbooth/internal/logging"
	"quizbooth/internal/photo"
	"quizbooth/internal/services"
	"quizbooth/internal/services/composite"
	"quizbooth/internal/services/generation"
	"quizbooth/internal/services/survey"
	"quizbooth/internal/session"
	"quizbooth/internal/wizard"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interactive booth",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBooth(cmd.Context(), ctx, token, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "Event token used to look up the attendee")
	return cmd
}

func runBooth(cmdCtx context.Context, cctx *commandContext, token string, in io.Reader, out io.Writer) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := cctx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	lockPath := filepath.Join(cfg.Paths.DataDir, "quizbooth.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !locked {
		return errors.New("another quizbooth instance is already running")
	}
	defer lock.Unlock()

	store, err := session.Open(cfg)
	if err != nil {
		logger.Error("open session store", logging.Error(err))
		return err
	}
	defer store.Close()

	device := capture.NewCommandDevice(cfg, logger)
	captureSession := capture.NewSession(device, logger)
	defer captureSession.Stop()

	var surveyData wizard.SurveyData
	if cfg.SurveyEnabled() {
		surveyData = survey.NewClient(cfg, logger)
	}

	wiz, err := wizard.New(wizard.Options{
		Renderer:   newConsoleRenderer(out),
		Capture:    captureSession,
		Normalizer: photo.NewNormalizer(photo.FromConfig(cfg)),
		Generator:  generation.NewClient(cfg, logger),
		Compositor: composite.NewClient(cfg, logger),
		Survey:     surveyData,
		Analytics:  analytics.NewService(cfg, logger),
		Store:      store,
		Logger:     logger,
		Art:        photo.NewArtCache(nil),
		ArtBaseURL: cfg.Service.BaseURL,
		Token:      strings.TrimSpace(token),
	})
	if err != nil {
		return fmt.Errorf("create wizard: %w", err)
	}

	if err := wiz.Start(signalCtx); err != nil {
		return fmt.Errorf("start wizard: %w", err)
	}

	return runLoop(signalCtx, wiz, in, out)
}

func runLoop(ctx context.Context, wiz *wizard.Wizard, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if !scanner.Scan() {
			return scanner.Err()
		}

		event, err := parseEvent(wiz.Stage(), scanner.Text())
		if err != nil {
			if errors.Is(err, errQuit) {
				return nil
			}
			fmt.Fprintln(out, statusIndent+err.Error())
			continue
		}
		if event == nil {
			continue
		}

		if err := wiz.Dispatch(ctx, event); err != nil {
			if errors.Is(err, context.Canceled) {
				return err
			}
			fmt.Fprintln(out, statusIndent+services.UserMessage(err))
		}
	}
}
