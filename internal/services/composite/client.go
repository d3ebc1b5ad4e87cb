package composite

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"quizbooth/internal/config"
	"quizbooth/internal/logging"
	"quizbooth/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Request names the three layers of the share graphic: the generated image
// in the center flanked by the two alternate personas.
type Request struct {
	CenterURL string `json:"center_url"`
	LeftPath  string `json:"left_path"`
	RightPath string `json:"right_path"`
}

// Image is the rendered share graphic. Data holds the raw payload the
// server returned, usually a base64 data URL.
type Image struct {
	Data string `json:"image_data"`
}

// Bytes decodes the payload into raw image bytes, stripping a data URL
// prefix when present.
func (i *Image) Bytes() ([]byte, error) {
	payload := strings.TrimSpace(i.Data)
	if idx := strings.Index(payload, "base64,"); idx >= 0 {
		payload = payload[idx+len("base64,"):]
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "decode",
			"composite payload is not valid base64", err)
	}
	return decoded, nil
}

// HTTPDoer describes the HTTP client used by the composite service.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client renders share graphics through the composite endpoint. The client
// is disabled when no endpoint is configured; Enabled lets callers skip the
// enrichment entirely.
type Client struct {
	endpoint string
	client   HTTPDoer
	logger   *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := defaultHTTPTimeout
	if cfg.Service.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Service.RequestTimeout) * time.Second
	}
	return &Client{
		endpoint: strings.TrimSpace(cfg.Service.CompositeURL),
		client:   &http.Client{Timeout: timeout},
		logger:   logging.NewComponentLogger(logger, "composite"),
	}
}

// NewHTTPClient constructs a client against an explicit endpoint.
func NewHTTPClient(endpoint string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		endpoint: strings.TrimSpace(endpoint),
		client:   client,
		logger:   logging.NewComponentLogger(logger, "composite"),
	}
}

// Enabled reports whether a composite endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// Render requests the composite share graphic.
func (c *Client) Render(ctx context.Context, req Request) (*Image, error) {
	if !c.Enabled() {
		return nil, services.Wrap(services.ErrConfiguration, "composite", "render",
			"no composite endpoint configured", nil)
	}
	if req.CenterURL == "" {
		return nil, services.Wrap(services.ErrValidation, "composite", "render",
			"composite requires a center image", nil)
	}

	encoded, err := json.Marshal(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "render", "encode request", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "render", "build request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "render", "send request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "render", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail := extractDetail(payload)
		return nil, services.NewStatusError(resp.StatusCode, detail, 0)
	}

	var image Image
	if err := json.Unmarshal(payload, &image); err != nil {
		return nil, services.Wrap(services.ErrTransient, "composite", "render", "decode response", err)
	}
	if strings.TrimSpace(image.Data) == "" {
		return nil, services.Wrap(services.ErrTransient, "composite", "render",
			"response carried no image data", nil)
	}
	c.logger.Debug("composite rendered",
		"bytes", len(image.Data),
		"duration", time.Since(start).Round(time.Millisecond).String())
	return &image, nil
}

func extractDetail(payload []byte) string {
	var body struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(payload, &body); err == nil {
		return strings.TrimSpace(body.Detail)
	}
	return strings.TrimSpace(string(payload))
}
