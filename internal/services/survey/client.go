package survey

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"quizbooth/internal/config"
	"quizbooth/internal/logging"
	"quizbooth/internal/services"
)

const defaultHTTPTimeout = 15 * time.Second

// Workshop is one selectable session shown on the workshop stage.
type Workshop struct {
	ID          int
	Title       string
	Description string
	Order       int
}

// Attendee is the registration record resolved from an event token.
type Attendee struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// HTTPDoer describes the HTTP client used by the survey services.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client consumes the remote survey-data services: the workshop list, the
// attendee lookup, and the registration update. All of it is display data;
// failures here never block the wizard.
type Client struct {
	workshopURL     string
	lookupURL       string
	registrationURL string
	client          HTTPDoer
	logger          *slog.Logger
}

func NewClient(cfg *config.Config, logger *slog.Logger) *Client {
	timeout := defaultHTTPTimeout
	if cfg.Service.RequestTimeout > 0 {
		timeout = time.Duration(cfg.Service.RequestTimeout) * time.Second
	}
	return &Client{
		workshopURL:     strings.TrimSpace(cfg.Survey.WorkshopURL),
		lookupURL:       strings.TrimSpace(cfg.Survey.LookupURL),
		registrationURL: strings.TrimRight(strings.TrimSpace(cfg.Survey.RegistrationURL), "/"),
		client:          &http.Client{Timeout: timeout},
		logger:          logging.NewComponentLogger(logger, "survey"),
	}
}

// NewHTTPClient constructs a client against explicit endpoints.
func NewHTTPClient(workshopURL, lookupURL, registrationURL string, client HTTPDoer, logger *slog.Logger) *Client {
	return &Client{
		workshopURL:     strings.TrimSpace(workshopURL),
		lookupURL:       strings.TrimSpace(lookupURL),
		registrationURL: strings.TrimRight(strings.TrimSpace(registrationURL), "/"),
		client:          client,
		logger:          logging.NewComponentLogger(logger, "survey"),
	}
}

// Enabled reports whether survey mode is configured at all.
func (c *Client) Enabled() bool {
	return c != nil && c.workshopURL != ""
}

// Workshops fetches the workshop list. The upstream feed is loosely typed:
// entries may carry their identifier as id or workshop_id, numeric or
// string; anything unusable is skipped rather than failing the list.
func (c *Client) Workshops(ctx context.Context) ([]Workshop, error) {
	if !c.Enabled() {
		return nil, services.Wrap(services.ErrConfiguration, "survey", "workshops",
			"no workshop endpoint configured", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.workshopURL, nil)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "workshops", "build request", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "workshops", "send request", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "workshops", "read response", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, services.NewStatusError(resp.StatusCode, strings.TrimSpace(string(payload)), 0)
	}

	var entries []rawWorkshop
	if err := json.Unmarshal(payload, &entries); err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "workshops", "decode response", err)
	}

	workshops := make([]Workshop, 0, len(entries))
	for _, entry := range entries {
		workshop, ok := entry.normalize()
		if !ok {
			c.logger.Debug("skipping malformed workshop entry")
			continue
		}
		workshops = append(workshops, workshop)
	}
	sort.SliceStable(workshops, func(i, j int) bool {
		return workshops[i].Order < workshops[j].Order
	})
	return workshops, nil
}

// Lookup resolves an event token to an attendee. A missing or unknown token
// resolves to nil without error, matching the best-effort contract.
func (c *Client) Lookup(ctx context.Context, token string) (*Attendee, error) {
	token = strings.TrimSpace(token)
	if token == "" || c.lookupURL == "" {
		return nil, nil
	}
	encoded, err := json.Marshal(map[string]string{"token": token})
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "lookup", "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.lookupURL, bytes.NewReader(encoded))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "lookup", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "lookup", "send request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("attendee lookup failed", "status", resp.StatusCode)
		return nil, nil
	}

	var attendee rawAttendee
	if err := json.NewDecoder(resp.Body).Decode(&attendee); err != nil {
		return nil, services.Wrap(services.ErrTransient, "survey", "lookup", "decode response", err)
	}
	resolved := attendee.normalize()
	if resolved == nil {
		return nil, nil
	}
	c.logger.Info("attendee resolved", "attendee_id", resolved.ID)
	return resolved, nil
}

// Register records the attendee's workshop choice. It requires a resolved
// attendee id; callers without one should skip the call.
func (c *Client) Register(ctx context.Context, attendeeID string, workshopID int) error {
	attendeeID = strings.TrimSpace(attendeeID)
	if attendeeID == "" {
		return services.Wrap(services.ErrValidation, "survey", "register",
			"registration requires an attendee id", nil)
	}
	if c.registrationURL == "" {
		return services.Wrap(services.ErrConfiguration, "survey", "register",
			"no registration endpoint configured", nil)
	}
	encoded, err := json.Marshal(map[string]int{"workshop_id": workshopID})
	if err != nil {
		return services.Wrap(services.ErrTransient, "survey", "register", "encode request", err)
	}
	endpoint := c.registrationURL + "/" + attendeeID
	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return services.Wrap(services.ErrTransient, "survey", "register", "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return services.Wrap(services.ErrTransient, "survey", "register", "send request", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return services.NewStatusError(resp.StatusCode, "", 0)
	}
	c.logger.Info("workshop registered", "attendee_id", attendeeID, "workshop_id", workshopID)
	return nil
}

// rawWorkshop tolerates the feed's shape drift.
type rawWorkshop struct {
	ID          json.RawMessage `json:"id"`
	WorkshopID  json.RawMessage `json:"workshop_id"`
	Title       string          `json:"title"`
	Label       string          `json:"label"`
	Description string          `json:"description"`
	Order       int             `json:"order"`
}

func (r rawWorkshop) normalize() (Workshop, bool) {
	id, ok := parseFlexibleID(r.ID)
	if !ok {
		id, ok = parseFlexibleID(r.WorkshopID)
	}
	if !ok {
		return Workshop{}, false
	}
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(r.Label)
	}
	if title == "" {
		title = "Workshop"
	}
	return Workshop{
		ID:          id,
		Title:       title,
		Description: strings.TrimSpace(r.Description),
		Order:       r.Order,
	}, true
}

func parseFlexibleID(raw json.RawMessage) (int, bool) {
	if len(raw) == 0 {
		return 0, false
	}
	var numeric int
	if err := json.Unmarshal(raw, &numeric); err == nil {
		return numeric, true
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if parsed, err := strconv.Atoi(strings.TrimSpace(text)); err == nil {
			return parsed, true
		}
	}
	return 0, false
}

// rawAttendee tolerates numeric or string ids in the lookup response.
type rawAttendee struct {
	ID    json.RawMessage `json:"id"`
	Name  string          `json:"name"`
	Email string          `json:"email"`
}

func (r rawAttendee) normalize() *Attendee {
	id := ""
	if len(r.ID) > 0 {
		var numeric int64
		if err := json.Unmarshal(r.ID, &numeric); err == nil {
			id = fmt.Sprintf("%d", numeric)
		} else {
			var text string
			if err := json.Unmarshal(r.ID, &text); err == nil {
				id = strings.TrimSpace(text)
			}
		}
	}
	name := strings.TrimSpace(r.Name)
	if id == "" && name == "" {
		return nil
	}
	return &Attendee{ID: id, Name: name, Email: strings.TrimSpace(r.Email)}
}
