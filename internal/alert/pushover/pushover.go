// Package pushover delivers alerts as emergency-priority push notifications.
package pushover

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/JakeFAU/award-watcher/internal/alert"
	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultEndpoint is the Pushover messages API.
const DefaultEndpoint = "https://api.pushover.net/1/messages.json"

// Config carries credentials and delivery parameters.
type Config struct {
	UserKey  string
	APIToken string
	Priority int
	Retry    time.Duration
	Expire   time.Duration
	Sound    string
	Endpoint string
	Timeout  time.Duration
}

// Channel implements points.AlertChannel against the Pushover API.
type Channel struct {
	cfg    Config
	client *resty.Client
}

type response struct {
	Status  int      `json:"status"`
	Request string   `json:"request"`
	Errors  []string `json:"errors"`
}

// New validates cfg and returns a Pushover channel.
func New(cfg Config) (*Channel, error) {
	if strings.TrimSpace(cfg.UserKey) == "" || strings.TrimSpace(cfg.APIToken) == "" {
		return nil, fmt.Errorf("pushover user key and api token are required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Retry <= 0 {
		cfg.Retry = 30 * time.Second
	}
	if cfg.Expire <= 0 {
		cfg.Expire = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = alert.DefaultTimeout
	}
	client := resty.New().SetTimeout(cfg.Timeout)
	return &Channel{cfg: cfg, client: client}, nil
}

// Name identifies the channel in logs and metrics.
func (c *Channel) Name() string {
	return "pushover"
}

// Send posts the notification. Success requires HTTP 200 and status == 1.
func (c *Channel) Send(ctx context.Context, event points.AlertEvent) error {
	resp, err := c.client.R().
		SetContext(ctx).
		SetFormData(c.form(event)).
		Post(c.cfg.Endpoint)
	if err != nil {
		return fmt.Errorf("post pushover message: %w", err)
	}

	var body response
	decodeErr := json.Unmarshal(resp.Body(), &body)
	if resp.StatusCode() != http.StatusOK {
		if decodeErr == nil && len(body.Errors) > 0 {
			return fmt.Errorf("pushover status %d: %s", resp.StatusCode(), strings.Join(body.Errors, "; "))
		}
		return fmt.Errorf("pushover status %d", resp.StatusCode())
	}
	if decodeErr != nil {
		return fmt.Errorf("decode pushover response: %w", decodeErr)
	}
	if body.Status != 1 {
		return fmt.Errorf("pushover rejected message: status=%d", body.Status)
	}
	return nil
}

func (c *Channel) form(event points.AlertEvent) map[string]string {
	return map[string]string{
		"token":    c.cfg.APIToken,
		"user":     c.cfg.UserKey,
		"title":    alert.PushTitle(event),
		"message":  alert.PushMessage(event),
		"priority": strconv.Itoa(c.cfg.Priority),
		"retry":    strconv.Itoa(int(c.cfg.Retry / time.Second)),
		"expire":   strconv.Itoa(int(c.cfg.Expire / time.Second)),
		"sound":    c.cfg.Sound,
	}
}

var _ points.AlertChannel = (*Channel)(nil)
