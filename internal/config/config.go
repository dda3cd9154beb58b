// Package config loads and validates monitor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/award-watcher/internal/points"
)

// DefaultURLTemplate is the award search results page for a one-way business fare.
const DefaultURLTemplate = "https://azulpelomundo.voeazul.com.br/flights/OW/{origin}/{destination}/-/-/{date}/-/2/0/0/0/0/ALL/F/BUSINESS/-/-/-/-/A/-"

// DefaultPriceSelector locates the points label of the business fare card.
const DefaultPriceSelector = "#FlightClassTypePrice-selectBusiness > div > div > div > div.pointsPlusMoneyContainer > div > div.cardLabelPointsPlusMoney > div.labelValuePoints"

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Monitor MonitorConfig `mapstructure:"monitor"`
	Browser BrowserConfig `mapstructure:"browser"`
	Store   StoreConfig   `mapstructure:"store"`
	History HistoryConfig `mapstructure:"history"`
	Alerts  AlertsConfig  `mapstructure:"alerts"`
	Status  StatusConfig  `mapstructure:"status"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// MonitorConfig governs the key set and sweep pacing.
type MonitorConfig struct {
	Origins          []string      `mapstructure:"origins"`
	Dates            []string      `mapstructure:"dates"`
	Destination      string        `mapstructure:"destination"`
	URLTemplate      string        `mapstructure:"url_template"`
	PriceSelector    string        `mapstructure:"price_selector"`
	PointsThreshold  int64         `mapstructure:"points_threshold"`
	PacingDelay      time.Duration `mapstructure:"pacing_delay"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	MaxSessionFaults int           `mapstructure:"max_session_faults"`
}

// BrowserConfig configures the headless browser session.
type BrowserConfig struct {
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	ElementTimeout  time.Duration `mapstructure:"element_timeout"`
	SettleDelay     time.Duration `mapstructure:"settle_delay"`
	Headless        bool          `mapstructure:"headless"`
	UserAgent       string        `mapstructure:"user_agent"`
	ExecPath        string        `mapstructure:"exec_path"`
}

// StoreConfig sets where the best-points snapshot lives.
type StoreConfig struct {
	Path           string        `mapstructure:"path"`
	GCSBucket      string        `mapstructure:"gcs_bucket"`
	GCSObject      string        `mapstructure:"gcs_object"`
	PersistTimeout time.Duration `mapstructure:"persist_timeout"`
}

// HistoryConfig controls the optional Postgres observation log.
type HistoryConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// AlertsConfig toggles and configures notification channels.
type AlertsConfig struct {
	Timeout  time.Duration  `mapstructure:"timeout"`
	Email    EmailConfig    `mapstructure:"email"`
	Pushover PushoverConfig `mapstructure:"pushover"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// EmailConfig holds SMTP submission settings.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	From     string `mapstructure:"from"`
	Password string `mapstructure:"password"`
	To       string `mapstructure:"to"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
}

// PushoverConfig holds push API credentials and emergency-priority knobs.
type PushoverConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	UserKey  string        `mapstructure:"user_key"`
	APIToken string        `mapstructure:"api_token"`
	Priority int           `mapstructure:"priority"`
	Retry    time.Duration `mapstructure:"retry"`
	Expire   time.Duration `mapstructure:"expire"`
	Sound    string        `mapstructure:"sound"`
	Endpoint string        `mapstructure:"endpoint"`
}

// PubSubConfig holds metadata for publish-subscribe alert fan-out.
type PubSubConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// StatusConfig controls the read-only status HTTP server.
type StatusConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AWARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("monitor.origins", []string{"GRU", "VCP"})
	v.SetDefault("monitor.dates", []string{
		"2026-04-26",
		"2026-04-27",
		"2026-04-28",
		"2026-04-29",
		"2026-04-30",
		"2026-05-01",
		"2026-05-02",
	})
	v.SetDefault("monitor.destination", "PUJ")
	v.SetDefault("monitor.url_template", DefaultURLTemplate)
	v.SetDefault("monitor.price_selector", DefaultPriceSelector)
	v.SetDefault("monitor.points_threshold", 300000)
	v.SetDefault("monitor.pacing_delay", "1s")
	v.SetDefault("monitor.sweep_interval", "10m")
	v.SetDefault("monitor.max_session_faults", 3)
	v.SetDefault("browser.page_load_timeout", "30s")
	v.SetDefault("browser.element_timeout", "20s")
	v.SetDefault("browser.settle_delay", "500ms")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("store.path", "best_points.json")
	v.SetDefault("store.gcs_bucket", "")
	v.SetDefault("store.gcs_object", "best_points.json")
	v.SetDefault("store.persist_timeout", "30s")
	v.SetDefault("history.dsn", "")
	v.SetDefault("history.table", "point_observations")
	v.SetDefault("alerts.timeout", "10s")
	v.SetDefault("alerts.email.enabled", false)
	v.SetDefault("alerts.email.from", "")
	v.SetDefault("alerts.email.password", "")
	v.SetDefault("alerts.email.to", "")
	v.SetDefault("alerts.email.smtp_host", "smtp.gmail.com")
	v.SetDefault("alerts.email.smtp_port", 587)
	v.SetDefault("alerts.pushover.enabled", false)
	v.SetDefault("alerts.pushover.user_key", "")
	v.SetDefault("alerts.pushover.api_token", "")
	v.SetDefault("alerts.pushover.priority", 2)
	v.SetDefault("alerts.pushover.retry", "30s")
	v.SetDefault("alerts.pushover.expire", "10m")
	v.SetDefault("alerts.pushover.sound", "persistent")
	v.SetDefault("alerts.pushover.endpoint", "https://api.pushover.net/1/messages.json")
	v.SetDefault("alerts.pubsub.enabled", false)
	v.SetDefault("alerts.pubsub.project_id", "")
	v.SetDefault("alerts.pubsub.topic", "")
	v.SetDefault("status.enabled", false)
	v.SetDefault("status.port", 8000)
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if len(c.Monitor.Origins) == 0 {
		return fmt.Errorf("monitor.origins must not be empty")
	}
	if len(c.Monitor.Dates) == 0 {
		return fmt.Errorf("monitor.dates must not be empty")
	}
	if err := c.Target().Validate(); err != nil {
		return fmt.Errorf("monitor target: %w", err)
	}
	if c.Monitor.PointsThreshold <= 0 {
		return fmt.Errorf("monitor.points_threshold must be > 0")
	}
	if c.Monitor.PacingDelay < 0 {
		return fmt.Errorf("monitor.pacing_delay must be >= 0")
	}
	if c.Monitor.SweepInterval <= 0 {
		return fmt.Errorf("monitor.sweep_interval must be > 0")
	}
	if c.Monitor.MaxSessionFaults <= 0 {
		return fmt.Errorf("monitor.max_session_faults must be > 0")
	}
	if c.Browser.PageLoadTimeout <= 0 || c.Browser.ElementTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be > 0")
	}
	if c.Browser.SettleDelay < 0 {
		return fmt.Errorf("browser.settle_delay must be >= 0")
	}
	if strings.TrimSpace(c.Store.Path) == "" {
		return fmt.Errorf("store.path is required")
	}
	if c.Store.PersistTimeout <= 0 {
		return fmt.Errorf("store.persist_timeout must be > 0")
	}
	if c.Alerts.Timeout <= 0 {
		return fmt.Errorf("alerts.timeout must be > 0")
	}
	if c.Alerts.Email.Enabled {
		e := c.Alerts.Email
		if e.From == "" || e.To == "" || e.SMTPHost == "" || e.SMTPPort <= 0 {
			return fmt.Errorf("alerts.email requires from, to, smtp_host and smtp_port when enabled")
		}
	}
	if c.Alerts.Pushover.Enabled {
		p := c.Alerts.Pushover
		if p.UserKey == "" || p.APIToken == "" {
			return fmt.Errorf("alerts.pushover requires user_key and api_token when enabled")
		}
	}
	if c.Alerts.PubSub.Enabled {
		if c.Alerts.PubSub.ProjectID == "" || c.Alerts.PubSub.Topic == "" {
			return fmt.Errorf("alerts.pubsub requires project_id and topic when enabled")
		}
	}
	if c.Status.Enabled && c.Status.Port <= 0 {
		return fmt.Errorf("status.port must be > 0 when status is enabled")
	}
	return nil
}

// Target returns the page template described by the monitor section.
func (c Config) Target() points.Target {
	return points.Target{
		URLTemplate: c.Monitor.URLTemplate,
		Destination: c.Monitor.Destination,
		Selector:    c.Monitor.PriceSelector,
	}
}

// Keys returns the configured origin x date cross product.
func (c Config) Keys() []points.Key {
	return points.Keys(c.Monitor.Origins, c.Monitor.Dates)
}
