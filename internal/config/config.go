package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v9"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

// LastRunLayout is the timestamp format of last_script_run.
const LastRunLayout = "2006-01-02 15:04:05"

// Config holds the general settings read from the JSON config file.
type Config struct {
	Email         EmailConfig    `mapstructure:"email_settings"`
	Throttle      ThrottleConfig `mapstructure:"api_throttle"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	Report        ReportConfig   `mapstructure:"report"`
	History       HistoryConfig  `mapstructure:"history"`
	LastScriptRun string         `mapstructure:"last_script_run"`
	// LastUpdate is the older name of LastScriptRun.
	LastUpdate string `mapstructure:"last_update"`
	// Firewalls is the older single-file inventory layout.
	Firewalls []Firewall `mapstructure:"firewalls"`
	// FileShim redirects all appliance calls to a JSON file.
	FileShim string `mapstructure:"-" env:"FGTPROV_FILE_SHIM"`

	path string
}

// EmailConfig holds SMTP settings for report delivery.
type EmailConfig struct {
	SMTPServer  string `mapstructure:"smtp_server" env:"FGTPROV_SMTP_SERVER"`
	SMTPPort    int    `mapstructure:"smtp_port" env:"FGTPROV_SMTP_PORT"`
	SenderEmail string `mapstructure:"sender_email"`
	Subject     string `mapstructure:"subject"`
	Username    string `mapstructure:"username" env:"FGTPROV_SMTP_USERNAME"`
	Password    string `mapstructure:"password" env:"FGTPROV_SMTP_PASSWORD"`
}

// ThrottleConfig holds the fixed delay between remote calls.
type ThrottleConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Interval is in seconds and may be fractional.
	Interval float64 `mapstructure:"interval"`
}

// Delay returns the pause between remote items, zero when disabled.
func (t ThrottleConfig) Delay() time.Duration {
	if !t.Enabled || t.Interval <= 0 {
		return 0
	}
	return time.Duration(t.Interval * float64(time.Second))
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Level   string `mapstructure:"level" env:"FGTPROV_LOG_LEVEL"`
	// LogFile is a strftime pattern, e.g. logs/fgtprov_%Y%m%d.log
	LogFile string `mapstructure:"log_file"`
}

// ReportConfig holds where report files are written.
type ReportConfig struct {
	Directory string `mapstructure:"directory" env:"FGTPROV_REPORT_DIR"`
}

// HistoryConfig holds run history database settings.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Driver  string `mapstructure:"driver"`
	DSN     string `mapstructure:"dsn" env:"FGTPROV_HISTORY_DSN"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("email_settings.smtp_port", 25)
	v.SetDefault("email_settings.subject", "FortiGate address provisioning report")
	v.SetDefault("api_throttle.enabled", true)
	v.SetDefault("api_throttle.interval", 1.0)
	v.SetDefault("logging.enabled", true)
	v.SetDefault("logging.level", "INFO")
	v.SetDefault("logging.log_file", "logs/fgtprov_%Y%m%d.log")
	v.SetDefault("report.directory", ".")
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.driver", "sqlite3")
	v.SetDefault("history.dsn", "data/history.db")
}

// Load reads the JSON config file at path and applies environment overrides.
func Load(path string) (*Config, error) {
	path, err := ExpandPath(path)
	if err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config %s: %w", path, err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment overrides: %w", err)
	}

	if cfg.Report.Directory, err = ExpandPath(cfg.Report.Directory); err != nil {
		return nil, err
	}
	if cfg.FileShim, err = ExpandPath(cfg.FileShim); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Path returns the file the config was loaded from.
func (c *Config) Path() string {
	return c.path
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Email.SMTPServer != "" && (c.Email.SMTPPort <= 0 || c.Email.SMTPPort > 65535) {
		return fmt.Errorf("email_settings.smtp_port %d is out of range", c.Email.SMTPPort)
	}
	if c.Throttle.Interval < 0 {
		return fmt.Errorf("api_throttle.interval must not be negative")
	}
	if c.History.Enabled {
		switch c.History.Driver {
		case "sqlite3", "postgres":
		default:
			return fmt.Errorf("history.driver must be sqlite3 or postgres, got %q", c.History.Driver)
		}
		if c.History.DSN == "" {
			return fmt.Errorf("history.dsn is required when history is enabled")
		}
	}
	for i, fw := range c.Firewalls {
		if err := fw.validate(); err != nil {
			return fmt.Errorf("firewalls[%d]: %w", i, err)
		}
	}
	return nil
}

// UseFileShim returns true if the file shim should be used instead of the real API.
func (c *Config) UseFileShim() bool {
	return c.FileShim != ""
}

// CanEmail reports whether enough SMTP settings are present to send mail.
func (c *Config) CanEmail() bool {
	return c.Email.SMTPServer != "" && c.Email.SenderEmail != ""
}

// TouchLastRun writes the time into the last_script_run field of the config
// file at path, and into last_update when the file still carries it. Other
// keys are written back unchanged.
func TouchLastRun(path string, at time.Time) error {
	path, err := ExpandPath(path)
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reading config %s: %w", path, err)
	}

	stamp := at.Format(LastRunLayout)
	v.Set("last_script_run", stamp)
	if v.InConfig("last_update") {
		v.Set("last_update", stamp)
	}
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config %s: %w", path, err)
	}
	return nil
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) (string, error) {
	if !strings.HasPrefix(path, "~") {
		return path, nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expanding %s: %w", path, err)
	}
	return expanded, nil
}
