package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/kalendar/internal/models"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Storage backends.
const (
	StorageBackendFS     = "fs"
	StorageBackendSQLite = "sqlite"
)

// Week start values.
const (
	WeekStartSunday = "sunday"
	WeekStartMonday = "monday"
)

// Config represents the application configuration.
type Config struct {
	App      ApplicationConfig `yaml:"app"`
	Storage  StorageConfig     `yaml:"storage"`
	Calendar CalendarConfig    `yaml:"calendar"`
	Auth     AuthConfig        `yaml:"auth"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Storage.Validate(); err != nil {
		return err
	}
	if err := c.Calendar.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// StorageConfig selects where the event snapshot lives.
//
// Path is a directory for the fs backend and a database file for sqlite.
// Watch reloads the snapshot when another process rewrites it: the file is
// watched on the fs backend, the checksum polled on sqlite.
type StorageConfig struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
	Key     string `yaml:"key"`
	Watch   bool   `yaml:"watch"`
}

// Validate validates the storage configuration.
func (c *StorageConfig) Validate() error {
	if c.Backend == "" {
		c.Backend = StorageBackendFS
	}
	if c.Key == "" {
		c.Key = "events"
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Backend, validation.Required, validation.In(StorageBackendFS, StorageBackendSQLite)),
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.Key, validation.Required, validation.Match(regexp.MustCompile(`^[A-Za-z0-9_-]+$`))),
	)
}

// Dir returns the directory that must exist before the backend is opened.
func (c *StorageConfig) Dir() string {
	if c.Backend == StorageBackendSQLite {
		return filepath.Dir(c.Path)
	}
	return c.Path
}

// CalendarConfig holds presentation settings for the month grid and export.
type CalendarConfig struct {
	Timezone     string `yaml:"timezone"`
	WeekStart    string `yaml:"week_start"`
	DefaultColor string `yaml:"default_color"`
	Name         string `yaml:"name"`
}

// Validate validates the calendar configuration.
func (c *CalendarConfig) Validate() error {
	if c.WeekStart == "" {
		c.WeekStart = WeekStartSunday
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.Timezone, validation.By(func(any) error {
			_, err := c.Location()
			return err
		})),
		validation.Field(&c.WeekStart, validation.In(WeekStartSunday, WeekStartMonday)),
		validation.Field(&c.DefaultColor, validation.Match(models.HexColor)),
	)
}

// Location resolves Timezone; empty means the process's local zone.
func (c *CalendarConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// WeekStartDay returns the first column of the month grid.
func (c *CalendarConfig) WeekStartDay() time.Weekday {
	if c.WeekStart == WeekStartMonday {
		return time.Monday
	}
	return time.Sunday
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Storage: StorageConfig{
			Backend: StorageBackendFS,
			Path:    "./data",
			Key:     "events",
			Watch:   true,
		},
		Calendar: CalendarConfig{
			WeekStart:    WeekStartSunday,
			DefaultColor: "#007bff",
			Name:         "Kalendar",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
	}
}
