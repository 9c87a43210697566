package gcalstats

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is looked up in the working directory, then in
// $HOME/.config/gcalstats/.
const ConfigFileName = ".gcalstats.toml"

// DefaultTokenDB is the sqlite file holding the credential slot.
const DefaultTokenDB = ".gcalstats.db"

const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

type Config struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURL  string `toml:"redirect_url"`

	Provider          string        `toml:"provider"`
	CalendarID        string        `toml:"calendar_id"`
	MaxResults        int           `toml:"max_results"`
	OrderBy           string        `toml:"order_by"`
	QueryTimeout      time.Duration `toml:"query_timeout"`
	SearchesPerSecond float64       `toml:"searches_per_second"`

	TokenDB        string `toml:"token_db"`
	VerbosityLevel int    `toml:"verbosity_level"`

	CalDAV CalDAVConfig `toml:"caldav"`

	// Dir is the directory the config file was read from.
	Dir string `toml:"-"`
}

type CalDAVConfig struct {
	Name      string `toml:"name"`
	ServerURL string `toml:"server_url"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	// ExpandPast and ExpandFuture bound recurrence expansion around now.
	ExpandPast   time.Duration `toml:"expand_past"`
	ExpandFuture time.Duration `toml:"expand_future"`
}

// ReadConfig reads filename from the working directory, falling back to
// $HOME/.config/gcalstats/. Missing values get defaults.
func ReadConfig(filename string) (*Config, error) {
	dir := filepath.Dir(filename)
	data, err := os.ReadFile(filename)
	if err != nil {
		home, homeErr := os.UserHomeDir()
		if homeErr != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".config", "gcalstats")
		data, err = os.ReadFile(filepath.Join(dir, filepath.Base(filename)))
		if err != nil {
			return nil, err
		}
	}

	config, err := ParseConfig(data)
	if err != nil {
		return nil, err
	}
	config.Dir = dir
	return config, nil
}

// ParseConfig decodes TOML data and applies defaults.
func ParseConfig(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Provider == "" {
		c.Provider = ProviderGoogle
	}
	if c.RedirectURL == "" {
		c.RedirectURL = "urn:ietf:wg:oauth:2.0:oob"
	}
	if c.CalendarID == "" && c.Provider == ProviderGoogle {
		c.CalendarID = PrimaryCalendar
	}
	if c.MaxResults <= 0 {
		c.MaxResults = DefaultMaxResults
	}
	if c.OrderBy == "" {
		c.OrderBy = DefaultOrderBy
	}
	if c.TokenDB == "" {
		c.TokenDB = DefaultTokenDB
	}
	if c.CalDAV.ExpandPast <= 0 {
		c.CalDAV.ExpandPast = 365 * 24 * time.Hour
	}
	if c.CalDAV.ExpandFuture <= 0 {
		c.CalDAV.ExpandFuture = 365 * 24 * time.Hour
	}
}

// Validate checks that the selected provider has what it needs.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderGoogle:
		if c.ClientID == "" || c.ClientSecret == "" {
			return fmt.Errorf("google provider requires client_id and client_secret")
		}
	case ProviderCalDAV:
		if c.CalDAV.ServerURL == "" || c.CalDAV.Username == "" {
			return fmt.Errorf("caldav provider requires caldav.server_url and caldav.username")
		}
	default:
		return fmt.Errorf("unsupported provider type: %s", c.Provider)
	}
	return nil
}

// TokenDBPath resolves TokenDB next to the config file unless it is absolute.
func (c *Config) TokenDBPath() string {
	if filepath.IsAbs(c.TokenDB) || c.TokenDB == ":memory:" || c.Dir == "" {
		return c.TokenDB
	}
	return filepath.Join(c.Dir, c.TokenDB)
}
