package shared

import (
	_ "embed"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

//go:embed config.example.toml
var exampleConf []byte

const (
	DefaultDatabaseURL  = "sqlite:///./feature_store.db"
	defaultDatabasePath = "./feature_store.db"
	sqliteURLPrefix     = "sqlite:///"
	DefaultSpotifyScope = "user-read-private user-read-email playlist-modify-private " +
		"playlist-modify-public user-library-read user-library-modify"
)

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	MusicBrainz MusicBrainzConfig `toml:"musicbrainz"`
	Cache       CacheConfig       `toml:"cache"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify OAuth and Web API settings.
//
// ClientSecret is optional: the authorization code flow uses PKCE, so a public client works.
type SpotifyConfig struct {
	ClientID     string        `toml:"client_id"`
	ClientSecret string        `toml:"client_secret"`
	RedirectURI  string        `toml:"redirect_uri"`
	Scopes       string        `toml:"scopes"`
	AuthorizeURL string        `toml:"authorize_url"`
	TokenURL     string        `toml:"token_url"`
	APIBaseURL   string        `toml:"api_base_url"`
	Timeout      time.Duration `toml:"timeout"`
}

// MusicBrainzConfig contains settings for the MusicBrainz web service.
type MusicBrainzConfig struct {
	UserAgent   string        `toml:"user_agent"`
	BaseURL     string        `toml:"base_url"`
	MinInterval time.Duration `toml:"min_interval"`
	Timeout     time.Duration `toml:"timeout"`
}

// CacheConfig contains the time-to-live policy of the feature cache.
type CacheConfig struct {
	MappingTTL   time.Duration `toml:"mapping_ttl"`
	FeaturesTTL  time.Duration `toml:"features_ttl"`
	NegativeTTL  time.Duration `toml:"negative_ttl"`
	ErrorBackoff time.Duration `toml:"error_backoff"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	URL          string `toml:"url"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	FrontendURL   string `toml:"frontend_url"`
	SecureCookies bool   `toml:"secure_cookies"`
}

// LoadConfig reads a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ApplyEnv overrides config values with any of the supported environment variables that are set.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	overrides := []struct {
		name   string
		target *string
	}{
		{"DATABASE_URL", &c.Database.URL},
		{"MUSICBRAINZ_USER_AGENT", &c.MusicBrainz.UserAgent},
		{"SPOTIFY_CLIENT_ID", &c.Credentials.Spotify.ClientID},
		{"SPOTIFY_CLIENT_SECRET", &c.Credentials.Spotify.ClientSecret},
		{"SPOTIFY_REDIRECT_URI", &c.Credentials.Spotify.RedirectURI},
		{"SPOTIFY_SCOPES", &c.Credentials.Spotify.Scopes},
	}

	for _, o := range overrides {
		if v, ok := lookup(o.name); ok {
			*o.target = strings.TrimSpace(v)
		}
	}
}

// ScopeList returns the configured OAuth scopes, falling back to [DefaultSpotifyScope].
func (s SpotifyConfig) ScopeList() []string {
	scopes := strings.Fields(s.Scopes)
	if len(scopes) == 0 {
		return strings.Fields(DefaultSpotifyScope)
	}
	return scopes
}

// Validate reports whether the OAuth client is usable.
func (s SpotifyConfig) Validate() error {
	if strings.TrimSpace(s.ClientID) == "" {
		return fmt.Errorf("%w: SPOTIFY_CLIENT_ID is not configured", ErrMissingCredentials)
	}
	return nil
}

// SQLitePath converts a sqlite:/// database URL into a filesystem path usable by [NewDatabase].
func SQLitePath(databaseURL string) (string, error) {
	raw := strings.TrimSpace(databaseURL)
	if raw == "" {
		raw = DefaultDatabaseURL
	}
	if !strings.HasPrefix(raw, sqliteURLPrefix) {
		return "", fmt.Errorf("%w: database url must use %s", ErrInvalidConfig, sqliteURLPrefix)
	}

	path, err := url.PathUnescape(raw[len(sqliteURLPrefix):])
	if err != nil {
		return "", fmt.Errorf("%w: malformed database url: %v", ErrInvalidConfig, err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return defaultDatabasePath, nil
	}

	// sqlite:///C:/data/cache.db arrives as /C:/data/cache.db
	if len(path) >= 3 && path[0] == '/' && path[2] == ':' && isASCIILetter(path[1]) {
		path = path[1:]
	}

	return path, nil
}

func isASCIILetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
