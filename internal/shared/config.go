package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Pipeline    PipelineConfig    `toml:"pipeline"`
	Inference   InferenceConfig   `toml:"inference"`
	Generate    GenerateConfig    `toml:"generate"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify   SpotifyConfig        `toml:"spotify"`
	Inference InferenceCredentials `toml:"inference"`
}

// SpotifyConfig contains Spotify API credentials and the last saved OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token,omitempty"`
	RefreshToken string    `toml:"refresh_token,omitempty"`
	TokenType    string    `toml:"token_type,omitempty"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// InferenceCredentials holds the key and endpoint of the OpenAI-compatible completion API.
type InferenceCredentials struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	FrontendURL    string   `toml:"frontend_url"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// PipelineConfig bounds the work a single enrichment run may have in flight.
type PipelineConfig struct {
	Concurrency               int     `toml:"concurrency"`
	ProviderRequestsPerSecond float64 `toml:"provider_requests_per_second"`
	ArtistGenreTTL            string  `toml:"artist_genre_ttl"`
}

// GenreTTL parses ArtistGenreTTL. Empty, invalid and non-positive values yield 0,
// which leaves the provider's default memo lifetime in place.
func (c PipelineConfig) GenreTTL() time.Duration {
	d, err := time.ParseDuration(c.ArtistGenreTTL)
	if err != nil || d <= 0 {
		return 0
	}
	return d
}

// InferenceConfig holds model parameters and limits for inference batches.
type InferenceConfig struct {
	Model             string  `toml:"model"`
	Temperature       float64 `toml:"temperature"`
	MaxTokens         int     `toml:"max_tokens"`
	BatchTimeout      string  `toml:"batch_timeout"`
	RequestsPerMinute int     `toml:"requests_per_minute"`
	MaxGenreHints     int     `toml:"max_genre_hints"`
}

// GenerateConfig holds the default grouping options used when a caller does not supply its own.
type GenerateConfig struct {
	Genre                bool `toml:"genre"`
	Artist               bool `toml:"artist"`
	Language             bool `toml:"language"`
	AllowDuplicates      bool `toml:"allow_duplicates"`
	ArtistMinAppearances int  `toml:"artist_min_appearances"`
	MaxGenres            int  `toml:"max_genres"`
	MaxArtists           int  `toml:"max_artists"`
	MaxLanguages         int  `toml:"max_languages"`
}

const defaultBatchTimeout = 45 * time.Second

// Timeout parses BatchTimeout, falling back to 45s when it is empty or invalid.
func (c InferenceConfig) Timeout() time.Duration {
	if c.BatchTimeout == "" {
		return defaultBatchTimeout
	}
	d, err := time.ParseDuration(c.BatchTimeout)
	if err != nil || d <= 0 {
		return defaultBatchTimeout
	}
	return d
}

// Map returns the credentials in the form expected by [services.NewSpotifyService].
func (c SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     c.ClientID,
		"client_secret": c.ClientSecret,
		"redirect_uri":  c.RedirectURI,
		"access_token":  c.AccessToken,
		"refresh_token": c.RefreshToken,
	}
}

// Token builds an [oauth2.Token] from the saved values, or nil when no access token is stored.
func (c SpotifyConfig) Token() *oauth2.Token {
	if c.AccessToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  c.AccessToken,
		RefreshToken: c.RefreshToken,
		TokenType:    c.TokenType,
		Expiry:       c.Expiry,
	}
}

// Update stores token. A refreshed token without a refresh token keeps the previous one.
func (c *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	c.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		c.RefreshToken = token.RefreshToken
	}
	c.TokenType = token.TokenType
	c.Expiry = token.Expiry
	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissingConfig, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
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

// LoadEnv loads KEY=value pairs from the given dotenv files into the process environment.
//
// Missing files are ignored and variables already set are never overwritten.
func LoadEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// ApplyEnv overrides credentials with values from the environment.
//
// Both the SPOTIFY_ and SPOTIPY_ prefixes are accepted.
func (c *Config) ApplyEnv() {
	set := func(dst *string, keys ...string) {
		for _, k := range keys {
			if v := os.Getenv(k); v != "" {
				*dst = v
				return
			}
		}
	}

	set(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID", "SPOTIPY_CLIENT_ID")
	set(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET", "SPOTIPY_CLIENT_SECRET")
	set(&c.Credentials.Spotify.RedirectURI, "SPOTIFY_REDIRECT_URI", "SPOTIPY_REDIRECT_URI")
	set(&c.Credentials.Inference.APIKey, "GROQ_API_KEY")
	set(&c.Server.FrontendURL, "FRONTEND_URL")
}
