package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/keypress"
	"github.com/junsooki/framegrab/internal/peer"
)

// Source types
const (
	SourceWebSocket = "websocket"
	SourceWebRTC    = "webrtc"
)

// Feed payload formats
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatRaw  = "raw"
)

// Config holds all runtime configuration.
type Config struct {
	// SaveDirectory is the root under which jpg_images and png_images are created
	SaveDirectory string         `mapstructure:"save_directory"`
	JPEG          JPEGConfig     `mapstructure:"jpeg"`
	PNG           PNGConfig      `mapstructure:"png"`
	Source        SourceConfig   `mapstructure:"source"`
	Decoder       DecoderConfig  `mapstructure:"decoder"`
	Keypress      KeypressConfig `mapstructure:"keypress"`
	Logging       LoggingConfig  `mapstructure:"logging"`
	Feed          FeedConfig     `mapstructure:"feed"`
}

// JPEGConfig controls the lossy output
type JPEGConfig struct {
	// Quality is the JPEG quality, 1-100
	Quality int `mapstructure:"quality"`
}

// PNGConfig controls the lossless output
type PNGConfig struct {
	// Compression is one of "default", "none", "speed", "best"
	Compression string `mapstructure:"compression"`
}

// SourceConfig selects and configures the frame feed
type SourceConfig struct {
	// Type is "websocket" or "webrtc"
	Type string `mapstructure:"type"`
	// URL is the WebSocket frame feed address (websocket source)
	URL string `mapstructure:"url"`
	// SignalingURL is the signaling server address (webrtc source)
	SignalingURL string `mapstructure:"signaling_url"`
	// HostID is the publisher to subscribe to (webrtc source)
	HostID string `mapstructure:"host_id"`
	// ClientID is the identifier registered with the signaling server.
	// Generated when empty.
	ClientID string `mapstructure:"client_id"`
	// ICEServers are STUN/TURN URLs for the peer connection
	ICEServers []string `mapstructure:"ice_servers"`
}

// DecoderConfig bounds incoming frames
type DecoderConfig struct {
	// MaxPixels is the largest width*height accepted from the feed
	MaxPixels int `mapstructure:"max_pixels"`
}

// KeypressConfig controls terminal polling
type KeypressConfig struct {
	// PollInterval bounds a single wait for terminal input
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error"
	Level string `mapstructure:"level"`
	// Format is "text" or "json"
	Format string `mapstructure:"format"`
}

// FeedConfig configures the framefeed development publisher
type FeedConfig struct {
	// Transport is "websocket" or "webrtc"
	Transport string `mapstructure:"transport"`
	// Listen is the HTTP listen address (websocket transport)
	Listen string `mapstructure:"listen"`
	// Path is the HTTP path the feed is served on (websocket transport)
	Path string `mapstructure:"path"`
	// HostID is the identifier registered with the signaling server (webrtc transport)
	HostID string `mapstructure:"host_id"`
	// FPS is the publish rate
	FPS int `mapstructure:"fps"`
	// SourceDir holds JPEG/PNG files to cycle through. Empty means a synthetic pattern.
	SourceDir string `mapstructure:"source_dir"`
	// Format is the payload format: "jpeg", "png" or "raw"
	Format string `mapstructure:"format"`
	// Encoding is the pixel encoding of raw payloads
	Encoding string `mapstructure:"encoding"`
	// Width and Height size the synthetic pattern
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

// Default returns a Config with sensible default values
func Default() *Config {
	return &Config{
		SaveDirectory: "/home/cliche/data_collection_images",
		JPEG: JPEGConfig{
			Quality: encoder.DefaultJPEGQuality,
		},
		PNG: PNGConfig{
			Compression: "default",
		},
		Source: SourceConfig{
			Type:         SourceWebSocket,
			URL:          "ws://localhost:8090/frames",
			SignalingURL: "ws://localhost:8080",
			ICEServers:   peer.DefaultICEServers,
		},
		Decoder: DecoderConfig{
			MaxPixels: decoder.DefaultMaxPixels,
		},
		Keypress: KeypressConfig{
			PollInterval: keypress.DefaultPollInterval,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Feed: FeedConfig{
			Transport: SourceWebSocket,
			Listen:    ":8090",
			Path:      "/frames",
			FPS:       15,
			Format:    FormatJPEG,
			Encoding:  "bgr8",
			Width:     640,
			Height:    480,
		},
	}
}

// SetDefaults registers every default with viper
func SetDefaults() {
	defaults := Default()

	viper.SetDefault("save_directory", defaults.SaveDirectory)

	viper.SetDefault("jpeg.quality", defaults.JPEG.Quality)
	viper.SetDefault("png.compression", defaults.PNG.Compression)

	// Source defaults
	viper.SetDefault("source.type", defaults.Source.Type)
	viper.SetDefault("source.url", defaults.Source.URL)
	viper.SetDefault("source.signaling_url", defaults.Source.SignalingURL)
	viper.SetDefault("source.host_id", defaults.Source.HostID)
	viper.SetDefault("source.client_id", defaults.Source.ClientID)
	viper.SetDefault("source.ice_servers", defaults.Source.ICEServers)

	viper.SetDefault("decoder.max_pixels", defaults.Decoder.MaxPixels)

	viper.SetDefault("keypress.poll_interval", defaults.Keypress.PollInterval)

	// Logging defaults
	viper.SetDefault("logging.level", defaults.Logging.Level)
	viper.SetDefault("logging.format", defaults.Logging.Format)

	// Feed defaults
	viper.SetDefault("feed.transport", defaults.Feed.Transport)
	viper.SetDefault("feed.listen", defaults.Feed.Listen)
	viper.SetDefault("feed.path", defaults.Feed.Path)
	viper.SetDefault("feed.host_id", defaults.Feed.HostID)
	viper.SetDefault("feed.fps", defaults.Feed.FPS)
	viper.SetDefault("feed.source_dir", defaults.Feed.SourceDir)
	viper.SetDefault("feed.format", defaults.Feed.Format)
	viper.SetDefault("feed.encoding", defaults.Feed.Encoding)
	viper.SetDefault("feed.width", defaults.Feed.Width)
	viper.SetDefault("feed.height", defaults.Feed.Height)
}

// Load reads the configuration from viper into a Config struct, fills in
// generated identifiers and validates it
func Load() (*Config, error) {
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.Source.ClientID == "" {
		cfg.Source.ClientID = "framegrab-" + shortID()
	}
	if cfg.Feed.HostID == "" {
		cfg.Feed.HostID = "framefeed-" + shortID()
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, ValidationErrors(errs)
	}

	return &cfg, nil
}

// ConfigDir returns the path to the user's config directory
func ConfigDir() string {
	// Check XDG_CONFIG_HOME first
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "framegrab")
	}
	// Fall back to ~/.config/framegrab
	home, err := os.UserHomeDir()
	if err != nil {
		return ".framegrab"
	}
	return filepath.Join(home, ".config", "framegrab")
}

// ConfigFile returns the path to the config file
func ConfigFile() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}

func shortID() string {
	return uuid.NewString()[:8]
}
