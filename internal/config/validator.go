package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/encoder"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "jpeg.quality")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the list of valid log formats
func ValidLogFormats() []string {
	return []string{"text", "json"}
}

// ValidSourceTypes returns the list of valid frame source types
func ValidSourceTypes() []string {
	return []string{SourceWebSocket, SourceWebRTC}
}

// ValidFeedFormats returns the list of valid feed payload formats
func ValidFeedFormats() []string {
	return []string{FormatJPEG, FormatPNG, FormatRaw}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	if strings.TrimSpace(c.SaveDirectory) == "" {
		errors = append(errors, ValidationError{
			Field:   "save_directory",
			Value:   c.SaveDirectory,
			Message: "must not be empty",
		})
	}

	if c.JPEG.Quality < 1 || c.JPEG.Quality > 100 {
		errors = append(errors, ValidationError{
			Field:   "jpeg.quality",
			Value:   c.JPEG.Quality,
			Message: "must be between 1 and 100",
		})
	}

	if !slices.Contains(encoder.ValidPNGCompression(), c.PNG.Compression) {
		errors = append(errors, ValidationError{
			Field:   "png.compression",
			Value:   c.PNG.Compression,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(encoder.ValidPNGCompression(), ", ")),
		})
	}

	errors = append(errors, c.validateSource()...)

	if c.Decoder.MaxPixels < 1 {
		errors = append(errors, ValidationError{
			Field:   "decoder.max_pixels",
			Value:   c.Decoder.MaxPixels,
			Message: "must be positive",
		})
	}

	if c.Keypress.PollInterval < time.Millisecond || c.Keypress.PollInterval > 5*time.Second {
		errors = append(errors, ValidationError{
			Field:   "keypress.poll_interval",
			Value:   c.Keypress.PollInterval,
			Message: "must be between 1ms and 5s",
		})
	}

	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validateFeed()...)

	return errors
}

func (c *Config) validateSource() []ValidationError {
	var errors []ValidationError

	switch c.Source.Type {
	case SourceWebSocket:
		if err := validateWebSocketURL(c.Source.URL); err != "" {
			errors = append(errors, ValidationError{Field: "source.url", Value: c.Source.URL, Message: err})
		}
	case SourceWebRTC:
		if err := validateWebSocketURL(c.Source.SignalingURL); err != "" {
			errors = append(errors, ValidationError{Field: "source.signaling_url", Value: c.Source.SignalingURL, Message: err})
		}
		if c.Source.HostID == "" {
			errors = append(errors, ValidationError{
				Field:   "source.host_id",
				Value:   c.Source.HostID,
				Message: "is required for the webrtc source",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "source.type",
			Value:   c.Source.Type,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSourceTypes(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errors = append(errors, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errors = append(errors, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}

	return errors
}

func (c *Config) validateFeed() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidSourceTypes(), c.Feed.Transport) {
		errors = append(errors, ValidationError{
			Field:   "feed.transport",
			Value:   c.Feed.Transport,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidSourceTypes(), ", ")),
		})
	}
	if c.Feed.FPS < 1 || c.Feed.FPS > 120 {
		errors = append(errors, ValidationError{
			Field:   "feed.fps",
			Value:   c.Feed.FPS,
			Message: "must be between 1 and 120",
		})
	}
	if !slices.Contains(ValidFeedFormats(), c.Feed.Format) {
		errors = append(errors, ValidationError{
			Field:   "feed.format",
			Value:   c.Feed.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidFeedFormats(), ", ")),
		})
	}
	if c.Feed.Format == FormatRaw && decoder.BytesPerPixel(c.Feed.Encoding) == 0 {
		errors = append(errors, ValidationError{
			Field:   "feed.encoding",
			Value:   c.Feed.Encoding,
			Message: "unsupported pixel encoding",
		})
	}
	if c.Feed.SourceDir == "" && (c.Feed.Width < 1 || c.Feed.Height < 1) {
		errors = append(errors, ValidationError{
			Field:   "feed.width/feed.height",
			Value:   fmt.Sprintf("%dx%d", c.Feed.Width, c.Feed.Height),
			Message: "must be positive",
		})
	}
	if !strings.HasPrefix(c.Feed.Path, "/") {
		errors = append(errors, ValidationError{
			Field:   "feed.path",
			Value:   c.Feed.Path,
			Message: "must start with /",
		})
	}

	return errors
}

// validateWebSocketURL returns a message describing what is wrong with raw,
// or "" if it is a usable ws:// or wss:// URL.
func validateWebSocketURL(raw string) string {
	if raw == "" {
		return "must not be empty"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "is not a valid URL"
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return "must use the ws or wss scheme"
	}
	if u.Host == "" {
		return "must include a host"
	}
	return ""
}
