package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junsooki/framegrab/internal/app"
	"github.com/junsooki/framegrab/internal/config"
	"github.com/junsooki/framegrab/internal/decoder"
	"github.com/junsooki/framegrab/internal/encoder"
	"github.com/junsooki/framegrab/internal/keypress"
	"github.com/junsooki/framegrab/internal/logging"
)

var rootCmd = &cobra.Command{
	Use:   "framegrab",
	Short: "Save frames from a live image stream on a keypress",
	Long: `framegrab subscribes to an image stream and keeps the most recent frame.
Every key pressed on the terminal saves that frame twice:

  <save_directory>/jpg_images/image_NNNN.jpg
  <save_directory>/png_images/image_NNNN.png

Numbering starts at 0000 on every run, so files from an earlier run in the
same directory are overwritten. Stop with Ctrl-C.`,
	SilenceUsage: true,
	RunE:         runCapture,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// flagKeys maps flags of the root command to config keys
var flagKeys = map[string]string{
	"save-directory":  "save_directory",
	"jpeg-quality":    "jpeg.quality",
	"png-compression": "png.compression",
	"source":          "source.type",
	"max-pixels":      "decoder.max_pixels",
	"url":             "source.url",
	"signaling":       "source.signaling_url",
	"host":            "source.host_id",
	"id":              "source.client_id",
	"poll-interval":   "keypress.poll_interval",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/framegrab/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "log format: text, json")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	flags := rootCmd.Flags()
	flags.StringP("save-directory", "d", "", "directory that receives jpg_images/ and png_images/")
	flags.Int("jpeg-quality", 0, "JPEG quality, 1-100")
	flags.String("png-compression", "", "PNG compression: default, none, speed, best")
	flags.String("source", "", "frame source: websocket, webrtc")
	flags.Int("max-pixels", 0, "largest frame accepted from the feed, in pixels")
	flags.String("url", "", "frame feed URL (websocket source)")
	flags.String("signaling", "", "signaling server URL (webrtc source)")
	flags.String("host", "", "host ID to subscribe to (webrtc source)")
	flags.String("id", "", "client ID to register with (webrtc source)")
	flags.Duration("poll-interval", 0, "how long one terminal poll waits for a key")

	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil {
			f = rootCmd.PersistentFlags().Lookup(name)
		}
		_ = viper.BindPFlag(key, f)
	}
}

func initConfig() {
	// Set defaults first so they're available even without a config file
	config.SetDefaults()

	if cfgFile := viper.GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(config.ConfigDir())
		viper.AddConfigPath("$HOME/.config/framegrab")
		viper.AddConfigPath(".")
	}

	viper.AutomaticEnv()
	viper.SetEnvPrefix("FRAMEGRAB")
	// e.g. FRAMEGRAB_JPEG_QUALITY for jpeg.quality
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read config file if it exists (ignore error if not found)
	_ = viper.ReadInConfig()
}

func runCapture(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Debug("using config file", "path", used)
	}

	pngEnc, err := encoder.NewPNGEncoder(cfg.PNG.Compression)
	if err != nil {
		return err
	}
	src, err := app.NewSource(cfg.Source, logger)
	if err != nil {
		return err
	}

	stdin := int(os.Stdin.Fd())
	restore := keypress.Guard(stdin, logger)
	defer restore()

	a, err := app.New(app.Options{
		Source:       src,
		Decoder:      decoder.NewAutoDecoderLimit(cfg.Decoder.MaxPixels),
		Fs:           afero.NewOsFs(),
		SaveDir:      cfg.SaveDirectory,
		JPEG:         encoder.NewJPEGEncoder(cfg.JPEG.Quality),
		PNG:          pngEnc,
		InputFD:      stdin,
		PollInterval: cfg.Keypress.PollInterval,
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("prepare output directories: %w", err)
	}

	logger.Info("framegrab starting",
		"save_directory", cfg.SaveDirectory,
		"source", cfg.Source.Type,
		"feed", sourceAddress(cfg.Source))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}

func sourceAddress(s config.SourceConfig) string {
	if s.Type == config.SourceWebRTC {
		return s.SignalingURL + " host=" + s.HostID
	}
	return s.URL
}
