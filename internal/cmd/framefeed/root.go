// Package framefeed implements the framefeed command, a frame publisher that
// stands in for a camera while working on framegrab.
package framefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"

	"github.com/junsooki/framegrab/internal/config"
	"github.com/junsooki/framegrab/internal/feed"
	"github.com/junsooki/framegrab/internal/frame"
	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/peer"
	"github.com/junsooki/framegrab/internal/transport"
)

const shutdownTimeout = 5 * time.Second

var rootCmd = &cobra.Command{
	Use:   "framefeed",
	Short: "Publish a test frame feed for framegrab",
	Long: `framefeed publishes frames at a fixed rate so framegrab can be run without
a camera. Frames come from a directory of JPEG/PNG files, cycled in name
order, or from a synthetic scrolling color bar pattern.

Payloads are JPEG, PNG or raw msgpack images, served over WebSocket or over
a WebRTC data channel negotiated through a signaling server.`,
	SilenceUsage: true,
	RunE:         runFeed,
}

// Execute runs the framefeed command
func Execute() error {
	return rootCmd.Execute()
}

var flagKeys = map[string]string{
	"transport":  "feed.transport",
	"listen":     "feed.listen",
	"fps":        "feed.fps",
	"dir":        "feed.source_dir",
	"format":     "feed.format",
	"encoding":   "feed.encoding",
	"id":         "feed.host_id",
	"signaling":  "source.signaling_url",
	"log-level":  "logging.level",
	"log-format": "logging.format",
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file (default is $HOME/.config/framegrab/config.yaml)")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))

	flags := rootCmd.Flags()
	flags.String("transport", "", "feed transport: websocket, webrtc")
	flags.String("listen", "", "HTTP listen address (websocket transport)")
	flags.Int("fps", 0, "frames per second")
	flags.String("dir", "", "directory of JPEG/PNG files to publish instead of the test pattern")
	flags.String("format", "", "payload format: jpeg, png, raw")
	flags.String("encoding", "", "pixel encoding of raw payloads: rgb8, bgr8, rgba8, bgra8, mono8")
	flags.String("id", "", "host ID to register with (webrtc transport)")
	flags.String("signaling", "", "signaling server URL (webrtc transport)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	flags.String("log-format", "", "log format: text, json")

	for name, key := range flagKeys {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func initConfig() {
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
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	_ = viper.ReadInConfig()
}

func runFeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return run(ctx, cfg, logger, nil)
}

// run publishes until ctx is done. listening, if set, is called with the
// bound address once the websocket server accepts connections.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger, listening func(addr string)) error {
	frames, err := newFrames(afero.NewOsFs(), cfg.Feed, logger)
	if err != nil {
		return err
	}
	enc, err := feed.NewEncoder(cfg.Feed.Format, cfg.Feed.Encoding, cfg.JPEG.Quality)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	var sink transport.FrameSender
	switch cfg.Feed.Transport {
	case config.SourceWebSocket:
		pub, err := serveWebSocket(gctx, g, cfg.Feed, logger, listening)
		if err != nil {
			return err
		}
		sink = pub

	case config.SourceWebRTC:
		b := peer.NewBroadcaster(peer.BroadcasterConfig{
			SignalingURL: cfg.Source.SignalingURL,
			HostID:       cfg.Feed.HostID,
			ICEServers:   cfg.Source.ICEServers,
		}, logger.With("component", "broadcaster"))
		if err := b.Connect(ctx); err != nil {
			return fmt.Errorf("connect signaling: %w", err)
		}
		defer b.Close()
		logger.Info("publishing over webrtc",
			"host_id", cfg.Feed.HostID,
			"signaling", cfg.Source.SignalingURL)

		g.Go(func() error {
			select {
			case <-b.Done():
				return errors.New("signaling connection lost")
			case <-gctx.Done():
				return nil
			}
		})
		sink = b

	default:
		return fmt.Errorf("unknown feed transport %q", cfg.Feed.Transport)
	}

	f := feed.New(frames, enc, sink, cfg.Feed.FPS, logger.With("component", "feed"))
	g.Go(func() error {
		return f.Run(gctx)
	})

	err = g.Wait()
	stats := f.Stats()
	logger.Info("feed stopped", "sent", stats.Sent, "dropped", stats.Dropped)
	return err
}

func newFrames(fs afero.Fs, cfg config.FeedConfig, logger *slog.Logger) (feed.Frames, error) {
	if cfg.SourceDir != "" {
		return feed.LoadDir(fs, cfg.SourceDir, logger)
	}
	return frame.NewPattern(cfg.Width, cfg.Height), nil
}

func serveWebSocket(ctx context.Context, g *errgroup.Group, cfg config.FeedConfig, logger *slog.Logger, listening func(addr string)) (*transport.Publisher, error) {
	ln, err := net.Listen("tcp", cfg.Listen)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	pub := transport.NewPublisher(transport.DefaultSubscriberBuffer, logger.With("component", "publisher"))
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, pub)
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("publishing over websocket", "addr", ln.Addr().String(), "path", cfg.Path)
	if listening != nil {
		listening(ln.Addr().String())
	}

	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		pub.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return pub, nil
}
