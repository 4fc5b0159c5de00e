package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/junsooki/framegrab/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View framegrab configuration",
	Long: `View framegrab configuration.

Without arguments, displays the effective configuration after merging the
config file, FRAMEGRAB_* environment variables and defaults.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show the config file path",
	RunE:  runConfigPath,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "Config file: %s\n", used)
	} else {
		fmt.Fprintf(out, "Config file: (none - using defaults)\n")
	}
	fmt.Fprintln(out)

	fmt.Fprintf(out, "save_directory: %s\n", cfg.SaveDirectory)
	fmt.Fprintln(out, "jpeg:")
	fmt.Fprintf(out, "  quality: %d\n", cfg.JPEG.Quality)
	fmt.Fprintln(out, "png:")
	fmt.Fprintf(out, "  compression: %s\n", cfg.PNG.Compression)

	fmt.Fprintln(out, "source:")
	fmt.Fprintf(out, "  type: %s\n", cfg.Source.Type)
	fmt.Fprintf(out, "  url: %s\n", cfg.Source.URL)
	fmt.Fprintf(out, "  signaling_url: %s\n", cfg.Source.SignalingURL)
	fmt.Fprintf(out, "  host_id: %s\n", cfg.Source.HostID)
	fmt.Fprintf(out, "  ice_servers: [%s]\n", strings.Join(cfg.Source.ICEServers, ", "))

	fmt.Fprintln(out, "decoder:")
	fmt.Fprintf(out, "  max_pixels: %d\n", cfg.Decoder.MaxPixels)

	fmt.Fprintln(out, "keypress:")
	fmt.Fprintf(out, "  poll_interval: %s\n", cfg.Keypress.PollInterval)

	fmt.Fprintln(out, "logging:")
	fmt.Fprintf(out, "  level: %s\n", cfg.Logging.Level)
	fmt.Fprintf(out, "  format: %s\n", cfg.Logging.Format)

	return nil
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	if used := viper.ConfigFileUsed(); used != "" {
		fmt.Fprintln(cmd.OutOrStdout(), used)
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s (not present)\n", config.ConfigFile())
	return nil
}
