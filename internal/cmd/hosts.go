package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/junsooki/framegrab/internal/config"
	"github.com/junsooki/framegrab/internal/logging"
	"github.com/junsooki/framegrab/internal/signaling"
)

var hostsCmd = &cobra.Command{
	Use:   "hosts",
	Short: "List feed hosts known to the signaling server",
	Long: `List the hosts currently registered with the signaling server. Use one
of the IDs with --source webrtc --host <id>.`,
	RunE: runHosts,
}

func init() {
	rootCmd.AddCommand(hostsCmd)
	hostsCmd.Flags().Duration("timeout", 5*time.Second, "how long to wait for the host list")
}

func runHosts(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	logger := logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format)
	hosts, err := signaling.ListHosts(ctx, cfg.Source.SignalingURL, cfg.Source.ClientID, logger)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(hosts) == 0 {
		fmt.Fprintln(out, "No hosts registered.")
		return nil
	}
	for _, h := range hosts {
		state := "offline"
		if h.Online {
			state = "online"
		}
		fmt.Fprintf(out, "%s\t%s\n", h.ID, state)
	}
	return nil
}
