package signaling

import (
	"context"
	"fmt"
	"log/slog"
)

// ListHosts registers briefly as a controller and returns the hosts the
// server currently knows about.
func ListHosts(ctx context.Context, url, clientID string, logger *slog.Logger) ([]HostInfo, error) {
	hosts := make(chan []HostInfo, 1)
	failed := make(chan string, 1)

	var c *Client
	c = NewClient(url, clientID, ClientTypeController, Handler{
		OnRegistered: func() {
			if err := c.RequestHostList(); err != nil {
				select {
				case failed <- err.Error():
				default:
				}
			}
		},
		OnHostsUpdated: func(list []HostInfo) {
			select {
			case hosts <- list:
			default:
			}
		},
		OnError: func(msg string) {
			select {
			case failed <- msg:
			default:
			}
		},
	}, logger)

	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	defer c.Close()

	select {
	case list := <-hosts:
		return list, nil
	case msg := <-failed:
		return nil, fmt.Errorf("list hosts: %s", msg)
	case <-c.Done():
		return nil, fmt.Errorf("list hosts: connection closed: %w", c.Err())
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
