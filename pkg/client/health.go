package client

import (
	"context"
	"net/http"
	"time"

	"github.com/aiodash/aiodash/internal/logging"
	"github.com/aiodash/aiodash/pkg/protocol"
	"github.com/aiodash/aiodash/pkg/retry"
)

const pingTimeout = 5 * time.Second

// Ping checks backend reachability with a single unretried GET /health.
func (c *Client) Ping(ctx context.Context) error {
	r := newRequest(http.MethodGet, protocol.PathHealth, nil, []Option{WithTimeout(pingTimeout)})
	err := c.attempt(ctx, r, nil)

	c.mu.Lock()
	c.lastPing = time.Now()
	c.mu.Unlock()

	return retry.Unwrap(err)
}

// IsOnline reports whether the most recent request reached the backend.
func (c *Client) IsOnline() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.online
}

// LastPing returns when Ping last ran.
func (c *Client) LastPing() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPing
}

func (c *Client) setOnline(online bool) {
	c.mu.Lock()
	changed := c.online != online
	c.online = online
	c.mu.Unlock()

	if !changed {
		return
	}
	if online {
		logging.Named("client").Info("backend reachable", logging.URL(c.baseURL))
	} else {
		logging.Named("client").Warn("backend unreachable", logging.URL(c.baseURL))
	}
}
