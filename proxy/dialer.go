package proxy

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"time"

	netproxy "golang.org/x/net/proxy"
)

type dialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// Dialer connects control and data channels, optionally through a SOCKS5 upstream. Failed
// attempts are retried.
type Dialer struct {
	Retries int
	logger  *slog.Logger
	dial    dialFunc
}

// NewDialer creates a dialer with the given connect timeout. Upstream may be nil.
func NewDialer(timeout time.Duration, retries int, upstream *url.URL, logger *slog.Logger) (*Dialer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	direct := &net.Dialer{Timeout: timeout}
	d := &Dialer{Retries: retries, logger: logger, dial: direct.DialContext}
	if upstream != nil {
		pd, err := netproxy.FromURL(upstream, direct)
		if err != nil {
			return nil, fmt.Errorf("upstream %s: %w", upstream.Redacted(), err)
		}
		cd, ok := pd.(netproxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("upstream %s: dialer does not support contexts", upstream.Redacted())
		}
		d.dial = func(ctx context.Context, network, addr string) (net.Conn, error) {
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			return cd.DialContext(ctx, network, addr)
		}
	}
	return d, nil
}

func (d *Dialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	var err error
	for attempt := 0; attempt <= d.Retries; attempt++ {
		var conn net.Conn
		conn, err = d.dial(ctx, network, addr)
		if err == nil {
			return conn, nil
		}
		if ctx.Err() != nil {
			break
		}
		d.logger.Debug("connect failed", "addr", addr, "attempt", attempt+1, "error", err)
	}
	return nil, err
}
