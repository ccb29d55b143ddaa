package tor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nao1215/tornago"
)

// DefaultStartupTimeout is the maximum bootstrap time when none is configured.
const DefaultStartupTimeout = 3 * time.Minute

// ErrNotRunning is returned when the proxy of a stopped daemon is requested.
var ErrNotRunning = errors.New("embedded Tor daemon is not running")

// Daemon manages an embedded Tor process.
type Daemon struct {
	// process is the running Tor daemon process.
	process *tornago.TorProcess

	// socksAddr is the SOCKS5 listener address (set after successful startup).
	socksAddr string

	// startupTimeout is the maximum time to wait for Tor to bootstrap.
	startupTimeout time.Duration
}

// Option configures a Daemon.
type Option func(*Daemon)

// WithStartupTimeout sets the maximum time to wait for Tor to bootstrap.
// Non-positive values keep the default.
func WithStartupTimeout(timeout time.Duration) Option {
	return func(d *Daemon) {
		if timeout > 0 {
			d.startupTimeout = timeout
		}
	}
}

// NewDaemon creates a daemon manager. Call Start to launch Tor.
func NewDaemon(opts ...Option) *Daemon {
	d := &Daemon{
		startupTimeout: DefaultStartupTimeout,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start launches Tor and blocks until it has bootstrapped or failed.
// If ctx is cancelled meanwhile, the started process is stopped again.
func (d *Daemon) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// ":0" lets the OS pick free ports
	launchCfg, err := tornago.NewTorLaunchConfig(
		tornago.WithTorSocksAddr(":0"),
		tornago.WithTorControlAddr(":0"),
		tornago.WithTorStartupTimeout(d.startupTimeout),
	)
	if err != nil {
		return fmt.Errorf("failed to create Tor launch config: %w", err)
	}

	process, err := tornago.StartTorDaemon(launchCfg)
	if err != nil {
		return fmt.Errorf("failed to start embedded Tor daemon: %w", err)
	}

	select {
	case <-ctx.Done():
		_ = process.Stop() //nolint:errcheck // Best effort cleanup
		return ctx.Err()
	default:
	}

	d.process = process
	d.socksAddr = process.SocksAddr()
	return nil
}

// Stop shuts the daemon down. Calling it on a stopped daemon is a no-op.
func (d *Daemon) Stop() error {
	if d.process == nil {
		return nil
	}
	err := d.process.Stop()
	d.process = nil
	d.socksAddr = ""
	return err
}

// IsRunning reports whether the daemon has been started and not stopped.
func (d *Daemon) IsRunning() bool {
	return d.process != nil
}

// ProxyURL returns the socks5h URL of the daemon's SOCKS listener.
func (d *Daemon) ProxyURL() (string, error) {
	if !d.IsRunning() {
		return "", ErrNotRunning
	}
	return ProxyURL(d.socksAddr), nil
}

// ProxyURL converts a SOCKS listener address such as "127.0.0.1:9050" into a
// proxy URL with remote name resolution.
func ProxyURL(socksAddr string) string {
	return "socks5h://" + socksAddr
}
