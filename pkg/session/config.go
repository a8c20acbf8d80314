package session

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hublink/hublink-go/pkg/credential"
	"github.com/hublink/hublink-go/pkg/log"
	"github.com/hublink/hublink-go/pkg/metrics"
	"github.com/hublink/hublink-go/pkg/renewal"
	"github.com/hublink/hublink-go/pkg/transport"
)

// Config configures a Session.
type Config struct {
	// Host is the hub host name. It is also the CBS audience.
	Host string

	// Credential authenticates the connection: a credential.StaticToken
	// (caller-managed, never renewed) or a *credential.Signer (renewed
	// automatically while authenticated).
	Credential credential.Credential

	// Transport performs network I/O.
	Transport transport.Transport

	// TLSConfig is passed to the transport on connect.
	TLSConfig *tls.Config

	// IdleTimeout is passed to the transport on connect (0 = transport
	// default).
	IdleTimeout time.Duration

	// Clock drives the renewal timer (default: real clock).
	Clock clock.Clock

	// RenewalMargin is the maximum lead before token expiry at which a
	// renewable credential is refreshed (default: renewal.DefaultMargin).
	RenewalMargin time.Duration

	// Logger is the optional logger for operational logs.
	// If nil, logging is disabled.
	Logger *slog.Logger

	// ProtocolLogger receives protocol capture events. If nil, capture is
	// disabled.
	ProtocolLogger log.Logger

	// Metrics records session metrics. If nil, metrics are disabled.
	Metrics *metrics.Metrics
}

// DefaultConfig returns a Config with default timing.
func DefaultConfig() Config {
	return Config{
		Clock:         clock.New(),
		RenewalMargin: renewal.DefaultMargin,
	}
}

// Validate reports missing required fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	if c.Credential == nil {
		return fmt.Errorf("%w: credential is required", ErrInvalidConfig)
	}
	if err := checkCredential(c.Credential); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if c.Transport == nil {
		return fmt.Errorf("%w: transport is required", ErrInvalidConfig)
	}
	return nil
}

func checkCredential(c credential.Credential) error {
	switch c := c.(type) {
	case credential.StaticToken:
		if c == "" {
			return fmt.Errorf("token is empty")
		}
	case *credential.Signer:
		if c == nil {
			return fmt.Errorf("signer is nil")
		}
	}
	return nil
}
