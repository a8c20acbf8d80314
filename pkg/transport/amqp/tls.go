package amqp

import (
	"crypto/tls"
	"fmt"
)

// DefaultPort is the AMQP over TLS port.
const DefaultPort = 5671

// NewTLSConfig returns the TLS settings for a hub connection. base, if set,
// is cloned and its certificates and roots are kept. ServerName defaults to
// host and the minimum version is TLS 1.2.
func NewTLSConfig(base *tls.Config, host string) *tls.Config {
	var cfg *tls.Config
	if base != nil {
		cfg = base.Clone()
	} else {
		cfg = &tls.Config{}
	}
	if cfg.ServerName == "" {
		cfg.ServerName = host
	}
	if cfg.MinVersion < tls.VersionTLS12 {
		cfg.MinVersion = tls.VersionTLS12
	}
	if len(cfg.CurvePreferences) == 0 {
		cfg.CurvePreferences = []tls.CurveID{tls.X25519, tls.CurveP256}
	}
	return cfg
}

// VerifyTLS checks the negotiated version of an established connection.
func VerifyTLS(state tls.ConnectionState) error {
	if state.Version < tls.VersionTLS12 {
		return fmt.Errorf("TLS version %x is below TLS 1.2 (0x0303)", state.Version)
	}
	return nil
}

func address(host string, port int) string {
	if port == 0 {
		port = DefaultPort
	}
	return fmt.Sprintf("amqps://%s:%d", host, port)
}
