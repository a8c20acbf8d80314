package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hublink/hublink-go/pkg/credential"
)

const (
	keyConnString   = "HostName=hub.example.net;SharedAccessKeyName=service;SharedAccessKey=c2VjcmV0"
	tokenConnString = "HostName=hub.example.net;SharedAccessSignature=SharedAccessSignature sr=hub.example.net&sig=x&se=1"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("connection_string: \"" + keyConnString + "\"\n"))
	require.NoError(t, err)

	assert.Equal(t, credential.DefaultTTL, cfg.TokenTTL)
	assert.Equal(t, 15*time.Minute, cfg.RenewalMargin)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.ProtocolLog)
	assert.Zero(t, cfg.IdleTimeout)
}

func TestParse_AllFields(t *testing.T) {
	data := `
connection_string: "` + keyConnString + `"
token_ttl: 30m
renewal_margin: 5m
log_level: debug
protocol_log: /tmp/capture.cbor
metrics_addr: ":9102"
idle_timeout: 4m
`
	cfg, err := Parse([]byte(data))
	require.NoError(t, err)

	assert.Equal(t, 30*time.Minute, cfg.TokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.RenewalMargin)
	assert.Equal(t, slog.LevelDebug, cfg.Level())
	assert.Equal(t, "/tmp/capture.cbor", cfg.ProtocolLog)
	assert.Equal(t, ":9102", cfg.MetricsAddr)
	assert.Equal(t, 4*time.Minute, cfg.IdleTimeout)
}

func TestParse_ExpandsEnvironment(t *testing.T) {
	t.Setenv("HUB_KEY", "c2VjcmV0")
	data := `connection_string: "HostName=hub.example.net;SharedAccessKey=${HUB_KEY}"`

	cfg, err := Parse([]byte(data))
	require.NoError(t, err)
	assert.Contains(t, cfg.ConnectionString, "SharedAccessKey=c2VjcmV0")
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"missing connection string", "log_level: info"},
		{"malformed connection string", `connection_string: "SharedAccessKey=abc"`},
		{"zero ttl", "connection_string: \"" + keyConnString + "\"\ntoken_ttl: 0s"},
		{"negative margin", "connection_string: \"" + keyConnString + "\"\nrenewal_margin: -1m"},
		{"negative idle timeout", "connection_string: \"" + keyConnString + "\"\nidle_timeout: -1s"},
		{"unknown level", "connection_string: \"" + keyConnString + "\"\nlog_level: chatty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParse_BadYAML(t *testing.T) {
	_, err := Parse([]byte("connection_string: [unterminated"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalid)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hublink.yaml")
	require.NoError(t, os.WriteFile(path, []byte("connection_string: \""+tokenConnString+"\"\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, tokenConnString, cfg.ConnectionString)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestSessionCredential(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("key yields signer", func(t *testing.T) {
		cfg := Defaults()
		cfg.ConnectionString = keyConnString
		cfg.TokenTTL = 10 * time.Minute

		host, cred, err := cfg.SessionCredential(now)
		require.NoError(t, err)
		assert.Equal(t, "hub.example.net", host)

		signer, ok := cred.(*credential.Signer)
		require.True(t, ok)
		assert.Equal(t, "service", signer.KeyName)
		assert.Equal(t, now.Add(10*time.Minute), signer.Expiry)
	})

	t.Run("signature yields static token", func(t *testing.T) {
		cfg := Defaults()
		cfg.ConnectionString = tokenConnString

		_, cred, err := cfg.SessionCredential(now)
		require.NoError(t, err)
		assert.IsType(t, credential.StaticToken(""), cred)
	})

	t.Run("bad key", func(t *testing.T) {
		cfg := Defaults()
		cfg.ConnectionString = "HostName=h;SharedAccessKey=%%%"

		_, _, err := cfg.SessionCredential(now)
		assert.ErrorIs(t, err, ErrInvalid)
		assert.ErrorIs(t, err, credential.ErrBadKey)
	})
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for name, want := range tests {
		got, err := ParseLevel(name)
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}
