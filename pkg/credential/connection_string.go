package credential

import (
	"fmt"
	"strings"
	"time"
)

// Connection string keys.
const (
	keyHostName              = "HostName"
	keySharedAccessKeyName   = "SharedAccessKeyName"
	keySharedAccessKey       = "SharedAccessKey"
	keySharedAccessSignature = "SharedAccessSignature"
)

// ConnectionString holds the fields of a hub connection string
// ("HostName=...;SharedAccessKeyName=...;SharedAccessKey=...").
type ConnectionString struct {
	HostName              string
	SharedAccessKeyName   string
	SharedAccessKey       string
	SharedAccessSignature string
}

// ParseConnectionString parses a semicolon-separated connection string.
// HostName is required, as is either SharedAccessKey or
// SharedAccessSignature.
func ParseConnectionString(s string) (ConnectionString, error) {
	var cs ConnectionString

	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		if !ok || key == "" {
			return ConnectionString{}, fmt.Errorf("%w: segment %q", ErrMalformed, part)
		}
		switch key {
		case keyHostName:
			cs.HostName = value
		case keySharedAccessKeyName:
			cs.SharedAccessKeyName = value
		case keySharedAccessKey:
			cs.SharedAccessKey = value
		case keySharedAccessSignature:
			cs.SharedAccessSignature = value
		}
	}

	if cs.HostName == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing %s", ErrMalformed, keyHostName)
	}
	if cs.SharedAccessKey == "" && cs.SharedAccessSignature == "" {
		return ConnectionString{}, fmt.Errorf("%w: missing %s or %s",
			ErrMalformed, keySharedAccessKey, keySharedAccessSignature)
	}
	return cs, nil
}

// Credential builds the credential described by the connection string. A
// shared access key yields a renewable *Signer with the given TTL; a
// pre-built signature yields a StaticToken.
func (cs ConnectionString) Credential(ttl time.Duration, now time.Time) (Credential, error) {
	if cs.SharedAccessKey != "" {
		return NewSigner(cs.HostName, cs.SharedAccessKeyName, cs.SharedAccessKey, ttl, now)
	}
	return StaticToken(cs.SharedAccessSignature), nil
}

// String returns the connection string with the key redacted.
func (cs ConnectionString) String() string {
	parts := []string{keyHostName + "=" + cs.HostName}
	if cs.SharedAccessKeyName != "" {
		parts = append(parts, keySharedAccessKeyName+"="+cs.SharedAccessKeyName)
	}
	if cs.SharedAccessKey != "" {
		parts = append(parts, keySharedAccessKey+"=***")
	}
	if cs.SharedAccessSignature != "" {
		parts = append(parts, keySharedAccessSignature+"=***")
	}
	return strings.Join(parts, ";")
}
