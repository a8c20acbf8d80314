// Package credential provides hub credentials: opaque pre-built tokens and
// renewable shared access key signers, plus connection string parsing.
package credential

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// DefaultTTL is the validity of tokens produced by a Signer when no TTL is
// configured.
const DefaultTTL = time.Hour

// Credential errors.
var (
	ErrMalformed  = errors.New("malformed connection string")
	ErrMissingKey = errors.New("shared access key is required")
	ErrBadKey     = errors.New("shared access key is not valid base64")
)

// Credential produces the token presented during the CBS handshake.
// Implemented by StaticToken and *Signer.
type Credential interface {
	// Token returns the token string.
	Token() (string, error)

	credential()
}

// StaticToken is a caller-managed shared access signature. It is used as-is
// and never renewed by the session.
type StaticToken string

// Token returns the token unchanged.
func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", errors.New("empty token")
	}
	return string(t), nil
}

func (StaticToken) credential() {}

// Signer creates shared access signatures from a key. A Signer is immutable;
// Extend returns a new value carrying a later expiry.
type Signer struct {
	// Resource is the resource URI the token grants access to (the hub host).
	Resource string

	// KeyName is the shared access policy name (may be empty for
	// device-scoped keys).
	KeyName string

	// Key is the base64-encoded shared access key.
	Key string

	// TTL is the validity period applied by Extend.
	TTL time.Duration

	// Expiry is when tokens produced by this signer expire.
	Expiry time.Time
}

// NewSigner creates a Signer whose first token expires at now+ttl.
func NewSigner(resource, keyName, key string, ttl time.Duration, now time.Time) (*Signer, error) {
	if key == "" {
		return nil, ErrMissingKey
	}
	if _, err := base64.StdEncoding.DecodeString(key); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Signer{
		Resource: resource,
		KeyName:  keyName,
		Key:      key,
		TTL:      ttl,
		Expiry:   now.Add(ttl),
	}, nil
}

// Extend returns a copy of the signer expiring TTL after now.
func (s *Signer) Extend(now time.Time) *Signer {
	next := *s
	next.Expiry = now.Add(s.TTL)
	return &next
}

// Token returns a shared access signature valid until Expiry.
func (s *Signer) Token() (string, error) {
	key, err := base64.StdEncoding.DecodeString(s.Key)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadKey, err)
	}

	resource := url.QueryEscape(s.Resource)
	expiry := strconv.FormatInt(s.Expiry.Unix(), 10)

	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(resource + "\n" + expiry))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	token := "SharedAccessSignature sr=" + resource +
		"&sig=" + url.QueryEscape(sig) +
		"&se=" + expiry
	if s.KeyName != "" {
		token += "&skn=" + url.QueryEscape(s.KeyName)
	}
	return token, nil
}

func (*Signer) credential() {}

// Compile-time interface satisfaction checks.
var (
	_ Credential = StaticToken("")
	_ Credential = (*Signer)(nil)
)
