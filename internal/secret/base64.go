package secret

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Base64Store implements SecretStore over a map of Base64-encoded values,
// typically the credential fields of a database side-file or the
// environment.
type Base64Store struct {
	values map[string]string
}

// NewBase64Store wraps encoded values keyed by name.
func NewBase64Store(values map[string]string) *Base64Store {
	return &Base64Store{values: values}
}

// Get decodes the value stored under key.
func (s *Base64Store) Get(key string) ([]byte, error) {
	v, ok := s.values[key]
	if !ok || strings.TrimSpace(v) == "" {
		return nil, nil
	}
	out, err := Decode(v)
	if err != nil {
		return nil, fmt.Errorf("secret %q: %w", key, err)
	}
	return []byte(out), nil
}

// Decode reverses Encode. Both padded and unpadded standard encodings are
// accepted, as are URL-safe ones.
func Decode(stored string) (string, error) {
	s := strings.TrimSpace(stored)
	if s == "" {
		return "", nil
	}
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if b, err := enc.DecodeString(s); err == nil {
			return string(b), nil
		}
	}
	return "", fmt.Errorf("decode base64: invalid encoding")
}

// Encode produces the at-rest form of a credential.
func Encode(plain string) string {
	return base64.StdEncoding.EncodeToString([]byte(plain))
}
