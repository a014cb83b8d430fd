package merchant

import "log/slog"

const redacted = "***"

// Secret holds an API key or token. Every default representation (fmt, JSON,
// slog) is redacted; Reveal is the only way to get the plaintext back, and is
// called only where an outgoing auth header is built.
type Secret struct {
	value string
}

func NewSecret(value string) Secret {
	return Secret{value: value}
}

// Reveal returns the plaintext value.
func (s Secret) Reveal() string {
	return s.value
}

func (s Secret) Empty() bool {
	return s.value == ""
}

func (s Secret) String() string {
	return redacted
}

func (s Secret) GoString() string {
	return "merchant.Secret{" + redacted + "}"
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(redacted), nil
}

func (s *Secret) UnmarshalText(data []byte) error {
	s.value = string(data)
	return nil
}
