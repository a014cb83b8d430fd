package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvoiceNotFound     = errors.New("invoice not found")
	ErrTerminalStatus      = errors.New("invoice already in terminal status")
	ErrUnknownMerchant     = errors.New("unknown merchant tag")
	ErrMissingCredentials  = errors.New("missing merchant credentials")
	ErrUnsupportedCurrency = errors.New("currency not supported by merchant")
)

// ProviderError is a structured business rejection returned by a provider
// (bad currency, invalid amount, duplicate order id). The raw response body is
// kept for diagnostics. Never retried automatically.
type ProviderError struct {
	Merchant MerchantID
	Message  string
	Raw      []byte
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s rejected request: %s", e.Merchant, e.Message)
}

// TransportError wraps a network, timeout or decode failure talking to a
// provider. Retrying with backoff is the caller's responsibility.
type TransportError struct {
	Merchant MerchantID
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s transport failure: %v", e.Merchant, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MappingError means a provider response was missing a field the adapter
// expected during normalization. Schema drift, surfaced as a defect.
type MappingError struct {
	Merchant MerchantID
	Field    string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("%s response missing field %q", e.Merchant, e.Field)
}
