package merchant

import (
	"encoding/json"
	"fmt"

	"github.com/taimast/multi-merchant/internal/domain"
)

// Config is the serializable merchant selection: a discriminator tag plus the
// credentials and endpoint overrides the chosen adapter needs. Marshalling a
// Config never includes the API key plaintext.
type Config struct {
	Merchant  domain.MerchantID `json:"merchant"`
	ShopID    string            `json:"shop_id,omitempty"`
	APIKey    Secret            `json:"api_key"`
	CreateURL string            `json:"create_url,omitempty"`
	StatusURL string            `json:"status_url,omitempty"`

	// Provider-specific knobs.
	Receiver  string `json:"receiver,omitempty"`   // yoomoney wallet number
	ReturnURL string `json:"return_url,omitempty"` // redirect after payment
	CancelURL string `json:"cancel_url,omitempty"` // stripe cancel redirect
	Email     string `json:"email,omitempty"`      // receipt customer email
}

func (c Config) requireAPIKey() error {
	if c.APIKey.Empty() {
		return fmt.Errorf("%w: %s api_key", domain.ErrMissingCredentials, c.Merchant)
	}
	return nil
}

func (c Config) requireShopID() error {
	if c.ShopID == "" {
		return fmt.Errorf("%w: %s shop_id", domain.ErrMissingCredentials, c.Merchant)
	}
	return nil
}

// constructors is the closed tag -> adapter dispatch table.
var constructors = map[domain.MerchantID]func(Config) (Merchant, error){
	domain.MerchantCryptomus: newCryptomus,
	domain.MerchantCryptoPay: newCryptoPay,
	domain.MerchantYooKassa:  newYooKassa,
	domain.MerchantYooMoney:  newYooMoney,
	domain.MerchantStripe:    newStripe,
}

// New constructs the adapter selected by cfg.Merchant. An unrecognized tag or
// missing credentials is a configuration error, not a payment error.
func New(cfg Config) (Merchant, error) {
	construct, ok := constructors[cfg.Merchant]
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownMerchant, cfg.Merchant)
	}
	return construct(cfg)
}

// FromJSON deserializes a tagged config blob into a concrete adapter.
func FromJSON(data []byte) (Merchant, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse merchant config: %w", err)
	}
	return New(cfg)
}
