package merchant

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taimast/multi-merchant/internal/domain"
)

func TestSecretRedaction(t *testing.T) {
	secret := NewSecret("sk_live_supersecret")

	assert.Equal(t, "sk_live_supersecret", secret.Reveal())
	assert.NotContains(t, secret.String(), "supersecret")
	assert.NotContains(t, fmt.Sprintf("%v %+v %#v %s", secret, secret, secret, secret), "supersecret")

	data, err := json.Marshal(secret)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "supersecret")
}

func TestSecretUnmarshal(t *testing.T) {
	var secret Secret
	require.NoError(t, json.Unmarshal([]byte(`"token-123"`), &secret))
	assert.Equal(t, "token-123", secret.Reveal())
	assert.False(t, secret.Empty())
}

func TestConfigSerializationHidesAPIKey(t *testing.T) {
	cfg := Config{
		Merchant: domain.MerchantYooKassa,
		ShopID:   "shop-1",
		APIKey:   NewSecret("live_abcdef123456"),
	}

	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "live_abcdef123456")
	assert.Contains(t, string(data), `"merchant":"yookassa"`)
}
