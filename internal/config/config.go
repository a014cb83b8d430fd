package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/taimast/multi-merchant/internal/domain"
	"github.com/taimast/multi-merchant/internal/merchant"
)

type Config struct {
	// Core
	DatabaseURL string `env:"DATABASE_URL,required"`
	Port        int    `env:"PORT" envDefault:"3000"`

	// Watcher
	PollInterval    int `env:"POLL_INTERVAL_SECONDS" envDefault:"15"`
	PollConcurrency int `env:"POLL_CONCURRENCY" envDefault:"8"`

	// Merchant: Cryptomus
	CryptomusEnabled    bool            `env:"CRYPTOMUS_ENABLED" envDefault:"false"`
	CryptomusMerchantID string          `env:"CRYPTOMUS_MERCHANT_ID"`
	CryptomusAPIKey     merchant.Secret `env:"CRYPTOMUS_API_KEY"`

	// Merchant: CryptoPay (Crypto Bot)
	CryptoPayEnabled bool            `env:"CRYPTO_PAY_ENABLED" envDefault:"false"`
	CryptoPayToken   merchant.Secret `env:"CRYPTO_PAY_TOKEN"`

	// Merchant: YooKassa
	YooKassaEnabled   bool            `env:"YOOKASSA_ENABLED" envDefault:"false"`
	YooKassaShopID    string          `env:"YOOKASSA_SHOP_ID"`
	YooKassaSecretKey merchant.Secret `env:"YOOKASSA_SECRET_KEY"`
	YooKassaReturnURL string          `env:"YOOKASSA_RETURN_URL"`

	// Merchant: YooMoney
	YooMoneyEnabled  bool            `env:"YOOMONEY_ENABLED" envDefault:"false"`
	YooMoneyToken    merchant.Secret `env:"YOOMONEY_TOKEN"`
	YooMoneyReceiver string          `env:"YOOMONEY_RECEIVER"`

	// Merchant: Stripe
	StripeEnabled    bool            `env:"STRIPE_ENABLED" envDefault:"false"`
	StripeSecretKey  merchant.Secret `env:"STRIPE_SECRET_KEY"`
	StripeSuccessURL string          `env:"STRIPE_SUCCESS_URL"`
	StripeCancelURL  string          `env:"STRIPE_CANCEL_URL"`

	// Telegram notifications
	BotToken     string `env:"BOT_TOKEN"`
	NotifyChatID int64  `env:"NOTIFY_TELEGRAM_CHAT_ID"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

// MerchantConfigs returns a tagged merchant config per enabled provider.
func (c *Config) MerchantConfigs() []merchant.Config {
	var configs []merchant.Config
	if c.CryptomusEnabled {
		configs = append(configs, merchant.Config{
			Merchant: domain.MerchantCryptomus,
			ShopID:   c.CryptomusMerchantID,
			APIKey:   c.CryptomusAPIKey,
		})
	}
	if c.CryptoPayEnabled {
		configs = append(configs, merchant.Config{
			Merchant: domain.MerchantCryptoPay,
			APIKey:   c.CryptoPayToken,
		})
	}
	if c.YooKassaEnabled {
		configs = append(configs, merchant.Config{
			Merchant:  domain.MerchantYooKassa,
			ShopID:    c.YooKassaShopID,
			APIKey:    c.YooKassaSecretKey,
			ReturnURL: c.YooKassaReturnURL,
		})
	}
	if c.YooMoneyEnabled {
		configs = append(configs, merchant.Config{
			Merchant: domain.MerchantYooMoney,
			APIKey:   c.YooMoneyToken,
			Receiver: c.YooMoneyReceiver,
		})
	}
	if c.StripeEnabled {
		configs = append(configs, merchant.Config{
			Merchant:  domain.MerchantStripe,
			APIKey:    c.StripeSecretKey,
			ReturnURL: c.StripeSuccessURL,
			CancelURL: c.StripeCancelURL,
		})
	}
	return configs
}
