package domain

// Currency is a payment currency code, fiat or crypto.
type Currency string

const (
	CurrencyUSD Currency = "USD"
	CurrencyRUB Currency = "RUB"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"

	CurrencyUSDT Currency = "USDT"
	CurrencyBTC  Currency = "BTC"
	CurrencyTON  Currency = "TON"
	CurrencyETH  Currency = "ETH"
	CurrencyUSDC Currency = "USDC"
	CurrencyBUSD Currency = "BUSD"
)

var fiatCurrencies = map[Currency]bool{
	CurrencyUSD: true,
	CurrencyRUB: true,
	CurrencyEUR: true,
	CurrencyGBP: true,
}

var cryptoCurrencies = map[Currency]bool{
	CurrencyUSDT: true,
	CurrencyBTC:  true,
	CurrencyTON:  true,
	CurrencyETH:  true,
	CurrencyUSDC: true,
	CurrencyBUSD: true,
}

func (c Currency) Valid() bool {
	return fiatCurrencies[c] || cryptoCurrencies[c]
}

func (c Currency) Fiat() bool {
	return fiatCurrencies[c]
}

func (c Currency) Crypto() bool {
	return cryptoCurrencies[c]
}

func (c Currency) String() string {
	return string(c)
}
