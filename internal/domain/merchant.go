package domain

// MerchantID identifies a payment provider. It is the discriminator tag used
// when deserializing merchant configuration.
type MerchantID string

const (
	MerchantCryptomus MerchantID = "cryptomus"
	MerchantCryptoPay MerchantID = "crypto_pay"
	MerchantYooKassa  MerchantID = "yookassa"
	MerchantYooMoney  MerchantID = "yoomoney"
	MerchantStripe    MerchantID = "stripe"
)

func (m MerchantID) Valid() bool {
	switch m {
	case MerchantCryptomus, MerchantCryptoPay, MerchantYooKassa, MerchantYooMoney, MerchantStripe:
		return true
	}
	return false
}

func (m MerchantID) String() string {
	return string(m)
}
