package model

type AccountType string

const (
	AccountMnemonic   AccountType = "HD Key Tree"
	AccountPrivateKey AccountType = "Simple Key Pair"
	AccountHardware   AccountType = "Hardware"
	AccountWatch      AccountType = "Watch Address"
	AccountGnosis     AccountType = "Gnosis"
)

// Account is the signer the review runs for.
type Account struct {
	Address string      `json:"address"`
	Type    AccountType `json:"type"`
}

func (a Account) IsWatch() bool {
	return a.Type == AccountWatch
}

func (a Account) IsGnosis() bool {
	return a.Type == AccountGnosis
}

// Supports1559 is false for keyrings that can only sign legacy transactions.
func (a Account) Supports1559() bool {
	return a.Type != AccountGnosis
}
