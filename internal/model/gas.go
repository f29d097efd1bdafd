package model

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const (
	GasLevelSlow   = "slow"
	GasLevelNormal = "normal"
	GasLevelFast   = "fast"
	GasLevelCustom = "custom"
)

// GasLevel is one tier of the gas market. Only the custom tier's price is user controlled.
type GasLevel struct {
	Level            string          `json:"level"`
	Price            decimal.Decimal `json:"price"` // wei
	FrontTxCount     int             `json:"front_tx_count"`
	EstimatedSeconds int             `json:"estimated_seconds"`
	BaseFee          decimal.Decimal `json:"base_fee"`
}

// PriceWei truncates the tier price to whole wei.
func (g GasLevel) PriceWei() *big.Int {
	return g.Price.Floor().BigInt()
}

// FindLevel returns the tier with the given name.
func FindLevel(levels []GasLevel, name string) (GasLevel, bool) {
	for _, l := range levels {
		if l.Level == name {
			return l, true
		}
	}
	return GasLevel{}, false
}

// GasLimitRecommendation pairs the measured or fallback gas with the multiplier applied on top.
type GasLimitRecommendation struct {
	RecommendedGasLimit uint64  `json:"recommendedGasLimit"`
	Ratio               float64 `json:"ratio"`
}

const (
	LastSelectGasPrice = "gasPrice"
	LastSelectGasLevel = "gasLevel"
)

// GasSelection is the last gas choice confirmed on a chain.
type GasSelection struct {
	ChainID        int64     `gorm:"primaryKey;autoIncrement:false" json:"chainId"`
	LastTimeSelect string    `gorm:"size:16;not null" json:"lastTimeSelect"`
	GasPrice       string    `gorm:"size:80" json:"gasPrice,omitempty"` // decimal wei
	GasLevel       string    `gorm:"size:16" json:"gasLevel,omitempty"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

func (GasSelection) TableName() string {
	return "gas_selections"
}
