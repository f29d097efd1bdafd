package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type reviewForm struct {
	From    string `validate:"required,eth_addr"`
	ChainID int64  `validate:"gt=0"`
}

func TestEthAddrTag(t *testing.T) {
	v := validator.New()
	require.NoError(t, Register(v))

	ok := reviewForm{From: "0x5853eD4f26A3fceA565b3FBC698bb19cdF6DEB85", ChainID: 1}
	assert.NoError(t, v.Struct(ok))

	err := v.Struct(reviewForm{From: "0x1234", ChainID: 0})
	require.Error(t, err)
	msg := GetErrorMsg(err)
	assert.Contains(t, msg, "From is not a valid address")
	assert.Contains(t, msg, "ChainID must be greater than 0")
}
