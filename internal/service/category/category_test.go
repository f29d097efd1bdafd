package category

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/model"
)

func TestClassify(t *testing.T) {
	approval := &model.TypeNFTApproval{SpenderID: "0xspender"}
	token := &model.TypeTokenApproval{SpenderID: "0xspender", IsInfinity: true}

	tests := []struct {
		name   string
		in     model.SimulationResult
		want   Category
		revoke bool
	}{
		{"empty", model.SimulationResult{}, Unknown, false},
		{"deploy", model.SimulationResult{TypeDeployContract: &struct{}{}}, Deploy, false},
		{"cancel", model.SimulationResult{TypeCancelTx: &struct{}{}}, Cancel, false},
		{"revoke nft", model.SimulationResult{TypeCancelSingleNFTApproval: approval}, NFTApproval, true},
		{"revoke collection", model.SimulationResult{TypeCancelNFTCollectionApproval: approval}, NFTApproval, true},
		{"revoke token", model.SimulationResult{TypeCancelTokenApproval: token}, TokenApproval, true},
		{"nft approval", model.SimulationResult{TypeSingleNFTApproval: approval}, NFTApproval, false},
		{"token approval", model.SimulationResult{TypeTokenApproval: token}, TokenApproval, false},
		{"send", model.SimulationResult{TypeSend: &model.TypeSend{ToAddr: "0xb"}}, Send, false},
		{"nft send", model.SimulationResult{TypeNFTSend: &model.TypeNFTSend{NFTID: "1"}}, NFTSend, false},
		{"list nft", model.SimulationResult{TypeListNFT: &model.TypeListNFT{OfferCount: 2}}, ListNFT, false},
		{"call", model.SimulationResult{TypeCall: &model.TypeCall{Action: "swap"}}, Call, false},
		{"deploy wins over call", model.SimulationResult{TypeDeployContract: &struct{}{}, TypeCall: &model.TypeCall{}}, Deploy, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify(tt.in)
			assert.Equal(t, tt.want, got.Category)
			assert.Equal(t, tt.revoke, got.Revoke)
		})
	}
}

func TestDetailJSON(t *testing.T) {
	b, err := json.Marshal(Classify(model.SimulationResult{TypeSend: &model.TypeSend{ToAddr: "0xb"}}))
	require.NoError(t, err)
	assert.JSONEq(t, `{"category":"send","send":{"to_addr":"0xb","token":{"id":"","symbol":"","amount":0}}}`, string(b))
	assert.Equal(t, "unknown", Category(42).String())
}
