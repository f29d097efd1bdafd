package category

import "github.com/web3nomad/Rabby/internal/model"

// Category is the kind of action a simulated transaction performs.
type Category int

const (
	Unknown Category = iota
	Deploy
	Cancel
	NFTApproval
	TokenApproval
	Send
	NFTSend
	ListNFT
	Call
)

var names = [...]string{"unknown", "deploy", "cancel", "nftApproval", "tokenApproval", "send", "nftSend", "listNft", "call"}

func (c Category) String() string {
	if c < 0 || int(c) >= len(names) {
		return names[Unknown]
	}
	return names[c]
}

func (c Category) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

// Detail is the classified simulation. Only the field matching Category is set.
type Detail struct {
	Category      Category                 `json:"category"`
	Send          *model.TypeSend          `json:"send,omitempty"`
	TokenApproval *model.TypeTokenApproval `json:"tokenApproval,omitempty"`
	NFTApproval   *model.TypeNFTApproval   `json:"nftApproval,omitempty"`
	NFTSend       *model.TypeNFTSend       `json:"nftSend,omitempty"`
	ListNFT       *model.TypeListNFT       `json:"listNft,omitempty"`
	Call          *model.TypeCall          `json:"call,omitempty"`
	// Revoke marks cancel-approval variants of NFTApproval and TokenApproval.
	Revoke bool `json:"revoke,omitempty"`
}

// Classify resolves the simulation's type_* field once. When several are set the
// first in this order wins.
func Classify(r model.SimulationResult) Detail {
	switch {
	case r.TypeDeployContract != nil:
		return Detail{Category: Deploy}
	case r.TypeCancelTx != nil:
		return Detail{Category: Cancel}
	case r.TypeCancelSingleNFTApproval != nil:
		return Detail{Category: NFTApproval, NFTApproval: r.TypeCancelSingleNFTApproval, Revoke: true}
	case r.TypeCancelNFTCollectionApproval != nil:
		return Detail{Category: NFTApproval, NFTApproval: r.TypeCancelNFTCollectionApproval, Revoke: true}
	case r.TypeCancelTokenApproval != nil:
		return Detail{Category: TokenApproval, TokenApproval: r.TypeCancelTokenApproval, Revoke: true}
	case r.TypeSingleNFTApproval != nil:
		return Detail{Category: NFTApproval, NFTApproval: r.TypeSingleNFTApproval}
	case r.TypeNFTCollectionApproval != nil:
		return Detail{Category: NFTApproval, NFTApproval: r.TypeNFTCollectionApproval}
	case r.TypeNFTSend != nil:
		return Detail{Category: NFTSend, NFTSend: r.TypeNFTSend}
	case r.TypeTokenApproval != nil:
		return Detail{Category: TokenApproval, TokenApproval: r.TypeTokenApproval}
	case r.TypeSend != nil:
		return Detail{Category: Send, Send: r.TypeSend}
	case r.TypeListNFT != nil:
		return Detail{Category: ListNFT, ListNFT: r.TypeListNFT}
	case r.TypeCall != nil:
		return Detail{Category: Call, Call: r.TypeCall}
	}
	return Detail{Category: Unknown}
}
