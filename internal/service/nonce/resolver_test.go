package nonce

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/web3nomad/Rabby/internal/model"
	"github.com/web3nomad/Rabby/pkg/errno"
)

type fakeChain struct {
	nonce uint64
	err   error
}

func (f fakeChain) NonceAt(context.Context, int64, string) (uint64, error) {
	return f.nonce, f.err
}

type fakeLocal struct {
	next uint64
	ok   bool
	err  error
}

func (f fakeLocal) NextNonce(context.Context, int64, string) (uint64, bool, error) {
	return f.next, f.ok, f.err
}

type fakeSafe struct {
	nonce uint64
	err   error
}

func (f fakeSafe) SafeNonce(context.Context, int64, string) (uint64, error) {
	return f.nonce, f.err
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name  string
		chain fakeChain
		local LocalNonceSource
		want  uint64
	}{
		{"chain ahead", fakeChain{nonce: 7}, fakeLocal{next: 5, ok: true}, 7},
		{"local ahead", fakeChain{nonce: 7}, fakeLocal{next: 9, ok: true}, 9},
		{"nothing queued", fakeChain{nonce: 7}, fakeLocal{}, 7},
		{"local failure ignored", fakeChain{nonce: 7}, fakeLocal{next: 20, ok: true, err: errors.New("redis down")}, 7},
		{"no local store", fakeChain{nonce: 3}, nil, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewResolver(tt.chain, tt.local, nil).Recommend(ctx, 1, "0xabc")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecommendChainFailure(t *testing.T) {
	_, err := NewResolver(fakeChain{err: errors.New("rpc down")}, fakeLocal{}, nil).Recommend(context.Background(), 1, "0xabc")
	assert.ErrorIs(t, err, errno.ErrNonceUnavailable)
}

func TestSafeNonce(t *testing.T) {
	r := NewResolver(fakeChain{}, nil, fakeSafe{nonce: 12})
	n, err := r.SafeNonce(context.Background(), 1, "0xsafe")
	require.NoError(t, err)
	assert.Equal(t, uint64(12), n)

	_, err = NewResolver(fakeChain{}, nil, nil).SafeNonce(context.Background(), 1, "0xsafe")
	assert.ErrorIs(t, err, errno.ErrNonceUnavailable)
}

func TestShouldUpdate(t *testing.T) {
	plain := model.TxIntent{From: "0xA", To: "0xB", Nonce: "0x1"}
	self := model.TxIntent{From: "0xA", To: "0xa", Nonce: "0x1"}

	tests := []struct {
		name    string
		tx      model.TxIntent
		flags   model.RequestFlags
		changed bool
		want    bool
	}{
		{"plain", plain, model.RequestFlags{}, false, true},
		{"cancel", plain, model.RequestFlags{IsCancel: true}, false, false},
		{"speed up", plain, model.RequestFlags{IsSpeedUp: true}, false, false},
		{"user edited", plain, model.RequestFlags{}, true, false},
		{"self send with nonce", self, model.RequestFlags{}, false, false},
		{"self send without nonce", model.TxIntent{From: "0xA", To: "0xA"}, model.RequestFlags{}, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldUpdate(tt.tx, tt.flags, tt.changed))
		})
	}
}

func TestApplySafeNonce(t *testing.T) {
	assert.Equal(t, "0x5", ApplySafeNonce(model.TxIntent{}, 5).Nonce)
	assert.Equal(t, "0x5", ApplySafeNonce(model.TxIntent{Nonce: "0x2"}, 5).Nonce)
	assert.Equal(t, "0x9", ApplySafeNonce(model.TxIntent{Nonce: "0x9"}, 5).Nonce)
	assert.Equal(t, uint64(5), Clamp(2, 5))
	assert.Equal(t, uint64(8), Clamp(8, 5))
}
