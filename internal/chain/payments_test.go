package chain

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chainIDBackend only answers ChainID; any other call panics on the nil
// embedded interface.
type chainIDBackend struct {
	PaymentBackend
	err   error
	calls int
}

func (b *chainIDBackend) ChainID(context.Context) (*big.Int, error) {
	b.calls++
	return nil, b.err
}

func TestPayChainIDFailure(t *testing.T) {
	wallet, err := ParseWallet(devKey)
	require.NoError(t, err)
	backend := &chainIDBackend{err: errors.New("rpc down")}

	payer, err := NewPayer(backend, common.HexToAddress("0x2222222222222222222222222222222222222222"), wallet, nil)
	require.NoError(t, err)

	_, err = payer.Pay(context.Background(), big.NewInt(7), big.NewInt(1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chain id")
	assert.Contains(t, err.Error(), "rpc down")

	// A failed lookup is not cached.
	_, _ = payer.Pay(context.Background(), big.NewInt(7), big.NewInt(1))
	assert.Equal(t, 2, backend.calls)
}
