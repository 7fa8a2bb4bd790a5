package chain

import (
	"context"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// Well-known development key (first account of the default hardhat mnemonic).
const devKey = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func TestParseWallet(t *testing.T) {
	for _, key := range []string{devKey, devKey[2:], "  " + devKey + "\n"} {
		w, err := ParseWallet(key)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"), w.Address)
	}
}

func TestParseWalletErrors(t *testing.T) {
	for _, key := range []string{"", "0x", "not-hex", "0x1234"} {
		_, err := ParseWallet(key)
		assert.Error(t, err, "key %q", key)
	}
}

func TestPayRequiresArguments(t *testing.T) {
	w, err := ParseWallet(devKey)
	require.NoError(t, err)

	payer, err := NewPayer(nil, common.Address{}, w, zaptest.NewLogger(t))
	require.NoError(t, err)

	_, err = payer.Pay(context.Background(), nil, nil)
	assert.Error(t, err)

	_, err = NewPayer(nil, common.Address{}, nil, nil)
	assert.Error(t, err)
}
