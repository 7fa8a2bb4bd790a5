package chain

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Wallet is the bridge's own signing account. Its address is the buyer
// reported to the execution backend.
type Wallet struct {
	key     *ecdsa.PrivateKey
	Address common.Address
}

// ParseWallet parses a hex-encoded secp256k1 private key, with or without 0x.
func ParseWallet(hexKey string) (*Wallet, error) {
	hexKey = strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if hexKey == "" {
		return nil, errors.New("private key is empty")
	}
	key, err := crypto.HexToECDSA(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return &Wallet{
		key:     key,
		Address: crypto.PubkeyToAddress(key.PublicKey),
	}, nil
}
