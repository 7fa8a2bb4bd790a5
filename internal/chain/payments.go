package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// PaymentBackend is what the payer needs from an RPC client.
type PaymentBackend interface {
	bind.ContractBackend
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
}

// Payer pays for a skill call on-chain: send, wait for the receipt, check
// its status. There is no retry and no idempotency key.
type Payer struct {
	backend  PaymentBackend
	contract *bind.BoundContract
	wallet   *Wallet
	logger   *zap.Logger

	mu      sync.Mutex
	chainID *big.Int
}

// NewPayer creates a payer for the payment contract at address.
func NewPayer(backend PaymentBackend, address common.Address, wallet *Wallet, logger *zap.Logger) (*Payer, error) {
	if wallet == nil {
		return nil, errors.New("wallet is required for payments")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	parsed, err := abi.JSON(strings.NewReader(paymentABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse payment ABI: %w", err)
	}
	return &Payer{
		backend:  backend,
		contract: bind.NewBoundContract(address, parsed, backend, backend, backend),
		wallet:   wallet,
		logger:   logger,
	}, nil
}

// Pay sends payForSkill(skillID) carrying price as value and blocks until
// the transaction is mined.
func (p *Payer) Pay(ctx context.Context, skillID, price *big.Int) (common.Hash, error) {
	if skillID == nil || price == nil {
		return common.Hash{}, errors.New("skill id and price are required")
	}

	chainID, err := p.chain(ctx)
	if err != nil {
		return common.Hash{}, err
	}

	opts, err := bind.NewKeyedTransactorWithChainID(p.wallet.key, chainID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to create transactor: %w", err)
	}
	opts.Context = ctx
	opts.Value = new(big.Int).Set(price)

	tx, err := p.contract.Transact(opts, "payForSkill", skillID)
	if err != nil {
		return common.Hash{}, fmt.Errorf("payment transaction failed: %w", err)
	}
	p.logger.Info("payment sent",
		zap.String("skill_id", skillID.String()),
		zap.String("tx", tx.Hash().Hex()))

	receipt, err := bind.WaitMined(ctx, p.backend, tx)
	if err != nil {
		return tx.Hash(), fmt.Errorf("waiting for payment %s: %w", tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return tx.Hash(), fmt.Errorf("payment %s reverted", tx.Hash().Hex())
	}

	p.logger.Info("payment confirmed",
		zap.String("skill_id", skillID.String()),
		zap.String("tx", tx.Hash().Hex()),
		zap.Uint64("block", receipt.BlockNumber.Uint64()))
	return tx.Hash(), nil
}

func (p *Payer) chain(ctx context.Context) (*big.Int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.chainID != nil {
		return p.chainID, nil
	}
	id, err := p.backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}
	p.chainID = id
	return id, nil
}
