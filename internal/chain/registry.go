package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/skillforge/skillbridge/internal/skills"
)

// ContractCaller executes read-only contract calls.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// RegistryReader reads skill records from the registry contract.
type RegistryReader struct {
	caller  ContractCaller
	address common.Address
	abi     abi.ABI
}

// NewRegistryReader creates a reader for the registry deployed at address.
func NewRegistryReader(caller ContractCaller, address common.Address) (*RegistryReader, error) {
	parsed, err := abi.JSON(strings.NewReader(registryABIJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry ABI: %w", err)
	}
	return &RegistryReader{
		caller:  caller,
		address: address,
		abi:     parsed,
	}, nil
}

// Address returns the registry contract address.
func (r *RegistryReader) Address() common.Address {
	return r.address
}

// ReadAll returns every registered skill, active or not, in contract order.
func (r *RegistryReader) ReadAll(ctx context.Context) ([]skills.Record, error) {
	values, err := r.call(ctx, "getAllSkills")
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("getAllSkills returned %d values, want 1", len(values))
	}
	return DecodeRecords(values[0])
}

// Get reads a single skill by id.
func (r *RegistryReader) Get(ctx context.Context, id *big.Int) (skills.Record, error) {
	values, err := r.call(ctx, "getSkill", id)
	if err != nil {
		return skills.Record{}, err
	}
	return DecodeRecord(values)
}

func (r *RegistryReader) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s call: %w", method, err)
	}

	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s call failed: %w", method, err)
	}

	values, err := r.abi.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return values, nil
}
