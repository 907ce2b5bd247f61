package chain

import (
	"fmt"
	"math/big"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

const distributeMethod = "distribute"

// distributorABI the subset of the will contract the dispatcher calls
const distributorABI = `[
  {
    "type": "function",
    "name": "distribute",
    "stateMutability": "nonpayable",
    "inputs": [
      {"name": "owner", "type": "address"},
      {"name": "willId", "type": "uint256"},
      {"name": "parameter", "type": "uint256"}
    ],
    "outputs": []
  }
]`

// Distributor encodes calls to the will contract's distribute method
type Distributor struct {
	address common.Address
	abi     abi.ABI
}

// NewDistributor loads the ABI from abiPath, or the built-in one when empty
func NewDistributor(address common.Address, abiPath string) (*Distributor, error) {
	raw := distributorABI
	if abiPath != "" {
		b, err := os.ReadFile(abiPath)
		if err != nil {
			return nil, fmt.Errorf("read contract ABI: %w", err)
		}
		raw = string(b)
	}
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse contract ABI: %w", err)
	}
	if _, ok := parsed.Methods[distributeMethod]; !ok {
		return nil, fmt.Errorf("contract ABI has no %q method", distributeMethod)
	}
	return &Distributor{address: address, abi: parsed}, nil
}

func (d *Distributor) Address() common.Address {
	return d.address
}

// PackDistribute encodes distribute(owner, willId, parameter)
func (d *Distributor) PackDistribute(owner common.Address, willID, parameter *big.Int) ([]byte, error) {
	data, err := d.abi.Pack(distributeMethod, owner, willID, parameter)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", distributeMethod, err)
	}
	return data, nil
}
