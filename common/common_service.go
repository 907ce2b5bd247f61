package common

import (
	"errors"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var ErrInvalidAddress = errors.New("invalid wallet address")

// CheckAddress parses a hex wallet address and returns its checksummed form
func CheckAddress(address string) (ethcommon.Address, error) {
	address = strings.TrimSpace(address)
	if !ethcommon.IsHexAddress(address) {
		return ethcommon.Address{}, ErrInvalidAddress
	}
	return ethcommon.HexToAddress(address), nil
}
