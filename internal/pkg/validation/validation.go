package validation

import (
	"errors"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	ErrAmountRequired = errors.New("Amount is required")
	ErrInvalidAmount  = errors.New("Amount must be a non-negative integer number of wei")
	ErrInvalidAddress = errors.New("Invalid address")
)

// Amounts are plain decimal wei. 78 digits is the widest uint256.
var weiRe = regexp.MustCompile(`^[0-9]{1,78}$`)

// ParseWei parses a decimal wei amount. Signs, fractions, exponents and
// values above 2^256-1 are rejected.
func ParseWei(raw string) (*uint256.Int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrAmountRequired
	}
	if !weiRe.MatchString(raw) {
		return nil, ErrInvalidAmount
	}
	// Normalize leading zeros before conversion.
	trimmed := strings.TrimLeft(raw, "0")
	if trimmed == "" {
		return new(uint256.Int), nil
	}
	v, err := uint256.FromDecimal(trimmed)
	if err != nil {
		return nil, ErrInvalidAmount
	}
	return v, nil
}

// IsValidAddress accepts 0x-prefixed 20-byte hex addresses only.
func IsValidAddress(raw string) bool {
	return strings.HasPrefix(raw, "0x") && common.IsHexAddress(raw)
}

// ParseAddress is IsValidAddress plus conversion.
func ParseAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	if !IsValidAddress(raw) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(raw), nil
}
