// Package validation provides input validation for deployline.
package validation

import (
	"errors"
	"strings"
)

// ValidateAddress validates an EVM contract or account address
func ValidateAddress(addr string) error {
	if len(addr) != 42 {
		return errors.New("invalid address length: must be 42 characters (0x + 40 hex)")
	}
	if !strings.HasPrefix(addr, "0x") {
		return errors.New("invalid address: must start with 0x")
	}
	if !isHex(addr[2:]) {
		return errors.New("invalid address: contains non-hex characters")
	}
	return nil
}

// ValidateTxHash validates a transaction hash
func ValidateTxHash(hash string) error {
	if len(hash) != 66 {
		return errors.New("invalid transaction hash length: must be 66 characters (0x + 64 hex)")
	}
	if !strings.HasPrefix(hash, "0x") {
		return errors.New("invalid transaction hash: must start with 0x")
	}
	if !isHex(hash[2:]) {
		return errors.New("invalid transaction hash: contains non-hex characters")
	}
	return nil
}

// ValidateChainID validates a chain ID
func ValidateChainID(chainID uint64) error {
	if chainID == 0 {
		return errors.New("chain ID must be positive")
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		isDigit := c >= '0' && c <= '9'
		isLowerHex := c >= 'a' && c <= 'f'
		isUpperHex := c >= 'A' && c <= 'F'
		if !isDigit && !isLowerHex && !isUpperHex {
			return false
		}
	}
	return true
}
