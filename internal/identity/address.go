package identity

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// ParseAddress validates a hex address in any letter case.
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, ErrInvalidAddress
	}
	return common.HexToAddress(s), nil
}

// NormalizeAddress returns the EIP-55 checksummed form of s.
func NormalizeAddress(s string) (string, error) {
	addr, err := ParseAddress(s)
	if err != nil {
		return "", err
	}
	return addr.Hex(), nil
}

// AddressMatcher compares identities as Ethereum addresses, ignoring case.
// Identities that are not addresses are compared verbatim.
type AddressMatcher struct{}

func (AddressMatcher) SignerMatches(caller, expected string) bool {
	if caller == "" || expected == "" {
		return false
	}
	c, errC := ParseAddress(caller)
	e, errE := ParseAddress(expected)
	if errC != nil || errE != nil {
		return caller == expected
	}
	return c == e
}
