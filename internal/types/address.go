package types

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// IsAddressValid checks if the provided string is a valid Ethereum address:
// 0x prefix followed by exactly 40 hex characters.
func IsAddressValid(address string) bool {
	if len(address) != 42 || !strings.HasPrefix(address, "0x") {
		return false
	}
	for _, c := range address[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// IsPrivateKeyValid checks if the provided string is a valid 32-byte hex
// private key with 0x prefix.
func IsPrivateKeyValid(key string) bool {
	if len(key) != 66 || !strings.HasPrefix(key, "0x") {
		return false
	}
	for _, c := range key[2:] {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')) {
			return false
		}
	}
	return true
}

// NormalizeAddress returns the lowercase comparison form of an address.
// Stored records keep the checksum-cased original for audit; all equality
// checks go through this form.
func NormalizeAddress(address string) string {
	if !IsAddressValid(address) {
		return strings.ToLower(address)
	}
	return strings.ToLower(common.HexToAddress(address).Hex())
}

// SameAddress reports whether two address strings refer to the same account
// regardless of checksum casing.
func SameAddress(a, b string) bool {
	return NormalizeAddress(a) == NormalizeAddress(b)
}
