// Package address validates the wallet address grammars accepted by the bot.
package address

import (
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// base58Pattern matches legacy P2PKH/P2SH style addresses: a leading 1 or 3
// followed by 25-34 characters of the base58 alphabet (no 0, O, I or l).
var base58Pattern = regexp.MustCompile(`^[13][a-km-zA-HJ-NP-Z1-9]{25,34}$`)

// Valid reports whether the trimmed input is a 0x-prefixed 40 hex digit
// address or a base58 address of length 26-35 starting with 1 or 3.
func Valid(input string) bool {
	v := strings.TrimSpace(input)
	if v == "" {
		return false
	}
	if IsHex(v) {
		return true
	}
	return base58Pattern.MatchString(v)
}

// IsHex reports whether v is an EVM hex address with an explicit 0x prefix.
func IsHex(v string) bool {
	if len(v) != 42 || !strings.EqualFold(v[:2], "0x") {
		return false
	}
	return common.IsHexAddress(v)
}

// QueryForm returns the representation the indexer expects for owner
// filters. Hex addresses are stored lowercase there.
func QueryForm(v string) string {
	v = strings.TrimSpace(v)
	if IsHex(v) {
		return strings.ToLower(v)
	}
	return v
}
