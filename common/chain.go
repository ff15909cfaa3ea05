package common

import "strings"

// Chain identifies a ledger the desk can list consignments on.
type Chain string

const (
	ChainEthereum Chain = "ethereum"
	ChainPolygon  Chain = "polygon"
	ChainBSC      Chain = "bsc"
	ChainSolana   Chain = "solana"
)

var supportedChains = map[Chain]struct{}{
	ChainEthereum: {},
	ChainPolygon:  {},
	ChainBSC:      {},
	ChainSolana:   {},
}

// caseSensitiveChains lists chains whose addresses are case-sensitive
// encoded strings. All other chains are normalized to lowercase before
// storage or comparison.
var caseSensitiveChains = map[Chain]struct{}{
	ChainSolana: {},
}

func (c Chain) IsSupported() bool {
	_, ok := supportedChains[c]
	return ok
}

func (c Chain) CaseSensitiveAddresses() bool {
	_, ok := caseSensitiveChains[c]
	return ok
}

// NormalizeAddress applies the chain's address case rule. Comparing
// addresses from case-insensitive chains without normalizing first
// produces false negatives.
func (c Chain) NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if c.CaseSensitiveAddresses() {
		return address
	}
	return strings.ToLower(address)
}

// AddressEqual compares two addresses under the chain's case rule.
func (c Chain) AddressEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return c.NormalizeAddress(a) == c.NormalizeAddress(b)
}

func (c Chain) String() string {
	return string(c)
}
