package classifier

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Allowlist is the fixed set of contract addresses that belong to the
// platform. Addresses are stored lowercased with a 0x prefix. A nil
// *Allowlist is valid and contains nothing.
type Allowlist struct {
	addrs map[string]struct{}
}

// NewAllowlist validates and normalizes the given addresses. Checksummed,
// lowercase and unprefixed forms of the same address collapse to one entry.
func NewAllowlist(addrs ...string) (*Allowlist, error) {
	a := &Allowlist{addrs: make(map[string]struct{}, len(addrs))}
	for _, raw := range addrs {
		addr := strings.TrimSpace(raw)
		if addr == "" {
			continue
		}
		norm, ok := NormalizeAddress(addr)
		if !ok {
			return nil, fmt.Errorf("invalid contract address %q", raw)
		}
		a.addrs[norm] = struct{}{}
	}
	return a, nil
}

// NormalizeAddress returns the lowercase 0x-prefixed form of a 20-byte hex
// address, or false if s is not one.
func NormalizeAddress(s string) (string, bool) {
	if !common.IsHexAddress(s) {
		return "", false
	}
	return strings.ToLower(common.HexToAddress(s).Hex()), true
}

// Contains reports whether addr is allowlisted, ignoring case.
func (a *Allowlist) Contains(addr string) bool {
	if a == nil {
		return false
	}
	norm, ok := NormalizeAddress(addr)
	if !ok {
		return false
	}
	_, found := a.addrs[norm]
	return found
}

// Len returns the number of addresses.
func (a *Allowlist) Len() int {
	if a == nil {
		return 0
	}
	return len(a.addrs)
}

// Addresses returns the allowlisted addresses in sorted order.
func (a *Allowlist) Addresses() []string {
	if a == nil {
		return nil
	}
	out := make([]string, 0, len(a.addrs))
	for addr := range a.addrs {
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}
