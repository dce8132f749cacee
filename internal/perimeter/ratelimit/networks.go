package ratelimit

import (
	"github.com/seancfoley/ipaddress-go/ipaddr"
)

// netSet answers membership questions for a fixed list of addresses and
// CIDR blocks. Lookups use address tries so per-request cost stays flat
// regardless of list size. The set is immutable after construction.
type netSet struct {
	trieV4 *ipaddr.IPv4AddressTrie
	trieV6 *ipaddr.IPv6AddressTrie
	empty  bool
}

// newNetSet builds a set from address/CIDR strings. Entries that do not
// parse are skipped; Config.Validate reports them before this runs.
func newNetSet(networks []string) *netSet {
	s := &netSet{
		trieV4: &ipaddr.IPv4AddressTrie{},
		trieV6: &ipaddr.IPv6AddressTrie{},
		empty:  true,
	}

	for _, network := range networks {
		addr, err := ipaddr.NewIPAddressString(network).ToAddress()
		if err != nil {
			continue
		}
		if addr.IsIPv4() {
			s.trieV4.Add(addr.ToIPv4())
			s.empty = false
		} else if addr.IsIPv6() {
			s.trieV6.Add(addr.ToIPv6())
			s.empty = false
		}
	}

	return s
}

// contains reports whether ip falls inside any address or block in the set.
// Unparsable input is never a member.
func (s *netSet) contains(ip string) bool {
	if s.empty {
		return false
	}

	addr, err := ipaddr.NewIPAddressString(ip).ToAddress()
	if err != nil {
		return false
	}

	return (addr.IsIPv4() && s.trieV4.ElementContains(addr.ToIPv4())) ||
		(addr.IsIPv6() && s.trieV6.ElementContains(addr.ToIPv6()))
}

// validNetwork reports whether the string parses as an address or CIDR block.
func validNetwork(network string) bool {
	_, err := ipaddr.NewIPAddressString(network).ToAddress()
	return err == nil
}
