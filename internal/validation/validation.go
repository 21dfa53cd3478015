// Package validation turns CSV rows into validated address objects and groups.
// Rejected rows are reported per line and never stop the rest of the file.
package validation

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"
)

// hostPrefix is appended to subnet values written as a bare address.
const hostPrefix = "/32"

// NormalizeSubnet appends /32 to a bare address and checks that the result is
// an IP network in CIDR form. The network address must not have host bits
// set. A dotted netmask is accepted after the slash ("10.0.0.0/255.0.0.0").
// The returned value is the normalized string, even when err is non-nil.
func NormalizeSubnet(value string) (string, error) {
	if !strings.Contains(value, "/") {
		value += hostPrefix
	}
	if _, err := ParseNetwork(value); err != nil {
		return value, err
	}
	return value, nil
}

// ParseNetwork parses a CIDR or address/netmask string into a prefix.
func ParseNetwork(value string) (netip.Prefix, error) {
	addrPart, bitsPart, ok := strings.Cut(value, "/")
	if !ok {
		return netip.Prefix{}, fmt.Errorf("missing prefix length")
	}
	addr, err := netip.ParseAddr(addrPart)
	if err != nil {
		return netip.Prefix{}, fmt.Errorf("invalid address: %w", err)
	}
	if addr.Zone() != "" {
		return netip.Prefix{}, fmt.Errorf("zoned addresses are not networks")
	}

	bits, err := parsePrefixLength(bitsPart, addr)
	if err != nil {
		return netip.Prefix{}, err
	}

	prefix := netip.PrefixFrom(addr, bits)
	if !prefix.IsValid() {
		return netip.Prefix{}, fmt.Errorf("prefix length %d out of range", bits)
	}
	if prefix.Masked() != prefix {
		return netip.Prefix{}, fmt.Errorf("%s has host bits set", value)
	}
	return prefix, nil
}

// parsePrefixLength accepts either a decimal length or a dotted netmask of
// the same family as addr.
func parsePrefixLength(s string, addr netip.Addr) (int, error) {
	if s == "" {
		return 0, fmt.Errorf("empty prefix length")
	}
	if isDigits(s) {
		bits, err := strconv.Atoi(s)
		if err != nil || bits > addr.BitLen() {
			return 0, fmt.Errorf("prefix length %q out of range", s)
		}
		return bits, nil
	}

	mask, err := netip.ParseAddr(s)
	if err != nil || !mask.Is4() || !addr.Is4() {
		return 0, fmt.Errorf("invalid netmask %q", s)
	}
	return maskLength(mask)
}

// maskLength returns the number of leading one bits in a contiguous netmask.
func maskLength(mask netip.Addr) (int, error) {
	b := mask.As4()
	n := uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
	ones := 0
	for n&(1<<31) != 0 {
		ones++
		n <<= 1
	}
	if n != 0 {
		return 0, fmt.Errorf("netmask %s is not contiguous", mask)
	}
	return ones, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// SplitGroups splits a groups cell on commas, trimming each entry and
// dropping empty ones.
func SplitGroups(cell string) []string {
	if cell == "" {
		return nil
	}
	var groups []string
	for _, g := range strings.Split(cell, ",") {
		g = strings.TrimSpace(g)
		if g != "" {
			groups = append(groups, g)
		}
	}
	return groups
}
