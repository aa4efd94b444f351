package policy

import (
	"fmt"
	"net/netip"
	"sort"
	"strings"
)

// Network is a CIDR constraint. Raw keeps the caller's spelling so that
// failure reasons quote exactly what was requested.
type Network struct {
	Raw    string
	Prefix netip.Prefix
}

// Contains reports whether addr lies inside the network.
func (n Network) Contains(addr netip.Addr) bool {
	return n.Prefix.Masked().Contains(addr.Unmap())
}

// Policy is the set of constraints a probe result is checked against.
// Every field is optional; an empty collection means "not specified".
type Policy struct {
	MinLatencyMs     *float64
	RouteMustInclude []Network
	RouteMustExclude []Network
	OrgMustInclude   []string
	OrgMustExclude   []string
}

// ParseNetworks turns CIDR strings into a de-duplicated, sorted network set.
func ParseNetworks(values []string) ([]Network, error) {
	seen := make(map[string]bool, len(values))
	networks := make([]Network, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		prefix, err := parsePrefix(v)
		if err != nil {
			return nil, fmt.Errorf("invalid network %q: %w", v, err)
		}
		seen[v] = true
		networks = append(networks, Network{Raw: v, Prefix: prefix})
	}
	sort.Slice(networks, func(i, j int) bool { return networks[i].Raw < networks[j].Raw })
	return networks, nil
}

// parsePrefix accepts a bare address as a single-host network.
func parsePrefix(v string) (netip.Prefix, error) {
	if strings.Contains(v, "/") {
		return netip.ParsePrefix(v)
	}
	addr, err := netip.ParseAddr(v)
	if err != nil {
		return netip.Prefix{}, err
	}
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// NormalizeOrgs de-duplicates and sorts organization patterns, dropping blanks.
// The sorted order is the order EvaluateOrgMembership tries them in.
func NormalizeOrgs(values []string) []string {
	seen := make(map[string]bool, len(values))
	orgs := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		orgs = append(orgs, v)
	}
	sort.Strings(orgs)
	return orgs
}

// Verdict is the outcome of evaluating a policy. Reason is empty when OK.
// Advisories carry notes about constraints that were not enforced.
type Verdict struct {
	OK         bool
	Reason     string
	Advisories []string
}
