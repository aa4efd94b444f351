package policy

import (
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/sagoresarker/netcheck/internal/models"
)

// Membership is the outcome of a route membership check.
type Membership int

const (
	// NotApplicable means no networks were specified.
	NotApplicable Membership = iota
	Outside
	Inside
)

func (m Membership) String() string {
	switch m {
	case Inside:
		return "inside"
	case Outside:
		return "outside"
	default:
		return "not applicable"
	}
}

const (
	adviseLatency       = "Not enforcing latency expectations."
	adviseRouteInclude  = "No required route networks specified."
	adviseRouteExclude  = "No forbidden route networks specified."
	adviseOrgInclude    = "No required route organizations specified."
	adviseOrgExclude    = "No forbidden route organizations specified."
	adviseNoHops        = "Traceroute returned no hops, route constraints not evaluated."
	adviseNoOrgHopsFmt  = "No organization information for hop %s."
	latencyViolationFmt = "Minimum RTT %sms is less than minimum allowed %.3fms."
)

// EvaluateLatency checks a measured minimum RTT against the threshold.
// enforced is false when no threshold is set; reason is non-empty on failure.
func EvaluateLatency(measuredMinRTT float64, minLatencyMs *float64) (reason string, enforced bool) {
	if minLatencyMs == nil {
		return "", false
	}
	if measuredMinRTT < *minLatencyMs {
		return fmt.Sprintf(latencyViolationFmt, formatRTT(measuredMinRTT), *minLatencyMs), true
	}
	return "", true
}

// EvaluateMembership reports whether address falls inside any of networks.
func EvaluateMembership(address string, networks []Network) Membership {
	if len(networks) == 0 {
		return NotApplicable
	}
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return Outside
	}
	for _, n := range networks {
		if n.Contains(addr) {
			return Inside
		}
	}
	return Outside
}

// EvaluateOrgMembership returns the first pattern, in the given order, that is a
// case-insensitive substring of org. applicable is false when patterns is empty.
func EvaluateOrgMembership(org string, patterns []string) (match string, applicable bool) {
	if len(patterns) == 0 {
		return "", false
	}
	lower := strings.ToLower(org)
	for _, p := range patterns {
		if strings.Contains(lower, strings.ToLower(p)) {
			return p, true
		}
	}
	return "", true
}

// EvaluatePing checks a single ping result. Only the latency constraint applies.
func EvaluatePing(result models.ProbeResult, p Policy) Verdict {
	var v Verdict
	reason, enforced := EvaluateLatency(result.MinRTT, p.MinLatencyMs)
	if !enforced {
		v.Advisories = append(v.Advisories, adviseLatency)
	}
	v.Reason = reason
	v.OK = reason == ""
	return v
}

// EvaluateTraceroute checks a traceroute path against every constraint.
// Route and organization checks look at each hop; latency is checked
// against the deepest hop only.
func EvaluateTraceroute(hops []models.HopResult, p Policy) Verdict {
	var v Verdict
	if len(hops) == 0 {
		v.OK = true
		v.Advisories = append(v.Advisories, adviseNoHops)
		return v
	}

	if len(p.RouteMustInclude) == 0 {
		v.Advisories = append(v.Advisories, adviseRouteInclude)
	}
	if len(p.RouteMustExclude) == 0 {
		v.Advisories = append(v.Advisories, adviseRouteExclude)
	}
	if len(p.OrgMustInclude) == 0 {
		v.Advisories = append(v.Advisories, adviseOrgInclude)
	}
	if len(p.OrgMustExclude) == 0 {
		v.Advisories = append(v.Advisories, adviseOrgExclude)
	}

	missingHosts := append([]Network(nil), p.RouteMustInclude...)
	missingOrgs := append([]string(nil), p.OrgMustInclude...)
	var forbiddenHosts, forbiddenOrgs []string

	for _, hop := range hops {
		if EvaluateMembership(hop.Address, p.RouteMustInclude) == Inside {
			missingHosts = removeContaining(missingHosts, hop.Address)
		}
		if EvaluateMembership(hop.Address, p.RouteMustExclude) == Inside {
			forbiddenHosts = append(forbiddenHosts, hop.Address)
		}

		if hop.Organization == "" {
			if len(p.OrgMustInclude) > 0 || len(p.OrgMustExclude) > 0 {
				v.Advisories = append(v.Advisories, fmt.Sprintf(adviseNoOrgHopsFmt, hop.Address))
			}
			continue
		}
		if match, _ := EvaluateOrgMembership(hop.Organization, p.OrgMustInclude); match != "" {
			missingOrgs = removeString(missingOrgs, match)
		}
		if match, _ := EvaluateOrgMembership(hop.Organization, p.OrgMustExclude); match != "" {
			forbiddenOrgs = append(forbiddenOrgs, match)
		}
	}

	var b strings.Builder
	if len(missingHosts) > 0 {
		raw := make([]string, len(missingHosts))
		for i, n := range missingHosts {
			raw[i] = n.Raw
		}
		fmt.Fprintf(&b, "Hosts missing from route: %s. ", formatList(raw))
	}
	if len(missingOrgs) > 0 {
		fmt.Fprintf(&b, "Orgs missing from route: %s. ", formatList(missingOrgs))
	}
	if len(forbiddenHosts) > 0 {
		fmt.Fprintf(&b, "Hosts forbidden from route: %s. ", formatList(forbiddenHosts))
	}
	if len(forbiddenOrgs) > 0 {
		fmt.Fprintf(&b, "Orgs forbidden from route: %s. ", formatList(forbiddenOrgs))
	}

	last := hops[len(hops)-1]
	reason, enforced := EvaluateLatency(last.MinRTT, p.MinLatencyMs)
	if !enforced {
		v.Advisories = append(v.Advisories, adviseLatency)
	}
	b.WriteString(reason)

	v.Reason = strings.TrimRight(b.String(), " \t\n")
	v.OK = v.Reason == ""
	return v
}

// removeContaining drops every network that contains address.
func removeContaining(networks []Network, address string) []Network {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return networks
	}
	kept := networks[:0]
	for _, n := range networks {
		if !n.Contains(addr) {
			kept = append(kept, n)
		}
	}
	return kept
}

func removeString(values []string, target string) []string {
	kept := values[:0]
	for _, v := range values {
		if v != target {
			kept = append(kept, v)
		}
	}
	return kept
}

// formatList renders values as a bracketed, single-quoted list: ['a', 'b'].
func formatList(values []string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + v + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// formatRTT prints the shortest exact decimal form, keeping at least one
// fractional digit so whole values read as 25.0.
func formatRTT(ms float64) string {
	s := strconv.FormatFloat(ms, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
