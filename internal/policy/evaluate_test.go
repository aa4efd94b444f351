package policy

import (
	"reflect"
	"strings"
	"testing"

	"github.com/sagoresarker/netcheck/internal/models"
)

func floatPtr(v float64) *float64 { return &v }

func mustNetworks(t *testing.T, values ...string) []Network {
	t.Helper()
	networks, err := ParseNetworks(values)
	if err != nil {
		t.Fatalf("ParseNetworks(%v): %v", values, err)
	}
	return networks
}

func hop(distance int, address string, minRTT float64, org string) models.HopResult {
	return models.HopResult{
		Distance: distance,
		ProbeResult: models.ProbeResult{
			Address: address,
			IsAlive: true,
			MinRTT:  minRTT,
			AvgRTT:  minRTT,
			MaxRTT:  minRTT,
			RTTs:    []float64{minRTT},
		},
		Organization: org,
	}
}

func TestEvaluateLatency(t *testing.T) {
	tests := []struct {
		name         string
		measured     float64
		threshold    *float64
		wantReason   string
		wantEnforced bool
	}{
		{"no threshold", 3.2, nil, "", false},
		{"above threshold", 20.5, floatPtr(10), "", true},
		{"equal threshold", 10, floatPtr(10), "", true},
		{"below threshold", 4.25, floatPtr(10), "Minimum RTT 4.25ms is less than minimum allowed 10.000ms.", true},
		{"fractional threshold", 1.5, floatPtr(2.12345), "Minimum RTT 1.5ms is less than minimum allowed 2.123ms.", true},
		{"whole measurement", 3, floatPtr(10), "Minimum RTT 3.0ms is less than minimum allowed 10.000ms.", true},
		{"zero measurement", 0, floatPtr(1), "Minimum RTT 0.0ms is less than minimum allowed 1.000ms.", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reason, enforced := EvaluateLatency(tt.measured, tt.threshold)
			if reason != tt.wantReason {
				t.Errorf("reason = %q, want %q", reason, tt.wantReason)
			}
			if enforced != tt.wantEnforced {
				t.Errorf("enforced = %v, want %v", enforced, tt.wantEnforced)
			}
		})
	}
}

func TestEvaluateMembership(t *testing.T) {
	tests := []struct {
		name     string
		address  string
		networks []string
		want     Membership
	}{
		{"no networks", "10.0.0.1", nil, NotApplicable},
		{"inside single", "10.1.2.3", []string{"10.0.0.0/8"}, Inside},
		{"outside single", "11.1.2.3", []string{"10.0.0.0/8"}, Outside},
		{"inside second", "192.168.4.4", []string{"10.0.0.0/8", "192.168.0.0/16"}, Inside},
		{"bare host", "203.0.113.7", []string{"203.0.113.7"}, Inside},
		{"unmasked prefix", "10.9.9.9", []string{"10.1.2.3/8"}, Inside},
		{"invalid address", "not-an-ip", []string{"10.0.0.0/8"}, Outside},
		{"empty address", "", []string{"10.0.0.0/8"}, Outside},
		{"ipv6 inside", "2001:db8::1", []string{"2001:db8::/32"}, Inside},
		{"ipv4 against ipv6", "10.0.0.1", []string{"2001:db8::/32"}, Outside},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var networks []Network
			if len(tt.networks) > 0 {
				networks = mustNetworks(t, tt.networks...)
			}
			if got := EvaluateMembership(tt.address, networks); got != tt.want {
				t.Errorf("EvaluateMembership(%q, %v) = %v, want %v", tt.address, tt.networks, got, tt.want)
			}
		})
	}
}

func TestEvaluateMembershipOrderIndependent(t *testing.T) {
	a := mustNetworks(t, "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16")
	b := []Network{a[2], a[0], a[1]}

	for _, addr := range []string{"10.1.1.1", "172.20.0.1", "192.168.9.9", "8.8.8.8"} {
		if EvaluateMembership(addr, a) != EvaluateMembership(addr, b) {
			t.Errorf("membership of %s depends on network order", addr)
		}
	}
}

func TestEvaluateOrgMembership(t *testing.T) {
	patterns := NormalizeOrgs([]string{"google", "Cloudflare"})

	match, applicable := EvaluateOrgMembership("GOOGLE - Google LLC, US", patterns)
	if !applicable || match != "google" {
		t.Errorf("got (%q, %v), want (google, true)", match, applicable)
	}

	match, applicable = EvaluateOrgMembership("CLOUDFLARENET - Cloudflare, Inc., US", patterns)
	if !applicable || match != "Cloudflare" {
		t.Errorf("got (%q, %v), want (Cloudflare, true)", match, applicable)
	}

	match, applicable = EvaluateOrgMembership("AMAZON-02 - Amazon.com, Inc., US", patterns)
	if !applicable || match != "" {
		t.Errorf("got (%q, %v), want no match", match, applicable)
	}

	match, applicable = EvaluateOrgMembership("anything", nil)
	if applicable || match != "" {
		t.Errorf("empty patterns should not be applicable, got (%q, %v)", match, applicable)
	}
}

func TestEvaluatePingNoConstraints(t *testing.T) {
	result := models.ProbeResult{Address: "8.8.8.8", IsAlive: true, MinRTT: 1.2, RTTs: []float64{1.2, 1.4}}

	v := EvaluatePing(result, Policy{})
	if !v.OK || v.Reason != "" {
		t.Fatalf("expected pass, got %+v", v)
	}
	if len(v.Advisories) != 1 || v.Advisories[0] != adviseLatency {
		t.Errorf("expected latency advisory, got %v", v.Advisories)
	}
}

func TestEvaluatePingBelowThreshold(t *testing.T) {
	result := models.ProbeResult{Address: "8.8.8.8", IsAlive: true, MinRTT: 11.73}

	v := EvaluatePing(result, Policy{MinLatencyMs: floatPtr(999999)})
	if v.OK {
		t.Fatal("expected failure")
	}
	want := "Minimum RTT 11.73ms is less than minimum allowed 999999.000ms."
	if v.Reason != want {
		t.Errorf("reason = %q, want %q", v.Reason, want)
	}
}

func TestEvaluateTracerouteNoConstraints(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, ""),
		hop(2, "8.8.8.8", 9.1, "GOOGLE"),
	}

	v := EvaluateTraceroute(hops, Policy{})
	if !v.OK || v.Reason != "" {
		t.Fatalf("expected pass, got %+v", v)
	}
}

func TestEvaluateTracerouteEmptyHops(t *testing.T) {
	p := Policy{
		MinLatencyMs:     floatPtr(100),
		RouteMustInclude: mustNetworks(t, "10.0.0.0/8"),
		OrgMustInclude:   []string{"google"},
	}

	v := EvaluateTraceroute(nil, p)
	if !v.OK {
		t.Fatalf("empty path should pass, got %+v", v)
	}
	if len(v.Advisories) != 1 || v.Advisories[0] != adviseNoHops {
		t.Errorf("advisories = %v", v.Advisories)
	}
}

func TestEvaluateTracerouteMissingHosts(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, ""),
		hop(2, "93.184.216.34", 12.5, ""),
	}
	p := Policy{RouteMustInclude: mustNetworks(t, "10.0.0.0/8")}

	v := EvaluateTraceroute(hops, p)
	if v.OK {
		t.Fatal("expected failure")
	}
	if v.Reason != "Hosts missing from route: ['10.0.0.0/8']." {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestEvaluateTracerouteIncludedHostRemoved(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "10.0.0.1", 0.4, ""),
		hop(2, "93.184.216.34", 12.5, ""),
	}
	p := Policy{RouteMustInclude: mustNetworks(t, "10.0.0.0/8", "172.16.0.0/12")}

	v := EvaluateTraceroute(hops, p)
	if v.Reason != "Hosts missing from route: ['172.16.0.0/12']." {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestEvaluateTracerouteForbiddenHostsInOrder(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.50.1", 0.4, ""),
		hop(2, "10.10.0.1", 2.0, ""),
		hop(3, "192.168.1.1", 3.1, ""),
		hop(4, "93.184.216.34", 12.5, ""),
	}
	p := Policy{RouteMustExclude: mustNetworks(t, "192.168.0.0/16")}

	v := EvaluateTraceroute(hops, p)
	want := "Hosts forbidden from route: ['192.168.50.1', '192.168.1.1']."
	if v.Reason != want {
		t.Errorf("reason = %q, want %q", v.Reason, want)
	}
}

func TestEvaluateTracerouteOrgs(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, ""),
		hop(2, "4.69.1.1", 5.0, "LEVEL3 - Level 3 Parent, LLC, US"),
		hop(3, "8.8.8.8", 9.1, "GOOGLE - Google LLC, US"),
	}
	p := Policy{
		OrgMustInclude: NormalizeOrgs([]string{"google", "Cogent"}),
		OrgMustExclude: NormalizeOrgs([]string{"level 3"}),
	}

	v := EvaluateTraceroute(hops, p)
	want := "Orgs missing from route: ['Cogent']. Orgs forbidden from route: ['level 3']."
	if v.Reason != want {
		t.Errorf("reason = %q, want %q", v.Reason, want)
	}
}

func TestEvaluateTracerouteNoOrgDataCountsAsMissing(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, ""),
		hop(2, "8.8.8.8", 9.1, ""),
	}

	v := EvaluateTraceroute(hops, Policy{})
	if !v.OK {
		t.Fatalf("missing org data must not fail unset org constraints: %+v", v)
	}

	v = EvaluateTraceroute(hops, Policy{OrgMustInclude: []string{"google"}})
	if v.Reason != "Orgs missing from route: ['google']." {
		t.Errorf("reason = %q", v.Reason)
	}

	v = EvaluateTraceroute(hops, Policy{OrgMustExclude: []string{"google"}})
	if !v.OK {
		t.Errorf("unknown orgs cannot be forbidden, got %+v", v)
	}
}

func TestEvaluateTracerouteLatencyUsesLastHop(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, ""),
		hop(2, "8.8.8.8", 25, ""),
	}

	v := EvaluateTraceroute(hops, Policy{MinLatencyMs: floatPtr(20)})
	if !v.OK {
		t.Fatalf("first hop latency must be ignored, got %+v", v)
	}

	v = EvaluateTraceroute(hops, Policy{MinLatencyMs: floatPtr(30)})
	if v.Reason != "Minimum RTT 25.0ms is less than minimum allowed 30.000ms." {
		t.Errorf("reason = %q", v.Reason)
	}
}

func TestEvaluateTracerouteReasonOrder(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "192.168.1.1", 0.4, "ACME Home Networks"),
		hop(2, "8.8.8.8", 5, "GOOGLE - Google LLC, US"),
	}
	p := Policy{
		MinLatencyMs:     floatPtr(50),
		RouteMustInclude: mustNetworks(t, "10.0.0.0/8"),
		RouteMustExclude: mustNetworks(t, "192.168.0.0/16"),
		OrgMustInclude:   NormalizeOrgs([]string{"cogent"}),
		OrgMustExclude:   NormalizeOrgs([]string{"acme"}),
	}

	v := EvaluateTraceroute(hops, p)
	want := "Hosts missing from route: ['10.0.0.0/8']. " +
		"Orgs missing from route: ['cogent']. " +
		"Hosts forbidden from route: ['192.168.1.1']. " +
		"Orgs forbidden from route: ['acme']. " +
		"Minimum RTT 5.0ms is less than minimum allowed 50.000ms."
	if v.Reason != want {
		t.Errorf("reason =\n%q\nwant\n%q", v.Reason, want)
	}
	if strings.HasSuffix(v.Reason, " ") {
		t.Error("reason must not end with whitespace")
	}
}

func TestEvaluateIsPure(t *testing.T) {
	hops := []models.HopResult{
		hop(1, "10.0.0.1", 0.4, "ACME"),
		hop(2, "8.8.8.8", 5, "GOOGLE"),
	}
	p := Policy{
		MinLatencyMs:     floatPtr(50),
		RouteMustInclude: mustNetworks(t, "10.0.0.0/8", "172.16.0.0/12"),
		OrgMustInclude:   NormalizeOrgs([]string{"acme", "cogent"}),
	}
	before := append([]Network(nil), p.RouteMustInclude...)
	beforeOrgs := append([]string(nil), p.OrgMustInclude...)

	first := EvaluateTraceroute(hops, p)
	second := EvaluateTraceroute(hops, p)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("verdicts differ:\n%+v\n%+v", first, second)
	}
	if !reflect.DeepEqual(before, p.RouteMustInclude) || !reflect.DeepEqual(beforeOrgs, p.OrgMustInclude) {
		t.Error("evaluation mutated the policy")
	}

	result := models.ProbeResult{Address: "8.8.8.8", MinRTT: 3}
	if !reflect.DeepEqual(EvaluatePing(result, p), EvaluatePing(result, p)) {
		t.Error("ping verdicts differ")
	}
}
