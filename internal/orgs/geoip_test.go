package orgs

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"testing"
)

// testdata/GeoLite2-ASN-Test.mmdb is an IPv4 GeoLite2-ASN database holding
// 8.8.8.0/24 (AS15169 GOOGLE), 93.184.216.0/24 (AS15133 EDGECAST) and
// 10.0.0.0/8 (AS64512 PRIVATE NETWORK).
var testGeoIPDatabase = filepath.Join("testdata", "GeoLite2-ASN-Test.mmdb")

func openTestGeoIP(t *testing.T) *GeoIPResolver {
	t.Helper()
	g, err := OpenGeoIP(testGeoIPDatabase)
	if err != nil {
		t.Fatalf("OpenGeoIP: %v", err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGeoIPResolver(t *testing.T) {
	g := openTestGeoIP(t)

	tests := []struct {
		address string
		want    string
	}{
		{"8.8.8.8", "GOOGLE"},
		{"93.184.216.34", "EDGECAST"},
		{"::ffff:93.184.216.34", "EDGECAST"},
		{"1.1.1.1", ""},
		{"8.8.9.1", ""},
		// Present in the database but private, so never looked up.
		{"10.0.0.1", ""},
		{"192.168.1.1", ""},
		{"127.0.0.1", ""},
		{"fd00::1", ""},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			org, err := g.Organization(context.Background(), tt.address)
			if err != nil {
				t.Fatalf("Organization: %v", err)
			}
			if org != tt.want {
				t.Errorf("org = %q, want %q", org, tt.want)
			}
		})
	}
}

func TestGeoIPResolverErrors(t *testing.T) {
	g := openTestGeoIP(t)

	if _, err := g.Organization(context.Background(), "not-an-ip"); err == nil {
		t.Error("expected error for invalid address")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Organization(ctx, "8.8.8.8"); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled lookup err = %v, want context.Canceled", err)
	}
}

func TestNewGeoIPBackend(t *testing.T) {
	r, err := New(Config{Backend: BackendGeoIP, GeoIPDatabase: testGeoIPDatabase})
	if err != nil {
		t.Fatalf("New geoip: %v", err)
	}
	if _, ok := r.(*GeoIPResolver); !ok {
		t.Fatalf("backend = %T, want *GeoIPResolver", r)
	}
	org, err := r.Organization(context.Background(), "8.8.8.8")
	if err != nil || org != "GOOGLE" {
		t.Errorf("Organization = (%q, %v)", org, err)
	}

	c, ok := r.(io.Closer)
	if !ok {
		t.Fatal("geoip resolver should be closable")
	}
	if err := c.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
	if err := (&GeoIPResolver{}).Close(); err == nil {
		t.Error("closing an unopened resolver should fail")
	}
}
