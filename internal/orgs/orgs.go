// Package orgs maps IP addresses to the organization that owns the
// announcing network.
package orgs

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"time"
)

// Resolver looks up the owning organization of an address. An empty name
// with a nil error means the resolver has no information for the address.
// Implementations must be safe for concurrent use.
type Resolver interface {
	Organization(ctx context.Context, address string) (string, error)
}

const (
	BackendCymru = "cymru"
	BackendGeoIP = "geoip"
	BackendNone  = "none"
)

// Config selects and tunes a resolver backend.
type Config struct {
	Backend       string
	DNSServer     string
	Timeout       time.Duration
	GeoIPDatabase string
}

// New builds the resolver named by cfg.Backend. Resolvers that hold files
// open also implement io.Closer.
func New(cfg Config) (Resolver, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", BackendCymru:
		return NewCymruResolver(cfg.DNSServer, cfg.Timeout), nil
	case BackendGeoIP:
		g, err := OpenGeoIP(cfg.GeoIPDatabase)
		if err != nil {
			return nil, err
		}
		return g, nil
	case BackendNone:
		return Nop{}, nil
	default:
		return nil, fmt.Errorf("unknown organization resolver backend %q", cfg.Backend)
	}
}

// Nop never knows any organization.
type Nop struct{}

func (Nop) Organization(context.Context, string) (string, error) { return "", nil }

// publicAddr parses address and reports whether it is worth looking up.
// Private, loopback and link-local space has no public owner.
func publicAddr(address string) (netip.Addr, bool, error) {
	addr, err := netip.ParseAddr(address)
	if err != nil {
		return netip.Addr{}, false, fmt.Errorf("invalid address %q: %w", address, err)
	}
	addr = addr.Unmap()
	if !addr.IsGlobalUnicast() || addr.IsPrivate() {
		return addr, false, nil
	}
	return addr, true, nil
}
