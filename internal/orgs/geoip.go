package orgs

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/oschwald/geoip2-golang"
)

const DefaultGeoIPDatabase = "/usr/share/GeoIP/GeoLite2-ASN.mmdb"

// GeoIPResolver answers from a local MaxMind GeoLite2-ASN database.
type GeoIPResolver struct {
	db *geoip2.Reader
}

func OpenGeoIP(path string) (*GeoIPResolver, error) {
	if path == "" {
		path = DefaultGeoIPDatabase
	}
	db, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geoip database %s: %w", path, err)
	}
	return &GeoIPResolver{db: db}, nil
}

func (g *GeoIPResolver) Organization(ctx context.Context, address string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	addr, public, err := publicAddr(address)
	if err != nil || !public {
		return "", err
	}
	rec, err := g.db.ASN(net.IP(addr.AsSlice()))
	if err != nil {
		return "", fmt.Errorf("geoip lookup %s: %w", address, err)
	}
	if rec == nil {
		return "", nil
	}
	return rec.AutonomousSystemOrganization, nil
}

func (g *GeoIPResolver) Close() error {
	if g.db == nil {
		return errors.New("geoip database not open")
	}
	return g.db.Close()
}
