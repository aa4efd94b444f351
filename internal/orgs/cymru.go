package orgs

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/miekg/dns"

	"github.com/sagoresarker/netcheck/internal/utils"
)

const (
	DefaultDNSServer = "8.8.8.8:53"
	defaultTimeout   = 3 * time.Second

	originZone  = "origin.asn.cymru.com."
	origin6Zone = "origin6.asn.cymru.com."
	asnZone     = "asn.cymru.com."
)

// CymruResolver uses the Team Cymru IP to ASN service, which answers over
// plain DNS TXT records: one query maps the address to its origin ASN, a
// second maps the ASN to its registered name.
type CymruResolver struct {
	client *dns.Client
	server string
}

func NewCymruResolver(server string, timeout time.Duration) *CymruResolver {
	if server == "" {
		server = DefaultDNSServer
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &CymruResolver{
		client: &dns.Client{Timeout: timeout},
		server: server,
	}
}

func (r *CymruResolver) Organization(ctx context.Context, address string) (string, error) {
	addr, public, err := publicAddr(address)
	if err != nil || !public {
		return "", err
	}

	reverse, err := dns.ReverseAddr(addr.String())
	if err != nil {
		return "", fmt.Errorf("reverse %s: %w", address, err)
	}
	var origin string
	if addr.Is4() {
		origin = strings.TrimSuffix(reverse, "in-addr.arpa.") + originZone
	} else {
		origin = strings.TrimSuffix(reverse, "ip6.arpa.") + origin6Zone
	}

	records, err := r.queryTXT(ctx, origin)
	if err != nil || len(records) == 0 {
		return "", err
	}
	asn := parseOriginASN(records[0])
	if asn == "" {
		return "", nil
	}

	records, err = r.queryTXT(ctx, "AS"+asn+"."+asnZone)
	if err != nil || len(records) == 0 {
		return "", err
	}
	return parseASName(records[0]), nil
}

func (r *CymruResolver) queryTXT(ctx context.Context, name string) ([]string, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(name, dns.TypeTXT)

	resp, _, err := r.client.ExchangeContext(ctx, msg, r.server)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", name, err)
	}
	switch resp.Rcode {
	case dns.RcodeSuccess:
		return utils.ExtractTXT(resp), nil
	case dns.RcodeNameError:
		return nil, nil
	default:
		return nil, fmt.Errorf("query %s: %s", name, dns.RcodeToString[resp.Rcode])
	}
}

// parseOriginASN reads "15169 | 8.8.8.0/24 | US | arin | 2023-12-28".
// Multi-origin prefixes list several ASNs in the first field; the first wins.
func parseOriginASN(record string) string {
	fields := strings.Split(record, "|")
	asns := strings.Fields(fields[0])
	if len(asns) == 0 {
		return ""
	}
	return asns[0]
}

// parseASName reads "15169 | US | arin | 2000-03-30 | GOOGLE - Google LLC, US".
func parseASName(record string) string {
	fields := strings.Split(record, "|")
	if len(fields) < 5 {
		return ""
	}
	return strings.TrimSpace(fields[4])
}
