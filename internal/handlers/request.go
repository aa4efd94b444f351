package handlers

import (
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/sagoresarker/netcheck/internal/policy"
	"github.com/sagoresarker/netcheck/internal/probe"
	"github.com/sagoresarker/netcheck/internal/utils"
)

// Request headers understood by the probe endpoints. The target itself is
// taken from Host.
const (
	HeaderSource         = "Source"
	HeaderSourceLegacy   = "SourceIP"
	HeaderMinLatencyMs   = "MinLatencyMs"
	HeaderRouteInclude   = "RouteIncludeCsv"
	HeaderRouteExclude   = "RouteExcludeCsv"
	HeaderOrgMustInclude = "HopsMustIncludeOrg"
	HeaderOrgMustExclude = "HopsMustExcludeOrg"
)

// ConstraintError reports a header whose value could not be parsed.
type ConstraintError struct {
	Header string
	Value  string
	Err    error
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("malformed %s header %q: %v", e.Header, e.Value, e.Err)
}

func (e *ConstraintError) Unwrap() error { return e.Err }

// probeRequest is the typed form of the request headers.
type probeRequest struct {
	Host   string
	Source string
	Policy policy.Policy
}

func (p probeRequest) probe() probe.Request {
	return probe.Request{Host: p.Host, Source: p.Source}
}

// parseRequest reads the target and constraints from r. Route and
// organization constraints are only read when withRoute is set.
func parseRequest(r *http.Request, withRoute bool) (probeRequest, error) {
	req := probeRequest{
		Host:   targetHost(r.Host),
		Source: strings.TrimSpace(r.Header.Get(HeaderSource)),
	}
	if req.Source == "" {
		req.Source = strings.TrimSpace(r.Header.Get(HeaderSourceLegacy))
	}

	if raw := strings.TrimSpace(r.Header.Get(HeaderMinLatencyMs)); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err == nil && (math.IsNaN(v) || math.IsInf(v, 0)) {
			err = errors.New("not a finite number")
		}
		if err != nil {
			return probeRequest{}, &ConstraintError{Header: HeaderMinLatencyMs, Value: raw, Err: err}
		}
		req.Policy.MinLatencyMs = &v
	}

	if !withRoute {
		return req, nil
	}

	var err error
	if req.Policy.RouteMustInclude, err = parseNetworksHeader(r, HeaderRouteInclude); err != nil {
		return probeRequest{}, err
	}
	if req.Policy.RouteMustExclude, err = parseNetworksHeader(r, HeaderRouteExclude); err != nil {
		return probeRequest{}, err
	}
	req.Policy.OrgMustInclude = policy.NormalizeOrgs(utils.SplitCSV(r.Header.Get(HeaderOrgMustInclude)))
	req.Policy.OrgMustExclude = policy.NormalizeOrgs(utils.SplitCSV(r.Header.Get(HeaderOrgMustExclude)))
	return req, nil
}

func parseNetworksHeader(r *http.Request, header string) ([]policy.Network, error) {
	raw := r.Header.Get(header)
	networks, err := policy.ParseNetworks(utils.SplitCSV(raw))
	if err != nil {
		return nil, &ConstraintError{Header: header, Value: raw, Err: err}
	}
	return networks, nil
}

// targetHost strips any port and IPv6 brackets from a Host header value.
func targetHost(host string) string {
	host = strings.TrimSpace(host)
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return strings.Trim(host, "[]")
}
