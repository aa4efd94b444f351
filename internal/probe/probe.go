// Package probe runs ICMP echo and traceroute probes by driving the system
// ping and traceroute binaries and parsing what they print.
package probe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os/exec"
	"regexp"
	"strings"
	"time"
)

var (
	ErrInvalidTarget = errors.New("invalid target")
	ErrNameLookup    = errors.New("name lookup failed")
	ErrProbeFailed   = errors.New("probe failed")
)

var hostnameRegex = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*\.?$`)

// Request names the target of a probe and, optionally, the local address to
// send from.
type Request struct {
	Host   string
	Source string
}

// Options tunes how probes are run.
type Options struct {
	PingBinary        string
	PingCount         int
	PingInterval      time.Duration
	PingWait          time.Duration
	TracerouteBinary  string
	TracerouteQueries int
	MaxHops           int
	HopWait           time.Duration
	TracerouteTimeout time.Duration
}

// DefaultOptions mirrors the classic three-packet, one-second-interval ping
// and a single-query ICMP traceroute.
func DefaultOptions() Options {
	return Options{
		PingBinary:        "ping",
		PingCount:         3,
		PingInterval:      time.Second,
		PingWait:          2 * time.Second,
		TracerouteBinary:  "traceroute",
		TracerouteQueries: 1,
		MaxHops:           30,
		HopWait:           2 * time.Second,
		TracerouteTimeout: 30 * time.Second,
	}
}

// Runner executes a command and returns its standard output.
type Runner func(ctx context.Context, name string, args ...string) ([]byte, error)

// Client runs probes. It holds no per-request state and is safe for
// concurrent use.
type Client struct {
	opts   Options
	run    Runner
	lookup func(ctx context.Context, host string) ([]net.IPAddr, error)
}

func NewClient(opts Options) *Client {
	defaults := DefaultOptions()
	if opts.PingBinary == "" {
		opts.PingBinary = defaults.PingBinary
	}
	if opts.PingCount <= 0 {
		opts.PingCount = defaults.PingCount
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaults.PingInterval
	}
	if opts.PingWait <= 0 {
		opts.PingWait = defaults.PingWait
	}
	if opts.TracerouteBinary == "" {
		opts.TracerouteBinary = defaults.TracerouteBinary
	}
	if opts.TracerouteQueries <= 0 {
		opts.TracerouteQueries = defaults.TracerouteQueries
	}
	if opts.MaxHops <= 0 {
		opts.MaxHops = defaults.MaxHops
	}
	if opts.HopWait <= 0 {
		opts.HopWait = defaults.HopWait
	}
	if opts.TracerouteTimeout <= 0 {
		opts.TracerouteTimeout = defaults.TracerouteTimeout
	}
	return &Client{
		opts:   opts,
		run:    execRunner,
		lookup: net.DefaultResolver.LookupIPAddr,
	}
}

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	output, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return output, fmt.Errorf("%w: %s", err, msg)
		}
		return output, err
	}
	return output, nil
}

// resolveTarget validates the request and resolves the target to a single
// address, preferring the address family of the source when one is given.
func (c *Client) resolveTarget(ctx context.Context, req Request) (string, error) {
	host := strings.TrimSpace(req.Host)
	if host == "" {
		return "", fmt.Errorf("%w: no target host given", ErrInvalidTarget)
	}

	var source net.IP
	if req.Source != "" {
		source = net.ParseIP(req.Source)
		if source == nil {
			return "", fmt.Errorf("%w: source %q is not an IP address", ErrInvalidTarget, req.Source)
		}
	}

	if ip := net.ParseIP(host); ip != nil {
		return ip.String(), nil
	}
	if !hostnameRegex.MatchString(host) {
		return "", fmt.Errorf("%w: invalid host name %q", ErrInvalidTarget, host)
	}

	addrs, err := c.lookup(ctx, host)
	if err != nil {
		return "", fmt.Errorf("%w: cannot resolve %q: %v", ErrNameLookup, host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: no addresses for %q", ErrNameLookup, host)
	}

	wantV4 := source == nil || source.To4() != nil
	for _, a := range addrs {
		if (a.IP.To4() != nil) == wantV4 {
			return a.IP.String(), nil
		}
	}
	return addrs[0].IP.String(), nil
}

func seconds(d time.Duration) string {
	s := int(d.Round(time.Second) / time.Second)
	if s < 1 {
		s = 1
	}
	return fmt.Sprint(s)
}
