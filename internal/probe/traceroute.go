package probe

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sagoresarker/netcheck/internal/models"
)

// Traceroute walks the path to the target with ICMP probes. Only hops that
// answered are returned, in path order.
func (c *Client) Traceroute(ctx context.Context, req Request) ([]models.HopResult, error) {
	address, err := c.resolveTarget(ctx, req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.TracerouteTimeout)
	defer cancel()

	args := []string{
		"-I", "-n",
		"-q", strconv.Itoa(c.opts.TracerouteQueries),
		"-m", strconv.Itoa(c.opts.MaxHops),
		"-w", seconds(c.opts.HopWait),
	}
	if req.Source != "" {
		args = append(args, "-s", req.Source)
	}
	args = append(args, address)

	output, err := c.run(ctx, c.opts.TracerouteBinary, args...)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("%w: traceroute timed out after %s", ErrProbeFailed, c.opts.TracerouteTimeout)
		}
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil, fmt.Errorf("%w: %v", ErrProbeFailed, ctx.Err())
		}
		return nil, fmt.Errorf("%w: running traceroute: %v", ErrProbeFailed, err)
	}

	return parseTracerouteOutput(string(output)), nil
}

// parseTracerouteOutput reads numeric (-n) traceroute output. Each hop line
// looks like " 3  10.0.0.1  5.104 ms * 5.301 ms"; lost probes print "*" and
// annotations such as "!H" are ignored. A hop is attributed to the first
// address that answered on its line.
func parseTracerouteOutput(output string) []models.HopResult {
	var hops []models.HopResult

	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		distance, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		var (
			address string
			rtts    []float64
			lost    int
		)
		for i := 1; i < len(fields); i++ {
			field := fields[i]
			if field == "*" {
				lost++
				continue
			}
			if ip := net.ParseIP(strings.Trim(field, "()")); ip != nil {
				if address == "" {
					address = ip.String()
				}
				continue
			}
			rtt, err := strconv.ParseFloat(strings.TrimSuffix(field, "ms"), 64)
			if err != nil {
				continue
			}
			if strings.HasSuffix(field, "ms") || (i+1 < len(fields) && fields[i+1] == "ms") {
				rtts = append(rtts, rtt)
			}
		}

		if address == "" {
			continue
		}
		hops = append(hops, models.HopResult{
			Distance:    distance,
			ProbeResult: summarize(address, len(rtts)+lost, rtts),
		})
	}

	return hops
}
