package probe

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/sagoresarker/netcheck/internal/models"
)

var (
	pingReplyRegex   = regexp.MustCompile(`time[=<]([0-9]+(?:\.[0-9]+)?) ?ms`)
	pingSummaryRegex = regexp.MustCompile(`(\d+) packets transmitted, (\d+) (?:packets )?received`)
)

// Ping sends a short burst of echo requests to the target. A target that
// answers nothing is not an error: the result simply reports IsAlive=false.
func (c *Client) Ping(ctx context.Context, req Request) (models.ProbeResult, error) {
	address, err := c.resolveTarget(ctx, req)
	if err != nil {
		return models.ProbeResult{}, err
	}

	budget := time.Duration(c.opts.PingCount)*c.opts.PingInterval + c.opts.PingWait + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	args := []string{
		"-n",
		"-c", strconv.Itoa(c.opts.PingCount),
		"-i", strconv.FormatFloat(c.opts.PingInterval.Seconds(), 'f', -1, 64),
		"-W", seconds(c.opts.PingWait),
	}
	if req.Source != "" {
		args = append(args, "-I", req.Source)
	}
	args = append(args, address)

	output, runErr := c.run(ctx, c.opts.PingBinary, args...)
	if ctx.Err() == context.DeadlineExceeded {
		return models.ProbeResult{}, fmt.Errorf("%w: ping timed out after %s", ErrProbeFailed, budget)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return models.ProbeResult{}, fmt.Errorf("%w: %v", ErrProbeFailed, ctx.Err())
	}

	result, ok := parsePingOutput(string(output), address, c.opts.PingCount)
	if !ok {
		if runErr != nil {
			return models.ProbeResult{}, fmt.Errorf("%w: %v", ErrProbeFailed, runErr)
		}
		return models.ProbeResult{}, fmt.Errorf("%w: unrecognised ping output", ErrProbeFailed)
	}
	// ping exits non-zero when nothing answered; the summary still tells us that.
	return result, nil
}

// parsePingOutput extracts round trips from iputils/busybox ping output.
// ok is false when the output carries neither replies nor a summary line.
func parsePingOutput(output, address string, count int) (models.ProbeResult, bool) {
	var rtts []float64
	sent := -1

	for _, line := range strings.Split(output, "\n") {
		if m := pingSummaryRegex.FindStringSubmatch(line); m != nil {
			sent, _ = strconv.Atoi(m[1])
			continue
		}
		if !strings.Contains(line, "bytes from") {
			continue
		}
		m := pingReplyRegex.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		rtt, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		rtts = append(rtts, rtt)
	}

	if sent < 0 && len(rtts) == 0 {
		return models.ProbeResult{}, false
	}
	if sent < 0 {
		sent = count
	}
	return summarize(address, sent, rtts), true
}
