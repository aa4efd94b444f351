package probe

import (
	"math"

	"github.com/sagoresarker/netcheck/internal/models"
)

// summarize fills in the statistics for a run that sent `sent` packets and
// received the given round trips, in arrival order.
func summarize(address string, sent int, rtts []float64) models.ProbeResult {
	result := models.ProbeResult{
		Address:         address,
		PacketsSent:     sent,
		PacketsReceived: len(rtts),
		RTTs:            rtts,
		PacketLoss:      1,
	}
	if result.RTTs == nil {
		result.RTTs = []float64{}
	}
	if sent > 0 {
		result.PacketLoss = 1 - float64(len(rtts))/float64(sent)
		if result.PacketLoss < 0 {
			result.PacketLoss = 0
		}
	}
	if len(rtts) == 0 {
		return result
	}

	result.IsAlive = true
	result.MinRTT = math.Inf(1)
	var sum float64
	for _, rtt := range rtts {
		sum += rtt
		result.MinRTT = math.Min(result.MinRTT, rtt)
		result.MaxRTT = math.Max(result.MaxRTT, rtt)
	}
	result.AvgRTT = round3(sum / float64(len(rtts)))

	if len(rtts) > 1 {
		var diffs float64
		for i := 1; i < len(rtts); i++ {
			diffs += math.Abs(rtts[i] - rtts[i-1])
		}
		result.Jitter = round3(diffs / float64(len(rtts)-1))
	}
	return result
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
