package models

// ProbeResult is the outcome of one ICMP echo run against a single address.
// RTT values are milliseconds, PacketLoss is a fraction between 0 and 1.
type ProbeResult struct {
	Address         string    `json:"host"`
	IsAlive         bool      `json:"is_alive"`
	PacketsSent     int       `json:"packets_sent"`
	PacketsReceived int       `json:"packets_received"`
	MinRTT          float64   `json:"min_rtt"`
	AvgRTT          float64   `json:"avg_rtt"`
	MaxRTT          float64   `json:"max_rtt"`
	Jitter          float64   `json:"jitter"`
	PacketLoss      float64   `json:"packet_loss"`
	RTTs            []float64 `json:"rtts"`
}

// HopResult is one responding router on a traceroute path.
// Organization is empty when no owner information is known for the address.
type HopResult struct {
	Distance int `json:"distance"`
	ProbeResult
	Organization string `json:"organization,omitempty"`
}

// Response is the JSON envelope written for every request.
type Response struct {
	Result     string          `json:"result"`
	Reason     string          `json:"reason,omitempty"`
	Ping       *ProbeResult    `json:"ping,omitempty"`
	Traceroute *TracerouteEcho `json:"traceroute,omitempty"`
}

// TracerouteEcho echoes the measured path back to the caller.
// Host is the address of the deepest hop reached and RTTs holds the
// average round trip of every hop in path order.
type TracerouteEcho struct {
	Host      string      `json:"host"`
	RTTs      []float64   `json:"rtts"`
	Hops      []HopResult `json:"hops"`
	TotalHops int         `json:"total_hops"`
}

const (
	ResultOK    = "OK"
	ResultError = "error"
)
