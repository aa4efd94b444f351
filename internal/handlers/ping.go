package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/sagoresarker/netcheck/internal/limiter"
	"github.com/sagoresarker/netcheck/internal/models"
	"github.com/sagoresarker/netcheck/internal/policy"
)

type PingHandler struct {
	prober  Prober
	limiter *limiter.ProbeLimiter
	tracer  trace.Tracer
	logger  *log.Logger
	timeout time.Duration
}

func NewPingHandler(deps Deps) *PingHandler {
	deps = deps.withDefaults()
	return &PingHandler{
		prober:  deps.Prober,
		limiter: deps.Limiter,
		tracer:  deps.Tracer,
		logger:  deps.Logger,
		timeout: deps.RequestTimeout,
	}
}

func (h *PingHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	req, err := parseRequest(r, false)
	if err != nil {
		h.logger.Printf("ERROR: %v", err)
		writeError(w, err.Error())
		return
	}
	if req.Source != "" {
		h.logger.Printf("Ping %s from %s...", req.Host, req.Source)
	} else {
		h.logger.Printf("WARNING: Ping %s without source address...", req.Host)
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ctx, span := h.tracer.Start(ctx, "probe.ping",
		trace.WithAttributes(attribute.String("probe.target", req.Host), attribute.String("probe.source", req.Source)))
	defer span.End()

	release, err := h.limiter.Acquire(ctx)
	if err != nil {
		h.logger.Printf("ERROR: Ping %s never started: %v", req.Host, err)
		writeError(w, failureReason(ctx, "ping to "+req.Host, h.timeout, err))
		return
	}
	result, err := h.prober.Ping(ctx, req.probe())
	release()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Printf("ERROR: Ping %s failed: %v", req.Host, err)
		writeError(w, failureReason(ctx, "ping to "+req.Host, h.timeout, err))
		return
	}

	h.logger.Printf("%s (%s) is alive? %v with round-trips of %d packets (min: %v, avg: %v, max: %v, jitter: %v) and loss %v%%.",
		req.Host, result.Address, result.IsAlive, result.PacketsSent,
		result.MinRTT, result.AvgRTT, result.MaxRTT, result.Jitter, result.PacketLoss*100)

	verdict := policy.EvaluatePing(result, req.Policy)
	logVerdict(h.logger, r.URL.Path, verdict)
	writeVerdict(w, verdict, models.Response{Ping: &result})
}

// logVerdict writes advisories as warnings and the outcome as one line.
func logVerdict(logger *log.Logger, path string, v policy.Verdict) {
	for _, a := range v.Advisories {
		logger.Printf("WARNING: %s", a)
	}
	if v.OK {
		logger.Printf("%s passed.", path)
		return
	}
	logger.Printf("%s failed: %s", path, v.Reason)
}
