package handlers

import (
	"context"
	"log"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/sagoresarker/netcheck/internal/cache"
	"github.com/sagoresarker/netcheck/internal/limiter"
	"github.com/sagoresarker/netcheck/internal/models"
	"github.com/sagoresarker/netcheck/internal/orgs"
	"github.com/sagoresarker/netcheck/internal/policy"
)

type TracerouteHandler struct {
	prober         Prober
	resolver       orgs.Resolver
	limiter        *limiter.ProbeLimiter
	tracer         trace.Tracer
	logger         *log.Logger
	orgParallelism int
	timeout        time.Duration
}

func NewTracerouteHandler(deps Deps) *TracerouteHandler {
	deps = deps.withDefaults()
	return &TracerouteHandler{
		prober:         deps.Prober,
		resolver:       deps.Resolver,
		limiter:        deps.Limiter,
		tracer:         deps.Tracer,
		logger:         deps.Logger,
		orgParallelism: deps.OrgParallelism,
		timeout:        deps.RequestTimeout,
	}
}

func (h *TracerouteHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !requireGet(w, r) {
		return
	}

	req, err := parseRequest(r, true)
	if err != nil {
		h.logger.Printf("ERROR: %v", err)
		writeError(w, err.Error())
		return
	}
	h.logger.Printf("Traceroute to %s.", req.Host)

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	ctx, span := h.tracer.Start(ctx, "probe.traceroute",
		trace.WithAttributes(attribute.String("probe.target", req.Host), attribute.String("probe.source", req.Source)))
	defer span.End()

	what := "traceroute to " + req.Host
	release, err := h.limiter.Acquire(ctx)
	if err != nil {
		h.logger.Printf("ERROR: Traceroute to %s never started: %v", req.Host, err)
		writeError(w, failureReason(ctx, what, h.timeout, err))
		return
	}
	hops, err := h.prober.Traceroute(ctx, req.probe())
	release()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		h.logger.Printf("ERROR: Traceroute to %s failed: %v", req.Host, err)
		writeError(w, failureReason(ctx, what, h.timeout, err))
		return
	}
	span.SetAttributes(attribute.Int("traceroute.hops", len(hops)))

	hops = h.resolveOrganizations(ctx, hops)
	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		h.logger.Printf("ERROR: Organization lookups for %s cut short: %v", req.Host, err)
		writeError(w, failureReason(ctx, what, h.timeout, err))
		return
	}
	for _, hop := range hops {
		h.logger.Printf("%d %s (%s) min %vms avg %vms max %vms loss %v%%",
			hop.Distance, hop.Address, hop.Organization, hop.MinRTT, hop.AvgRTT, hop.MaxRTT, hop.PacketLoss*100)
	}

	verdict := policy.EvaluateTraceroute(hops, req.Policy)
	logVerdict(h.logger, r.URL.Path, verdict)
	writeVerdict(w, verdict, models.Response{Traceroute: tracerouteEcho(hops)})
}

// resolveOrganizations looks up the owner of every hop, a few at a time.
// Lookup failures leave the hop without an organization; they never fail
// the request. Once ctx is done the remaining hops are skipped. The input
// slice is not modified.
func (h *TracerouteHandler) resolveOrganizations(ctx context.Context, hops []models.HopResult) []models.HopResult {
	annotated := make([]models.HopResult, len(hops))
	copy(annotated, hops)

	orgCache := cache.NewOrgCache(h.resolver)
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(h.orgParallelism)

	for i := range annotated {
		i := i
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			lookupCtx, span := h.tracer.Start(gCtx, "orgs.lookup",
				trace.WithAttributes(attribute.String("hop.address", annotated[i].Address)))
			defer span.End()

			org, err := orgCache.Organization(lookupCtx, annotated[i].Address)
			if err != nil {
				span.RecordError(err)
				if gCtx.Err() != nil {
					return gCtx.Err()
				}
				h.logger.Printf("WARNING: No organization for hop %s: %v", annotated[i].Address, err)
				return nil
			}
			span.SetAttributes(attribute.String("hop.organization", org))
			annotated[i].Organization = org
			return nil
		})
	}
	_ = g.Wait()

	return annotated
}

func tracerouteEcho(hops []models.HopResult) *models.TracerouteEcho {
	echo := &models.TracerouteEcho{
		RTTs:      make([]float64, 0, len(hops)),
		Hops:      hops,
		TotalHops: len(hops),
	}
	if echo.Hops == nil {
		echo.Hops = []models.HopResult{}
	}
	for _, hop := range hops {
		echo.RTTs = append(echo.RTTs, hop.AvgRTT)
	}
	if len(hops) > 0 {
		echo.Host = hops[len(hops)-1].Address
	}
	return echo
}
