package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/sagoresarker/netcheck/internal/limiter"
	"github.com/sagoresarker/netcheck/internal/models"
	"github.com/sagoresarker/netcheck/internal/orgs"
	"github.com/sagoresarker/netcheck/internal/policy"
	"github.com/sagoresarker/netcheck/internal/probe"
)

// Prober runs the network probes behind the endpoints.
type Prober interface {
	Ping(ctx context.Context, req probe.Request) (models.ProbeResult, error)
	Traceroute(ctx context.Context, req probe.Request) ([]models.HopResult, error)
}

// Deps are the collaborators shared by the handlers. None of them hold
// per-request state.
type Deps struct {
	Prober         Prober
	Resolver       orgs.Resolver
	Limiter        *limiter.ProbeLimiter
	Tracer         trace.Tracer
	Logger         *log.Logger
	OrgParallelism int
	// RequestTimeout bounds the work behind one request: waiting for a
	// probe slot, the probe itself and organization lookups. It must be
	// shorter than the server's write timeout.
	RequestTimeout time.Duration
}

const DefaultRequestTimeout = 40 * time.Second

func (d Deps) withDefaults() Deps {
	if d.Resolver == nil {
		d.Resolver = orgs.Nop{}
	}
	if d.Limiter == nil {
		d.Limiter = limiter.NewProbeLimiter(4)
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if d.Logger == nil {
		d.Logger = log.Default()
	}
	if d.OrgParallelism <= 0 {
		d.OrgParallelism = 4
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = DefaultRequestTimeout
	}
	return d
}

// NewMux registers every endpoint on a fresh mux and wraps it with the
// request log and panic recovery.
func NewMux(deps Deps) http.Handler {
	deps = deps.withDefaults()
	ping := NewPingHandler(deps)
	traceroute := NewTracerouteHandler(deps)
	fallback := NewDefaultHandler(deps.Logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ping", EnableCORS(ping.Handle))
	mux.HandleFunc("/traceroute", EnableCORS(traceroute.Handle))
	mux.HandleFunc("/", fallback.Handle)

	return WithRecovery(WithRequestLog(mux, deps.Logger), deps.Logger)
}

// DefaultHandler answers every path nobody else claims.
type DefaultHandler struct {
	logger *log.Logger
}

func NewDefaultHandler(logger *log.Logger) *DefaultHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &DefaultHandler{logger: logger}
}

func (h *DefaultHandler) Handle(w http.ResponseWriter, r *http.Request) {
	h.logger.Printf("WARNING: No handler for %s %s, answering OK.", r.Method, r.URL.Path)
	writeJSON(w, http.StatusOK, models.Response{Result: models.ResultOK})
}

// requireGet rejects anything but GET with a JSON error.
func requireGet(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodGet {
		return true
	}
	writeJSON(w, http.StatusMethodNotAllowed, models.Response{
		Result: models.ResultError,
		Reason: "Method not allowed",
	})
	return false
}

// writeVerdict sends 200 with the measurement echo when the verdict passed
// and 500 with the reason otherwise.
func writeVerdict(w http.ResponseWriter, v policy.Verdict, echo models.Response) {
	if v.OK {
		echo.Result = models.ResultOK
		echo.Reason = ""
		writeJSON(w, http.StatusOK, echo)
		return
	}
	writeError(w, v.Reason)
}

// failureReason reports err, or that the request ran out of time when ctx
// hit its deadline.
func failureReason(ctx context.Context, what string, budget time.Duration, err error) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Sprintf("%s did not finish within %s", what, budget)
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, reason string) {
	if reason == "" {
		reason = "unknown error"
	}
	writeJSON(w, http.StatusInternalServerError, models.Response{
		Result: models.ResultError,
		Reason: reason,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body, _ = json.Marshal(models.Response{Result: models.ResultError, Reason: err.Error()})
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
