package handlers

import (
	"fmt"
	"log"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/sagoresarker/netcheck/internal/utils"
)

var corsAllowHeaders = strings.Join([]string{
	"Content-Type",
	HeaderSource,
	HeaderSourceLegacy,
	HeaderMinLatencyMs,
	HeaderRouteInclude,
	HeaderRouteExclude,
	HeaderOrgMustInclude,
	HeaderOrgMustExclude,
}, ", ")

func EnableCORS(handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)

		if r.Method == http.MethodOptions {
			writeJSON(w, http.StatusOK, map[string]string{"result": "OK"})
			return
		}

		handler(w, r)
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wroteHeader = true
	return s.ResponseWriter.Write(b)
}

// WithRequestLog logs each request with its header names on the way in and
// its status and duration on the way out.
func WithRequestLog(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		logger.Printf("%s %s - headers %v from %s", r.Method, r.URL.Path, utils.HeaderNames(r.Header), utils.GetClientIP(r))
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Printf("%s %s %d %dms", r.Method, r.URL.Path, rec.status, time.Since(start).Milliseconds())
	})
}

// WithRecovery turns a panicking handler into a 500 error envelope so one
// bad request never takes the server down. A response that already started
// is left as it is.
func WithRecovery(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				logger.Printf("ERROR: Issue processing %s %s: %v\n%s", r.Method, r.URL.Path, rec, debug.Stack())
				if sw.wroteHeader {
					logger.Printf("ERROR: %s %s already answered %d, leaving the response as sent.", r.Method, r.URL.Path, sw.status)
					return
				}
				writeError(w, fmt.Sprint(rec))
			}
		}()
		next.ServeHTTP(sw, r)
	})
}
