package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// Options configures the HTTP listener.
type Options struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	Logger          *log.Logger
}

// Runtime owns the HTTP server for the life of the process. Shutdown is
// driven by the context handed to Serve, so nothing outside needs a handle
// on the server.
type Runtime struct {
	http   *http.Server
	logger *log.Logger
	opts   Options
}

func New(handler http.Handler, opts Options) *Runtime {
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 10 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 45 * time.Second
	}
	if opts.ShutdownTimeout == 0 {
		opts.ShutdownTimeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}

	return &Runtime{
		logger: opts.Logger,
		opts:   opts,
		http: &http.Server{
			Addr:         opts.Addr,
			Handler:      handler,
			ReadTimeout:  opts.ReadTimeout,
			WriteTimeout: opts.WriteTimeout,
			ErrorLog:     opts.Logger,
			BaseContext: func(net.Listener) context.Context {
				// In-flight requests must outlive the shutdown signal.
				return context.Background()
			},
		},
	}
}

// ListenAndServe binds the configured address and serves until ctx is done.
func (rt *Runtime) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", rt.opts.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", rt.opts.Addr, err)
	}
	return rt.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then stops accepting
// and waits up to ShutdownTimeout for in-flight requests to finish.
func (rt *Runtime) Serve(ctx context.Context, ln net.Listener) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		rt.logger.Printf("Listening on %s.", ln.Addr())
		if err := rt.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		rt.logger.Printf("Shutting down, draining in-flight requests (up to %s).", rt.opts.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), rt.opts.ShutdownTimeout)
		defer cancel()
		if err := rt.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}
