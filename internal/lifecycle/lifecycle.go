package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/jrsteele09/go-shh/internal/metrics"
	"github.com/rs/zerolog/log"
)

// Coordinator owns readiness and graceful shutdown of the HTTP listener. On
// shutdown it reports not ready, waits for load balancers to notice, then
// drains in-flight requests for at most the wait period.
type Coordinator struct {
	sleep    time.Duration
	wait     time.Duration
	ready    atomic.Bool
	inFlight atomic.Int64
}

func New(sleep, wait time.Duration) *Coordinator {
	return &Coordinator{
		sleep: sleep,
		wait:  wait,
	}
}

// Ready reports whether the process should receive traffic.
func (c *Coordinator) Ready() bool {
	return c.ready.Load()
}

func (c *Coordinator) MarkReady() {
	c.ready.Store(true)
}

// InFlight returns the number of requests currently being served.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// Track is middleware counting in-flight requests.
func (c *Coordinator) Track(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c.inFlight.Add(1)
		metrics.HTTPInflightRequests.Inc()
		defer func() {
			c.inFlight.Add(-1)
			metrics.HTTPInflightRequests.Dec()
		}()
		next(w, r)
	}
}

// Serve runs server on listener until ctx is cancelled, then shuts it down
// gracefully.
func (c *Coordinator) Serve(ctx context.Context, server *http.Server, listener net.Listener) error {
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", listener.Addr().String()).Msg("Server listening")
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- fmt.Errorf("[lifecycle Serve] server.Serve: %w", err)
		}
		close(serveErr)
	}()
	c.MarkReady()

	select {
	case err := <-serveErr:
		c.ready.Store(false)
		return err
	case <-ctx.Done():
	}

	if err := c.Shutdown(server); err != nil {
		return err
	}
	return <-serveErr
}

// Shutdown marks the process not ready, sleeps, then shuts server down,
// abandoning requests still running after the wait period.
func (c *Coordinator) Shutdown(server *http.Server) error {
	c.ready.Store(false)
	log.Info().Dur("sleep", c.sleep).Int64("in_flight", c.InFlight()).Msg("Shutting down: no longer ready")
	time.Sleep(c.sleep)

	ctx, cancel := context.WithTimeout(context.Background(), c.wait)
	defer cancel()

	log.Info().Dur("wait", c.wait).Int64("in_flight", c.InFlight()).Msg("Shutting down: draining requests")
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Int64("in_flight", c.InFlight()).Msg("Shutdown wait elapsed with requests in flight")
		return fmt.Errorf("[lifecycle Shutdown] server.Shutdown: %w", err)
	}
	log.Info().Msg("Server stopped")
	return nil
}
