package balancer

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/guttosm/resilience-layer/internal/apperrors"
	"github.com/guttosm/resilience-layer/internal/logger"
)

// Prober checks whether a target is alive.
type Prober interface {
	Probe(ctx context.Context, target TargetRef) error
}

// ProberFunc adapts a function to Prober.
type ProberFunc func(ctx context.Context, target TargetRef) error

// Probe calls f.
func (f ProberFunc) Probe(ctx context.Context, target TargetRef) error {
	return f(ctx, target)
}

// HTTPProber sends GET <address><path> and treats any status below 400 as alive.
type HTTPProber struct {
	client *http.Client
	path   string
}

// NewHTTPProber creates an HTTP prober. A nil client uses http.DefaultClient.
func NewHTTPProber(client *http.Client, path string) *HTTPProber {
	if client == nil {
		client = http.DefaultClient
	}
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return &HTTPProber{client: client, path: path}
}

// Probe implements Prober.
func (p *HTTPProber) Probe(ctx context.Context, target TargetRef) error {
	url := strings.TrimRight(target.Address, "/") + p.path
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("health probe returned %d", resp.StatusCode)
	}
	return nil
}

// Start launches the background probe loop. It is a no-op when the probe
// interval is zero or Start has already been called.
func (r *Router) Start(ctx context.Context) {
	if r.cfg.ProbeInterval <= 0 {
		return
	}

	r.probeMu.Lock()
	defer r.probeMu.Unlock()
	if r.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel

	r.wg.Add(1)
	go r.probeLoop(ctx)

	log := logger.Component("balancer")
	log.Info().
		Int("targets", len(r.targets)).
		Dur("interval", r.cfg.ProbeInterval).
		Dur("timeout", r.cfg.ProbeTimeout).
		Msg("Health probe loop started")
}

// Stop ends the probe loop, cancels in-flight probes and waits for them.
func (r *Router) Stop() {
	r.probeMu.Lock()
	cancel := r.cancel
	r.probeMu.Unlock()

	if cancel != nil {
		cancel()
	}
	r.wg.Wait()
}

func (r *Router) probeLoop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.ProbeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.ProbeAll(ctx)
		}
	}
}

// ProbeAll probes every target concurrently and records each result as an
// outcome. It returns once every probe has finished or timed out.
func (r *Router) ProbeAll(ctx context.Context) {
	g, ctx := errgroup.WithContext(ctx)
	for _, t := range r.targets {
		ref := TargetRef{ID: t.cfg.ID, Address: t.cfg.Address}
		g.Go(func() error {
			r.probeOne(ctx, ref)
			return nil
		})
	}
	_ = g.Wait()
}

func (r *Router) probeOne(ctx context.Context, ref TargetRef) {
	if ctx.Err() != nil {
		return
	}

	probeCtx := ctx
	if r.cfg.ProbeTimeout > 0 {
		var cancel context.CancelFunc
		probeCtx, cancel = context.WithTimeout(ctx, r.cfg.ProbeTimeout)
		defer cancel()
	}

	start := r.now()
	err := r.prober.Probe(probeCtx, ref)
	elapsed := r.now().Sub(start).Milliseconds()

	// Shutdown is not a target failure.
	if ctx.Err() != nil {
		return
	}

	if err != nil {
		log := logger.Component("balancer")
		log.Debug().
			Err(&apperrors.BackendError{TargetID: ref.ID, Err: err}).
			Int64("latency_ms", elapsed).
			Msg("Health probe failed")
	}
	_ = r.RecordOutcome(ref.ID, elapsed, err == nil)
}
