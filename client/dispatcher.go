package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"sync/atomic"
	"time"

	"github.com/RezaEskandarii/pgqueue/internal/accesskey"
	"github.com/RezaEskandarii/pgqueue/internal/constants"
	"github.com/RezaEskandarii/pgqueue/internal/store"
	"github.com/RezaEskandarii/pgqueue/types"
	"github.com/RezaEskandarii/pgqueue/types/config"
	"github.com/sourcegraph/conc/pool"
)

// Reasons a dispatcher run ended.
const (
	StopNoEndpoints  = "no-endpoints"
	StopDeadline     = "deadline"
	StopMaxLoops     = "max-loops"
	StopInactive     = "inactive"
	StopBackpressure = "backpressure"
	StopCancelled    = "cancelled"
)

type DispatcherOptions struct {
	// RunDuration bounds one run. Zero runs until ctx is cancelled.
	RunDuration       time.Duration
	MaxLoops          int
	ExitAfterInactive time.Duration
	IdleSleep         time.Duration
	ReapEverySeconds  int
	// CallSynchronously waits for each endpoint call before claiming the next job.
	CallSynchronously bool
	MaxInFlight       int
	HTTPClient        *http.Client
	Logger            *slog.Logger
}

// DispatcherOptionsFromConfig maps the process config onto DispatcherOptions.
func DispatcherOptionsFromConfig(cfg config.DispatcherConfig, logger *slog.Logger) DispatcherOptions {
	return DispatcherOptions{
		RunDuration:       cfg.RunDuration,
		MaxLoops:          cfg.MaxLoops,
		ExitAfterInactive: cfg.ExitAfterInactive,
		IdleSleep:         cfg.IdleSleep,
		ReapEverySeconds:  cfg.ReapEverySeconds,
		MaxInFlight:       cfg.MaxInFlight,
		Logger:            logger,
	}
}

type DispatchStats struct {
	Loops      int64
	Claimed    int64
	Dispatched int64
	Failed     int64
	Reaped     int64
	StoppedBy  string
}

type dispatchCounters struct {
	claimed    atomic.Int64
	dispatched atomic.Int64
	failed     atomic.Int64
}

type endpoint struct {
	types.EndpointDetails
	bearer string
}

// Dispatcher claims jobs of endpoint-backed queues and pushes them to their HTTP
// endpoint. Only manual-release endpoints are served: the endpoint releases the
// job, so the Dispatcher never calls ReleaseJob.
type Dispatcher struct {
	jobs     store.JobStore
	configs  store.QueueConfigStore
	registry accesskey.Registry
	opts     DispatcherOptions
}

func NewDispatcher(jobs store.JobStore, configs store.QueueConfigStore, registry accesskey.Registry, opts DispatcherOptions) *Dispatcher {
	if opts.IdleSleep <= 0 {
		opts.IdleSleep = constants.DefaultIdleSleep
	}
	if opts.ReapEverySeconds <= 0 {
		opts.ReapEverySeconds = constants.DefaultReapEverySeconds
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = config.DefaultDispatcherInFlight
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Dispatcher{
		jobs:     jobs,
		configs:  configs,
		registry: registry,
		opts:     opts,
	}
}

// Run reaps once, loads the endpoint queues and dispatches until an exit
// condition holds. In-flight calls are awaited before it returns.
func (d *Dispatcher) Run(ctx context.Context) (DispatchStats, error) {
	var (
		stats    DispatchStats
		counters dispatchCounters
		limited  atomic.Bool
		log      = d.opts.Logger
	)

	reaped, err := d.jobs.CheckAndReleaseTimedOutJobs(ctx)
	if err != nil {
		return stats, err
	}
	stats.Reaped += int64(reaped)

	endpoints, err := d.loadEndpoints(ctx)
	if err != nil {
		return stats, err
	}
	if len(endpoints) == 0 {
		log.Info("no active manual-release endpoints, nothing to dispatch")
		stats.StoppedBy = StopNoEndpoints
		return stats, nil
	}

	names := make([]string, 0, len(endpoints))
	for name := range endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	log.Info("dispatcher started", "queues", names)

	start := time.Now()
	var deadline time.Time
	if d.opts.RunDuration > 0 {
		deadline = start.Add(d.opts.RunDuration)
	}
	startSeconds := int(d.opts.RunDuration.Seconds())
	lastReapSecond := startSeconds
	lastReap := start
	lastActive := start

	calls := pool.New().WithMaxGoroutines(d.opts.MaxInFlight)

	finish := func(reason string) (DispatchStats, error) {
		calls.Wait()
		stats.StoppedBy = reason
		stats.Claimed = counters.claimed.Load()
		stats.Dispatched = counters.dispatched.Load()
		stats.Failed = counters.failed.Load()
		log.Info("dispatcher stopped",
			"reason", reason, "loops", stats.Loops, "claimed", stats.Claimed,
			"dispatched", stats.Dispatched, "failed", stats.Failed, "reaped", stats.Reaped)
		return stats, nil
	}

	for {
		if ctx.Err() != nil {
			return finish(StopCancelled)
		}
		if limited.Load() {
			return finish(StopBackpressure)
		}
		if d.opts.MaxLoops > 0 && stats.Loops >= int64(d.opts.MaxLoops) {
			return finish(StopMaxLoops)
		}
		now := time.Now()
		if !deadline.IsZero() && !now.Before(deadline) {
			return finish(StopDeadline)
		}
		if d.opts.ExitAfterInactive > 0 && now.Sub(lastActive) >= d.opts.ExitAfterInactive {
			return finish(StopInactive)
		}
		stats.Loops++

		// Reap on a cadence of the seconds left, or of elapsed time when unbounded.
		if !deadline.IsZero() {
			remaining := int(deadline.Sub(now).Seconds())
			if remaining > 0 && remaining != lastReapSecond && remaining%d.opts.ReapEverySeconds == 0 {
				lastReapSecond = remaining
				stats.Reaped += int64(d.reap(ctx))
			}
		} else if now.Sub(lastReap) >= time.Duration(d.opts.ReapEverySeconds)*time.Second {
			lastReap = now
			stats.Reaped += int64(d.reap(ctx))
		}

		job, err := d.jobs.PickNextJob(ctx, store.PickFilter{AllowedQueueNames: names})
		if err != nil {
			if ctx.Err() != nil {
				return finish(StopCancelled)
			}
			calls.Wait()
			return stats, fmt.Errorf("dispatcher claim: %w", err)
		}
		if job == nil {
			select {
			case <-ctx.Done():
			case <-time.After(d.opts.IdleSleep):
			}
			continue
		}

		counters.claimed.Add(1)
		lastActive = now

		ep, ok := endpoints[job.QueueName]
		if !ok {
			log.Error("claimed job of a queue without endpoint", "job_id", job.JobID, "queue", job.QueueName)
			continue
		}

		if d.opts.CallSynchronously {
			d.call(ctx, ep, job, &counters, &limited)
			continue
		}
		calls.Go(func() {
			d.call(ctx, ep, job, &counters, &limited)
		})
	}
}

func (d *Dispatcher) reap(ctx context.Context) int {
	n, err := d.jobs.CheckAndReleaseTimedOutJobs(ctx)
	if err != nil {
		d.opts.Logger.Error("failed to release timed out jobs", "error", err)
		return 0
	}
	if n > 0 {
		d.opts.Logger.Info("released timed out jobs", "count", n)
	}
	return n
}

// loadEndpoints returns the active manual-release endpoints keyed by queue name.
// Auto-release endpoints are skipped: the Dispatcher cannot wait for them to finish.
func (d *Dispatcher) loadEndpoints(ctx context.Context) (map[string]endpoint, error) {
	active, manual := true, true
	configs, err := d.configs.List(ctx, store.ListOptions{EndpointActive: &active, ManualRelease: &manual})
	if err != nil {
		return nil, err
	}

	endpoints := make(map[string]endpoint, len(configs))
	for _, cfg := range configs {
		ep := endpoint{EndpointDetails: cfg.EndpointDetails}
		switch cfg.BearerTokenLocation {
		case types.TokenInline:
			ep.bearer = cfg.BearerTokenInlineValue
		case types.TokenVault:
			key, err := NewQueueConfig(d.configs, d.registry, cfg.QueueName).GetEndpointApiKey(ctx)
			if err != nil {
				return nil, fmt.Errorf("load api key of %q: %w", cfg.QueueName, err)
			}
			ep.bearer = key
		}
		endpoints[cfg.QueueName] = ep
	}
	return endpoints, nil
}

func (d *Dispatcher) call(ctx context.Context, ep endpoint, job *types.Job, counters *dispatchCounters, limited *atomic.Bool) {
	log := d.opts.Logger.With("job_id", job.JobID, "queue", job.QueueName)

	req, err := newEndpointRequest(ctx, ep, job)
	if err != nil {
		counters.failed.Add(1)
		log.Error("failed to build endpoint request", "error", err)
		return
	}

	timeout := constants.DefaultEndpointTimeout
	if ep.TimeoutMilliseconds > 0 {
		timeout = time.Duration(ep.TimeoutMilliseconds) * time.Millisecond
	}
	reqCtx, cancel := context.WithTimeout(req.Context(), timeout)
	defer cancel()

	resp, err := d.opts.HTTPClient.Do(req.WithContext(reqCtx))
	if err != nil {
		counters.failed.Add(1)
		log.Warn("endpoint call failed", "error", err)
		return
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		limited.Store(true)
		counters.failed.Add(1)
		log.Warn("endpoint signalled backpressure, stopping")
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		counters.dispatched.Add(1)
	default:
		counters.failed.Add(1)
		log.Warn("endpoint returned error status", "status", resp.StatusCode)
	}
}

// newEndpointRequest encodes the job as the JSON body, or as the body query
// parameter for GET endpoints.
func newEndpointRequest(ctx context.Context, ep endpoint, job *types.Job) (*http.Request, error) {
	body, err := json.Marshal(job)
	if err != nil {
		return nil, err
	}

	var req *http.Request
	switch ep.Method {
	case types.MethodGET:
		u, err := url.Parse(ep.URL)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("body", string(body))
		u.RawQuery = q.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
		if err != nil {
			return nil, err
		}
	default:
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
	}

	if ep.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+ep.bearer)
	}
	return req, nil
}
