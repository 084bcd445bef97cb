// Package scan orchestrates a full injection run: it drains a composer's
// request stream through a bounded worker pool, applies per-request
// deadlines, verifies every response, and aggregates findings through a
// single collector goroutine.
package scan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/injectest/injectest/pkg/dispatch"
	"github.com/injectest/injectest/pkg/finding"
	"github.com/injectest/injectest/pkg/inject"
	"github.com/injectest/injectest/pkg/metrics"
	"github.com/injectest/injectest/pkg/request"
	"github.com/injectest/injectest/pkg/verify"
)

// State is the session lifecycle phase.
type State int

const (
	// Built means the session is validated but has not run.
	Built State = iota

	// Running means Run is in progress.
	Running

	// Completed means the stream, budget, or scan deadline was exhausted.
	Completed

	// Cancelled means the caller's context stopped the scan early.
	Cancelled
)

func (s State) String() string {
	switch s {
	case Built:
		return "built"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	}
	return "unknown"
}

// Config holds scan options. RequestTimeout is mandatory; everything
// else has a usable zero value.
type Config struct {
	// Concurrency is the worker count (min 1). At 1 the report order is
	// deterministic for a fixed generator seed.
	Concurrency int

	// RequestTimeout bounds each individual request. Required.
	RequestTimeout time.Duration

	// Deadline optionally bounds the whole scan. Once elapsed no new
	// requests are issued; in-flight ones finish under RequestTimeout.
	// Zero means no limit.
	Deadline time.Duration

	// Budget optionally caps total attempts. Zero means no limit.
	// Exhausting the budget completes the scan, it is not an error.
	Budget int

	// RateLimit optionally caps requests per second. Zero means no limit.
	RateLimit float64

	// Policy selects first-match or all-matches verification.
	Policy verify.Policy

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics defaults to a fresh collector.
	Metrics *metrics.Collector
}

// Session is one configured scan. Sessions are single-use: Build it, Run
// it once, read the report.
type Session struct {
	cfg        Config
	composer   *inject.Composer
	dispatcher dispatch.Dispatcher
	preds      []verify.Predicate
	target     string

	mu     sync.Mutex
	state  State
	report *finding.Report
}

// New validates the configuration and builds a session in the Built
// state. Missing per-request timeout, a nil dispatcher, or no predicates
// are configuration errors.
func New(composer *inject.Composer, dispatcher dispatch.Dispatcher, preds []verify.Predicate, cfg Config) (*Session, error) {
	if composer == nil {
		return nil, fmt.Errorf("%w: session needs a composer", request.ErrConfiguration)
	}
	if dispatcher == nil {
		return nil, fmt.Errorf("%w: session needs a dispatcher", request.ErrConfiguration)
	}
	if len(preds) == 0 {
		return nil, fmt.Errorf("%w: session needs at least one predicate", request.ErrConfiguration)
	}
	if cfg.RequestTimeout <= 0 {
		return nil, fmt.Errorf("%w: per-request timeout is required", request.ErrConfiguration)
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewCollector()
	}
	return &Session{
		cfg:        cfg,
		composer:   composer,
		dispatcher: dispatcher,
		preds:      preds,
		target:     composer.Template().URL(),
		state:      Built,
	}, nil
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Report returns the report collected so far. Safe to call after Run
// returns, including after cancellation.
func (s *Session) Report() *finding.Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.report
}

func (s *Session) setState(st State) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
}

// attempt is what one worker hands the collector.
type attempt struct {
	findings     []*finding.Finding
	inconclusive *finding.Inconclusive
}

// Run executes the scan. It returns the report on normal completion and
// on cancellation; only configuration and generation errors abort it.
// Run may be called once.
func (s *Session) Run(ctx context.Context) (*finding.Report, error) {
	s.mu.Lock()
	if s.state != Built {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: session already ran (state %s)", request.ErrConfiguration, s.state)
	}
	s.state = Running
	report := finding.NewReport(s.target)
	report.StartTime = time.Now().UTC()
	s.report = report
	s.mu.Unlock()

	log := s.cfg.Logger
	start := time.Now()

	stream, err := s.composer.Requests()
	if err != nil {
		s.setState(Completed)
		return nil, err
	}

	scanCtx := ctx
	var cancel context.CancelFunc
	if s.cfg.Deadline > 0 {
		scanCtx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	var limiter *rate.Limiter
	if s.cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.cfg.RateLimit), 1)
	}

	results := make(chan attempt)
	var collectorWG sync.WaitGroup
	collectorWG.Add(1)
	go func() {
		// Single writer: findings append in completion order, no
		// locking around the report lists.
		defer collectorWG.Done()
		for a := range results {
			report.Attempts++
			if a.inconclusive != nil {
				report.AddInconclusive(*a.inconclusive)
				s.cfg.Metrics.IncInconclusive(a.inconclusive.Reason)
				continue
			}
			for _, f := range a.findings {
				report.Add(f)
				s.cfg.Metrics.IncFinding(f.Detector, f.Severity.String())
			}
		}
	}()

	sem := make(chan struct{}, s.cfg.Concurrency)
	var workerWG sync.WaitGroup

	var runErr error
	attempts := 0
dispatchLoop:
	for {
		if s.cfg.Budget > 0 && attempts >= s.cfg.Budget {
			log.Info("payload budget exhausted", slog.Int("attempts", attempts))
			break
		}
		// Cancellation checkpoint: stop issuing new requests, keep what
		// was collected.
		select {
		case <-scanCtx.Done():
			break dispatchLoop
		default:
		}

		bound, ok, err := stream.Next()
		if err != nil {
			runErr = err
			break
		}
		if !ok {
			break
		}

		if limiter != nil {
			if err := limiter.Wait(scanCtx); err != nil {
				break
			}
		}

		// Waiting for a worker slot is still issuing: a payload pending
		// here is abandoned once the deadline passes.
		select {
		case sem <- struct{}{}:
		case <-scanCtx.Done():
			break dispatchLoop
		}
		attempts++
		workerWG.Add(1)
		go func(b inject.Bound) {
			defer workerWG.Done()
			defer func() { <-sem }()
			// The scan deadline only gates issuing; in-flight requests
			// run under the caller's context plus their own timeout.
			results <- s.runOne(ctx, b)
		}(bound)
	}

	workerWG.Wait()
	close(results)
	collectorWG.Wait()

	report.Duration = time.Since(start)
	s.cfg.Metrics.SetScanDuration(report.Duration)

	final := Completed
	if ctx.Err() != nil {
		// The caller's context, not the internal scan deadline.
		final = Cancelled
	}
	s.setState(final)

	log.Info("scan finished",
		slog.String("state", final.String()),
		slog.Int("attempts", report.Attempts),
		slog.Int("findings", len(report.Findings)),
		slog.Int("inconclusive", len(report.Inconclusive)),
		slog.Duration("duration", report.Duration),
	)

	if runErr != nil {
		return report, runErr
	}
	return report, nil
}

// runOne dispatches a single bound request under its own deadline and
// verifies the response. Failures become inconclusive, never a scan
// abort.
func (s *Session) runOne(ctx context.Context, b inject.Bound) attempt {
	log := s.cfg.Logger

	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout)
	defer cancel()

	started := time.Now()
	resp, err := s.dispatcher.Send(reqCtx, b.Request)
	s.cfg.Metrics.ObserveDispatch(s.composer.GeneratorName(), b.Point.Kind().String(), time.Since(started))

	if err != nil {
		reason := "unreachable"
		switch {
		case errors.Is(err, finding.ErrTimeout):
			reason = "timeout"
		case errors.Is(err, context.Canceled):
			reason = "cancelled"
		}
		log.Debug("dispatch failed",
			slog.String("point", b.Point.String()),
			slog.String("error", err.Error()),
		)
		return attempt{inconclusive: &finding.Inconclusive{
			Payload: b.Payload,
			Point:   b.Point.String(),
			Reason:  reason,
		}}
	}

	found, err := verify.Eval(s.preds, s.cfg.Policy, b.Payload, resp)
	if err != nil {
		log.Warn("verification failed",
			slog.String("point", b.Point.String()),
			slog.String("error", err.Error()),
		)
		return attempt{inconclusive: &finding.Inconclusive{
			Payload: b.Payload,
			Point:   b.Point.String(),
			Reason:  "verification",
		}}
	}

	for _, f := range found {
		f.Evidence.Request = b.Request.Snapshot()
	}
	return attempt{findings: found}
}
