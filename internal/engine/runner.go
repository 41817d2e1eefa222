package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/borzov/photo-validation-service/internal/checks"
	"github.com/borzov/photo-validation-service/internal/config"
	"github.com/borzov/photo-validation-service/internal/logging"
	"github.com/borzov/photo-validation-service/internal/policy"
	"github.com/borzov/photo-validation-service/pkg/schema"
)

// Sink receives completed verdicts for persistence. Record must not block
// the runner; implementations queue internally.
type Sink interface {
	Record(ctx context.Context, verdict *schema.Verdict)
}

// Observer receives operational measurements from the engine.
type Observer interface {
	ValidationCompleted(status schema.VerdictStatus, seconds float64)
	CheckCompleted(check string, status schema.CheckStatus, seconds float64)
	AdmissionInUse(inUse float64)
}

// Runner orchestrates one validation run per image: admission, concurrent
// check evaluation against an immutable configuration snapshot, and verdict
// aggregation.
type Runner struct {
	reg       *checks.Registry
	holder    *config.Holder
	hub       *Hub
	admission *Admission
	detector  checks.FaceDetector
	policies  *policy.Evaluator
	sink      Sink
	obs       Observer
	log       *slog.Logger
}

// RunnerOptions wires the runner's collaborators. Registry, Holder, and
// Detector are required; the rest default to inert implementations.
type RunnerOptions struct {
	Registry *checks.Registry
	Holder   *config.Holder
	Detector checks.FaceDetector
	Hub      *Hub
	Policies *policy.Evaluator
	Sink     Sink
	Observer Observer
	Logger   *slog.Logger
}

// NewRunner builds a runner. The admission gate is sized from the active
// configuration at construction time.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Hub == nil {
		opts.Hub = NewHub()
	}
	if opts.Policies == nil {
		opts.Policies = policy.NewEvaluator()
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	r := &Runner{
		reg:      opts.Registry,
		holder:   opts.Holder,
		hub:      opts.Hub,
		detector: opts.Detector,
		policies: opts.Policies,
		sink:     opts.Sink,
		obs:      opts.Observer,
		log:      opts.Logger,
	}
	r.admission = NewAdmission(opts.Holder.Current().System.MaxConcurrent, r.obs.AdmissionInUse)
	return r
}

// Hub exposes the outcome stream for subscribers.
func (r *Runner) Hub() *Hub {
	return r.hub
}

// Run validates one image and returns the verdict. The configuration is
// snapshotted once at run start; a concurrent configuration swap never
// affects an in-flight run.
func (r *Runner) Run(ctx context.Context, img *checks.Image) (*schema.Verdict, error) {
	requestID := uuid.NewString()
	ctx = logging.WithRequestID(ctx, requestID)

	release, err := r.admission.Acquire(ctx)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeCancelled, "cancelled while waiting for an admission slot").WithCause(err)
	}
	defer release()

	cfg := r.holder.Current()
	enabled := cfg.EnabledChecks()
	start := time.Now()

	r.log.InfoContext(ctx, "validation started",
		"checks", len(enabled), "width", img.Width, "height", img.Height)
	r.hub.Publish(ctx, StreamEvent{
		RequestID: requestID, EventType: EventValidationStarted, Timestamp: time.Now(),
	})

	outcomes := r.runChecks(ctx, requestID, cfg, enabled, img)

	verdict := r.aggregate(ctx, requestID, cfg, outcomes, time.Since(start))

	r.hub.Publish(ctx, StreamEvent{
		RequestID: requestID, EventType: EventValidationCompleted,
		Verdict: verdict, Timestamp: time.Now(),
	})
	r.sink.Record(ctx, verdict)
	r.obs.ValidationCompleted(verdict.Status, verdict.ProcessingTime.Seconds())

	r.log.InfoContext(ctx, "validation completed",
		"status", verdict.Status,
		"passed", verdict.ChecksPassed,
		"total", verdict.TotalChecks,
		"duration", verdict.ProcessingTime)
	return verdict, nil
}

// runChecks evaluates the enabled checks concurrently and returns their
// outcomes re-sequenced to the configured check order. With stop_on_failure
// a completed FAILED check stops further launches; checks already in flight
// run to completion.
func (r *Runner) runChecks(ctx context.Context, requestID string, cfg *schema.Configuration, enabled []string, img *checks.Image) []schema.Outcome {
	workers := cfg.System.CheckWorkers
	if workers <= 0 {
		workers = len(enabled)
	}
	pool := NewWorkerPool(workers)
	shared := NewSharedContext()

	results := make([]schema.Outcome, len(enabled))
	var stopped atomic.Bool

	for i, name := range enabled {
		if stopped.Load() {
			results[i] = schema.Outcome{
				Check:  name,
				Status: schema.StatusSkipped,
				Reason: "not launched: an earlier check failed and stop_on_failure is set",
			}
			continue
		}

		err := pool.Submit(ctx, func(ctx context.Context) {
			// Re-check at launch: a failure may have completed while this
			// check waited for a worker slot.
			if stopped.Load() {
				results[i] = schema.Outcome{
					Check:  name,
					Status: schema.StatusSkipped,
					Reason: "not launched: an earlier check failed and stop_on_failure is set",
				}
				return
			}

			outcome := r.evaluate(ctx, name, cfg, img, shared)
			results[i] = outcome

			if outcome.Status == schema.StatusFailed && cfg.System.StopOnFailure {
				stopped.Store(true)
			}

			r.obs.CheckCompleted(name, outcome.Status, outcome.Duration.Seconds())
			r.hub.Publish(ctx, StreamEvent{
				RequestID: requestID, EventType: EventCheckCompleted,
				Check: name, Outcome: &outcome, Timestamp: time.Now(),
			})
		})
		if err != nil {
			results[i] = schema.Outcome{
				Check:  name,
				Status: schema.StatusSkipped,
				Reason: "not launched: " + err.Error(),
			}
		}
	}

	pool.Wait()
	return results
}

// evaluate runs one check with its effective timeout: the stricter of the
// system ceiling and the check's own declared limit. A timed-out or failed
// check yields an outcome, never an abort; sibling checks are unaffected.
func (r *Runner) evaluate(parent context.Context, name string, cfg *schema.Configuration, img *checks.Image, shared *SharedContext) schema.Outcome {
	desc, factory, err := r.reg.Get(name)
	if err != nil {
		// A configured name the registry does not know cannot execute;
		// it is recorded in the trail without verdict weight.
		return schema.Outcome{
			Check:  name,
			Status: schema.StatusSkipped,
			Reason: "check not registered",
		}
	}

	timeout := effectiveTimeout(cfg.System.CheckTimeout(), desc.MaxDuration)
	ctx, cancel := context.WithTimeout(logging.WithCheck(parent, name), timeout)
	defer cancel()

	r.hub.Publish(ctx, StreamEvent{
		RequestID: logging.RequestID(ctx), EventType: EventCheckStarted,
		Check: name, Timestamp: time.Now(),
	})

	req := &checks.Request{
		Image:    img,
		Params:   resolveParams(desc, cfg.Checks[name]),
		Shared:   shared,
		Detector: r.detector,
	}

	type evalResult struct {
		res *checks.Result
		err error
	}
	done := make(chan evalResult, 1)
	start := time.Now()

	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- evalResult{err: fmt.Errorf("check panicked: %v", p)}
			}
		}()
		res, err := factory().Evaluate(ctx, req)
		done <- evalResult{res: res, err: err}
	}()

	select {
	case <-ctx.Done():
		elapsed := time.Since(start)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			r.log.WarnContext(ctx, "check timed out", "timeout", timeout)
			return schema.Outcome{
				Check:    name,
				Status:   schema.StatusTimeout,
				Reason:   fmt.Sprintf("check did not finish within %s", timeout),
				Duration: elapsed,
			}
		}
		return schema.Outcome{
			Check:    name,
			Status:   schema.StatusError,
			Reason:   "validation cancelled",
			Duration: elapsed,
		}

	case ev := <-done:
		elapsed := time.Since(start)
		if ev.err != nil {
			r.log.ErrorContext(ctx, "check execution failed", "error", ev.err)
			return schema.Outcome{
				Check:    name,
				Status:   schema.StatusError,
				Reason:   ev.err.Error(),
				Duration: elapsed,
			}
		}
		if ev.res == nil {
			return schema.Outcome{
				Check:    name,
				Status:   schema.StatusError,
				Reason:   "check returned no result",
				Duration: elapsed,
			}
		}
		return schema.Outcome{
			Check:    name,
			Status:   ev.res.Status,
			Reason:   ev.res.Reason,
			Details:  ev.res.Details,
			Duration: elapsed,
		}
	}
}

// aggregate reduces the ordered outcomes to a verdict, then lets policy
// rules escalate it. Advisory checks contribute to the issue list but never
// escalate on their own.
func (r *Runner) aggregate(ctx context.Context, requestID string, cfg *schema.Configuration, outcomes []schema.Outcome, elapsed time.Duration) *schema.Verdict {
	var executed, passedCount int
	var anyFailed, anyReview bool
	var issues []string

	for _, o := range outcomes {
		switch o.Status {
		case schema.StatusPassed:
			executed++
			passedCount++
		case schema.StatusFailed:
			executed++
			anyFailed = true
			issues = append(issues, o.Reason)
		case schema.StatusNeedsReview:
			executed++
			issues = append(issues, o.Reason)
			if !r.isAdvisory(o.Check) {
				anyReview = true
			}
		case schema.StatusError, schema.StatusTimeout:
			executed++
			anyReview = true
			issues = append(issues, o.Reason)
		case schema.StatusSkipped:
			// Not executed; appears in the trail but carries no verdict weight.
		}
	}

	status := schema.VerdictApproved
	switch {
	case anyFailed:
		status = schema.VerdictRejected
	case anyReview:
		status = schema.VerdictManualReview
	case executed == 0:
		status = schema.VerdictFailed
		issues = append(issues, "no checks were executed")
	}

	verdict := &schema.Verdict{
		RequestID:      requestID,
		Status:         status,
		CheckResults:   outcomes,
		ChecksPassed:   passedCount,
		TotalChecks:    executed,
		Issues:         issues,
		ProcessingTime: elapsed,
		CompletedAt:    time.Now().UTC(),
	}

	// Apply keeps evaluating past a failing rule, so a triggered escalation
	// still counts even when a sibling rule errored.
	escalated, reasons, err := r.policies.Apply(ctx, cfg.Policies, verdict)
	if err != nil {
		r.log.ErrorContext(ctx, "policy evaluation failed", "error", err)
	}
	if escalated != verdict.Status {
		r.log.InfoContext(ctx, "verdict escalated by policy",
			"from", verdict.Status, "to", escalated)
		verdict.Status = escalated
		verdict.Issues = append(verdict.Issues, reasons...)
	}
	return verdict
}

func (r *Runner) isAdvisory(name string) bool {
	desc, _, err := r.reg.Get(name)
	return err == nil && desc.Advisory
}

// resolveParams overlays configured values on descriptor defaults.
func resolveParams(desc schema.Descriptor, settings schema.CheckSettings) checks.Params {
	params := make(checks.Params, len(desc.Params))
	for _, spec := range desc.Params {
		if spec.Default != nil {
			params[spec.Name] = spec.Default
		}
	}
	for k, v := range settings.Params {
		params[k] = v
	}
	return params
}

// effectiveTimeout picks the stricter of the system ceiling and the check's
// own declared limit.
func effectiveTimeout(system, declared time.Duration) time.Duration {
	if declared > 0 && declared < system {
		return declared
	}
	return system
}

type nopSink struct{}

func (nopSink) Record(context.Context, *schema.Verdict) {}

type nopObserver struct{}

func (nopObserver) ValidationCompleted(schema.VerdictStatus, float64)  {}
func (nopObserver) CheckCompleted(string, schema.CheckStatus, float64) {}
func (nopObserver) AdmissionInUse(float64)                             {}
