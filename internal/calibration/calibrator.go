// Package calibration fits the detection model's parameters to field
// observations and runs the continuous-learning buffer.
//
// Fitting minimises the mean absolute error between predicted and observed
// detection distances over seven parameters, each kept within a fixed box.
// Candidates are evaluated on a private copy of the parameters; the store is
// written once, when the optimiser returns.
package calibration

import (
	"context"
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/monitoring"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/store"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/timeutil"
)

var logf = monitoring.Tagged("calibration")

// ErrEmptyInput is returned by Fit when there are no observations.
var ErrEmptyInput = errors.New("calibration: no observations supplied")

const (
	DefaultMaxIterations = 50
	DefaultFlushSize     = 10

	// gradientStep is the central-difference step in the latent space.
	gradientStep = 1e-4

	// maeThreshold is the MAE in metres at which a fit is exact.
	maeThreshold = 1e-6

	// A search has converged once the MAE improves by less than stallTolerance
	// over stallIterations major iterations.
	stallTolerance  = 1e-6
	stallIterations = 10
)

// Recorder persists committed calibration records. Failures are logged and do
// not affect the in-memory commit.
type Recorder interface {
	RecordCalibration(ctx context.Context, rec store.CalibrationRecord) error
}

// Result describes one completed fit.
type Result struct {
	Record   store.CalibrationRecord `json:"record"`
	Before   Metrics                 `json:"before"`
	After    Metrics                 `json:"after"`
	Duration time.Duration           `json:"duration"`
}

// Option configures a Calibrator.
type Option func(*Calibrator)

// WithMaxIterations caps the optimiser's major iterations.
func WithMaxIterations(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.maxIter = n
		}
	}
}

// WithFlushSize sets how many buffered observations trigger a fit.
func WithFlushSize(n int) Option {
	return func(c *Calibrator) {
		if n > 0 {
			c.flushSize = n
		}
	}
}

// WithRecorder attaches a persistence hook for committed records.
func WithRecorder(r Recorder) Option {
	return func(c *Calibrator) { c.recorder = r }
}

// WithClock sets the clock used to time fits.
func WithClock(clk timeutil.Clock) Option {
	return func(c *Calibrator) { c.clock = clk }
}

// Calibrator fits parameters held by a store.Store. Fits are synchronous on
// the caller's goroutine.
type Calibrator struct {
	store     *store.Store
	maxIter   int
	flushSize int
	recorder  Recorder
	clock     timeutil.Clock
}

// New returns a Calibrator writing to s.
func New(s *store.Store, opts ...Option) *Calibrator {
	c := &Calibrator{
		store:     s,
		maxIter:   DefaultMaxIterations,
		flushSize: DefaultFlushSize,
		clock:     timeutil.RealClock{},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// FlushSize returns the buffer size that triggers a fit.
func (c *Calibrator) FlushSize() int { return c.flushSize }

// Fit calibrates against rows and commits the optimiser's best point to the
// store, appending a record whether or not the optimiser converged.
//
// Empty input returns ErrEmptyInput without touching the store. If ctx is
// cancelled the fit stops at the next iteration, the best point so far is
// still committed with Success false, and the context error is returned
// alongside the result.
func (c *Calibrator) Fit(ctx context.Context, rows []model.Observation) (Result, error) {
	if len(rows) == 0 {
		return Result{}, ErrEmptyInput
	}
	rows = append([]model.Observation(nil), rows...)

	start := c.clock.Now()
	base, version := c.store.Snapshot()
	before := Evaluate(base, rows)
	logf("fitting %d observations from params v%d (MAE %.3f m)", len(rows), version, before.MAE)

	objective := func(z []float64) float64 {
		return meanAbsoluteError(apply(base, fromLatent(z)), rows)
	}
	z0 := toLatent(vector(base))
	f0 := objective(z0)

	run := c.search(ctx, objective, z0)
	best := run.x
	if len(best) != dim || math.IsNaN(run.f) || run.f > f0 {
		best = z0
	}
	success := run.err == nil && converged(run.status) && ctx.Err() == nil
	if run.err != nil {
		logf("optimiser stopped with %v: %v", run.status, run.err)
	}

	fitted := apply(base, fromLatent(best))
	after := Evaluate(fitted, rows)
	// The search starts from a point projected inside the box, so it can end
	// worse than a start that sat on an edge.
	if InBounds(base) && after.MAE > before.MAE {
		logf("fit ended at MAE %.3f m above the start, keeping params v%d", after.MAE, version)
		fitted, after = base, before
	}

	rec := c.store.Commit(fitted, store.CalibrationRecord{
		MAE:             after.MAE,
		Success:         success,
		Status:          run.status.String(),
		MajorIterations: run.iterations,
		Evaluations:     run.evaluations,
		Rows:            len(rows),
	})
	logf("calibration %d committed as v%d: MAE %.3f -> %.3f m, success=%t",
		rec.Iteration, rec.ParamsVersion, before.MAE, after.MAE, success)

	if c.recorder != nil {
		if perr := c.recorder.RecordCalibration(context.WithoutCancel(ctx), rec); perr != nil {
			logf("failed to persist calibration %s: %v", rec.ID, perr)
		}
	}

	result := Result{
		Record:   rec,
		Before:   before,
		After:    after,
		Duration: c.clock.Since(start),
	}
	return result, ctx.Err()
}

// AddObservation buffers obs. When the buffer reaches the flush size it is
// drained and a fit runs on the drained rows; the result is returned with
// fitted set to true. The buffer is empty after a flush whatever Fit returns.
func (c *Calibrator) AddObservation(ctx context.Context, obs model.Observation) (res Result, fitted bool, err error) {
	rows := c.store.AppendObservation(obs, c.flushSize)
	if rows == nil {
		return Result{}, false, nil
	}
	logf("observation buffer reached %d rows, recalibrating", len(rows))
	res, err = c.Fit(ctx, rows)
	return res, true, err
}

func converged(s optimize.Status) bool {
	switch s {
	case optimize.Success,
		optimize.FunctionThreshold,
		optimize.FunctionConvergence,
		optimize.GradientThreshold,
		optimize.StepConvergence,
		optimize.MethodConverge:
		return true
	}
	return false
}

// searchResult is the combined outcome of the quasi-Newton search and the
// derivative-free continuation that may follow it.
type searchResult struct {
	x           []float64
	f           float64
	status      optimize.Status
	err         error
	iterations  int
	evaluations int
}

func (r *searchResult) add(res *optimize.Result, err error) {
	r.err = err
	if res == nil {
		r.status = optimize.Failure
		return
	}
	r.status = res.Status
	r.iterations += res.MajorIterations
	r.evaluations += res.FuncEvaluations
	if len(res.X) == dim && !math.IsNaN(res.F) && (math.IsNaN(r.f) || res.F <= r.f) {
		r.x, r.f = res.X, res.F
	}
}

// search runs L-BFGS from z0. The MAE is kinked wherever a residual changes
// sign, so the line search can fail short of a minimum; the remaining
// iteration budget then goes to Nelder-Mead from the best point reached.
func (c *Calibrator) search(ctx context.Context, objective func([]float64) float64, z0 []float64) searchResult {
	run := searchResult{x: z0, f: math.NaN(), status: optimize.NotTerminated}

	problem := optimize.Problem{
		Func: objective,
		Grad: func(grad, z []float64) {
			fd.Gradient(grad, objective, z, &fd.Settings{
				Formula: fd.Central,
				Step:    gradientStep,
			})
		},
	}
	run.add(optimize.Minimize(problem, z0, c.settings(ctx, c.maxIter), &optimize.LBFGS{}))

	remaining := c.maxIter - run.iterations
	if run.status != optimize.Failure || ctx.Err() != nil || remaining <= 0 {
		return run
	}
	logf("line search stopped after %d iterations (%v), continuing with Nelder-Mead", run.iterations, run.err)
	run.add(optimize.Minimize(optimize.Problem{Func: objective}, run.x, c.settings(ctx, remaining), &optimize.NelderMead{}))
	return run
}

func (c *Calibrator) settings(ctx context.Context, iterations int) *optimize.Settings {
	return &optimize.Settings{
		MajorIterations: iterations,
		Converger: &fitConverger{
			ctx:  ctx,
			next: &optimize.FunctionConverge{Absolute: stallTolerance, Iterations: stallIterations},
		},
	}
}

// fitConverger stops a search once ctx is done or the MAE is effectively
// zero, and otherwise defers to next.
type fitConverger struct {
	ctx  context.Context
	next optimize.Converger
}

func (c *fitConverger) Init(dim int) {
	c.next.Init(dim)
}

func (c *fitConverger) Converged(loc *optimize.Location) optimize.Status {
	if c.ctx.Err() != nil {
		return optimize.RuntimeLimit
	}
	if loc.F <= maeThreshold {
		return optimize.FunctionThreshold
	}
	return c.next.Converged(loc)
}
