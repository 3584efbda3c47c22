package model

import (
	"context"
	"errors"
	"fmt"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/monitoring"
)

var logf = monitoring.Tagged("model")

// ParameterSource supplies the current parameter snapshot and its version.
// internal/store.Store satisfies it.
type ParameterSource interface {
	Snapshot() (Parameters, uint64)
}

// StaticSource serves a fixed parameter set at version 0.
type StaticSource Parameters

// Snapshot implements ParameterSource.
func (s StaticSource) Snapshot() (Parameters, uint64) {
	return Parameters(s), 0
}

// Prediction is the result of one detection-range prediction. A zero
// Distance is a valid outcome (the marker is below threshold); a computation
// fault is reported separately through *ComputationError.
type Prediction struct {
	Distance           float64    `json:"distance"`
	ConfidenceInterval [3]float64 `json:"confidence_interval"`
	PerformanceScore   float64    `json:"performance_score"`
	SystemConditions   []string   `json:"system_conditions"`
	FailureFlags       []string   `json:"failure_flags"`
	Breakdown          Breakdown  `json:"breakdown"`
	ParamsVersion      uint64     `json:"params_version"`
	Error              string     `json:"error,omitempty"`
}

// ComputationError reports an internal fault while predicting: a non-finite
// intermediate value or a recovered panic.
type ComputationError struct {
	Conditions Conditions
	Cause      error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("prediction failed: %v", e.Cause)
}

func (e *ComputationError) Unwrap() error {
	return e.Cause
}

// ErrNonFinite is the cause recorded when the physics yields NaN or ±Inf.
var ErrNonFinite = errors.New("non-finite intermediate value")

// failedPrediction is the structured zero placeholder returned with a
// ComputationError.
func failedPrediction(cause error, version uint64) Prediction {
	return Prediction{
		ConfidenceInterval: [3]float64{0, 0, 0},
		SystemConditions:   []string{"Model error occurred"},
		FailureFlags:       []string{"Prediction failed"},
		ParamsVersion:      version,
		Error:              fmt.Sprintf("Prediction failed: %v", cause),
	}
}

// Option configures a Model.
type Option func(*Model)

// WithSamples sets the Monte Carlo sample count.
func WithSamples(n int) Option {
	return func(m *Model) { m.uncertainty.Samples = n }
}

// WithSeed sets the Monte Carlo seed.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.uncertainty.Seed = seed }
}

// WithWorkers bounds the number of goroutines used by the sampler.
func WithWorkers(n int) Option {
	return func(m *Model) { m.uncertainty.Workers = n }
}

// WithPerturbation overrides the assumed parameter uncertainty.
func WithPerturbation(p Perturbation) Option {
	return func(m *Model) { m.uncertainty.Perturbation = p }
}

// Model produces predictions from the parameters currently held by its
// source. It holds no mutable state and is safe for concurrent use.
type Model struct {
	src         ParameterSource
	uncertainty UncertaintyConfig
}

// New returns a Model reading parameters from src.
func New(src ParameterSource, opts ...Option) *Model {
	m := &Model{src: src}
	for _, o := range opts {
		o(m)
	}
	m.uncertainty = m.uncertainty.withDefaults()
	return m
}

// Predict estimates the maximum detection distance for c. The parameter
// snapshot is taken once, so a concurrent calibration commit cannot tear it.
//
// On an internal fault the returned Prediction is the zero placeholder with
// Error set, and err is a *ComputationError. Context cancellation during the
// Monte Carlo phase is returned as the context error.
func (m *Model) Predict(ctx context.Context, c Conditions) (pred Prediction, err error) {
	var version uint64
	defer recoverFault(c, &version, &pred, &err)

	var p Parameters
	p, version = m.src.Snapshot()
	return m.predict(ctx, p, version, c)
}

// PredictWith is Predict against an explicit parameter set.
func (m *Model) PredictWith(ctx context.Context, p Parameters, version uint64, c Conditions) (pred Prediction, err error) {
	defer recoverFault(c, &version, &pred, &err)
	return m.predict(ctx, p, version, c)
}

func recoverFault(c Conditions, version *uint64, pred *Prediction, err *error) {
	r := recover()
	if r == nil {
		return
	}
	cause := fmt.Errorf("panic: %v", r)
	logf("recovered fault for %+v: %v", c, cause)
	*pred = failedPrediction(cause, *version)
	*err = &ComputationError{Conditions: c, Cause: cause}
}

func (m *Model) predict(ctx context.Context, p Parameters, version uint64, c Conditions) (Prediction, error) {
	b := Evaluate(p, c)
	if !b.Finite() {
		logf("non-finite breakdown for %+v: %+v", c, b)
		return failedPrediction(ErrNonFinite, version), &ComputationError{Conditions: c, Cause: ErrNonFinite}
	}

	ci, err := UncertaintyAnalysis(ctx, p, c, m.uncertainty)
	if err != nil {
		return Prediction{}, err
	}

	return Prediction{
		Distance:           b.Distance,
		ConfidenceInterval: ci,
		PerformanceScore:   PerformanceScore(b),
		SystemConditions:   SystemConditions(b, c),
		FailureFlags:       FailureFlags(b),
		Breakdown:          b,
		ParamsVersion:      version,
	}, nil
}

// Uncertainty returns the sampler configuration in effect.
func (m *Model) Uncertainty() UncertaintyConfig {
	return m.uncertainty
}
