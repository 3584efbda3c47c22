// Package chart sweeps a marker's activation time and renders the predicted
// detection range, with its 5th to 95th percentile band, as an interactive
// HTML page or a PNG image.
package chart

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
)

// ErrNoPoints is returned when rendering an empty curve.
var ErrNoPoints = errors.New("chart: no points to render")

// MaxPoints caps the number of samples in one curve.
const MaxPoints = 10000

// stepEpsilon absorbs float error when maxMinutes is a whole number of steps.
const stepEpsilon = 1e-9

// Point is one sample of the range curve.
type Point struct {
	ActivationTime float64  `json:"activation_time"`
	Distance       float64  `json:"distance"`
	P5             float64  `json:"p5"`
	P50            float64  `json:"p50"`
	P95            float64  `json:"p95"`
	Score          float64  `json:"performance_score"`
	Flags          []string `json:"failure_flags"`
}

// Predictor is satisfied by *model.Model.
type Predictor interface {
	Predict(ctx context.Context, c model.Conditions) (model.Prediction, error)
}

// RangeCurve predicts base at activation times 0, step, 2·step, ... up to
// and including maxMinutes.
func RangeCurve(ctx context.Context, m Predictor, base model.Conditions, maxMinutes, step float64) ([]Point, error) {
	if step <= 0 {
		return nil, fmt.Errorf("chart: step must be positive, got %g", step)
	}
	if maxMinutes < 0 {
		return nil, fmt.Errorf("chart: max activation time must be non-negative, got %g", maxMinutes)
	}

	steps := math.Floor(maxMinutes/step + stepEpsilon)
	if steps+1 > MaxPoints {
		return nil, fmt.Errorf("chart: %g min at step %g needs more than %d points", maxMinutes, step, MaxPoints)
	}
	n := int(steps) + 1
	pts := make([]Point, 0, n)
	for i := 0; i < n; i++ {
		c := base
		c.ActivationTime = float64(i) * step
		pred, err := m.Predict(ctx, c)
		if err != nil {
			return pts, fmt.Errorf("predicting t=%g min: %w", c.ActivationTime, err)
		}
		pts = append(pts, Point{
			ActivationTime: c.ActivationTime,
			Distance:       pred.Distance,
			P5:             pred.ConfidenceInterval[0],
			P50:            pred.ConfidenceInterval[1],
			P95:            pred.ConfidenceInterval[2],
			Score:          pred.PerformanceScore,
			Flags:          pred.FailureFlags,
		})
	}
	return pts, nil
}
