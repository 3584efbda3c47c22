package calibration

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/testutil"
)

func TestEvaluate_PerfectFit(t *testing.T) {
	p := truth()
	m := Evaluate(p, testutil.SyntheticObservations(p, 20))

	assert.Equal(t, 20, m.N)
	assert.InDelta(t, 0, m.MAE, 1e-9)
	assert.InDelta(t, 0, m.RMSE, 1e-9)
	assert.InDelta(t, 0, m.MAPE, 1e-7)
	assert.InDelta(t, 1, m.R2, 1e-9)
	assert.Equal(t, 100.0, m.Within)
}

func TestEvaluate_KnownErrors(t *testing.T) {
	p := model.DefaultParameters()
	c := model.Conditions{ActivationTime: 30, WaterTemp: 10, WindSpeed: 4, Precipitation: 1, WaveHeight: 0.5, AmbientLight: 0.001}
	d := model.Distance(p, c)

	rows := []model.Observation{
		{Conditions: c, ObservedDistance: d + 10},
		{Conditions: c, ObservedDistance: d - 10},
	}
	m := Evaluate(p, rows)
	assert.InDelta(t, 10, m.MAE, 1e-9)
	assert.InDelta(t, 10, m.RMSE, 1e-9)
	assert.Greater(t, m.MAPE, 0.0)
}

func TestEvaluate_ZeroObservedSkippedForPercentages(t *testing.T) {
	p := model.DefaultParameters()
	rows := testutil.SyntheticObservations(p, 3)
	rows[0].ObservedDistance = 0

	m := Evaluate(p, rows)
	assert.Greater(t, m.MAE, 0.0)
	assert.InDelta(t, 0, m.MAPE, 1e-7)
}

func TestEvaluate_Empty(t *testing.T) {
	assert.Equal(t, Metrics{}, Evaluate(model.DefaultParameters(), nil))
}

func TestMeanAbsoluteErrorMatchesEvaluate(t *testing.T) {
	rows := testutil.SyntheticObservations(truth(), 15)
	p := model.DefaultParameters()
	assert.InDelta(t, Evaluate(p, rows).MAE, meanAbsoluteError(p, rows), 1e-9)
}
