package chart

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

func baseConditions() model.Conditions {
	return model.Conditions{
		WaterTemp:     12,
		WindSpeed:     4,
		Precipitation: 1,
		WaveHeight:    0.8,
		AmbientLight:  0.001,
		Sensor:        model.SensorHuman,
	}
}

func testCurve(t *testing.T) []Point {
	t.Helper()
	m := model.New(model.StaticSource(model.DefaultParameters()), model.WithSamples(30), model.WithSeed(3))
	pts, err := RangeCurve(context.Background(), m, baseConditions(), 120, 30)
	require.NoError(t, err)
	return pts
}

func TestRangeCurve(t *testing.T) {
	pts := testCurve(t)
	require.Len(t, pts, 5)

	for i, p := range pts {
		assert.Equal(t, float64(i)*30, p.ActivationTime)
		assert.LessOrEqual(t, p.P5, p.P50)
		assert.LessOrEqual(t, p.P50, p.P95)
		if i > 0 {
			assert.LessOrEqual(t, p.Distance, pts[i-1].Distance)
		}
	}
}

func TestRangeCurveRejectsBadStep(t *testing.T) {
	m := model.New(model.StaticSource(model.DefaultParameters()))
	_, err := RangeCurve(context.Background(), m, baseConditions(), 60, 0)
	assert.Error(t, err)
	_, err = RangeCurve(context.Background(), m, baseConditions(), -1, 10)
	assert.Error(t, err)
}

type failingPredictor struct{}

func (failingPredictor) Predict(context.Context, model.Conditions) (model.Prediction, error) {
	return model.Prediction{}, errors.New("boom")
}

func TestRangeCurvePropagatesErrors(t *testing.T) {
	_, err := RangeCurve(context.Background(), failingPredictor{}, baseConditions(), 10, 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t=0")
}

type constPredictor struct{}

func (constPredictor) Predict(_ context.Context, c model.Conditions) (model.Prediction, error) {
	return model.Prediction{Distance: 100 - c.ActivationTime}, nil
}

func TestRangeCurveIncludesFinalStep(t *testing.T) {
	tests := []struct {
		max, step float64
		want      int
	}{
		{0.3, 0.1, 4},
		{0.7, 0.1, 8},
		{1, 0.3, 4},
		{0, 5, 1},
		{360, 15, 25},
	}
	for _, tt := range tests {
		pts, err := RangeCurve(context.Background(), constPredictor{}, baseConditions(), tt.max, tt.step)
		require.NoError(t, err)
		assert.Len(t, pts, tt.want, "max=%g step=%g", tt.max, tt.step)
	}
}

func TestRangeCurveRejectsTooManyPoints(t *testing.T) {
	_, err := RangeCurve(context.Background(), constPredictor{}, baseConditions(), 360, 1e-9)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than")

	pts, err := RangeCurve(context.Background(), constPredictor{}, baseConditions(), MaxPoints-1, 1)
	require.NoError(t, err)
	assert.Len(t, pts, MaxPoints)
}

func TestRenderHTML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderHTML(&buf, "Marker range", testCurve(t)))

	out := buf.String()
	assert.Contains(t, out, "Marker range")
	assert.Contains(t, out, "echarts")
	assert.Contains(t, out, "p95")
}

func TestSavePNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.png")
	require.NoError(t, SavePNG(path, "Marker range", testCurve(t)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestRenderEmpty(t *testing.T) {
	assert.ErrorIs(t, RenderHTML(&bytes.Buffer{}, "x", nil), ErrNoPoints)
	assert.ErrorIs(t, SavePNG(filepath.Join(t.TempDir(), "x.png"), "x", nil), ErrNoPoints)
}
