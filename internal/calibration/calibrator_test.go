package calibration

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/optimize"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/monitoring"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/store"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/testutil"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/timeutil"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	m.Run()
}

// truth is a parameter set inside the box that differs from the defaults.
func truth() model.Parameters {
	p := model.DefaultParameters()
	p.I0 = 11
	p.Alpha1 = 0.014
	p.Alpha2 = 0.02
	p.Gamma = 1.2
	return p
}

type fakeRecorder struct {
	mu   sync.Mutex
	recs []store.CalibrationRecord
	err  error
}

func (f *fakeRecorder) RecordCalibration(_ context.Context, rec store.CalibrationRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recs = append(f.recs, rec)
	return f.err
}

func newTestCalibrator(opts ...Option) (*Calibrator, *store.Store) {
	s := store.New(model.DefaultParameters(), store.WithClock(timeutil.NewStepClock(time.Unix(0, 0), time.Second)))
	return New(s, opts...), s
}

func TestFit_ImprovesFit(t *testing.T) {
	c, s := newTestCalibrator()
	rows := testutil.SyntheticObservations(truth(), 30)

	res, err := c.Fit(context.Background(), rows)
	require.NoError(t, err)

	assert.Less(t, res.After.MAE, res.Before.MAE)
	assert.Equal(t, 30, res.Record.Rows)
	assert.Equal(t, res.After.MAE, res.Record.MAE)
	assert.NotEmpty(t, res.Record.Status)

	p, v := s.Snapshot()
	assert.Equal(t, uint64(1), v)
	assert.Equal(t, res.Record.Parameters, p)
	assert.True(t, InBounds(p))

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, res.Record.ID, hist[0].ID)
}

func TestFit_RoundTripFromCurrentParameters(t *testing.T) {
	c, s := newTestCalibrator()
	start := model.DefaultParameters()
	rows := testutil.SyntheticObservations(start, 30)

	res, err := c.Fit(context.Background(), rows)
	require.NoError(t, err)

	assert.Less(t, res.After.MAE, 1e-6)
	assert.True(t, res.Record.Success)
	assert.Equal(t, optimize.FunctionThreshold.String(), res.Record.Status)

	p, _ := s.Snapshot()
	got, want := vector(p), vector(start)
	for i := range want {
		assert.InEpsilon(t, want[i], got[i], 1e-9, Bounds[i].Name)
	}
}

func TestFit_IterationCapIsNotSuccess(t *testing.T) {
	for _, iters := range []int{1, 2} {
		c, _ := newTestCalibrator(WithMaxIterations(iters))

		res, err := c.Fit(context.Background(), testutil.SyntheticObservations(truth(), 20))
		require.NoError(t, err)

		assert.False(t, res.Record.Success, "max iterations %d", iters)
		assert.LessOrEqual(t, res.Record.MajorIterations, iters)
		assert.LessOrEqual(t, res.After.MAE, res.Before.MAE)
	}
}

func TestFit_StartOnBoundNeverGetsWorse(t *testing.T) {
	c, s := newTestCalibrator(WithMaxIterations(1))
	s.Update(func(p *model.Parameters) { p.I0 = Bounds[0].Hi })
	edge, _ := s.Snapshot()
	rows := testutil.SyntheticObservations(edge, 12)

	res, err := c.Fit(context.Background(), rows)
	require.NoError(t, err)

	assert.Equal(t, 0.0, res.Before.MAE)
	assert.Equal(t, res.Before.MAE, res.After.MAE)
	assert.False(t, res.Record.Success)

	p, _ := s.Snapshot()
	assert.Equal(t, edge.I0, p.I0)
	assert.Equal(t, edge, res.Record.Parameters)
}

func TestFit_LeavesUnfittedParametersAlone(t *testing.T) {
	c, s := newTestCalibrator()
	s.Update(func(p *model.Parameters) { p.Beta = 1.3; p.KSensor.NVG = 0.0007 })

	_, err := c.Fit(context.Background(), testutil.SyntheticObservations(truth(), 12))
	require.NoError(t, err)

	p, _ := s.Snapshot()
	assert.Equal(t, 1.3, p.Beta)
	assert.Equal(t, 0.0007, p.KSensor.NVG)
	assert.Equal(t, model.DefaultParameters().Alpha0, p.Alpha0)
}

func TestFit_EmptyInput(t *testing.T) {
	rec := &fakeRecorder{}
	c, s := newTestCalibrator(WithRecorder(rec))

	_, err := c.Fit(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	p, v := s.Snapshot()
	assert.Equal(t, model.DefaultParameters(), p)
	assert.Equal(t, uint64(0), v)
	assert.Empty(t, s.History())
	assert.Empty(t, rec.recs)
}

func TestFit_StaysInBoundsFromOutsideStart(t *testing.T) {
	c, s := newTestCalibrator(WithMaxIterations(5))
	s.Update(func(p *model.Parameters) {
		p.I0 = 50
		p.Gamma = -1
		p.Ea = math.NaN()
	})

	_, err := c.Fit(context.Background(), testutil.SyntheticObservations(truth(), 10))
	require.NoError(t, err)

	p, _ := s.Snapshot()
	assert.True(t, InBounds(p), "%+v", p)
}

func TestFit_RecorderReceivesRecord(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	c, _ := newTestCalibrator(WithRecorder(rec), WithMaxIterations(3))

	res, err := c.Fit(context.Background(), testutil.SyntheticObservations(truth(), 10))
	require.NoError(t, err, "recorder failures are not fit failures")
	require.Len(t, rec.recs, 1)
	assert.Equal(t, res.Record, rec.recs[0])
}

func TestFit_CancelledStillCommits(t *testing.T) {
	c, s := newTestCalibrator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := c.Fit(ctx, testutil.SyntheticObservations(truth(), 10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, res.Record.Success)
	assert.Len(t, s.History(), 1)
	assert.True(t, InBounds(res.Record.Parameters))
}

func TestFit_DurationUsesClock(t *testing.T) {
	clk := timeutil.NewStepClock(time.Unix(100, 0), 0)
	c, _ := newTestCalibrator(WithClock(clk), WithMaxIterations(2))

	res, err := c.Fit(context.Background(), testutil.SyntheticObservations(truth(), 10))
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), res.Duration)
}

func TestAddObservation_FlushesAtTen(t *testing.T) {
	c, s := newTestCalibrator(WithMaxIterations(5))
	rows := testutil.SyntheticObservations(truth(), 10)

	for i, r := range rows[:9] {
		_, fitted, err := c.AddObservation(context.Background(), r)
		require.NoError(t, err)
		assert.False(t, fitted)
		assert.Equal(t, i+1, s.BufferLen())
	}
	assert.Empty(t, s.History())

	res, fitted, err := c.AddObservation(context.Background(), rows[9])
	require.NoError(t, err)
	assert.True(t, fitted)
	assert.Equal(t, 10, res.Record.Rows)
	assert.Equal(t, 0, s.BufferLen())
	assert.Len(t, s.History(), 1)
}

func TestAddObservation_CustomFlushSize(t *testing.T) {
	c, s := newTestCalibrator(WithFlushSize(3), WithMaxIterations(2))
	assert.Equal(t, 3, c.FlushSize())

	fits := 0
	for _, r := range testutil.SyntheticObservations(truth(), 7) {
		_, fitted, err := c.AddObservation(context.Background(), r)
		require.NoError(t, err)
		if fitted {
			fits++
		}
	}
	assert.Equal(t, 2, fits)
	assert.Equal(t, 1, s.BufferLen())
	assert.Len(t, s.History(), 2)
}

func TestFit_ConcurrentPredictionsSeeWholeSnapshots(t *testing.T) {
	c, s := newTestCalibrator(WithMaxIterations(10))
	initial, _ := s.Snapshot()
	rows := testutil.SyntheticObservations(truth(), 15)

	var (
		wg       sync.WaitGroup
		fitDone  = make(chan struct{})
		finalSet model.Parameters
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(fitDone)
		res, err := c.Fit(context.Background(), rows)
		assert.NoError(t, err)
		finalSet = res.Record.Parameters
	}()

	seen := map[model.Parameters]struct{}{}
	for running := true; running; {
		select {
		case <-fitDone:
			running = false
		default:
		}
		p, _ := s.Snapshot()
		seen[p] = struct{}{}
	}
	wg.Wait()

	for p := range seen {
		if p != initial && p != finalSet {
			t.Fatalf("observed intermediate parameters %+v", p)
		}
	}
}
