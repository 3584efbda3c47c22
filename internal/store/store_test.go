package store

import (
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/timeutil"
)

var epoch = time.Date(2026, 3, 1, 6, 0, 0, 0, time.UTC)

func newTestStore() *Store {
	return New(model.DefaultParameters(), WithClock(timeutil.NewStepClock(epoch, time.Minute)))
}

func TestNew(t *testing.T) {
	s := newTestStore()
	p, v := s.Snapshot()
	assert.Equal(t, model.DefaultParameters(), p)
	assert.Equal(t, uint64(0), v)
	assert.Empty(t, s.History())
	assert.Equal(t, 0, s.BufferLen())

	_, ok := s.LastRecord()
	assert.False(t, ok)
}

func TestStoreSatisfiesParameterSource(t *testing.T) {
	var _ model.ParameterSource = (*Store)(nil)
}

func TestUpdate(t *testing.T) {
	s := newTestStore()
	v := s.Update(func(p *model.Parameters) { p.Gamma = 1.8 })
	assert.Equal(t, uint64(1), v)

	p, got := s.Snapshot()
	assert.Equal(t, v, got)
	assert.Equal(t, 1.8, p.Gamma)
	assert.Equal(t, model.DefaultParameters().I0, p.I0)
}

func TestCommit(t *testing.T) {
	s := newTestStore()
	p := model.DefaultParameters()
	p.I0 = 11.5

	first := s.Commit(p, CalibrationRecord{MAE: 4.2, Success: true, Rows: 12})
	assert.NotEmpty(t, first.ID)
	assert.Equal(t, 1, first.Iteration)
	assert.Equal(t, uint64(1), first.ParamsVersion)
	assert.Equal(t, p, first.Parameters)
	assert.Equal(t, epoch, first.Timestamp)

	got, v := s.Snapshot()
	assert.Equal(t, p, got)
	assert.Equal(t, uint64(1), v)

	second := s.Commit(model.DefaultParameters(), CalibrationRecord{MAE: 3.1})
	assert.Equal(t, 2, second.Iteration)
	assert.NotEqual(t, first.ID, second.ID)
	assert.True(t, second.Timestamp.After(first.Timestamp))

	hist := s.History()
	require.Len(t, hist, 2)
	if diff := cmp.Diff(first, hist[0]); diff != "" {
		t.Errorf("first record changed (-want +got):\n%s", diff)
	}

	last, ok := s.LastRecord()
	require.True(t, ok)
	assert.Equal(t, second.ID, last.ID)
}

func TestHistoryIsACopy(t *testing.T) {
	s := newTestStore()
	s.Commit(model.DefaultParameters(), CalibrationRecord{MAE: 1})

	hist := s.History()
	hist[0].MAE = 99
	assert.Equal(t, 1.0, s.History()[0].MAE)
}

func TestRestore(t *testing.T) {
	s := newTestStore()
	p := model.DefaultParameters()
	p.A = 0.018
	hist := []CalibrationRecord{{ID: "a", Iteration: 1}, {ID: "b", Iteration: 2}}

	s.Restore(p, 7, hist)
	got, v := s.Snapshot()
	assert.Equal(t, p, got)
	assert.Equal(t, uint64(7), v)
	assert.Len(t, s.History(), 2)

	rec := s.Commit(p, CalibrationRecord{})
	assert.Equal(t, 3, rec.Iteration)
	assert.Equal(t, uint64(8), rec.ParamsVersion)
}

func TestAppendObservation(t *testing.T) {
	s := newTestStore()
	obs := model.Observation{ObservedDistance: 300}

	for i := 1; i < 10; i++ {
		assert.Nil(t, s.AppendObservation(obs, 10))
		assert.Equal(t, i, s.BufferLen())
	}

	drained := s.AppendObservation(obs, 10)
	assert.Len(t, drained, 10)
	assert.Equal(t, 0, s.BufferLen())
	assert.Empty(t, s.Buffered())
}

func TestAppendObservation_NoFlush(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 25; i++ {
		assert.Nil(t, s.AppendObservation(model.Observation{}, 0))
	}
	assert.Equal(t, 25, s.BufferLen())
}

func TestAppendObservation_ConcurrentDrainsOnce(t *testing.T) {
	s := newTestStore()
	const writers, each, flushAt = 8, 25, 10

	var (
		mu      sync.Mutex
		drained int
		wg      sync.WaitGroup
	)
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < each; i++ {
				if rows := s.AppendObservation(model.Observation{}, flushAt); rows != nil {
					mu.Lock()
					drained += len(rows)
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, writers*each, drained+s.BufferLen())
	assert.Equal(t, 0, drained%flushAt)
}

func TestSnapshotNeverTorn(t *testing.T) {
	s := newTestStore()
	a := model.DefaultParameters()
	b := model.DefaultParameters()
	b.I0, b.A, b.Ea, b.Gamma = 12, 0.02, 60000, 2.0

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			if i%2 == 0 {
				s.Commit(a, CalibrationRecord{})
			} else {
				s.Commit(b, CalibrationRecord{})
			}
		}
		close(done)
	}()

	for {
		select {
		case <-done:
			wg.Wait()
			assert.Len(t, s.History(), 500)
			return
		default:
		}
		p, _ := s.Snapshot()
		if p != a && p != b {
			t.Fatalf("torn snapshot: %+v", p)
		}
	}
}
