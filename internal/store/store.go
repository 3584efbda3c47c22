// Package store holds the live model parameters, the append-only calibration
// history and the continuous-learning observation buffer.
//
// A Store is an explicit handle: predictions and the calibrator receive it
// rather than reaching for a package-level singleton. All access goes through
// a single RWMutex. Parameters are stored by value, so a Snapshot can never
// observe a partially written set.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/timeutil"
)

// CalibrationRecord describes one completed calibration. Records are never
// modified after they are appended.
type CalibrationRecord struct {
	ID              string           `json:"id"`
	Iteration       int              `json:"iteration"`
	Parameters      model.Parameters `json:"parameters"`
	ParamsVersion   uint64           `json:"params_version"`
	MAE             float64          `json:"mae"`
	Success         bool             `json:"success"`
	Status          string           `json:"status"`
	MajorIterations int              `json:"major_iterations"`
	Evaluations     int              `json:"evaluations"`
	Rows            int              `json:"rows"`
	Timestamp       time.Time        `json:"timestamp"`
}

// Store is safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	params  model.Parameters
	version uint64
	history []CalibrationRecord
	buffer  []model.Observation
	clock   timeutil.Clock
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to timestamp records.
func WithClock(c timeutil.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// New returns a Store holding p at version 0.
func New(p model.Parameters, opts ...Option) *Store {
	s := &Store{params: p, clock: timeutil.RealClock{}}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns the current parameters and their version. It implements
// model.ParameterSource.
func (s *Store) Snapshot() (model.Parameters, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.params, s.version
}

// Version returns the current parameter version.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Update applies an explicit user edit to the parameters and bumps the
// version. fn receives a copy; the result is installed atomically.
func (s *Store) Update(fn func(*model.Parameters)) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	p := s.params
	fn(&p)
	s.params = p
	s.version++
	return s.version
}

// Commit installs p and appends rec in one step. The record's ID, iteration
// index, version and timestamp are assigned here; the stored copy is returned.
func (s *Store) Commit(p model.Parameters, rec CalibrationRecord) CalibrationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.params = p
	s.version++

	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.Iteration = len(s.history) + 1
	rec.Parameters = p
	rec.ParamsVersion = s.version
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.clock.Now().UTC()
	}
	s.history = append(s.history, rec)
	return rec
}

// History returns a copy of the calibration records, oldest first.
func (s *Store) History() []CalibrationRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]CalibrationRecord, len(s.history))
	copy(out, s.history)
	return out
}

// LastRecord returns the most recent calibration record, if any.
func (s *Store) LastRecord() (CalibrationRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return CalibrationRecord{}, false
	}
	return s.history[len(s.history)-1], true
}

// Restore replaces the parameters and history, typically with state loaded
// from persistent storage at startup. The buffer is left untouched.
func (s *Store) Restore(p model.Parameters, version uint64, history []CalibrationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = p
	s.version = version
	s.history = append([]CalibrationRecord(nil), history...)
}

// AppendObservation adds obs to the buffer. When the buffer reaches flushAt
// entries it is drained in the same critical section and the drained rows are
// returned; otherwise the result is nil. Concurrent callers therefore never
// drain the same rows twice.
func (s *Store) AppendObservation(obs model.Observation, flushAt int) []model.Observation {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buffer = append(s.buffer, obs)
	if flushAt <= 0 || len(s.buffer) < flushAt {
		return nil
	}
	drained := s.buffer
	s.buffer = nil
	return drained
}

// BufferLen returns the number of buffered observations.
func (s *Store) BufferLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.buffer)
}

// Buffered returns a copy of the buffered observations.
func (s *Store) Buffered() []model.Observation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Observation, len(s.buffer))
	copy(out, s.buffer)
	return out
}
