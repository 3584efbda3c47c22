// Package testutil provides shared fixtures for package tests.
package testutil

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
)

// ScenarioConditions returns a representative night search: a drone camera
// looking for a 45-minute-old marker in moderate weather.
func ScenarioConditions() model.Conditions {
	return model.Conditions{
		ActivationTime: 45,
		WaterTemp:      8.5,
		WindSpeed:      5.2,
		Precipitation:  2.4,
		WaveHeight:     1.2,
		AmbientLight:   0.002,
		Sensor:         model.SensorDrone,
	}
}

// SyntheticObservations returns n deterministic observations spread across
// the operational ranges and all sensors, each with the distance p predicts.
func SyntheticObservations(p model.Parameters, n int) []model.Observation {
	rows := make([]model.Observation, n)
	for i := range rows {
		f := float64(i)
		c := model.Conditions{
			ActivationTime: 10 + math.Mod(f*37, 300),
			WaterTemp:      4 + math.Mod(f*3.3, 20),
			WindSpeed:      1 + math.Mod(f*2.7, 14),
			Precipitation:  math.Mod(f*1.9, 8),
			WaveHeight:     0.2 + math.Mod(f*0.45, 2.5),
			AmbientLight:   0.0005 + math.Mod(f*0.0013, 0.01),
			Sensor:         model.SensorKinds[i%len(model.SensorKinds)],
		}
		rows[i] = model.Observation{Conditions: c, ObservedDistance: model.Distance(p, c)}
	}
	return rows
}

// TempDBPath returns a SQLite path inside a per-test temporary directory.
func TempDBPath(t testing.TB) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "luxbio.db")
}
