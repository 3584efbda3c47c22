package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/units"
)

// conditionFlags holds the per-field flags shared by predict and curve.
type conditionFlags struct {
	c        model.Conditions
	sensor   string
	windUnit string
	tempUnit string
}

// resolve converts the flag values to model units and validates them.
func (f *conditionFlags) resolve() (model.Conditions, error) {
	kind, err := model.ParseSensorKind(f.sensor)
	if err != nil {
		return model.Conditions{}, err
	}
	c := f.c
	c.Sensor = kind
	if c.WindSpeed, err = units.SpeedToMPS(c.WindSpeed, f.windUnit); err != nil {
		return model.Conditions{}, err
	}
	if c.WaterTemp, err = units.TemperatureToCelsius(c.WaterTemp, f.tempUnit); err != nil {
		return model.Conditions{}, err
	}
	if err := c.Validate(); err != nil {
		return model.Conditions{}, err
	}
	return c, nil
}

// readObservations loads rows from a .json array or a .csv file with a header
// naming the fields. "-" reads JSON from stdin.
func readObservations(path string, stdin io.Reader) ([]model.Observation, error) {
	var (
		rows []model.Observation
		err  error
	)
	switch {
	case path == "-":
		rows, err = decodeObservationsJSON(stdin)
	case strings.EqualFold(filepath.Ext(path), ".csv"):
		rows, err = readFile(path, decodeObservationsCSV)
	default:
		rows, err = readFile(path, decodeObservationsJSON)
	}
	if err != nil {
		return nil, err
	}
	for i, r := range rows {
		if err := validateObservation(r); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
	}
	return rows, nil
}

func readFile(path string, decode func(io.Reader) ([]model.Observation, error)) ([]model.Observation, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return decode(f)
}

func validateObservation(r model.Observation) error {
	var errs []error
	if err := r.Conditions.Validate(); err != nil {
		errs = append(errs, err)
	}
	if !(r.ObservedDistance >= 0) {
		errs = append(errs, fmt.Errorf("actual_distance must be non-negative, got %g", r.ObservedDistance))
	}
	return errors.Join(errs...)
}

func decodeObservationsJSON(r io.Reader) ([]model.Observation, error) {
	var rows []model.Observation
	if err := json.NewDecoder(r).Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse observations JSON: %w", err)
	}
	return rows, nil
}

var csvColumns = []string{
	"activation_time", "water_temp", "wind_speed", "precipitation",
	"wave_height", "ambient_light", "sensor_type", "actual_distance",
}

func decodeObservationsCSV(r io.Reader) ([]model.Observation, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, col := range csvColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("CSV header is missing column %q", col)
		}
	}

	var rows []model.Observation
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		num := func(col string) (float64, error) {
			v, err := strconv.ParseFloat(strings.TrimSpace(rec[index[col]]), 64)
			if err != nil {
				return 0, fmt.Errorf("line %d: %s: %w", line, col, err)
			}
			return v, nil
		}

		var obs model.Observation
		targets := []struct {
			col string
			dst *float64
		}{
			{"activation_time", &obs.ActivationTime},
			{"water_temp", &obs.WaterTemp},
			{"wind_speed", &obs.WindSpeed},
			{"precipitation", &obs.Precipitation},
			{"wave_height", &obs.WaveHeight},
			{"ambient_light", &obs.AmbientLight},
			{"actual_distance", &obs.ObservedDistance},
		}
		for _, t := range targets {
			if *t.dst, err = num(t.col); err != nil {
				return nil, err
			}
		}
		if obs.Sensor, err = model.ParseSensorKind(rec[index["sensor_type"]]); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, obs)
	}
	return rows, nil
}
