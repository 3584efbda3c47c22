package model

import (
	"errors"
	"fmt"
	"math"
)

// Conditions are the environmental, temporal and sensor inputs of a single
// prediction.
type Conditions struct {
	ActivationTime float64    `json:"activation_time"` // minutes since activation
	WaterTemp      float64    `json:"water_temp"`      // °C
	WindSpeed      float64    `json:"wind_speed"`      // m/s
	Precipitation  float64    `json:"precipitation"`   // mm/h
	WaveHeight     float64    `json:"wave_height"`     // m
	AmbientLight   float64    `json:"ambient_light"`   // lux
	Sensor         SensorKind `json:"sensor_type"`
}

// Range is a closed operational interval for one input.
type Range struct {
	Name string  `json:"name"`
	Unit string  `json:"unit"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

// Contains reports whether v lies in the interval.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

func (r Range) String() string {
	return fmt.Sprintf("%s (%g to %g %s)", r.Name, r.Min, r.Max, r.Unit)
}

// OperationalRanges are the documented input domains. The physics functions
// do not enforce them; Validate is for the input boundary.
var OperationalRanges = []Range{
	{Name: "activation_time", Unit: "min", Min: 0, Max: 360},
	{Name: "water_temp", Unit: "°C", Min: -2, Max: 30},
	{Name: "wind_speed", Unit: "m/s", Min: 0, Max: 25},
	{Name: "precipitation", Unit: "mm/h", Min: 0, Max: 50},
	{Name: "wave_height", Unit: "m", Min: 0, Max: 10},
	{Name: "ambient_light", Unit: "lux", Min: 0.0001, Max: 0.1},
}

func (c Conditions) values() []float64 {
	return []float64{c.ActivationTime, c.WaterTemp, c.WindSpeed, c.Precipitation, c.WaveHeight, c.AmbientLight}
}

// Validate checks every input against OperationalRanges and returns all
// violations joined together.
func (c Conditions) Validate() error {
	var errs []error
	for i, v := range c.values() {
		r := OperationalRanges[i]
		if math.IsNaN(v) || !r.Contains(v) {
			errs = append(errs, fmt.Errorf("%s=%g outside %g..%g %s", r.Name, v, r.Min, r.Max, r.Unit))
		}
	}
	if c.Sensor > SensorNVG {
		errs = append(errs, fmt.Errorf("sensor_type %d is not a known sensor", c.Sensor))
	}
	return errors.Join(errs...)
}
