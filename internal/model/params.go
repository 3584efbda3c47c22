// Package model implements the physics of bioluminescent marker detection:
// Arrhenius light decay, environmental attenuation, sensor detection
// thresholds and the Beer-Lambert range inversion, plus the composite
// prediction with a Monte Carlo confidence interval.
//
// All functions take the parameter set explicitly. Nothing in this package
// holds mutable shared state; the live parameter set belongs to the caller
// (see internal/store) and is read once per prediction.
package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// SensorKind is the closed set of detector types. The zero value is
// SensorDrone, matching the fallback used for unrecognised kinds.
type SensorKind uint8

const (
	SensorDrone SensorKind = iota
	SensorHuman
	SensorNVG
)

// SensorKinds lists every supported kind in presentation order.
var SensorKinds = []SensorKind{SensorHuman, SensorDrone, SensorNVG}

// String returns the wire identifier for the kind.
func (k SensorKind) String() string {
	switch k {
	case SensorHuman:
		return "human"
	case SensorNVG:
		return "nvg"
	default:
		return "drone"
	}
}

// ParseSensorKind maps an identifier to its kind. Unknown identifiers are
// rejected here, at the boundary, rather than silently mapped inside the core.
func ParseSensorKind(s string) (SensorKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "human":
		return SensorHuman, nil
	case "drone":
		return SensorDrone, nil
	case "nvg":
		return SensorNVG, nil
	}
	return SensorDrone, fmt.Errorf("unknown sensor type %q (want human, drone or nvg)", s)
}

// MarshalJSON encodes the kind as its identifier.
func (k SensorKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes an identifier, rejecting unknown kinds.
func (k *SensorKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("sensor type: %w", err)
	}
	parsed, err := ParseSensorKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// SensorConstants holds the minimum detectable intensity (lux) per sensor.
type SensorConstants struct {
	Human float64 `json:"human"`
	Drone float64 `json:"drone"`
	NVG   float64 `json:"nvg"`
}

// For returns the constant for kind; out-of-range kinds use the drone value.
func (s SensorConstants) For(kind SensorKind) float64 {
	switch kind {
	case SensorHuman:
		return s.Human
	case SensorNVG:
		return s.NVG
	default:
		return s.Drone
	}
}

// Parameters is the full physical parameter set. It is a plain value: copies
// never alias, so a snapshot handed to a prediction cannot change under it.
type Parameters struct {
	I0 float64 `json:"I0"` // initial intensity, lux
	A  float64 `json:"A"`  // Arrhenius pre-factor, 1/min
	Ea float64 `json:"Ea"` // activation energy, J/mol

	Alpha0 float64 `json:"alpha0"` // base attenuation, 1/m
	Alpha1 float64 `json:"alpha1"` // wind^beta term
	Alpha2 float64 `json:"alpha2"` // precipitation term
	Alpha3 float64 `json:"alpha3"` // wave height term
	Alpha4 float64 `json:"alpha4"` // precipitation x wave height term
	Beta   float64 `json:"beta"`

	Gamma float64 `json:"gamma"` // ambient light scaling

	KSensor SensorConstants `json:"k_sensor"`
}

// DefaultParameters returns the uncalibrated parameter set.
func DefaultParameters() Parameters {
	return Parameters{
		I0:     10.0,
		A:      0.015,
		Ea:     50000,
		Alpha0: 0.002,
		Alpha1: 0.02,
		Alpha2: 0.025,
		Alpha3: 0.03,
		Alpha4: 0.002,
		Beta:   1.2,
		Gamma:  1.5,
		KSensor: SensorConstants{
			Human: 0.001,
			Drone: 0.005,
			NVG:   0.0005,
		},
	}
}

// Observation is one field measurement: the conditions under which a marker
// was observed and the distance at which it was last detected.
type Observation struct {
	Conditions
	ObservedDistance float64 `json:"actual_distance"`
}
