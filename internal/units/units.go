// Package units converts field-reported wind speeds and water temperatures
// into the SI units the detection model works in.
package units

import (
	"fmt"
	"strings"
)

// Speed units.
const (
	MPS   = "mps"
	KNOTS = "knots"
	KPH   = "kph"
	KMPH  = "kmph"
	MPH   = "mph"
)

// Temperature units.
const (
	Celsius    = "c"
	Fahrenheit = "f"
)

// ValidSpeedUnits lists every accepted speed unit.
var ValidSpeedUnits = []string{MPS, KNOTS, KPH, KMPH, MPH}

// ValidTemperatureUnits lists every accepted temperature unit.
var ValidTemperatureUnits = []string{Celsius, Fahrenheit}

// metres per second per unit
var speedFactor = map[string]float64{
	MPS:   1,
	KNOTS: 1852.0 / 3600.0,
	KPH:   1 / 3.6,
	KMPH:  1 / 3.6,
	MPH:   0.44704,
}

func normalise(unit string) string {
	return strings.ToLower(strings.TrimSpace(unit))
}

// IsValidSpeed reports whether unit is a known speed unit.
func IsValidSpeed(unit string) bool {
	_, ok := speedFactor[normalise(unit)]
	return ok
}

// SpeedToMPS converts v in unit to metres per second.
func SpeedToMPS(v float64, unit string) (float64, error) {
	f, ok := speedFactor[normalise(unit)]
	if !ok {
		return 0, fmt.Errorf("unknown speed unit %q (valid: %s)", unit, strings.Join(ValidSpeedUnits, ", "))
	}
	return v * f, nil
}

// ConvertSpeed converts a speed in metres per second to unit. Unknown units
// return the input unchanged.
func ConvertSpeed(mps float64, unit string) float64 {
	f, ok := speedFactor[normalise(unit)]
	if !ok {
		return mps
	}
	return mps / f
}

// TemperatureToCelsius converts v in unit to degrees Celsius.
func TemperatureToCelsius(v float64, unit string) (float64, error) {
	switch normalise(unit) {
	case Celsius, "celsius":
		return v, nil
	case Fahrenheit, "fahrenheit":
		return (v - 32) * 5 / 9, nil
	default:
		return 0, fmt.Errorf("unknown temperature unit %q (valid: %s)", unit, strings.Join(ValidTemperatureUnits, ", "))
	}
}
