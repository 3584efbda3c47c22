package model

import (
	"fmt"
	"math"
)

// Failure flag texts, in check order.
const (
	FlagLowBrightness    = "Low brightness"
	FlagHeavyAttenuation = "Heavy attenuation"
	FlagVeryShortRange   = "Very short range"
	FlagWeakSignal       = "Weak signal"
)

const (
	heavyAttenuation = 0.05 // 1/m
	shortRange       = 50.0 // m
	weakSignal       = 0.1  // lux

	// Score component scales: an SNR of 1000 earns full marks, attenuation
	// of 0.1/m or worse earns none, and 1 km of range earns full marks.
	snrDecades      = 3.0
	attenuationSpan = 0.1
	distanceSpan    = 1000.0

	snrWeight         = 0.4
	attenuationWeight = 0.3
	distanceWeight    = 0.3
)

func clamp01(v float64) float64 {
	return math.Min(math.Max(v, 0), 1)
}

// PerformanceScore rates a prediction from 0 to 100. It starts at 100 and
// subtracts weighted penalties for a poor signal-to-noise ratio, strong
// attenuation and a short range.
func PerformanceScore(b Breakdown) float64 {
	var snrScore float64
	if b.Intensity > 0 && b.Threshold > 0 {
		snrScore = clamp01(math.Log10(b.SNR()) / snrDecades)
	}
	snrPenalty := 100 * (1 - snrScore)
	attPenalty := 100 * clamp01(b.Attenuation/attenuationSpan)
	distPenalty := 100 * (1 - clamp01(b.Distance/distanceSpan))

	score := 100 - snrWeight*snrPenalty - attenuationWeight*attPenalty - distanceWeight*distPenalty
	if math.IsNaN(score) {
		return 0
	}
	return math.Min(math.Max(score, 0), 100)
}

// FailureFlags applies the independent rule checks. Several may fire at once.
func FailureFlags(b Breakdown) []string {
	flags := []string{}
	if b.Intensity < b.Threshold {
		flags = append(flags, FlagLowBrightness)
	}
	if b.Attenuation > heavyAttenuation {
		flags = append(flags, FlagHeavyAttenuation)
	}
	if b.Distance < shortRange {
		flags = append(flags, FlagVeryShortRange)
	}
	if b.Intensity < weakSignal {
		flags = append(flags, FlagWeakSignal)
	}
	return flags
}

// SystemConditions describes the physics quantities followed by notes on
// environmental inputs near the edge of the operational envelope. The first
// four entries are always present.
func SystemConditions(b Breakdown, c Conditions) []string {
	out := []string{
		fmt.Sprintf("Light intensity: %.3f lux", b.Intensity),
		fmt.Sprintf("Attenuation: %.4f m^-1", b.Attenuation),
		fmt.Sprintf("Detection threshold: %.4f lux", b.Threshold),
		fmt.Sprintf("Signal-to-noise ratio: %.1f", b.SNR()),
	}
	switch {
	case c.WaterTemp < 5:
		out = append(out, "Low water temperature slows light decay")
	case c.WaterTemp > 25:
		out = append(out, "High water temperature accelerates light decay")
	}
	if c.WindSpeed > 15 {
		out = append(out, "High wind speed may cause surface disturbances")
	}
	if c.WaveHeight > 3 {
		out = append(out, "High wave activity may interfere with detection")
	}
	if c.AmbientLight > 0.05 {
		out = append(out, "High ambient light may reduce detection sensitivity")
	}
	if c.ActivationTime > 300 {
		out = append(out, "Long activation time may reduce signal strength")
	}
	return out
}
