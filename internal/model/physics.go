package model

import "math"

const (
	// GasConstant is R in J/(mol·K).
	GasConstant = 8.314
	// KelvinOffset converts °C to K.
	KelvinOffset = 273.15

	// MinAttenuation keeps the range inversion away from a zero divisor.
	MinAttenuation = 0.001
	// MinThreshold keeps the intensity ratio finite.
	MinThreshold = 0.0001
	// MaxRange is the physical sanity bound on any predicted distance, in m.
	MaxRange = 10000.0
)

// DecayRate returns the Arrhenius rate k = A·exp(-Ea/(R·T)) in 1/min for a
// water temperature in °C.
func DecayRate(p Parameters, waterTemp float64) float64 {
	tk := waterTemp + KelvinOffset
	return p.A * math.Exp(-p.Ea/(GasConstant*tk))
}

// LightDecay returns the marker intensity in lux t minutes after activation
// at water temperature T (°C). It is non-increasing in t, decays faster in
// warmer water, and never negative.
func LightDecay(p Parameters, t, waterTemp float64) float64 {
	k := DecayRate(p, waterTemp)
	return math.Max(0, p.I0*math.Exp(-k*t))
}

// Attenuation returns the per-metre attenuation coefficient for the given
// wind (m/s), precipitation (mm/h) and wave height (m), floored at
// MinAttenuation.
func Attenuation(p Parameters, wind, precip, waves float64) float64 {
	c := p.Alpha0 +
		p.Alpha1*math.Pow(wind, p.Beta) +
		p.Alpha2*precip +
		p.Alpha3*waves +
		p.Alpha4*precip*waves
	return math.Max(c, MinAttenuation)
}

// Threshold returns the minimum intensity the sensor can distinguish from
// the given ambient light, floored at MinThreshold.
func Threshold(p Parameters, ambient float64, kind SensorKind) float64 {
	return math.Max(p.KSensor.For(kind)+p.Gamma*ambient, MinThreshold)
}

// MaxDistance inverts I(d) = current·exp(-c·d) = threshold for d. A marker
// at or below threshold is undetectable at any distance, including zero, so
// the result is exactly 0 there. Otherwise the range is clamped to
// [0, MaxRange].
func MaxDistance(current, threshold, attenuation float64) float64 {
	if current <= threshold {
		return 0
	}
	d := math.Log(current/threshold) / attenuation
	return math.Min(math.Max(d, 0), MaxRange)
}

// Breakdown holds the intermediate quantities of one range evaluation.
type Breakdown struct {
	Intensity   float64 `json:"intensity"`
	Threshold   float64 `json:"threshold"`
	Attenuation float64 `json:"attenuation"`
	Distance    float64 `json:"distance"`
}

// SNR is the ratio of current intensity to detection threshold.
func (b Breakdown) SNR() float64 {
	return b.Intensity / b.Threshold
}

// Finite reports whether every quantity is a finite number.
func (b Breakdown) Finite() bool {
	for _, v := range [...]float64{b.Intensity, b.Threshold, b.Attenuation, b.Distance} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Evaluate runs the deterministic physics pipeline for one set of conditions.
func Evaluate(p Parameters, c Conditions) Breakdown {
	b := Breakdown{
		Intensity:   LightDecay(p, c.ActivationTime, c.WaterTemp),
		Threshold:   Threshold(p, c.AmbientLight, c.Sensor),
		Attenuation: Attenuation(p, c.WindSpeed, c.Precipitation, c.WaveHeight),
	}
	b.Distance = MaxDistance(b.Intensity, b.Threshold, b.Attenuation)
	return b
}

// Distance returns only the predicted detection range. It is the hot path of
// the calibration objective and involves no randomness.
func Distance(p Parameters, c Conditions) float64 {
	return Evaluate(p, c).Distance
}
