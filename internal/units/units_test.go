package units

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedToMPS(t *testing.T) {
	tests := []struct {
		v    float64
		unit string
		want float64
	}{
		{5.2, MPS, 5.2},
		{10, KNOTS, 5.144444444},
		{36, KPH, 10},
		{36, KMPH, 10},
		{10, MPH, 4.4704},
		{10, " Knots ", 5.144444444},
	}
	for _, tt := range tests {
		got, err := SpeedToMPS(tt.v, tt.unit)
		require.NoError(t, err, tt.unit)
		assert.InDelta(t, tt.want, got, 1e-6, tt.unit)
	}

	_, err := SpeedToMPS(1, "furlongs")
	assert.Error(t, err)
}

func TestConvertSpeedRoundTrip(t *testing.T) {
	for _, unit := range ValidSpeedUnits {
		assert.True(t, IsValidSpeed(unit))
		mps, err := SpeedToMPS(ConvertSpeed(7.5, unit), unit)
		require.NoError(t, err)
		assert.InDelta(t, 7.5, mps, 1e-9, unit)
	}
	assert.False(t, IsValidSpeed("beaufort"))
	assert.Equal(t, 3.0, ConvertSpeed(3, "beaufort"))
}

func TestTemperatureToCelsius(t *testing.T) {
	c, err := TemperatureToCelsius(8.5, Celsius)
	require.NoError(t, err)
	assert.Equal(t, 8.5, c)

	c, err = TemperatureToCelsius(50, Fahrenheit)
	require.NoError(t, err)
	assert.InDelta(t, 10, c, 1e-12)

	c, err = TemperatureToCelsius(28.4, "F")
	require.NoError(t, err)
	assert.InDelta(t, -2, c, 1e-12)

	_, err = TemperatureToCelsius(300, "kelvin")
	assert.Error(t, err)
}
