package monitoring

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) {
		called = true
	})
	Logf("test message")
	assert.True(t, called, "custom logger was not called")

	// nil installs a no-op
	called = false
	SetLogger(nil)
	Logf("test message")
	assert.False(t, called)
}

func TestTaggedFollowsCurrentLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	logf := Tagged("calibration")

	var lines []string
	SetLogger(func(format string, v ...interface{}) {
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	logf("fit on %d rows", 10)

	assert.Equal(t, []string{"[calibration] fit on 10 rows"}, lines)
}

func TestLogf_Default(t *testing.T) {
	assert.NotNil(t, Logf)
	assert.NotPanics(t, func() { Logf("test message: %s", "value") })
}
