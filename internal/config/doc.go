// Package config loads the JSON file that tunes the detection model, its
// Monte Carlo sampler, the calibrator and the persistence layer.
package config
