package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/calibration"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
)

// DefaultConfigPath is the path of the checked-in defaults file.
const DefaultConfigPath = "config/luxbio.defaults.json"

const (
	DefaultDBPath             = "luxbio.db"
	DefaultCalibrationTimeout = 2 * time.Minute
)

// ParameterOverrides replaces individual model parameters. Nil fields keep
// the built-in value.
type ParameterOverrides struct {
	I0     *float64 `json:"I0,omitempty"`
	A      *float64 `json:"A,omitempty"`
	Ea     *float64 `json:"Ea,omitempty"`
	Alpha0 *float64 `json:"alpha0,omitempty"`
	Alpha1 *float64 `json:"alpha1,omitempty"`
	Alpha2 *float64 `json:"alpha2,omitempty"`
	Alpha3 *float64 `json:"alpha3,omitempty"`
	Alpha4 *float64 `json:"alpha4,omitempty"`
	Beta   *float64 `json:"beta,omitempty"`
	Gamma  *float64 `json:"gamma,omitempty"`
	KHuman *float64 `json:"k_human,omitempty"`
	KDrone *float64 `json:"k_drone,omitempty"`
	KNVG   *float64 `json:"k_nvg,omitempty"`
}

// Apply returns p with every non-nil override substituted.
func (o *ParameterOverrides) Apply(p model.Parameters) model.Parameters {
	if o == nil {
		return p
	}
	set := func(dst *float64, v *float64) {
		if v != nil {
			*dst = *v
		}
	}
	set(&p.I0, o.I0)
	set(&p.A, o.A)
	set(&p.Ea, o.Ea)
	set(&p.Alpha0, o.Alpha0)
	set(&p.Alpha1, o.Alpha1)
	set(&p.Alpha2, o.Alpha2)
	set(&p.Alpha3, o.Alpha3)
	set(&p.Alpha4, o.Alpha4)
	set(&p.Beta, o.Beta)
	set(&p.Gamma, o.Gamma)
	set(&p.KSensor.Human, o.KHuman)
	set(&p.KSensor.Drone, o.KDrone)
	set(&p.KSensor.NVG, o.KNVG)
	return p
}

// ModelConfig is the root configuration. Every field is optional; the Get*
// methods supply defaults for anything the file leaves out.
type ModelConfig struct {
	Parameters *ParameterOverrides `json:"parameters,omitempty"`

	// Monte Carlo
	Samples *int    `json:"samples,omitempty"`
	Seed    *uint64 `json:"seed,omitempty"`
	Workers *int    `json:"workers,omitempty"`

	// Calibration
	FlushSize          *int    `json:"flush_size,omitempty"`
	MaxIterations      *int    `json:"max_iterations,omitempty"`
	CalibrationTimeout *string `json:"calibration_timeout,omitempty"` // duration string like "90s"

	DBPath *string `json:"db_path,omitempty"`
}

// LoadConfig reads a ModelConfig from a .json file of at most 1 MB. Fields
// omitted from the file keep their defaults, so partial configs are safe.
func LoadConfig(path string) (*ModelConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &ModelConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate reports every out-of-range value.
func (c *ModelConfig) Validate() error {
	var errs []error
	if c.Samples != nil && *c.Samples < 1 {
		errs = append(errs, fmt.Errorf("samples must be positive, got %d", *c.Samples))
	}
	if c.Workers != nil && *c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be non-negative, got %d", *c.Workers))
	}
	if c.FlushSize != nil && *c.FlushSize < 1 {
		errs = append(errs, fmt.Errorf("flush_size must be positive, got %d", *c.FlushSize))
	}
	if c.MaxIterations != nil && *c.MaxIterations < 1 {
		errs = append(errs, fmt.Errorf("max_iterations must be positive, got %d", *c.MaxIterations))
	}
	if c.CalibrationTimeout != nil && *c.CalibrationTimeout != "" {
		if _, err := time.ParseDuration(*c.CalibrationTimeout); err != nil {
			errs = append(errs, fmt.Errorf("invalid calibration_timeout '%s': %w", *c.CalibrationTimeout, err))
		}
	}
	if o := c.Parameters; o != nil {
		for name, v := range map[string]*float64{"I0": o.I0, "A": o.A, "Ea": o.Ea, "beta": o.Beta} {
			if v != nil && *v <= 0 {
				errs = append(errs, fmt.Errorf("parameter %s must be positive, got %g", name, *v))
			}
		}
		for name, v := range map[string]*float64{
			"alpha0": o.Alpha0, "alpha1": o.Alpha1, "alpha2": o.Alpha2, "alpha3": o.Alpha3,
			"alpha4": o.Alpha4, "gamma": o.Gamma, "k_human": o.KHuman, "k_drone": o.KDrone, "k_nvg": o.KNVG,
		} {
			if v != nil && *v < 0 {
				errs = append(errs, fmt.Errorf("parameter %s must be non-negative, got %g", name, *v))
			}
		}
	}
	return errors.Join(errs...)
}

// GetParameters returns the built-in defaults with any overrides applied.
func (c *ModelConfig) GetParameters() model.Parameters {
	return c.Parameters.Apply(model.DefaultParameters())
}

// GetSamples returns the Monte Carlo sample count or the default.
func (c *ModelConfig) GetSamples() int {
	if c.Samples == nil {
		return model.DefaultSamples
	}
	return *c.Samples
}

// GetSeed returns the Monte Carlo seed or 0.
func (c *ModelConfig) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetWorkers returns the sampler worker count. 0 means one per CPU.
func (c *ModelConfig) GetWorkers() int {
	if c.Workers == nil {
		return 0
	}
	return *c.Workers
}

// GetFlushSize returns the observation buffer size that triggers a fit.
func (c *ModelConfig) GetFlushSize() int {
	if c.FlushSize == nil {
		return calibration.DefaultFlushSize
	}
	return *c.FlushSize
}

// GetMaxIterations returns the optimiser iteration cap.
func (c *ModelConfig) GetMaxIterations() int {
	if c.MaxIterations == nil {
		return calibration.DefaultMaxIterations
	}
	return *c.MaxIterations
}

// GetCalibrationTimeout parses and returns CalibrationTimeout.
func (c *ModelConfig) GetCalibrationTimeout() time.Duration {
	if c.CalibrationTimeout == nil || *c.CalibrationTimeout == "" {
		return DefaultCalibrationTimeout
	}
	d, err := time.ParseDuration(*c.CalibrationTimeout)
	if err != nil {
		return DefaultCalibrationTimeout
	}
	return d
}

// GetDBPath returns the SQLite path or the default.
func (c *ModelConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return DefaultDBPath
	}
	return *c.DBPath
}

// ModelOptions converts the Monte Carlo settings to model options.
func (c *ModelConfig) ModelOptions() []model.Option {
	return []model.Option{
		model.WithSamples(c.GetSamples()),
		model.WithSeed(c.GetSeed()),
		model.WithWorkers(c.GetWorkers()),
	}
}

// CalibrationOptions converts the calibration settings to calibrator options.
func (c *ModelConfig) CalibrationOptions() []calibration.Option {
	return []calibration.Option{
		calibration.WithFlushSize(c.GetFlushSize()),
		calibration.WithMaxIterations(c.GetMaxIterations()),
	}
}
