package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/calibration"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/chart"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/config"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/db"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/security"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/store"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/units"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/version"
)

func addConditionFlags(cmd *cobra.Command, f *conditionFlags) {
	fs := cmd.Flags()
	fs.Float64Var(&f.c.ActivationTime, "activation-time", 45, "Minutes since marker activation")
	fs.Float64Var(&f.c.WaterTemp, "water-temp", 8.5, "Water temperature (°C)")
	fs.Float64Var(&f.c.WindSpeed, "wind-speed", 5.2, "Wind speed (m/s)")
	fs.Float64Var(&f.c.Precipitation, "precipitation", 2.4, "Precipitation (mm/h)")
	fs.Float64Var(&f.c.WaveHeight, "wave-height", 1.2, "Significant wave height (m)")
	fs.Float64Var(&f.c.AmbientLight, "ambient-light", 0.002, "Ambient light (lux)")
	fs.StringVar(&f.sensor, "sensor", model.SensorDrone.String(), "Sensor type: human, drone or nvg")
	fs.StringVar(&f.windUnit, "wind-unit", units.MPS, "Unit of --wind-speed: "+strings.Join(units.ValidSpeedUnits, ", "))
	fs.StringVar(&f.tempUnit, "temp-unit", units.Celsius, "Unit of --water-temp: c or f")
}

func newPredictCmd(a *app) *cobra.Command {
	var f conditionFlags
	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Predict the detection range for one set of conditions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.resolve()
			if err != nil {
				return err
			}
			pred, err := a.model.Predict(cmd.Context(), c)
			var cerr *model.ComputationError
			if err != nil && !errors.As(err, &cerr) {
				return err
			}
			if perr := a.printJSON(pred); perr != nil {
				return perr
			}
			return err
		},
	}
	addConditionFlags(cmd, &f)
	return cmd
}

func newCalibrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "calibrate <observations.json|observations.csv|->",
		Short: "Fit the model to a batch of field observations",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readObservations(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, cancel := a.calibrationContext(cmd.Context())
			defer cancel()

			res, err := a.calib.Fit(ctx, rows)
			if errors.Is(err, calibration.ErrEmptyInput) {
				return fmt.Errorf("%s contains no observations: %w", args[0], err)
			}
			if perr := a.printJSON(res); perr != nil {
				return perr
			}
			return err
		},
	}
}

func newObserveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "observe <observations.json|observations.csv|->",
		Short: "Feed observations through the continuous-learning buffer",
		Long: `observe adds each observation to the validation buffer in order. Every time
the buffer fills, the model is recalibrated on the buffered rows and the
buffer is cleared. Rows still buffered at exit are reported and discarded.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := readObservations(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			ctx, cancel := a.calibrationContext(cmd.Context())
			defer cancel()

			var fits []calibration.Result
			for _, r := range rows {
				res, fitted, err := a.calib.AddObservation(ctx, r)
				if err != nil {
					return err
				}
				if fitted {
					fits = append(fits, res)
				}
			}
			pending := a.store.BufferLen()
			if pending > 0 {
				logf("%d observations below the flush size of %d were not used", pending, a.calib.FlushSize())
			}
			return a.printJSON(struct {
				Observations int                  `json:"observations"`
				Fits         []calibration.Result `json:"fits"`
				Pending      int                  `json:"pending"`
			}{len(rows), fits, pending})
		},
	}
}

func newCurveCmd(a *app) *cobra.Command {
	var (
		f        conditionFlags
		maxMin   float64
		step     float64
		htmlPath string
		pngPath  string
		outDir   string
	)
	cmd := &cobra.Command{
		Use:   "curve",
		Short: "Sweep activation time and chart the predicted range",
		Long: `curve predicts the detection range every --step minutes from activation up
to --max minutes. With --html or --png it renders a chart; with --out-dir it
writes both, named after the chart title. Otherwise the points are printed as
JSON. Output files must lie under the working or temp directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := f.resolve()
			if err != nil {
				return err
			}
			title := fmt.Sprintf("Detection range (%s, %.1f°C, wind %.1f m/s)", c.Sensor, c.WaterTemp, c.WindSpeed)
			if outDir != "" {
				base := filepath.Join(outDir, security.SanitizeFilename(title))
				if htmlPath == "" {
					htmlPath = base + ".html"
				}
				if pngPath == "" {
					pngPath = base + ".png"
				}
			}
			for _, p := range []string{htmlPath, pngPath} {
				if p == "" {
					continue
				}
				if err := security.ValidateExportPath(p); err != nil {
					return err
				}
			}

			pts, err := chart.RangeCurve(cmd.Context(), a.model, c, maxMin, step)
			if err != nil {
				return err
			}
			if htmlPath != "" {
				if err := writeHTML(htmlPath, title, pts); err != nil {
					return err
				}
				logf("wrote %s", htmlPath)
			}
			if pngPath != "" {
				if err := chart.SavePNG(pngPath, title, pts); err != nil {
					return err
				}
				logf("wrote %s", pngPath)
			}
			if htmlPath == "" && pngPath == "" {
				return a.printJSON(pts)
			}
			return nil
		},
	}
	addConditionFlags(cmd, &f)
	cmd.Flags().Float64Var(&maxMin, "max", 360, "Longest activation time to sweep (minutes)")
	cmd.Flags().Float64Var(&step, "step", 15, "Sweep step (minutes)")
	cmd.Flags().StringVar(&htmlPath, "html", "", "Write an interactive HTML chart to this path")
	cmd.Flags().StringVar(&pngPath, "png", "", "Write a PNG chart to this path")
	cmd.Flags().StringVar(&outDir, "out-dir", "", "Write both charts into this directory")
	return cmd
}

func writeHTML(path, title string, pts []chart.Point) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := chart.RenderHTML(out, title, pts); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func newHistoryCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past calibrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			hist := a.store.History()
			if asJSON {
				return a.printJSON(hist)
			}
			tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tVERSION\tWHEN\tROWS\tMAE (m)\tSUCCESS\tSTATUS")
			for _, r := range hist {
				fmt.Fprintf(tw, "%d\t%d\t%s\t%d\t%.3f\t%t\t%s\n",
					r.Iteration, r.ParamsVersion, r.Timestamp.Format(time.RFC3339), r.Rows, r.MAE, r.Success, r.Status)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print records as JSON")
	return cmd
}

// modelInfo summarises the running model.
type modelInfo struct {
	ModelVersion      string                   `json:"model_version"`
	Build             string                   `json:"build"`
	Parameters        model.Parameters         `json:"parameters"`
	ParamsVersion     uint64                   `json:"params_version"`
	Calibrations      int                      `json:"calibration_count"`
	LastCalibration   *store.CalibrationRecord `json:"last_calibration,omitempty"`
	BufferedRows      int                      `json:"buffered_rows"`
	FlushSize         int                      `json:"flush_size"`
	Samples           int                      `json:"monte_carlo_samples"`
	SupportedSensors  []model.SensorKind       `json:"supported_sensors"`
	OperationalRanges []model.Range            `json:"operational_ranges"`
	FitBounds         []calibration.Bound      `json:"fit_bounds"`
}

func newInfoCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show parameters, calibration state and supported inputs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, v := a.store.Snapshot()
			info := modelInfo{
				ModelVersion:      version.ModelVersion,
				Build:             version.String(),
				Parameters:        p,
				ParamsVersion:     v,
				Calibrations:      len(a.store.History()),
				BufferedRows:      a.store.BufferLen(),
				FlushSize:         a.calib.FlushSize(),
				Samples:           a.model.Uncertainty().Samples,
				SupportedSensors:  model.SensorKinds,
				OperationalRanges: model.OperationalRanges,
				FitBounds:         calibration.Bounds[:],
			}
			if last, ok := a.store.LastRecord(); ok {
				info.LastCalibration = &last
			}
			return a.printJSON(info)
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	var o config.ParameterOverrides
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Explicitly change model parameters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fs := cmd.Flags()
			var changed config.ParameterOverrides
			for name, pair := range map[string]struct{ src, dst **float64 }{
				"I0": {&o.I0, &changed.I0}, "A": {&o.A, &changed.A}, "Ea": {&o.Ea, &changed.Ea},
				"alpha0": {&o.Alpha0, &changed.Alpha0}, "alpha1": {&o.Alpha1, &changed.Alpha1},
				"alpha2": {&o.Alpha2, &changed.Alpha2}, "alpha3": {&o.Alpha3, &changed.Alpha3},
				"alpha4": {&o.Alpha4, &changed.Alpha4}, "beta": {&o.Beta, &changed.Beta},
				"gamma": {&o.Gamma, &changed.Gamma}, "k_human": {&o.KHuman, &changed.KHuman},
				"k_drone": {&o.KDrone, &changed.KDrone}, "k_nvg": {&o.KNVG, &changed.KNVG},
			} {
				if fs.Changed(name) {
					*pair.dst = *pair.src
				}
			}
			if err := (&config.ModelConfig{Parameters: &changed}).Validate(); err != nil {
				return err
			}

			v := a.store.Update(func(p *model.Parameters) { *p = changed.Apply(*p) })
			p, _ := a.store.Snapshot()
			if a.db != nil {
				if err := a.db.SaveSnapshot(cmd.Context(), v, p, db.SourceManual); err != nil {
					return fmt.Errorf("saving parameters: %w", err)
				}
			}
			return a.printJSON(struct {
				ParamsVersion uint64           `json:"params_version"`
				Parameters    model.Parameters `json:"parameters"`
			}{v, p})
		},
	}

	// Each flag writes through a pointer that is only read when Changed.
	o = config.ParameterOverrides{
		I0: new(float64), A: new(float64), Ea: new(float64),
		Alpha0: new(float64), Alpha1: new(float64), Alpha2: new(float64), Alpha3: new(float64), Alpha4: new(float64),
		Beta: new(float64), Gamma: new(float64), KHuman: new(float64), KDrone: new(float64), KNVG: new(float64),
	}
	fs := cmd.Flags()
	fs.Float64Var(o.I0, "I0", 0, "Initial intensity (lux)")
	fs.Float64Var(o.A, "A", 0, "Arrhenius pre-exponential factor (1/min)")
	fs.Float64Var(o.Ea, "Ea", 0, "Activation energy (J/mol)")
	fs.Float64Var(o.Alpha0, "alpha0", 0, "Base attenuation (1/m)")
	fs.Float64Var(o.Alpha1, "alpha1", 0, "Wind attenuation coefficient")
	fs.Float64Var(o.Alpha2, "alpha2", 0, "Precipitation attenuation coefficient")
	fs.Float64Var(o.Alpha3, "alpha3", 0, "Wave attenuation coefficient")
	fs.Float64Var(o.Alpha4, "alpha4", 0, "Precipitation-wave interaction coefficient")
	fs.Float64Var(o.Beta, "beta", 0, "Wind exponent")
	fs.Float64Var(o.Gamma, "gamma", 0, "Ambient light threshold gain")
	fs.Float64Var(o.KHuman, "k_human", 0, "Human eye base threshold (lux)")
	fs.Float64Var(o.KDrone, "k_drone", 0, "Drone camera base threshold (lux)")
	fs.Float64Var(o.KNVG, "k_nvg", 0, "Night-vision base threshold (lux)")
	return cmd
}

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQLite schema",
	}
	withDB := func(fn func(*db.DB) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			database, err := db.OpenDB(a.dbPath)
			if err != nil {
				return err
			}
			defer database.Close()
			return fn(database)
		}
	}
	status := func(database *db.DB) error {
		v, dirty, err := database.MigrateVersion()
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "%s: schema version %d (dirty=%t)\n", a.dbPath, v, dirty)
		return nil
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(database *db.DB) error {
				if err := database.MigrateUp(); err != nil {
					return err
				}
				return status(database)
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(database *db.DB) error {
				if err := database.MigrateDown(); err != nil {
					return err
				}
				return status(database)
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the applied schema version",
			Args:  cobra.NoArgs,
			RunE:  withDB(status),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Record a schema version without migrating (recovers a dirty state)",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid version %q: %w", args[0], err)
				}
				return withDB(func(database *db.DB) error {
					if err := database.MigrateForce(v); err != nil {
						return err
					}
					return status(database)
				})(cmd, args)
			},
		},
	)
	return cmd
}
