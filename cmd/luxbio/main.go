// Command luxbio predicts how far away a bioluminescent marker can be seen
// and calibrates the underlying physics model against field observations.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/calibration"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/config"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/db"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/monitoring"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/store"
	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/version"
)

const (
	envConfig = "LUXBIO_CONFIG"
	envDB     = "LUXBIO_DB"
)

var logf = monitoring.Tagged("luxbio")

func main() {
	_ = godotenv.Load()
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app is the state shared by every subcommand, built once per invocation.
type app struct {
	configPath string
	dbPath     string
	noDB       bool
	quiet      bool

	cfg   *config.ModelConfig
	store *store.Store
	model *model.Model
	calib *calibration.Calibrator
	db    *db.DB

	out io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:   "luxbio",
		Short: "Bioluminescent marker detection-range model",
		Long: `luxbio predicts the maximum distance at which a bioluminescent marker can
be detected under given environmental conditions, with a Monte Carlo
confidence interval, and calibrates the model against field observations.

Parameters and calibration history persist to SQLite unless --no-db is set.`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", os.Getenv(envConfig), "Path to a JSON model config (env "+envConfig+")")
	pf.StringVar(&a.dbPath, "db", os.Getenv(envDB), "SQLite database path (env "+envDB+", overrides config)")
	pf.BoolVar(&a.noDB, "no-db", false, "Keep all state in memory")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress log output")

	root.AddCommand(
		newPredictCmd(a),
		newCalibrateCmd(a),
		newObserveCmd(a),
		newCurveCmd(a),
		newHistoryCmd(a),
		newInfoCmd(a),
		newSetCmd(a),
		newMigrateCmd(a),
	)
	return root
}

// setup loads configuration, restores persisted state and wires the model
// and calibrator to a shared store. The migrate command only needs a raw
// database handle and skips everything else.
func (a *app) setup(cmd *cobra.Command) error {
	a.out = cmd.OutOrStdout()
	if a.quiet {
		monitoring.SetLogger(nil)
	}

	a.cfg = &config.ModelConfig{}
	if a.configPath != "" {
		cfg, err := config.LoadConfig(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	if a.dbPath == "" {
		a.dbPath = a.cfg.GetDBPath()
	}

	if isMigrateCmd(cmd) {
		return nil
	}

	a.store = store.New(a.cfg.GetParameters())
	calibOpts := a.cfg.CalibrationOptions()

	if !a.noDB {
		database, err := db.NewDB(a.dbPath)
		if err != nil {
			return fmt.Errorf("opening %s: %w", a.dbPath, err)
		}
		a.db = database
		restored, err := database.LoadInto(cmd.Context(), a.store)
		if err != nil {
			return fmt.Errorf("restoring state: %w", err)
		}
		if restored {
			_, v := a.store.Snapshot()
			logf("restored parameters v%d from %s", v, a.dbPath)
		}
		calibOpts = append(calibOpts, calibration.WithRecorder(database))
	}

	a.model = model.New(a.store, a.cfg.ModelOptions()...)
	a.calib = calibration.New(a.store, calibOpts...)
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

func isMigrateCmd(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "migrate" {
			return true
		}
	}
	return false
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// calibrationContext bounds a fit by the configured timeout.
func (a *app) calibrationContext(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, a.cfg.GetCalibrationTimeout())
}
