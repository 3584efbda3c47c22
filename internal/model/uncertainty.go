package model

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultSamples is the default Monte Carlo sample count.
const DefaultSamples = 100

// Perturbation is the standard deviation of the zero-mean Gaussian noise
// added to each uncertain parameter.
type Perturbation struct {
	I0     float64
	A      float64
	Ea     float64
	Alpha1 float64
	Alpha2 float64
	Alpha3 float64
	Gamma  float64
}

// DefaultPerturbation is the assumed parameter uncertainty.
var DefaultPerturbation = Perturbation{
	I0:     0.5,
	A:      0.002,
	Ea:     2000,
	Alpha1: 0.005,
	Alpha2: 0.008,
	Alpha3: 0.010,
	Gamma:  0.2,
}

// Percentiles reported by UncertaintyAnalysis.
var Percentiles = [3]float64{0.05, 0.50, 0.95}

// sample perturbs p with noise drawn from src.
func (s Perturbation) sample(p Parameters, src rand.Source) Parameters {
	n := distuv.Normal{Mu: 0, Sigma: 1, Src: src}
	p.I0 += s.I0 * n.Rand()
	p.A += s.A * n.Rand()
	p.Ea += s.Ea * n.Rand()
	p.Alpha1 += s.Alpha1 * n.Rand()
	p.Alpha2 += s.Alpha2 * n.Rand()
	p.Alpha3 += s.Alpha3 * n.Rand()
	p.Gamma += s.Gamma * n.Rand()
	return p
}

// UncertaintyConfig controls the parametric bootstrap.
type UncertaintyConfig struct {
	Samples      int
	Seed         uint64
	Workers      int
	Perturbation Perturbation
}

func (cfg UncertaintyConfig) withDefaults() UncertaintyConfig {
	if cfg.Samples <= 0 {
		cfg.Samples = DefaultSamples
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if cfg.Perturbation == (Perturbation{}) {
		cfg.Perturbation = DefaultPerturbation
	}
	return cfg
}

// UncertaintyAnalysis estimates the 5th, 50th and 95th percentile detection
// range by resampling the model parameters (not the input conditions) and
// re-running the physics for the same conditions. Sample i draws from its own
// PCG stream keyed by (Seed, i), so the result for a given seed does not
// depend on Workers.
//
// Samples producing a non-finite distance are dropped. If none remain, the
// interval collapses onto the unperturbed distance.
func UncertaintyAnalysis(ctx context.Context, p Parameters, c Conditions, cfg UncertaintyConfig) ([3]float64, error) {
	cfg = cfg.withDefaults()

	distances := make([]float64, cfg.Samples)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for i := 0; i < cfg.Samples; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			src := rand.NewPCG(cfg.Seed, uint64(i))
			distances[i] = Distance(cfg.Perturbation.sample(p, src), c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return [3]float64{}, err
	}

	finite := distances[:0]
	for _, d := range distances {
		if !math.IsNaN(d) && !math.IsInf(d, 0) {
			finite = append(finite, d)
		}
	}
	if len(finite) == 0 {
		d := Distance(p, c)
		return [3]float64{d, d, d}, nil
	}
	sort.Float64s(finite)

	var ci [3]float64
	for i, q := range Percentiles {
		ci[i] = stat.Quantile(q, stat.Empirical, finite, nil)
	}
	return ci, nil
}
