package calibration

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/JohnLloyd-dev/LuxBio-AI-Tracking-App/internal/model"
)

// OperationalTolerance is the relative error under which a prediction counts
// as operationally accurate.
const OperationalTolerance = 0.15

// Metrics summarises how well a parameter set reproduces observed distances.
type Metrics struct {
	N    int     `json:"n"`
	MAE  float64 `json:"mae"`
	MAPE float64 `json:"mape"` // percent, over rows with a non-zero observation
	RMSE float64 `json:"rmse"`
	R2   float64 `json:"r2"`
	// Within is the percentage of rows predicted within OperationalTolerance.
	Within float64 `json:"within_tolerance"`
}

// Evaluate predicts every row with p and compares against the observed
// distances. It returns the zero Metrics for no rows.
func Evaluate(p model.Parameters, rows []model.Observation) Metrics {
	if len(rows) == 0 {
		return Metrics{}
	}
	predicted := predictAll(p, rows)
	actual := make([]float64, len(rows))
	for i, r := range rows {
		actual[i] = r.ObservedDistance
	}

	residuals := make([]float64, len(rows))
	floats.SubTo(residuals, actual, predicted)

	var (
		pctSum   float64
		pctRows  int
		inTol    int
		absTotal = floats.Norm(residuals, 1)
		sqTotal  = floats.Dot(residuals, residuals)
	)
	for i, res := range residuals {
		if actual[i] == 0 {
			continue
		}
		pct := math.Abs(res / actual[i])
		pctSum += pct
		pctRows++
		if pct <= OperationalTolerance {
			inTol++
		}
	}

	n := float64(len(rows))
	m := Metrics{
		N:    len(rows),
		MAE:  absTotal / n,
		RMSE: math.Sqrt(sqTotal / n),
	}
	if pctRows > 0 {
		m.MAPE = 100 * pctSum / float64(pctRows)
		m.Within = 100 * float64(inTol) / float64(pctRows)
	}
	if stat.Variance(actual, nil) > 0 {
		m.R2 = stat.RSquaredFrom(predicted, actual, nil)
	}
	return m
}

// meanAbsoluteError is the calibration objective.
func meanAbsoluteError(p model.Parameters, rows []model.Observation) float64 {
	var sum float64
	for _, r := range rows {
		sum += math.Abs(predictDistance(p, r.Conditions) - r.ObservedDistance)
	}
	return sum / float64(len(rows))
}

func predictAll(p model.Parameters, rows []model.Observation) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		out[i] = predictDistance(p, r.Conditions)
	}
	return out
}

// predictDistance treats a non-finite distance as the degenerate zero range.
func predictDistance(p model.Parameters, c model.Conditions) float64 {
	d := model.Distance(p, c)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0
	}
	return d
}
