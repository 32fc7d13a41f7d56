package metric

import (
	"sort"

	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"
)

// Interval is a bootstrap confidence interval for a statistic
type Interval struct {
	Lower  float64
	Upper  float64
	Mean   float64
	StdDev float64
}

// Bootstrap estimates the confidence interval of measure over values by
// resampling with replacement. iterations controls how many resamples are
// drawn; confidence is the interval level, e.g. 0.95.
func Bootstrap(values []float64, measure func([]float64) float64, iterations int, confidence float64) Interval {
	if len(values) == 0 || iterations <= 0 {
		return Interval{}
	}

	estimates := make([]float64, 0, iterations)
	for i := 0; i < iterations; i++ {
		resample := make([]float64, len(values))
		for j := range resample {
			resample[j] = lo.Sample(values)
		}
		estimates = append(estimates, measure(resample))
	}

	sort.Float64s(estimates)
	tail := (1 - confidence) / 2

	mean, stdDev := stat.MeanStdDev(estimates, nil)
	return Interval{
		Lower:  stat.Quantile(tail, stat.LinInterp, estimates, nil),
		Upper:  stat.Quantile(1-tail, stat.LinInterp, estimates, nil),
		Mean:   mean,
		StdDev: stdDev,
	}
}

// Mean is a measure for Bootstrap
func Mean(values []float64) float64 {
	return stat.Mean(values, nil)
}
