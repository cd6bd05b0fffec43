package analytics

// Decomposition is a classical additive split of a series into trend, seasonal
// and residual components. All component slices have the input's length.
type Decomposition struct {
	Period          int       `json:"period" yaml:"period"`
	Trend           []float64 `json:"trend" yaml:"trend"`
	Seasonal        []float64 `json:"seasonal" yaml:"seasonal"`
	Residual        []float64 `json:"residual" yaml:"residual"`
	SeasonalIndices []float64 `json:"seasonal_indices" yaml:"seasonal_indices"`
}

// Decompose splits values into trend (centered moving average, narrower at the
// edges), seasonal (phase average of the detrended values) and residual.
func Decompose(values []float64, period int) (Decomposition, error) {
	if period < 1 {
		return Decomposition{}, ErrInvalidPeriod
	}

	n := len(values)
	trend := centeredMovingAverage(values, period)

	sums := make([]float64, period)
	counts := make([]int, period)
	for i, v := range values {
		phase := i % period
		sums[phase] += v - trend[i]
		counts[phase]++
	}

	indices := make([]float64, period)
	for phase := range indices {
		if counts[phase] > 0 {
			indices[phase] = sums[phase] / float64(counts[phase])
		}
	}

	seasonal := make([]float64, n)
	residual := make([]float64, n)
	for i, v := range values {
		seasonal[i] = indices[i%period]
		residual[i] = v - trend[i] - seasonal[i]
	}

	return Decomposition{
		Period:          period,
		Trend:           trend,
		Seasonal:        seasonal,
		Residual:        residual,
		SeasonalIndices: indices,
	}, nil
}

func centeredMovingAverage(values []float64, window int) []float64 {
	n := len(values)
	half := window / 2
	out := make([]float64, n)
	for i := range values {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half
		if hi > n-1 {
			hi = n - 1
		}
		sum := 0.0
		for j := lo; j <= hi; j++ {
			sum += values[j]
		}
		out[i] = sum / float64(hi-lo+1)
	}
	return out
}
