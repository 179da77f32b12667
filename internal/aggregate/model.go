package aggregate

import "math"

// ModelOutput carries the scalar risk figures a model derives from the
// aggregated equity history.
type ModelOutput struct {
	Volatility  float64
	SharpeRatio float64
	MaxDrawdown float64
	Beta        float64
}

// Model computes volatility, Sharpe ratio, max drawdown and beta from the
// equity series of aggregated snapshots. The series is a bounded window of
// the most recent observations (see WithEquityWindow), oldest first. The
// exact numeric model is deployment-specific; the aggregation contract holds
// for any implementation.
type Model interface {
	Compute(equity []float64) ModelOutput
}

// HistoryModel is the default model: log returns over the observed equity
// series, annualized assuming daily observations. Beta is reported as 1.0
// since no benchmark series is wired in; benchmark-aware deployments plug in
// their own Model.
type HistoryModel struct {
	periodsPerYear float64
}

// NewHistoryModel creates the default history-based model.
func NewHistoryModel() *HistoryModel {
	return &HistoryModel{periodsPerYear: 252}
}

func (m *HistoryModel) Compute(equity []float64) ModelOutput {
	out := ModelOutput{Beta: 1.0}
	if len(equity) < 2 {
		return out
	}

	rets := logReturns(equity)
	mean, std := meanStd(rets)
	scale := math.Sqrt(m.periodsPerYear)
	out.Volatility = std * scale
	if std > 0 {
		out.SharpeRatio = mean / std * scale
	}
	out.MaxDrawdown = maxDrawdown(equity)
	return out
}

func logReturns(equity []float64) []float64 {
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		if equity[i-1] <= 0 || equity[i] <= 0 {
			continue
		}
		rets = append(rets, math.Log(equity[i]/equity[i-1]))
	}
	return rets
}

func meanStd(xs []float64) (float64, float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))

	var sq float64
	for _, x := range xs {
		d := x - mean
		sq += d * d
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

// maxDrawdown returns the largest peak-to-trough decline as a fraction.
func maxDrawdown(equity []float64) float64 {
	peak := equity[0]
	worst := 0.0
	for _, v := range equity[1:] {
		if v > peak {
			peak = v
			continue
		}
		if peak > 0 {
			if dd := (peak - v) / peak; dd > worst {
				worst = dd
			}
		}
	}
	return worst
}
