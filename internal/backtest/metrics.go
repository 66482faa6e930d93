package backtest

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fuxihub/fuxiquant-go/pkg/models"
)

// minutesPerYear annualizes per-minute returns: 365.25 days * 24h * 60m.
const minutesPerYear = 365.25 * 24 * 60

// computeReport implements §4.4's Report computation exactly: ret, ar
// (annualized return, clamped >= -1), per-step returns and drawdown, mdd,
// vol/downside_vol, sr/sor/cr, and trade statistics over trades with
// rpl != 0. Grounded on the teacher's metrics.go ComputeMetrics shape
// (trade stats -> CAGR -> drawdown -> Sharpe -> Sortino), regrounded onto
// the spec's naming and per-minute annualization factor.
func computeReport(initialEquity decimal.Decimal, equitySeries []decimal.Decimal, trades []models.Trade, startMs, endMs int64) (*models.Report, error) {
	if len(equitySeries) == 0 {
		equitySeries = []decimal.Decimal{initialEquity}
	}
	finalEquity := equitySeries[len(equitySeries)-1]

	report := &models.Report{
		InitialEquity: initialEquity,
		FinalEquity:   finalEquity,
		EquitySeries:  equitySeries,
		Trades:        trades,
	}

	report.Ret = retOf(initialEquity, finalEquity)
	report.AR = annualizedReturn(initialEquity, finalEquity, startMs, endMs)

	rets := stepReturns(equitySeries)
	mdd := maxDrawdown(equitySeries)
	report.MDD = mdd

	vol := annualizedStdDev(rets)
	downsideVol := annualizedStdDev(downsideOnly(rets))

	report.SR = safeRatio(report.AR, vol)
	report.SOR = safeRatio(report.AR, downsideVol)
	report.CR = safeRatio(report.AR, mdd)

	winRate, plRatio, _ := tradeStats(trades)
	report.WinRate = winRate
	report.PLRatio = plRatio
	report.TradeCount = len(trades)

	return report, nil
}

func retOf(initial, final decimal.Decimal) decimal.Decimal {
	if initial.IsZero() {
		return decimal.Zero
	}
	return final.Sub(initial).Div(initial)
}

// annualizedReturn computes (final/init)^(365.25/days) - 1, clamped >= -1;
// if final <= 0 the return is defined as -1 (total loss).
func annualizedReturn(initial, final decimal.Decimal, startMs, endMs int64) decimal.Decimal {
	if !final.IsPositive() {
		return decimal.NewFromInt(-1)
	}
	if initial.IsZero() {
		return decimal.Zero
	}
	days := float64(endMs-startMs) / (1000 * 60 * 60 * 24)
	if days <= 0 {
		days = 1
	}
	ratio := final.Div(initial).InexactFloat64()
	ar := math.Pow(ratio, 365.25/days) - 1
	if ar < -1 {
		ar = -1
	}
	return decimal.NewFromFloat(ar)
}

// stepReturns computes r_t = (e_t - e_{t-1}) / e_{t-1} for each step.
func stepReturns(equity []decimal.Decimal) []float64 {
	if len(equity) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(equity)-1)
	for i := 1; i < len(equity); i++ {
		prev := equity[i-1]
		if prev.IsZero() {
			rets = append(rets, 0)
			continue
		}
		r := equity[i].Sub(prev).Div(prev).InexactFloat64()
		rets = append(rets, r)
	}
	return rets
}

// maxDrawdown tracks the running peak and returns the maximum
// (peak-e)/peak ratio, clamped to >= 0.
func maxDrawdown(equity []decimal.Decimal) decimal.Decimal {
	if len(equity) == 0 {
		return decimal.Zero
	}
	peak := equity[0]
	maxDD := 0.0
	for _, e := range equity {
		if e.GreaterThan(peak) {
			peak = e
		}
		if peak.IsZero() {
			continue
		}
		dd := peak.Sub(e).Div(peak).InexactFloat64()
		if dd > maxDD {
			maxDD = dd
		}
	}
	if maxDD < 0 {
		maxDD = 0
	}
	return decimal.NewFromFloat(maxDD)
}

func downsideOnly(rets []float64) []float64 {
	var out []float64
	for _, r := range rets {
		if r < 0 {
			out = append(out, r)
		}
	}
	return out
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func stddev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := mean(xs)
	var sumSq float64
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(len(xs)-1))
}

func annualizedStdDev(rets []float64) decimal.Decimal {
	if len(rets) == 0 {
		return decimal.Zero
	}
	sd := stddev(rets) * math.Sqrt(minutesPerYear)
	return decimal.NewFromFloat(sd)
}

// safeRatio returns a/b, or zero if b is zero (every sr/sor/cr ratio in
// §4.4 is defined to be zero when its denominator is zero).
func safeRatio(a, b decimal.Decimal) decimal.Decimal {
	if b.IsZero() {
		return decimal.Zero
	}
	return a.Div(b)
}

// tradeStats computes win_rate and pl_ratio over trades with rpl != 0; the
// returned count is that narrow denominator, not the overall trade count
// (report.TradeCount is len(trades), computed separately by the caller).
func tradeStats(trades []models.Trade) (winRate, plRatio decimal.Decimal, count int) {
	var wins, losses int
	winSum, lossSum := decimal.Zero, decimal.Zero
	for _, t := range trades {
		if t.RPL.IsZero() {
			continue
		}
		count++
		if t.RPL.IsPositive() {
			wins++
			winSum = winSum.Add(t.RPL)
		} else {
			losses++
			lossSum = lossSum.Add(t.RPL)
		}
	}
	if count == 0 {
		return decimal.Zero, decimal.Zero, 0
	}
	winRate = decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(count)))
	if losses == 0 || wins == 0 {
		return winRate, decimal.Zero, count
	}
	avgWin := winSum.Div(decimal.NewFromInt(int64(wins)))
	avgLoss := lossSum.Div(decimal.NewFromInt(int64(losses))).Abs()
	if avgLoss.IsZero() {
		return winRate, decimal.Zero, count
	}
	plRatio = avgWin.Div(avgLoss)
	return winRate, plRatio, count
}
