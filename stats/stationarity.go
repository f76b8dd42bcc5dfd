package stats

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/sartorproj/fuelcast/timeseries"
)

// Errors returned by the unit-root and stationarity tests.
var (
	ErrTooShort   = errors.New("series too short for test")
	ErrSingular   = errors.New("singular regression")
	ErrDegenerate = errors.New("degenerate long-run variance")
)

// ADFResult represents the result of an Augmented Dickey-Fuller test.
type ADFResult struct {
	Statistic    float64
	PValue       float64
	Lags         int // lagged differences kept after AIC selection
	NObs         int
	ICBest       float64            // AIC of the selected regression
	CriticalVals map[string]float64 // Critical values at 1%, 5%, 10%
	IsStationary bool
}

// ADF performs the Augmented Dickey-Fuller test for a unit root with a
// constant term. The null hypothesis is that the series has a unit root.
//
// The number of lagged differences is chosen by AIC among 0..maxLag. When
// maxLag <= 0 it defaults to ceil(12*(n/100)^(1/4)), capped at n/2-2.
func ADF(series *timeseries.Series, maxLag int) (*ADFResult, error) {
	x := series.Values
	n := len(x)

	limit := n/2 - 2
	if maxLag <= 0 {
		maxLag = int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	}
	if maxLag > limit {
		maxLag = limit
	}
	if maxLag < 0 {
		return nil, fmt.Errorf("adf on %d points: %w", n, ErrTooShort)
	}

	diff := make([]float64, n-1)
	for i := 1; i < n; i++ {
		diff[i-1] = x[i] - x[i-1]
	}

	// Select the lag order on the common sample implied by maxLag.
	bestLag, bestAIC := -1, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		design, y := adfDesign(x, diff, maxLag, lag)
		fit, err := ols(design, y)
		if err != nil {
			continue
		}
		if fit.aic < bestAIC {
			bestLag, bestAIC = lag, fit.aic
		}
	}
	if bestLag < 0 {
		return nil, fmt.Errorf("adf lag selection: %w", ErrSingular)
	}

	// Re-estimate on the longest sample available for the chosen lag.
	design, y := adfDesign(x, diff, bestLag, bestLag)
	fit, err := ols(design, y)
	if err != nil {
		return nil, fmt.Errorf("adf regression: %w", err)
	}
	tStat := fit.coeffs[1] / fit.stdErrs[1]
	pValue := mackinnonPValue(tStat)

	return &ADFResult{
		Statistic:    tStat,
		PValue:       pValue,
		Lags:         bestLag,
		NObs:         len(y),
		ICBest:       bestAIC,
		CriticalVals: mackinnonCrit(len(y)),
		IsStationary: pValue < 0.05,
	}, nil
}

// adfDesign builds the regression
//
//	dy_t = a + b*y_{t-1} + sum_{i=1..lag} g_i*dy_{t-i}
//
// over the rows t = trim..len(diff)-1.
func adfDesign(x, diff []float64, trim, lag int) (*mat.Dense, []float64) {
	nObs := len(diff) - trim
	k := 2 + lag
	design := mat.NewDense(nObs, k, nil)
	y := make([]float64, nObs)
	for r := 0; r < nObs; r++ {
		t := r + trim
		y[r] = diff[t]
		design.Set(r, 0, 1)
		design.Set(r, 1, x[t])
		for j := 1; j <= lag; j++ {
			design.Set(r, 1+j, diff[t-j])
		}
	}
	return design, y
}

// KPSSResult represents the result of a KPSS test.
type KPSSResult struct {
	Statistic    float64
	PValue       float64
	Lags         int
	CriticalVals map[string]float64
	IsStationary bool
}

var (
	kpssCrit  = []float64{0.347, 0.463, 0.574, 0.739}
	kpssPVals = []float64{0.10, 0.05, 0.025, 0.01}
)

// KPSS performs the Kwiatkowski-Phillips-Schmidt-Shin test for level
// stationarity. The null hypothesis is that the series is stationary.
//
// When nlags < 0 the bandwidth is chosen with the data-dependent rule of
// Hobijn et al. (1998). The p-value is interpolated from the KPSS table and
// therefore lies in [0.01, 0.10].
func KPSS(series *timeseries.Series, nlags int) (*KPSSResult, error) {
	n := series.Len()
	if n < 2 {
		return nil, fmt.Errorf("kpss on %d points: %w", n, ErrTooShort)
	}

	mean := series.Mean()
	resids := make([]float64, n)
	for i, v := range series.Values {
		resids[i] = v - mean
	}

	if nlags < 0 {
		var err error
		if nlags, err = kpssAutoLag(resids); err != nil {
			return nil, err
		}
	}
	if nlags >= n {
		return nil, fmt.Errorf("kpss lags %d >= %d points: %w", nlags, n, ErrTooShort)
	}

	// Partial sums of the residuals.
	cumSum := make([]float64, n)
	floats.CumSum(cumSum, resids)
	eta := floats.Dot(cumSum, cumSum) / float64(n*n)

	// Long-run variance with Bartlett weights.
	s2 := floats.Dot(resids, resids)
	for l := 1; l <= nlags; l++ {
		weight := 1.0 - float64(l)/float64(nlags+1)
		s2 += 2 * weight * floats.Dot(resids[l:], resids[:n-l])
	}
	s2 /= float64(n)
	if s2 <= 0 || math.IsNaN(s2) {
		return nil, fmt.Errorf("kpss: %w", ErrDegenerate)
	}

	stat := eta / s2
	pValue := interpolate(stat, kpssCrit, kpssPVals)

	return &KPSSResult{
		Statistic: stat,
		PValue:    pValue,
		Lags:      nlags,
		CriticalVals: map[string]float64{
			"10%":  0.347,
			"5%":   0.463,
			"2.5%": 0.574,
			"1%":   0.739,
		},
		IsStationary: pValue > 0.05,
	}, nil
}

// kpssAutoLag returns the Hobijn et al. bandwidth, never more than n-1.
func kpssAutoLag(resids []float64) (int, error) {
	n := len(resids)
	covLags := int(math.Pow(float64(n), 2.0/9.0))

	s0 := floats.Dot(resids, resids) / float64(n)
	s1 := 0.0
	for i := 1; i <= covLags && i < n; i++ {
		prod := floats.Dot(resids[i:], resids[:n-i]) / (float64(n) / 2)
		s0 += prod
		s1 += float64(i) * prod
	}
	if s0 == 0 {
		return 0, fmt.Errorf("kpss bandwidth: %w", ErrDegenerate)
	}

	sHat := s1 / s0
	gamma := 1.1447 * math.Pow(sHat*sHat, 1.0/3.0)
	lags := int(gamma * math.Pow(float64(n), 1.0/3.0))
	return min(lags, n-1), nil
}

// interpolate linearly interpolates y at x over increasing xs, clamping to
// the end values outside the table.
func interpolate(x float64, xs, ys []float64) float64 {
	if x <= xs[0] {
		return ys[0]
	}
	last := len(xs) - 1
	if x >= xs[last] {
		return ys[last]
	}
	for i := 1; i <= last; i++ {
		if x <= xs[i] {
			frac := (x - xs[i-1]) / (xs[i] - xs[i-1])
			return ys[i-1] + frac*(ys[i]-ys[i-1])
		}
	}
	return ys[last]
}

type olsFit struct {
	coeffs  []float64
	stdErrs []float64
	aic     float64
}

// ols fits y on the columns of x by ordinary least squares and returns the
// coefficients, their standard errors and the Gaussian AIC.
func ols(x *mat.Dense, y []float64) (*olsFit, error) {
	n, k := x.Dims()
	if n <= k {
		return nil, ErrTooShort
	}

	var xtx mat.Dense
	xtx.Mul(x.T(), x)
	var inv mat.Dense
	if err := inv.Inverse(&xtx); err != nil {
		return nil, ErrSingular
	}

	yv := mat.NewVecDense(n, y)
	var xty, beta mat.VecDense
	xty.MulVec(x.T(), yv)
	beta.MulVec(&inv, &xty)

	var fitted mat.VecDense
	fitted.MulVec(x, &beta)
	ssr := 0.0
	for i := 0; i < n; i++ {
		r := y[i] - fitted.AtVec(i)
		ssr += r * r
	}
	if ssr <= 0 {
		return nil, ErrSingular
	}

	s2 := ssr / float64(n-k)
	fit := &olsFit{
		coeffs:  make([]float64, k),
		stdErrs: make([]float64, k),
	}
	for i := 0; i < k; i++ {
		fit.coeffs[i] = beta.AtVec(i)
		fit.stdErrs[i] = math.Sqrt(s2 * inv.At(i, i))
	}

	nf := float64(n)
	llf := -nf / 2 * (math.Log(2*math.Pi) + math.Log(ssr/nf) + 1)
	fit.aic = -2*llf + 2*float64(k)
	return fit, nil
}

// MacKinnon (1994) response surface for the constant-only case.
const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// mackinnonPValue returns the approximate p-value of an ADF statistic.
func mackinnonPValue(stat float64) float64 {
	switch {
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}
	coef := tauLargeP
	if stat <= tauStar {
		coef = tauSmallP
	}
	return distuv.UnitNormal.CDF(polyval(coef, stat))
}

// mackinnonCrit returns the MacKinnon (2010) finite-sample critical values.
func mackinnonCrit(nobs int) map[string]float64 {
	surface := map[string][]float64{
		"1%":  {-3.43035, -6.5393, -16.786, -79.433},
		"5%":  {-2.86154, -2.8903, -4.234, -40.040},
		"10%": {-2.56677, -1.5384, -2.809, 0},
	}
	inv := 1 / float64(nobs)
	crit := make(map[string]float64, len(surface))
	for level, c := range surface {
		crit[level] = polyval(c, inv)
	}
	return crit
}

// polyval evaluates c[0] + c[1]*x + c[2]*x^2 + ...
func polyval(c []float64, x float64) float64 {
	v := 0.0
	for i := len(c) - 1; i >= 0; i-- {
		v = v*x + c[i]
	}
	return v
}
