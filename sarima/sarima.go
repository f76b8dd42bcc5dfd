package sarima

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/sartorproj/fuelcast/stats"
	"github.com/sartorproj/fuelcast/timeseries"
)

var (
	ErrInsufficientData = errors.New("insufficient data points for the specified order")
	ErrNonFinite        = errors.New("series contains non-finite values")
	ErrDiverged         = errors.New("estimation diverged")
	ErrNotFitted        = errors.New("model must be fitted before prediction")
)

// Order represents SARIMA model order (p, d, q) x (P, D, Q, m).
type Order struct {
	P int // Non-seasonal AR order
	D int // Non-seasonal differencing order
	Q int // Non-seasonal MA order
	// Seasonal components
	SP int // Seasonal AR order
	SD int // Seasonal differencing order
	SQ int // Seasonal MA order
	M  int // Seasonal period (e.g., 12 for monthly prices)
}

func (o Order) String() string {
	return fmt.Sprintf("SARIMA(%d,%d,%d)(%d,%d,%d)[%d]", o.P, o.D, o.Q, o.SP, o.SD, o.SQ, o.M)
}

// Model represents a SARIMA model fitted by conditional sum of squares.
type Model struct {
	Order     Order
	ARCoeffs  []float64 // Non-seasonal AR coefficients
	MACoeffs  []float64 // Non-seasonal MA coefficients
	SARCoeffs []float64 // Seasonal AR coefficients
	SMACoeffs []float64 // Seasonal MA coefficients
	Intercept float64
	Variance  float64
	AIC       float64
	BIC       float64
	LogLik    float64

	// EnforceStationarity keeps AR and seasonal AR coefficients in (-1, 1).
	EnforceStationarity bool
	// EnforceInvertibility keeps MA and seasonal MA coefficients in (-1, 1).
	EnforceInvertibility bool

	fitted    bool
	stages    [][]float64 // input, then the series after each difference
	diffData  []float64
	residuals []float64
}

// New creates a new SARIMA model with both enforcement switches on.
func New(p, d, q, sp, sd, sq, m int) *Model {
	return &Model{
		Order: Order{
			P: p, D: d, Q: q,
			SP: sp, SD: sd, SQ: sq, M: m,
		},
		ARCoeffs:             make([]float64, p),
		MACoeffs:             make([]float64, q),
		SARCoeffs:            make([]float64, sp),
		SMACoeffs:            make([]float64, sq),
		EnforceStationarity:  true,
		EnforceInvertibility: true,
	}
}

// Fit fits the SARIMA model to series.
func (m *Model) Fit(series *timeseries.Series) error {
	o := m.Order
	minLen := o.P + o.Q + o.D + (o.SP+o.SD+o.SQ)*o.M + 20
	if series.Len() < minLen {
		return fmt.Errorf("%s on %d points, need %d: %w", o, series.Len(), minLen, ErrInsufficientData)
	}
	for _, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", o, ErrNonFinite)
		}
	}

	// Non-seasonal differences first, then seasonal ones.
	m.stages = [][]float64{series.Values}
	diffSeries := series
	for i := 0; i < o.D; i++ {
		diffSeries = diffSeries.Diff()
		m.stages = append(m.stages, diffSeries.Values)
	}
	for i := 0; i < o.SD; i++ {
		diffSeries = diffSeries.SeasonalDiff(o.M)
		m.stages = append(m.stages, diffSeries.Values)
	}
	if diffSeries.Len() == 0 {
		return fmt.Errorf("%s: differencing left no data: %w", o, ErrInsufficientData)
	}
	m.diffData = diffSeries.Values

	if err := m.fitCSS(diffSeries); err != nil {
		return fmt.Errorf("%s: %w", o, err)
	}

	m.calculateIC()
	m.fitted = true
	return nil
}

// fitCSS fits the model using Conditional Sum of Squares estimation.
func (m *Model) fitCSS(series *timeseries.Series) error {
	p, sp, period := m.Order.P, m.Order.SP, m.Order.M

	m.Intercept = stat.Mean(m.diffData, nil)

	// Initialize AR coefficients using ACF
	if p > 0 {
		if acf := stats.ACF(series, p); acf != nil {
			m.ARCoeffs = initARCoeffs(acf, p)
		}
	}

	// Seasonal AR starts at half the seasonal autocorrelation
	if sp > 0 {
		if acf := stats.ACF(series, sp*period); acf != nil {
			for i := 0; i < sp; i++ {
				if idx := (i + 1) * period; idx < len(acf) {
					m.SARCoeffs[i] = acf[idx] * 0.5
				}
			}
		}
	}

	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}
	for i := range m.SMACoeffs {
		m.SMACoeffs[i] = 0.1
	}

	m.optimizeCSS(m.diffData)

	sse := m.finalResiduals(m.diffData)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return ErrDiverged
	}
	return nil
}

func (m *Model) startIndex(n int) int {
	o := m.Order
	start := max(max(o.P, o.Q), max(o.SP*o.M, o.SQ*o.M))
	if start >= n-10 {
		start = 0
	}
	return start
}

// cssResiduals fills residuals from start onwards and returns their sum of
// squares.
func (m *Model) cssResiduals(y, residuals []float64, start int) float64 {
	p, q, sp, sq, period := m.Order.P, m.Order.Q, m.Order.SP, m.Order.SQ, m.Order.M

	sse := 0.0
	for t := start; t < len(y); t++ {
		pred := m.Intercept

		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < sp; i++ {
			if lag := (i + 1) * period; t-lag >= 0 {
				pred += m.SARCoeffs[i] * (y[t-lag] - m.Intercept)
			}
		}
		for i := 0; i < q && t-i-1 >= 0; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		for i := 0; i < sq; i++ {
			if lag := (i + 1) * period; t-lag >= 0 {
				pred += m.SMACoeffs[i] * residuals[t-lag]
			}
		}

		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse
}

// optimizeCSS runs gradient descent with momentum and a decaying learning
// rate, restoring the coefficients with the lowest finite SSE seen.
func (m *Model) optimizeCSS(y []float64) {
	n := len(y)
	p, q, sp, sq, period := m.Order.P, m.Order.Q, m.Order.SP, m.Order.SQ, m.Order.M

	const (
		maxIter   = 200
		tolerance = 1e-8
		momentum  = 0.9
		decay     = 0.99
		patience  = 20
	)
	learningRate := 0.005

	arMomentum := make([]float64, p)
	maMomentum := make([]float64, q)
	sarMomentum := make([]float64, sp)
	smaMomentum := make([]float64, sq)

	start := m.startIndex(n)

	bestSSE := math.Inf(1)
	bestAR := append([]float64(nil), m.ARCoeffs...)
	bestMA := append([]float64(nil), m.MACoeffs...)
	bestSAR := append([]float64(nil), m.SARCoeffs...)
	bestSMA := append([]float64(nil), m.SMACoeffs...)
	noImprove := 0

	residuals := make([]float64, n)
	for iter := 0; iter < maxIter; iter++ {
		currentSSE := m.cssResiduals(y, residuals, start)
		if math.IsNaN(currentSSE) || math.IsInf(currentSSE, 0) {
			break
		}

		if currentSSE < bestSSE {
			bestSSE = currentSSE
			copy(bestAR, m.ARCoeffs)
			copy(bestMA, m.MACoeffs)
			copy(bestSAR, m.SARCoeffs)
			copy(bestSMA, m.SMACoeffs)
			noImprove = 0
		} else {
			noImprove++
		}
		if noImprove > patience {
			break
		}

		arGrad := make([]float64, p)
		maGrad := make([]float64, q)
		sarGrad := make([]float64, sp)
		smaGrad := make([]float64, sq)

		for t := start; t < n; t++ {
			for i := 0; i < p && t-i-1 >= 0; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < sp; i++ {
				if lag := (i + 1) * period; t-lag >= 0 {
					sarGrad[i] -= 2 * residuals[t] * (y[t-lag] - m.Intercept)
				}
			}
			for i := 0; i < q && t-i-1 >= 0; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
			for i := 0; i < sq; i++ {
				if lag := (i + 1) * period; t-lag >= 0 {
					smaGrad[i] -= 2 * residuals[t] * residuals[t-lag]
				}
			}
		}

		step := func(coeffs, velocity, grad []float64, enforce bool) {
			for i := range coeffs {
				velocity[i] = momentum*velocity[i] + learningRate*grad[i]/float64(n)
				coeffs[i] -= velocity[i]
				if enforce {
					coeffs[i] = clamp(coeffs[i], 0.99)
				}
			}
		}
		step(m.ARCoeffs, arMomentum, arGrad, m.EnforceStationarity)
		step(m.SARCoeffs, sarMomentum, sarGrad, m.EnforceStationarity)
		step(m.MACoeffs, maMomentum, maGrad, m.EnforceInvertibility)
		step(m.SMACoeffs, smaMomentum, smaGrad, m.EnforceInvertibility)

		learningRate *= decay

		if iter > 0 && math.Abs(currentSSE-bestSSE) < tolerance {
			break
		}
	}

	copy(m.ARCoeffs, bestAR)
	copy(m.MACoeffs, bestMA)
	copy(m.SARCoeffs, bestSAR)
	copy(m.SMACoeffs, bestSMA)
}

// finalResiduals stores residuals over the whole sample
// and returns the residual sum of squares from the start index.
func (m *Model) finalResiduals(y []float64) float64 {
	n := len(y)
	m.residuals = make([]float64, n)
	m.cssResiduals(y, m.residuals, 0)

	start := m.startIndex(n)
	sse := 0.0
	for t := start; t < n; t++ {
		sse += m.residuals[t] * m.residuals[t]
	}

	count := n - start
	numParams := m.Order.P + m.Order.Q + m.Order.SP + m.Order.SQ + 1
	if count > numParams {
		m.Variance = sse / float64(count-numParams)
	} else {
		m.Variance = sse / float64(count)
	}
	return sse
}

// calculateIC calculates AIC and BIC.
func (m *Model) calculateIC() {
	n := float64(len(m.residuals))
	k := float64(m.Order.P + m.Order.Q + m.Order.SP + m.Order.SQ + 1)

	sse := 0.0
	for _, r := range m.residuals {
		sse += r * r
	}

	if m.Variance > 0 {
		m.LogLik = -n/2*math.Log(2*math.Pi) - n/2*math.Log(m.Variance) - sse/(2*m.Variance)
	} else {
		m.LogLik = math.Inf(-1)
	}

	m.AIC = -2*m.LogLik + 2*k
	m.BIC = -2*m.LogLik + k*math.Log(n)
}

// Predict generates forecasts for the specified number of steps ahead.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p, q, sp, sq, period := m.Order.P, m.Order.Q, m.Order.SP, m.Order.SQ, m.Order.M

	y := m.diffData
	n := len(y)

	extY := make([]float64, n+steps)
	copy(extY, y)

	for h := 0; h < steps; h++ {
		t := n + h
		pred := m.Intercept

		for i := 0; i < p && t-i-1 >= 0; i++ {
			pred += m.ARCoeffs[i] * (extY[t-i-1] - m.Intercept)
		}
		for i := 0; i < sp; i++ {
			if lag := (i + 1) * period; t-lag >= 0 {
				pred += m.SARCoeffs[i] * (extY[t-lag] - m.Intercept)
			}
		}

		// Future residuals are zero
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * m.residuals[t-i-1]
		}
		for i := 0; i < sq; i++ {
			if lag := (i + 1) * period; t-lag >= 0 && t-lag < n {
				pred += m.SMACoeffs[i] * m.residuals[t-lag]
			}
		}

		extY[t] = pred
	}

	return m.integrate(extY[n:]), nil
}

// integrate undoes the seasonal differences and then the non-seasonal ones.
func (m *Model) integrate(diffs []float64) []float64 {
	d, sd, period := m.Order.D, m.Order.SD, m.Order.M

	result := make([]float64, len(diffs))
	copy(result, diffs)

	// y_t = z_t + y_{t-m}, seeded with the last period of the level below
	for i := sd - 1; i >= 0; i-- {
		base := m.stages[d+i]
		for j := range result {
			if j < period {
				result[j] += base[len(base)-period+j]
			} else {
				result[j] += result[j-period]
			}
		}
	}

	for i := d - 1; i >= 0; i-- {
		level := m.stages[i]
		result = stats.Integrate(result, level[len(level)-1])
	}

	return result
}

// Summary holds the fit diagnostics reported for a search winner.
type Summary struct {
	Order    Order
	Variance float64
	AIC      float64
	BIC      float64
	LogLik   float64
	NObs     int
	LjungBox *stats.LjungBoxResult // nil when residuals are too short
}

// Summary returns the information criteria of the fit and a Ljung-Box test
// on its residuals over lags lags.
func (m *Model) Summary(lags int) *Summary {
	if !m.fitted {
		return nil
	}

	fitdf := m.Order.P + m.Order.Q + m.Order.SP + m.Order.SQ
	lb, _ := stats.LjungBox(timeseries.New(m.residuals), lags, fitdf)

	return &Summary{
		Order:    m.Order,
		Variance: m.Variance,
		AIC:      m.AIC,
		BIC:      m.BIC,
		LogLik:   m.LogLik,
		NObs:     len(m.stages[0]),
		LjungBox: lb,
	}
}

// initARCoeffs initializes AR coefficients from ACF.
func initARCoeffs(acf []float64, order int) []float64 {
	coeffs := make([]float64, order)
	for i := 0; i < order && i+1 < len(acf); i++ {
		coeffs[i] = acf[i+1] * 0.5
	}
	return coeffs
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}
