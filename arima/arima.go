package arima

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

// Order represents ARIMA model order (p, d, q).
type Order struct {
	P int // AR order (number of autoregressive terms)
	D int // Differencing order
	Q int // MA order (number of moving average terms)
}

func (o Order) String() string {
	return fmt.Sprintf("ARIMA(%d,%d,%d)", o.P, o.D, o.Q)
}

// Model represents an ARIMA model fitted by conditional sum of squares.
type Model struct {
	Order     Order
	ARCoeffs  []float64 // AR coefficients (phi)
	MACoeffs  []float64 // MA coefficients (theta)
	Intercept float64
	Variance  float64 // Residual variance
	AIC       float64
	BIC       float64
	LogLik    float64

	fitted    bool
	nObs      int
	levels    []float64 // last value at each differencing level, 0..D-1
	diffData  []float64
	residuals []float64
}

// New creates a new ARIMA model with the specified order.
func New(p, d, q int) *Model {
	return &Model{
		Order:    Order{P: p, D: d, Q: q},
		ARCoeffs: make([]float64, p),
		MACoeffs: make([]float64, q),
	}
}

// Fit fits the model to series. It fails on short or non-finite input and
// when the estimation produces non-finite residuals.
func (m *Model) Fit(series *timeseries.Series) error {
	if series.Len() < m.Order.P+m.Order.Q+m.Order.D+10 {
		return fmt.Errorf("%s on %d points: %w", m.Order, series.Len(), ErrInsufficientData)
	}
	for _, v := range series.Values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: %w", m.Order, ErrNonFinite)
		}
	}

	// Keep the last value of every level so forecasts can be integrated.
	m.levels = make([]float64, m.Order.D)
	diffSeries := series
	for i := 0; i < m.Order.D; i++ {
		m.levels[i] = diffSeries.Last()
		diffSeries = diffSeries.Diff()
	}
	m.diffData = diffSeries.Values
	m.nObs = series.Len()

	if err := m.fitCSS(diffSeries); err != nil {
		return fmt.Errorf("%s: %w", m.Order, err)
	}

	m.calculateIC()
	m.fitted = true
	return nil
}

// fitCSS fits the model using Conditional Sum of Squares estimation.
func (m *Model) fitCSS(series *timeseries.Series) error {
	y := m.diffData
	n := len(y)
	p, q := m.Order.P, m.Order.Q

	m.Intercept = stat.Mean(y, nil)

	if p == 0 && q == 0 {
		// White noise around the mean
		m.Variance = stat.Variance(y, nil)
		m.residuals = make([]float64, n)
		for i, v := range y {
			m.residuals[i] = v - m.Intercept
		}
		return nil
	}

	// Yule-Walker start for AR, small constant start for MA
	if p > 0 {
		if acf := stats.ACF(series, p); acf != nil {
			m.ARCoeffs = yuleWalker(acf, p)
		}
	}
	for i := range m.MACoeffs {
		m.MACoeffs[i] = 0.1
	}

	m.optimizeCSS(y)

	sse := m.finalResiduals(y)
	if math.IsNaN(sse) || math.IsInf(sse, 0) {
		return ErrDiverged
	}
	return nil
}

// cssResiduals fills residuals for t >= max(p, q) and returns their sum of
// squares.
func (m *Model) cssResiduals(y, residuals []float64) float64 {
	p, q := m.Order.P, m.Order.Q
	sse := 0.0
	for t := max(p, q); t < len(y); t++ {
		pred := m.Intercept
		for i := 0; i < p; i++ {
			pred += m.ARCoeffs[i] * (y[t-i-1] - m.Intercept)
		}
		for i := 0; i < q; i++ {
			pred += m.MACoeffs[i] * residuals[t-i-1]
		}
		residuals[t] = y[t] - pred
		sse += residuals[t] * residuals[t]
	}
	return sse
}

// optimizeCSS refines the coefficients by gradient descent on the
// conditional sum of squares, keeping them inside (-1, 1).
func (m *Model) optimizeCSS(y []float64) {
	n := len(y)
	p, q := m.Order.P, m.Order.Q

	const (
		maxIter      = 100
		tolerance    = 1e-6
		learningRate = 0.01
	)

	residuals := make([]float64, n)
	arGrad := make([]float64, p)
	maGrad := make([]float64, q)

	for iter := 0; iter < maxIter; iter++ {
		prevSSE := m.cssResiduals(y, residuals)

		clear(arGrad)
		clear(maGrad)
		for t := max(p, q); t < n; t++ {
			for i := 0; i < p; i++ {
				arGrad[i] -= 2 * residuals[t] * (y[t-i-1] - m.Intercept)
			}
			for i := 0; i < q; i++ {
				maGrad[i] -= 2 * residuals[t] * residuals[t-i-1]
			}
		}

		for i := 0; i < p; i++ {
			m.ARCoeffs[i] = clamp(m.ARCoeffs[i]-learningRate*arGrad[i]/float64(n), 0.99)
		}
		for i := 0; i < q; i++ {
			m.MACoeffs[i] = clamp(m.MACoeffs[i]-learningRate*maGrad[i]/float64(n), 0.99)
		}

		newSSE := m.cssResiduals(y, residuals)
		if math.Abs(prevSSE-newSSE) < tolerance {
			break
		}
	}
}

// finalResiduals stores the residuals of the estimated coefficients and
// returns their sum of squares.
func (m *Model) finalResiduals(y []float64) float64 {
	n := len(y)
	p, q := m.Order.P, m.Order.Q
	start := max(p, q)

	m.residuals = make([]float64, n)
	for t := 0; t < start; t++ {
		m.residuals[t] = y[t] - m.Intercept
	}
	sse := m.cssResiduals(y, m.residuals)

	count := n - start
	if count > p+q+1 {
		m.Variance = sse / float64(count-p-q-1)
	} else {
		m.Variance = sse / float64(count)
	}
	return sse
}

// calculateIC calculates AIC and BIC assuming Gaussian errors.
func (m *Model) calculateIC() {
	n := float64(len(m.residuals))
	k := float64(m.Order.P + m.Order.Q + 1) // AR + MA + intercept

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

// Predict generates forecasts for the specified number of steps ahead on the
// scale of the series passed to Fit.
func (m *Model) Predict(steps int) ([]float64, error) {
	if !m.fitted {
		return nil, ErrNotFitted
	}
	if steps < 1 {
		return nil, errors.New("steps must be at least 1")
	}

	p, q := m.Order.P, m.Order.Q
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

		// Future residuals are zero
		for i := 0; i < q && t-i-1 >= 0 && t-i-1 < n; i++ {
			pred += m.MACoeffs[i] * m.residuals[t-i-1]
		}

		extY[t] = pred
	}

	forecasts := extY[n:]
	for i := m.Order.D - 1; i >= 0; i-- {
		forecasts = stats.Integrate(forecasts, m.levels[i])
	}
	return forecasts, nil
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

	lb, _ := stats.LjungBox(timeseries.New(m.residuals), lags, m.Order.P+m.Order.Q)

	return &Summary{
		Order:    m.Order,
		Variance: m.Variance,
		AIC:      m.AIC,
		BIC:      m.BIC,
		LogLik:   m.LogLik,
		NObs:     m.nObs,
		LjungBox: lb,
	}
}

// yuleWalker estimates AR coefficients with the Levinson-Durbin recursion.
func yuleWalker(acf []float64, order int) []float64 {
	if order <= 0 || len(acf) <= order {
		return nil
	}

	phi := make([]float64, order)
	phi[0] = acf[1]
	if order == 1 {
		return phi
	}

	v := 1 - phi[0]*phi[0]
	for i := 1; i < order; i++ {
		lambda := acf[i+1]
		for j := 0; j < i; j++ {
			lambda -= phi[j] * acf[i-j]
		}
		lambda /= v

		next := make([]float64, i+1)
		for j := 0; j < i; j++ {
			next[j] = phi[j] - lambda*phi[i-1-j]
		}
		next[i] = lambda
		copy(phi, next)

		v *= 1 - lambda*lambda
		if v <= 0 {
			break
		}
	}

	return phi
}

func clamp(v, bound float64) float64 {
	return math.Max(-bound, math.Min(bound, v))
}
