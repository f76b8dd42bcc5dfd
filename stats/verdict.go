package stats

import (
	"errors"

	"github.com/sartorproj/fuelcast/timeseries"
)

// ErrEmptySeries is returned when no finite value is left to test.
var ErrEmptySeries = errors.New("series has no finite values")

// StationarityReport combines the ADF and KPSS outcomes for one series.
// A failed test leaves its result nil and records the error instead.
type StationarityReport struct {
	NObs       int
	ADF        *ADFResult
	ADFErr     error
	KPSS       *KPSSResult
	KPSSErr    error
	Stationary bool
}

// CheckStationarity drops non-finite values and runs both tests. The series
// is stationary only when ADF rejects a unit root (p < 0.05) and KPSS does
// not reject level stationarity (p > 0.05). A test that cannot be computed
// counts as a non-stationary vote.
//
// The returned error is ErrEmptySeries when nothing is left after cleaning;
// the report is still non-nil and not stationary.
func CheckStationarity(series *timeseries.Series) (*StationarityReport, error) {
	clean := series.Finite()
	report := &StationarityReport{NObs: clean.Len()}
	if clean.Len() == 0 {
		return report, ErrEmptySeries
	}

	report.ADF, report.ADFErr = ADF(clean, 0)
	report.KPSS, report.KPSSErr = KPSS(clean, -1)

	adfOK := report.ADFErr == nil && report.ADF.IsStationary
	kpssOK := report.KPSSErr == nil && report.KPSS.IsStationary
	report.Stationary = adfOK && kpssOK
	return report, nil
}

// IsStationary reports the combined ADF/KPSS verdict for series.
func IsStationary(series *timeseries.Series) bool {
	report, err := CheckStationarity(series)
	if err != nil {
		return false
	}
	return report.Stationary
}
