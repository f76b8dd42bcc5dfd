package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// Granularity is the resampling resolution applied to raw price observations.
type Granularity int

const (
	Daily Granularity = iota
	Weekly
	Monthly
)

// Granularities lists every supported granularity in a stable order.
var Granularities = []Granularity{Daily, Weekly, Monthly}

// ParseGranularity accepts the English names and the Portuguese names
// (diaria, semanal, mensal).
func ParseGranularity(s string) (Granularity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "daily", "diaria", "diária", "d":
		return Daily, nil
	case "weekly", "semanal", "w":
		return Weekly, nil
	case "monthly", "mensal", "m":
		return Monthly, nil
	}
	return 0, fmt.Errorf("unknown granularity %q", s)
}

// String returns the name used in artifact file names and result keys.
func (g Granularity) String() string {
	switch g {
	case Daily:
		return "daily"
	case Weekly:
		return "weekly"
	case Monthly:
		return "monthly"
	}
	return fmt.Sprintf("granularity(%d)", int(g))
}

// SeasonalPeriod returns the SARIMA seasonal period s.
func (g Granularity) SeasonalPeriod() int {
	switch g {
	case Daily:
		return 7
	case Weekly:
		return 52
	default:
		return 12
	}
}

// Truncate maps t onto the start of its period. Weeks end on Sunday, so a
// weekly period is labelled with its Sunday; months are labelled with their
// first day.
func (g Granularity) Truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	switch g {
	case Weekly:
		offset := (7 - int(day.Weekday())) % 7
		return day.AddDate(0, 0, offset)
	case Monthly:
		return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	}
	return day
}

// Next returns the label of the period following t.
func (g Granularity) Next(t time.Time) time.Time {
	switch g {
	case Weekly:
		return t.AddDate(0, 0, 7)
	case Monthly:
		return t.AddDate(0, 1, 0)
	}
	return t.AddDate(0, 0, 1)
}
