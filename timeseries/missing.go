package timeseries

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// FillMethod selects how missing (NaN) values are treated.
type FillMethod string

const (
	// Interpolate fills interior gaps linearly by position and carries the
	// last valid value over trailing gaps. Leading gaps are left as NaN.
	Interpolate FillMethod = "interpolate"
	// ForwardFill repeats the last valid value. Leading gaps are left as NaN.
	ForwardFill FillMethod = "ffill"
	// Drop removes every missing point.
	Drop FillMethod = "drop"
)

// ParseFillMethod accepts the method names and the Portuguese spelling
// "interpolacao".
func ParseFillMethod(s string) (FillMethod, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interpolate", "interpolation", "interpolacao", "linear", "":
		return Interpolate, nil
	case "ffill", "forward-fill", "pad":
		return ForwardFill, nil
	case "drop", "dropna":
		return Drop, nil
	}
	return "", fmt.Errorf("unknown fill method %q", s)
}

// FillMissing applies the same method to every series and returns new series
// in the same order. Series without missing values are returned as copies.
func FillMissing(method FillMethod, series ...*Series) ([]*Series, error) {
	out := make([]*Series, len(series))
	for i, s := range series {
		if s == nil {
			return nil, fmt.Errorf("series %d is nil", i)
		}
		if !s.HasMissing() {
			out[i] = s.Copy()
			continue
		}
		switch method {
		case Interpolate:
			out[i] = interpolate(s)
		case ForwardFill:
			out[i] = forwardFill(s)
		case Drop:
			out[i] = dropMissing(s)
		default:
			return nil, fmt.Errorf("unknown fill method %q", method)
		}
	}
	return out, nil
}

func interpolate(s *Series) *Series {
	out := s.Copy()
	v := out.Values
	prev := -1
	for i := range v {
		if math.IsNaN(v[i]) {
			continue
		}
		if prev >= 0 && i-prev > 1 {
			step := (v[i] - v[prev]) / float64(i-prev)
			for j := prev + 1; j < i; j++ {
				v[j] = v[prev] + step*float64(j-prev)
			}
		}
		prev = i
	}
	if prev >= 0 {
		for j := prev + 1; j < len(v); j++ {
			v[j] = v[prev]
		}
	}
	return out
}

func forwardFill(s *Series) *Series {
	out := s.Copy()
	last := math.NaN()
	for i, x := range out.Values {
		if math.IsNaN(x) {
			out.Values[i] = last
			continue
		}
		last = x
	}
	return out
}

func dropMissing(s *Series) *Series {
	out := &Series{Name: s.Name, Offset: s.Offset, Values: []float64{}}
	for i, x := range s.Values {
		if math.IsNaN(x) {
			continue
		}
		out.Values = append(out.Values, x)
		if i < len(s.Timestamps) {
			out.Timestamps = append(out.Timestamps, s.Timestamps[i])
		}
	}
	if out.Timestamps == nil {
		out.Timestamps = []time.Time{}
	}
	return out
}
