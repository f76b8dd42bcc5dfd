package timeseries

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is a single raw price reading.
type Observation struct {
	Time  time.Time
	Value float64
}

// Resample averages observations per period of g and returns a regular series
// covering every period from the first to the last observation. Periods with
// no observations hold NaN.
func Resample(obs []Observation, g Granularity) *Series {
	if len(obs) == 0 {
		return &Series{Values: []float64{}, Timestamps: []time.Time{}}
	}

	type bucket struct {
		sum   float64
		count int
	}
	buckets := make(map[time.Time]*bucket)
	for _, o := range obs {
		if math.IsNaN(o.Value) {
			continue
		}
		key := g.Truncate(o.Time)
		b, ok := buckets[key]
		if !ok {
			b = &bucket{}
			buckets[key] = b
		}
		b.sum += o.Value
		b.count++
	}
	if len(buckets) == 0 {
		return &Series{Values: []float64{}, Timestamps: []time.Time{}}
	}

	keys := make([]time.Time, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	out := &Series{}
	for t := keys[0]; !t.After(keys[len(keys)-1]); t = g.Next(t) {
		out.Timestamps = append(out.Timestamps, t)
		if b, ok := buckets[t]; ok {
			out.Values = append(out.Values, b.sum/float64(b.count))
		} else {
			out.Values = append(out.Values, math.NaN())
		}
	}
	return out
}

// AsFreq reindexes s onto the regular period grid of g between its first and
// last timestamps. Timestamps are first mapped onto their period label; points
// sharing a label keep the later value. Missing periods hold NaN.
func AsFreq(s *Series, g Granularity) (*Series, error) {
	if !s.Aligned() {
		return nil, ErrLengthMismatch
	}
	if s.Len() == 0 {
		return s.Copy(), nil
	}

	values := make(map[time.Time]float64, s.Len())
	first, last := g.Truncate(s.Timestamps[0]), g.Truncate(s.Timestamps[0])
	for i, ts := range s.Timestamps {
		key := g.Truncate(ts)
		values[key] = s.Values[i]
		if key.Before(first) {
			first = key
		}
		if key.After(last) {
			last = key
		}
	}

	out := &Series{Name: s.Name, Offset: s.Offset}
	for t := first; !t.After(last); t = g.Next(t) {
		out.Timestamps = append(out.Timestamps, t)
		if v, ok := values[t]; ok {
			out.Values = append(out.Values, v)
		} else {
			out.Values = append(out.Values, math.NaN())
		}
	}
	return out, nil
}

// Split divides s into a leading training part holding int(len*ratio) points
// and a trailing test part. The test part continues the training time index.
func Split(s *Series, ratio float64) (train, test *Series, err error) {
	if ratio <= 0 || ratio >= 1 {
		return nil, nil, fmt.Errorf("train ratio %.2f must be in (0, 1)", ratio)
	}
	n := int(float64(s.Len()) * ratio)
	if n == 0 || n == s.Len() {
		return nil, nil, errors.New("series too short to split")
	}
	return s.Slice(0, n), s.Slice(n, s.Len()), nil
}
