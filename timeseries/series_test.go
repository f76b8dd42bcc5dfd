package timeseries

import (
	"math"
	"testing"
	"time"
)

func TestNew(t *testing.T) {
	values := []float64{1, 2, 3, 4, 5}
	s := New(values)

	if s.Len() != 5 {
		t.Errorf("Expected length 5, got %d", s.Len())
	}

	if len(s.Timestamps) != 5 {
		t.Errorf("Expected 5 timestamps, got %d", len(s.Timestamps))
	}

	for i := 1; i < len(s.Timestamps); i++ {
		if !s.Timestamps[i].After(s.Timestamps[i-1]) {
			t.Fatalf("Timestamps not increasing at %d", i)
		}
	}
}

func TestNewWithTimestamps(t *testing.T) {
	ts := []time.Time{time.Now()}
	if _, err := NewWithTimestamps(ts, []float64{1, 2}); err == nil {
		t.Error("Expected error for mismatched lengths")
	}
}

func TestMeanAndStd(t *testing.T) {
	s := New([]float64{2, 4, 4, 4, 5, 5, 7, 9})

	if math.Abs(s.Mean()-5) > 1e-10 {
		t.Errorf("Expected mean 5, got %f", s.Mean())
	}

	// Sample variance
	expected := math.Sqrt(32.0 / 7.0)
	if math.Abs(s.Std()-expected) > 1e-10 {
		t.Errorf("Expected std %f, got %f", expected, s.Std())
	}
}

func TestDiff(t *testing.T) {
	s := New([]float64{1, 3, 6, 10, 15})
	s.Offset = 4
	diff := s.Diff()

	expected := []float64{2, 3, 4, 5}
	if len(diff.Values) != len(expected) {
		t.Fatalf("Expected length %d, got %d", len(expected), len(diff.Values))
	}

	for i, v := range diff.Values {
		if math.Abs(v-expected[i]) > 1e-10 {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, v)
		}
	}

	if !diff.Timestamps[0].Equal(s.Timestamps[1]) {
		t.Errorf("Differenced series should start at the second timestamp")
	}
	if diff.Offset != 5 {
		t.Errorf("Expected offset 5, got %d", diff.Offset)
	}
}

func TestDiffTooShort(t *testing.T) {
	if New([]float64{1}).Diff().Len() != 0 {
		t.Error("Expected empty difference for a single point")
	}
}

func TestSeasonalDiff(t *testing.T) {
	values := []float64{10, 12, 14, 16, 18, 20, 22, 24, 26, 28, 30, 32, 11, 13, 15, 17}
	diff := New(values).SeasonalDiff(12)

	expected := []float64{1, 1, 1, 1}
	if len(diff.Values) != len(expected) {
		t.Fatalf("Expected length %d, got %d", len(expected), len(diff.Values))
	}
	for i, v := range diff.Values {
		if math.Abs(v-expected[i]) > 1e-10 {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, v)
		}
	}
}

func TestSlice(t *testing.T) {
	s := New([]float64{1, 2, 3, 4, 5})
	sliced := s.Slice(1, 4)

	expected := []float64{2, 3, 4}
	if len(sliced.Values) != len(expected) {
		t.Fatalf("Expected length %d, got %d", len(expected), len(sliced.Values))
	}
	for i, v := range sliced.Values {
		if v != expected[i] {
			t.Errorf("Expected %f at index %d, got %f", expected[i], i, v)
		}
	}
	if sliced.Offset != 1 {
		t.Errorf("Expected offset 1, got %d", sliced.Offset)
	}
}

func TestFinite(t *testing.T) {
	s := New([]float64{1, math.NaN(), 3, math.Inf(1), 5, math.Inf(-1)})
	f := s.Finite()

	if f.Len() != 3 {
		t.Fatalf("Expected 3 finite points, got %d", f.Len())
	}
	if !f.Timestamps[1].Equal(s.Timestamps[2]) {
		t.Error("Timestamps should follow surviving values")
	}

	empty := New([]float64{math.NaN()}).Finite()
	if empty.Len() != 0 {
		t.Errorf("Expected empty series, got %d points", empty.Len())
	}
}

func TestTimeIndex(t *testing.T) {
	s := New([]float64{1, 2, 3})
	s.Offset = 10

	idx := s.TimeIndex()
	for i, v := range idx {
		if v != 10+i {
			t.Errorf("Expected index %d, got %d", 10+i, v)
		}
	}
}

func TestCopy(t *testing.T) {
	s := New([]float64{1, 2, 3})
	copied := s.Copy()

	s.Values[0] = 100

	if copied.Values[0] != 1 {
		t.Errorf("Copy was modified when original changed")
	}
}
