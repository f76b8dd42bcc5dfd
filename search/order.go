package search

import "fmt"

// Order is a non-seasonal (p, d, q) order.
type Order struct {
	P int
	D int
	Q int
}

func (o Order) String() string {
	return fmt.Sprintf("(%d,%d,%d)", o.P, o.D, o.Q)
}

// SeasonalOrder is a seasonal (P, D, Q, s) order.
type SeasonalOrder struct {
	P int
	D int
	Q int
	S int
}

func (o SeasonalOrder) String() string {
	return fmt.Sprintf("(%d,%d,%d,%d)", o.P, o.D, o.Q, o.S)
}

// Candidate is one point of the search grid. Seasonal is nil for ARIMA.
type Candidate struct {
	Order    Order
	Seasonal *SeasonalOrder
}

func (c Candidate) String() string {
	if c.Seasonal == nil {
		return "ARIMA" + c.Order.String()
	}
	return "SARIMA" + c.Order.String() + "x" + c.Seasonal.String()
}

// Fallback orders seed the running best so a search where every candidate
// fails still refits a sensible model.
var FallbackOrder = Order{P: 1, D: 1, Q: 1}

// FallbackSeasonal returns the seasonal fallback for period s.
func FallbackSeasonal(s int) SeasonalOrder {
	return SeasonalOrder{P: 1, D: 1, Q: 1, S: s}
}

// Space bounds the grid. Every bound is inclusive and starts at zero.
type Space struct {
	MaxP, MaxD, MaxQ    int
	MaxSP, MaxSD, MaxSQ int
}

// DefaultSpace is p,q in [0,2], d in [0,1] and P,D,Q in [0,1].
func DefaultSpace() Space {
	return Space{MaxP: 2, MaxD: 1, MaxQ: 2, MaxSP: 1, MaxSD: 1, MaxSQ: 1}
}

// ARIMACandidates lists the non-seasonal grid with p outermost, then d and q.
func (s Space) ARIMACandidates() []Candidate {
	var out []Candidate
	for p := 0; p <= s.MaxP; p++ {
		for d := 0; d <= s.MaxD; d++ {
			for q := 0; q <= s.MaxQ; q++ {
				out = append(out, Candidate{Order: Order{P: p, D: d, Q: q}})
			}
		}
	}
	return out
}

// SARIMACandidates lists the seasonal grid for period in the order
// p, d, q, P, D, Q, outermost first.
func (s Space) SARIMACandidates(period int) []Candidate {
	var out []Candidate
	for _, c := range s.ARIMACandidates() {
		for sp := 0; sp <= s.MaxSP; sp++ {
			for sd := 0; sd <= s.MaxSD; sd++ {
				for sq := 0; sq <= s.MaxSQ; sq++ {
					c.Seasonal = &SeasonalOrder{P: sp, D: sd, Q: sq, S: period}
					out = append(out, c)
				}
			}
		}
	}
	return out
}
