package session

import (
	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/ivpsolve/internal/dynamo"
)

// Result holds one state per requested output time, in request order. All
// rows share a single m×n backing block owned by the caller.
type Result struct {
	Times  []float64
	States []dynamo.State

	data []float64
	n    int
}

// NewResult allocates a zeroed result for len(times) states of length n.
func NewResult(times []float64, n int) *Result {
	m := len(times)
	r := &Result{
		Times:  append(make([]float64, 0, m), times...),
		States: make([]dynamo.State, m),
		data:   make([]float64, m*n),
		n:      n,
	}
	for i := range r.States {
		r.States[i] = dynamo.State(r.data[i*n : (i+1)*n : (i+1)*n])
	}
	return r
}

func (r *Result) Len() int { return len(r.States) }

func (r *Result) Dim() int { return r.n }

// Column returns component j across all output times.
func (r *Result) Column(j int) []float64 {
	col := make([]float64, len(r.States))
	for i, s := range r.States {
		col[i] = s[j]
	}
	return col
}

// Dense views the result as an m×n matrix sharing the result's memory. It
// returns nil for an empty result.
func (r *Result) Dense() *mat.Dense {
	if len(r.States) == 0 || r.n == 0 {
		return nil
	}
	return mat.NewDense(len(r.States), r.n, r.data)
}
