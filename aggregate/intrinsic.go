package aggregate

import (
	"github.com/fedcompute/aggcore/tensor"
)

// Intrinsic URIs understood by the built-in factories.
const (
	GroupByURI = "GoogleSQL:group_by"
	SumURI     = "GoogleSQL:sum"
	DPSumURI   = "GoogleSQL:dp_sum"

	// Aggregators nested inside a group_by must carry this prefix, so
	// that only grouping-aware aggregators can be composed.
	fedSQLPrefix = "GoogleSQL:"
)

// Intrinsic is the declarative description of an aggregation
// operator: which factory to use (by URI), the input and output
// tensor contracts, constant parameter tensors (for example DP
// bounds) and, for composite aggregators, the nested operators.
type Intrinsic struct {
	URI        string
	Inputs     []tensor.Spec
	Outputs    []tensor.Spec
	Parameters []*tensor.Tensor
	Nested     []Intrinsic
}

// specsEqual compares two spec lists pairwise.
func specsEqual(a []tensor.Spec, b []tensor.Spec) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
