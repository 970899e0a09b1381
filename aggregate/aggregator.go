package aggregate

import (
	"github.com/fedcompute/aggcore/tensor"
)

// TensorAggregator is the common protocol of all aggregators.
//
// An aggregator is driven through any interleaving of Accumulate and
// MergeWith calls followed by exactly one Report. Report consumes the
// aggregator, every later operation fails with FailedPrecondition.
// Aggregators are single-owner and not safe for concurrent use;
// callers that want parallelism shard over independent instances and
// fold them together with MergeWith.
type TensorAggregator interface {
	// Accumulate folds one client contribution, a flat list of input
	// tensors, into the aggregator.
	Accumulate(tensors []*tensor.Tensor) error

	// MergeWith folds the partial state of a compatible peer into this
	// aggregator. The peer is consumed, successful or not its output
	// must not be reported separately afterwards unless the merge
	// failed before any state was taken.
	MergeWith(other TensorAggregator) error

	// CanReport returns true while the aggregator can still produce
	// its output.
	CanReport() bool

	// NumInputs returns the number of contributions folded in so far.
	NumInputs() int

	// Report consumes the aggregator and yields its output tensors.
	Report() ([]*tensor.Tensor, error)
}
