package aggregate

import (
	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// groupingFold is the typed kernel behind a one-dimensional grouping
// aggregator: it owns the per-ordinal accumulator vector and folds
// whole batches at once.
type groupingFold interface {
	// The factory URI this fold belongs to; peers only merge when
	// their URIs agree.
	kindURI() string
	inputType() *tensor.DataType
	outputType() *tensor.DataType

	// grow the accumulator vector to n entries, padding with the
	// fold's default value.
	grow(n int)
	size() int

	// fold a raw client batch (values dtype == inputType).
	fold(ordinals []int64, values *tensor.Tensor)
	// foldMerge folds pre-aggregated partials (values dtype ==
	// outputType), without reapplying any per-client bounding.
	foldMerge(ordinals []int64, values *tensor.Tensor)

	// takeValues releases the accumulator as the output backing
	// slice.
	takeValues() interface{}
}

// OneDimGroupingAggregator reduces (ordinals, values) batches into a
// per-ordinal accumulator. It operates on exactly two input tensors
// of identical scalar or one-dimensional shape: an Int64 ordinal
// tensor and a value tensor. The accumulator grows lazily to the
// largest ordinal seen.
type OneDimGroupingAggregator struct {
	fold      groupingFold
	numInputs int
	consumed  bool
}

func newOneDimGroupingAggregator(fold groupingFold) *OneDimGroupingAggregator {
	return &OneDimGroupingAggregator{fold: fold}
}

func (a *OneDimGroupingAggregator) checkValid() error {
	if a.consumed {
		return status.Error(status.FailedPrecondition,
			"OneDimGroupingAggregator: Output has already been consumed")
	}
	return nil
}

func (a *OneDimGroupingAggregator) validateInputs(tensors []*tensor.Tensor, valueType *tensor.DataType) error {
	if len(tensors) != 2 {
		return status.Errorf(status.InvalidArgument,
			"OneDimGroupingAggregator: Expected 2 input tensors, got %d", len(tensors))
	}
	ordinals := tensors[0]
	values := tensors[1]
	if ordinals.DType() != tensor.Int64 {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Ordinal tensor must have dtype int64")
	}
	if values.DType() != valueType {
		return status.Errorf(status.InvalidArgument,
			"OneDimGroupingAggregator: Value tensor has dtype %s, expected %s",
			values.DType().TypeName(), valueType.TypeName())
	}
	if !ordinals.Shape().Equal(values.Shape()) {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Ordinal and value tensors must have the same shape")
	}
	if len(ordinals.Shape()) > 1 {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Only scalar or one-dimensional tensors are supported")
	}
	if !ordinals.IsDense() || !values.IsDense() {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Only dense tensors are supported")
	}
	return nil
}

// resize grows the accumulator to hold the largest ordinal of the
// batch. Done once per batch to avoid quadratic growth.
func (a *OneDimGroupingAggregator) resize(ordinals []int64) {
	finalSize := a.fold.size()
	for _, o := range ordinals {
		if int(o)+1 > finalSize {
			finalSize = int(o) + 1
		}
	}
	a.fold.grow(finalSize)
}

func (a *OneDimGroupingAggregator) Accumulate(tensors []*tensor.Tensor) error {
	if err := a.checkValid(); err != nil {
		return err
	}
	if err := a.validateInputs(tensors, a.fold.inputType()); err != nil {
		return err
	}
	ordinals := tensors[0].Int64Values()
	a.resize(ordinals)
	a.fold.fold(ordinals, tensors[1])
	a.numInputs++
	return nil
}

// mergeTensors folds a peer's pre-aggregated partials. The ordinals
// must already be translated into this aggregator's ordinal space;
// the GroupBy layer is responsible for that.
func (a *OneDimGroupingAggregator) mergeTensors(tensors []*tensor.Tensor, numInputs int) error {
	if err := a.checkValid(); err != nil {
		return err
	}
	if err := a.validateInputs(tensors, a.fold.outputType()); err != nil {
		return err
	}
	ordinals := tensors[0].Int64Values()
	a.resize(ordinals)
	a.fold.foldMerge(ordinals, tensors[1])
	a.numInputs += numInputs
	return nil
}

// MergeWith folds a standalone peer of the same kind. The peer's
// partial vector is taken over with identity ordinals (entry i is
// ordinal i).
func (a *OneDimGroupingAggregator) MergeWith(other TensorAggregator) error {
	if err := a.checkValid(); err != nil {
		return err
	}
	peer, ok := other.(*OneDimGroupingAggregator)
	if !ok {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Can only merge with another grouping aggregator")
	}
	if err := peer.checkValid(); err != nil {
		return err
	}
	if peer.fold.kindURI() != a.fold.kindURI() ||
		peer.fold.inputType() != a.fold.inputType() ||
		peer.fold.outputType() != a.fold.outputType() {
		return status.Error(status.InvalidArgument,
			"OneDimGroupingAggregator: Expected the peer to have the same kind and value types")
	}
	peerInputs := peer.numInputs
	outputs, err := peer.Report()
	if err != nil {
		return err
	}
	ordinals := make([]int64, outputs[0].NumElements())
	for i := range ordinals {
		ordinals[i] = int64(i)
	}
	ordinalTensor, err := tensor.New(tensor.Int64, outputs[0].Shape(), ordinals)
	if err != nil {
		return err
	}
	return a.mergeTensors([]*tensor.Tensor{ordinalTensor, outputs[0]}, peerInputs)
}

func (a *OneDimGroupingAggregator) CanReport() bool {
	return a.checkValid() == nil
}

func (a *OneDimGroupingAggregator) NumInputs() int {
	return a.numInputs
}

// Report consumes the aggregator and yields the accumulator as a
// single one-dimensional tensor.
func (a *OneDimGroupingAggregator) Report() ([]*tensor.Tensor, error) {
	if err := a.checkValid(); err != nil {
		return nil, err
	}
	size := int64(a.fold.size())
	out, err := tensor.New(a.fold.outputType(), tensor.TensorShape{size}, a.fold.takeValues())
	if err != nil {
		return nil, err
	}
	a.consumed = true
	return []*tensor.Tensor{out}, nil
}

// checkGroupingIntrinsic validates the intrinsic shape shared by the
// one-dimensional grouping factories.
func checkGroupingIntrinsic(intrinsic *Intrinsic, uri string) error {
	if intrinsic.URI != uri {
		return status.Errorf(status.InvalidArgument,
			"Expected intrinsic uri %s but got %s", uri, intrinsic.URI)
	}
	if len(intrinsic.Inputs) != 1 || len(intrinsic.Outputs) != 1 {
		return status.Errorf(status.InvalidArgument,
			"%s: Exactly one input and one output are expected", uri)
	}
	unknownDim := tensor.TensorShape{tensor.UnknownDim}
	if !intrinsic.Inputs[0].Shape.Equal(unknownDim) || !intrinsic.Outputs[0].Shape.Equal(unknownDim) {
		return status.Errorf(status.InvalidArgument,
			"%s: All input and output tensors must have one dimension of unknown size", uri)
	}
	if len(intrinsic.Nested) != 0 {
		return status.Errorf(status.InvalidArgument,
			"%s: No nested intrinsics expected", uri)
	}
	return nil
}

// sumWidening is the explicit input to output widening table shared
// by the grouping sum family.
var sumWidening = map[*tensor.DataType]*tensor.DataType{
	tensor.Int32:  tensor.Int64,
	tensor.Int64:  tensor.Int64,
	tensor.Float:  tensor.Double,
	tensor.Double: tensor.Double,
}
