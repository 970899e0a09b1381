package aggregate

import (
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// GroupByAggregator composes a CompositeKeyCombiner with an ordered
// list of nested one-dimensional grouping aggregators. A contribution
// is a flat tensor list: the key columns first, then the value
// columns grouped by nested intrinsic. The key columns are interned
// into ordinals and every nested aggregator receives the ordinals
// plus its value columns.
//
// Without key columns the combiner is absent and all rows fall into a
// single implicit group.
type GroupByAggregator struct {
	numInputs          int
	consumed           bool
	outputKeySpecs     []tensor.Spec
	intrinsics         []Intrinsic
	combiner           *CompositeKeyCombiner
	aggregators        []*OneDimGroupingAggregator
	numKeysPerInput    int
	numTensorsPerInput int
}

// Invariants across the nested configuration are enforced by the
// factory; the constructor only keeps backup checks, which fail hard.
func newGroupByAggregator(
	inputKeySpecs []tensor.Spec,
	outputKeySpecs []tensor.Spec,
	intrinsics []Intrinsic,
	combiner *CompositeKeyCombiner,
	aggregators []*OneDimGroupingAggregator,
) *GroupByAggregator {
	if len(intrinsics) != len(aggregators) {
		logrus.Panicf("GroupByAggregator: %d nested intrinsics but %d aggregators",
			len(intrinsics), len(aggregators))
	}
	if len(inputKeySpecs) != len(outputKeySpecs) {
		logrus.Panicf("GroupByAggregator: Size of input key specs must match size of output key specs")
	}
	numValueInputs := 0
	for _, intrinsic := range intrinsics {
		numValueInputs += len(intrinsic.Inputs)
	}
	numTensors := len(inputKeySpecs) + numValueInputs
	if numTensors == 0 {
		logrus.Panicf("GroupByAggregator: Must operate on a nonzero number of tensors")
	}
	return &GroupByAggregator{
		outputKeySpecs:     outputKeySpecs,
		intrinsics:         intrinsics,
		combiner:           combiner,
		aggregators:        aggregators,
		numKeysPerInput:    len(inputKeySpecs),
		numTensorsPerInput: numTensors,
	}
}

func (g *GroupByAggregator) checkValid() error {
	if g.consumed {
		return status.Error(status.FailedPrecondition,
			"GroupByAggregator: Output has already been consumed")
	}
	return nil
}

func (g *GroupByAggregator) Accumulate(tensors []*tensor.Tensor) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	if err := g.aggregateTensors(tensors); err != nil {
		return err
	}
	g.numInputs++
	return nil
}

// validateValueTensor checks one value tensor against its spec and
// the shape of the first key tensor.
func validateValueTensor(t *tensor.Tensor, index int, spec tensor.Spec, keyShape tensor.TensorShape) error {
	if t.DType() != spec.DType {
		return status.Errorf(status.InvalidArgument,
			"GroupByAggregator: Tensor at position %d has dtype %s, expected %s",
			index, t.DType().TypeName(), spec.DType.TypeName())
	}
	if !t.Shape().Equal(keyShape) {
		return status.Errorf(status.InvalidArgument,
			"GroupByAggregator: Shape of value tensor at index %d does not match the shape of the first tensor",
			index)
	}
	if !t.IsDense() {
		return status.Error(status.InvalidArgument,
			"GroupByAggregator: Only dense tensors are supported")
	}
	return nil
}

// aggregateTensors validates the whole contribution before mutating
// any state. Once the key combiner has interned a batch, a nested
// aggregation failure would leave the aggregator inconsistent, so
// such failures abort instead of surfacing as recoverable statuses.
func (g *GroupByAggregator) aggregateTensors(tensors []*tensor.Tensor) error {
	specFor := func(intrinsic *Intrinsic) []tensor.Spec { return intrinsic.Inputs }
	ordinals, err := g.validateAndCreateOrdinals(tensors, specFor)
	if err != nil {
		return err
	}
	index := g.numKeysPerInput
	for i := range g.intrinsics {
		inputs := make([]*tensor.Tensor, 0, len(g.intrinsics[i].Inputs)+1)
		inputs = append(inputs, ordinals)
		for range g.intrinsics[i].Inputs {
			inputs = append(inputs, tensors[index])
			index++
		}
		if err := g.aggregators[i].Accumulate(inputs); err != nil {
			logrus.Panicf("GroupByAggregator: Nested accumulate failed after state mutation: %s", err.Error())
		}
	}
	return nil
}

// mergeTensors is aggregateTensors for a peer's pre-aggregated
// output: tensors are validated against the nested output specs and
// folded through the merge path with the peer's input count.
func (g *GroupByAggregator) mergeTensors(tensors []*tensor.Tensor, numMergedInputs int) error {
	specFor := func(intrinsic *Intrinsic) []tensor.Spec { return intrinsic.Outputs }
	ordinals, err := g.validateAndCreateOrdinals(tensors, specFor)
	if err != nil {
		return err
	}
	index := g.numKeysPerInput
	for i := range g.intrinsics {
		inputs := make([]*tensor.Tensor, 0, len(g.intrinsics[i].Outputs)+1)
		inputs = append(inputs, ordinals)
		for range g.intrinsics[i].Outputs {
			inputs = append(inputs, tensors[index])
			index++
		}
		if err := g.aggregators[i].mergeTensors(inputs, numMergedInputs); err != nil {
			logrus.Panicf("GroupByAggregator: Nested merge failed after state mutation: %s", err.Error())
		}
	}
	return nil
}

func (g *GroupByAggregator) validateAndCreateOrdinals(
	tensors []*tensor.Tensor,
	specFor func(*Intrinsic) []tensor.Spec,
) (*tensor.Tensor, error) {
	if len(tensors) != g.numTensorsPerInput {
		return nil, status.Errorf(status.InvalidArgument,
			"GroupByAggregator: Should operate on %d input tensors, got %d",
			g.numTensorsPerInput, len(tensors))
	}
	// The first tensor's shape defines the row count; the combiner
	// checks the key tensors against it before touching its state.
	keyShape := tensors[0].Shape()
	if len(keyShape) > 1 {
		return nil, status.Error(status.InvalidArgument,
			"GroupByAggregator: Only scalar or one-dimensional tensors are supported")
	}
	index := g.numKeysPerInput
	for i := range g.intrinsics {
		for _, spec := range specFor(&g.intrinsics[i]) {
			if err := validateValueTensor(tensors[index], index, spec, keyShape); err != nil {
				return nil, err
			}
			index++
		}
	}
	if g.combiner != nil {
		return g.combiner.Accumulate(tensors[:g.numKeysPerInput])
	}
	// No keys: one implicit group, every row maps to ordinal zero.
	return tensor.New(tensor.Int64, keyShape, make([]int64, tensors[0].NumElements()))
}

// MergeWith folds a peer GroupByAggregator. The peer's output keys
// are re-interned through this aggregator's combiner, translating the
// peer's ordinal space into ours, before its value columns are merged
// into the nested aggregators. The peer is consumed.
func (g *GroupByAggregator) MergeWith(other TensorAggregator) error {
	if err := g.checkValid(); err != nil {
		return err
	}
	peer, ok := other.(*GroupByAggregator)
	if !ok {
		return status.Error(status.InvalidArgument,
			"GroupByAggregator: Can only merge with another GroupByAggregator")
	}
	if err := peer.checkValid(); err != nil {
		return err
	}
	if err := g.isCompatible(peer); err != nil {
		return err
	}
	peerInputs := peer.NumInputs()
	peerOutputs := peer.takeOutputs()
	if err := g.mergeTensors(peerOutputs, peerInputs); err != nil {
		return err
	}
	g.numInputs += peerInputs
	return nil
}

func (g *GroupByAggregator) isCompatible(other *GroupByAggregator) error {
	if (other.combiner == nil) != (g.combiner == nil) ||
		!specsEqual(other.outputKeySpecs, g.outputKeySpecs) {
		return status.Error(status.InvalidArgument,
			"GroupByAggregator: Expected the peer to have the same key specs")
	}
	if len(other.intrinsics) != len(g.intrinsics) {
		return status.Error(status.InvalidArgument,
			"GroupByAggregator: Expected the peer to have the same number of nested intrinsics")
	}
	for i := range g.intrinsics {
		if !specsEqual(other.intrinsics[i].Inputs, g.intrinsics[i].Inputs) ||
			!specsEqual(other.intrinsics[i].Outputs, g.intrinsics[i].Outputs) {
			return status.Error(status.InvalidArgument,
				"GroupByAggregator: Expected the peer to use nested intrinsics with the same specs")
		}
	}
	return nil
}

// takeOutputs consumes the aggregator and returns the unfiltered
// internal outputs: all key columns followed by every nested output.
func (g *GroupByAggregator) takeOutputs() []*tensor.Tensor {
	g.consumed = true
	var outputs []*tensor.Tensor
	if g.combiner != nil {
		outputs = g.combiner.GetOutputKeys()
	}
	for _, aggregator := range g.aggregators {
		nested, err := aggregator.Report()
		if err != nil {
			logrus.Panicf("GroupByAggregator: Nested report failed: %s", err.Error())
		}
		outputs = append(outputs, nested...)
	}
	return outputs
}

func (g *GroupByAggregator) CanReport() bool {
	return g.checkValid() == nil
}

func (g *GroupByAggregator) NumInputs() int {
	return g.numInputs
}

// Report consumes the aggregator. Key columns whose output spec name
// is empty are anonymous and dropped from the result.
func (g *GroupByAggregator) Report() ([]*tensor.Tensor, error) {
	if err := g.checkValid(); err != nil {
		return nil, err
	}
	internal := g.takeOutputs()
	outputs := make([]*tensor.Tensor, 0, len(internal))
	for i := 0; i < g.numKeysPerInput; i++ {
		if g.outputKeySpecs[i].Name == "" {
			continue
		}
		outputs = append(outputs, internal[i])
	}
	outputs = append(outputs, internal[g.numKeysPerInput:]...)
	return outputs, nil
}

type groupByFactory struct{}

func (f *groupByFactory) Create(intrinsic *Intrinsic) (TensorAggregator, error) {
	if intrinsic.URI != GroupByURI {
		return nil, status.Errorf(status.InvalidArgument,
			"GroupByFactory: Expected intrinsic uri %s but got %s", GroupByURI, intrinsic.URI)
	}
	if len(intrinsic.Inputs) != len(intrinsic.Outputs) {
		return nil, status.Errorf(status.InvalidArgument,
			"GroupByFactory: Expected the same number of input and output keys, got %d and %d",
			len(intrinsic.Inputs), len(intrinsic.Outputs))
	}
	unknownDim := tensor.TensorShape{tensor.UnknownDim}
	for i := range intrinsic.Inputs {
		if intrinsic.Inputs[i].DType != intrinsic.Outputs[i].DType {
			return nil, status.Errorf(status.InvalidArgument,
				"GroupByFactory: Input and output key %d must have matching data types", i)
		}
		if !intrinsic.Inputs[i].Shape.Equal(unknownDim) || !intrinsic.Outputs[i].Shape.Equal(unknownDim) {
			return nil, status.Error(status.InvalidArgument,
				"GroupByFactory: All input and output tensors must have one dimension of unknown size")
		}
	}
	if len(intrinsic.Parameters) != 0 {
		return nil, status.Error(status.InvalidArgument,
			"GroupByFactory: No input parameters expected")
	}
	numValueInputs := 0
	aggregators := make([]*OneDimGroupingAggregator, 0, len(intrinsic.Nested))
	for i := range intrinsic.Nested {
		nested := &intrinsic.Nested[i]
		if !strings.HasPrefix(nested.URI, fedSQLPrefix) {
			return nil, status.Errorf(status.InvalidArgument,
				"GroupByFactory: Nested intrinsic uris must start with %s", fedSQLPrefix)
		}
		nestedAggregator, err := CreateAggregator(nested)
		if err != nil {
			return nil, err
		}
		grouping, ok := nestedAggregator.(*OneDimGroupingAggregator)
		if !ok {
			return nil, status.Errorf(status.InvalidArgument,
				"GroupByFactory: Nested intrinsic %s is not a grouping aggregator", nested.URI)
		}
		aggregators = append(aggregators, grouping)
		numValueInputs += len(nested.Inputs)
	}
	if len(intrinsic.Inputs)+numValueInputs == 0 {
		return nil, status.Error(status.InvalidArgument,
			"GroupByFactory: Must operate on a nonzero number of input tensors")
	}
	var combiner *CompositeKeyCombiner
	if len(intrinsic.Inputs) > 0 {
		keyTypes := make([]*tensor.DataType, len(intrinsic.Inputs))
		for i, spec := range intrinsic.Inputs {
			keyTypes[i] = spec.DType
		}
		created, err := NewCompositeKeyCombiner(keyTypes)
		if err != nil {
			return nil, err
		}
		combiner = created
	}
	return newGroupByAggregator(
		intrinsic.Inputs, intrinsic.Outputs, intrinsic.Nested, combiner, aggregators), nil
}

func init() {
	RegisterFactory(GroupByURI, &groupByFactory{})
}
