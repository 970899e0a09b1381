package aggregate

import (
	"github.com/stretchr/testify/assert"
	"testing"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

func TestCombinerSingleColumn(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.String})
	assert.NoError(t, err)

	keys := tensor.NewOrPanic(tensor.String, tensor.TensorShape{4}, []string{"a", "b", "a", "c"})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{keys})
	assert.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 0, 2}, ordinals.Int64Values())
	assert.Equal(t, 3, combiner.NumKeysSeen())

	outputs := combiner.GetOutputKeys()
	assert.Equal(t, 1, len(outputs))
	assert.Equal(t, []string{"a", "b", "c"}, outputs[0].StringValues())
}

func TestCombinerOrdinalsStableAcrossBatches(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.Int64})
	assert.NoError(t, err)

	first := tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{3}, []int64{7, 8, 7})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{first})
	assert.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 0}, ordinals.Int64Values())

	second := tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{3}, []int64{9, 7, 8})
	ordinals, err = combiner.Accumulate([]*tensor.Tensor{second})
	assert.NoError(t, err)
	assert.Equal(t, []int64{2, 0, 1}, ordinals.Int64Values())
	assert.Equal(t, 3, combiner.NumKeysSeen())
}

func TestCombinerCompositeKeys(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.String, tensor.Int32})
	assert.NoError(t, err)

	names := tensor.NewOrPanic(tensor.String, tensor.TensorShape{4}, []string{"x", "x", "y", "x"})
	codes := tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{4}, []int32{1, 2, 1, 1})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{names, codes})
	assert.NoError(t, err)
	// (x,1), (x,2), (y,1), (x,1) again
	assert.Equal(t, []int64{0, 1, 2, 0}, ordinals.Int64Values())

	outputs := combiner.GetOutputKeys()
	assert.Equal(t, 2, len(outputs))
	assert.Equal(t, []string{"x", "x", "y"}, outputs[0].StringValues())
	assert.Equal(t, []int32{1, 2, 1}, outputs[1].Int32Values())
}

func TestCombinerScalarKeys(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.Int32})
	assert.NoError(t, err)

	key := tensor.NewOrPanic(tensor.Int32, tensor.ScalarShape(), []int32{5})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{key})
	assert.NoError(t, err)
	assert.Equal(t, tensor.ScalarShape(), ordinals.Shape())
	assert.Equal(t, []int64{0}, ordinals.Int64Values())
}

func TestCombinerFloatKeysByBitPattern(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.Double})
	assert.NoError(t, err)

	keys := tensor.NewOrPanic(tensor.Double, tensor.TensorShape{3}, []float64{1.5, -1.5, 1.5})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{keys})
	assert.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 0}, ordinals.Int64Values())
}

func TestCombinerValidation(t *testing.T) {
	_, err := NewCompositeKeyCombiner(nil)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.Int64, tensor.String})
	assert.NoError(t, err)

	ints := tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{2}, []int64{1, 2})
	strs := tensor.NewOrPanic(tensor.String, tensor.TensorShape{2}, []string{"a", "b"})
	shorter := tensor.NewOrPanic(tensor.String, tensor.TensorShape{1}, []string{"a"})

	_, err = combiner.Accumulate([]*tensor.Tensor{ints})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	_, err = combiner.Accumulate([]*tensor.Tensor{strs, ints})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	_, err = combiner.Accumulate([]*tensor.Tensor{ints, shorter})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	// Nothing was interned by the failed calls.
	assert.Equal(t, 0, combiner.NumKeysSeen())
}

func TestCombinerOrdinalsWithinTableSize(t *testing.T) {
	combiner, err := NewCompositeKeyCombiner([]*tensor.DataType{tensor.Int32})
	assert.NoError(t, err)
	keys := tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{6}, []int32{4, 4, 2, 9, 2, 4})
	ordinals, err := combiner.Accumulate([]*tensor.Tensor{keys})
	assert.NoError(t, err)
	size := int64(combiner.NumKeysSeen())
	for _, o := range ordinals.Int64Values() {
		assert.True(t, o >= 0 && o < size)
	}
}
