package checkpoint

import (
	"github.com/stretchr/testify/assert"
	"testing"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

func sampleTensors() map[string]*tensor.Tensor {
	return map[string]*tensor.Tensor{
		"i32":    tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{3}, []int32{1, -2, 3}),
		"i64":    tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{2}, []int64{1 << 40, -5}),
		"f32":    tensor.NewOrPanic(tensor.Float, tensor.TensorShape{2}, []float32{0.5, -1.25}),
		"f64":    tensor.NewOrPanic(tensor.Double, tensor.TensorShape{3}, []float64{3.14, -2.5, 0}),
		"str":    tensor.NewOrPanic(tensor.String, tensor.TensorShape{2}, []string{"hello", ""}),
		"scalar": tensor.NewOrPanic(tensor.Int64, tensor.ScalarShape(), []int64{42}),
		"empty":  tensor.NewOrPanic(tensor.Double, tensor.TensorShape{0}, []float64{}),
	}
}

func TestTensorRoundTrip(t *testing.T) {
	for name, original := range sampleTensors() {
		encoded := AppendTensor(nil, original)
		decoded, err := ParseTensor(encoded)
		assert.NoError(t, err, name)
		assert.True(t, tensor.Equal(original, decoded), name)
	}
}

func TestCheckpointRoundTrip(t *testing.T) {
	tensors := sampleTensors()
	builder := NewBuilder()
	order := []string{"i32", "i64", "f32", "f64", "str", "scalar", "empty"}
	for _, name := range order {
		assert.NoError(t, builder.Add(name, tensors[name]))
	}
	data := builder.Build()

	parser, err := Parse(data)
	assert.NoError(t, err)
	assert.Equal(t, order, parser.Names())
	for _, name := range order {
		parsed, err := parser.GetTensor(name)
		assert.NoError(t, err)
		assert.True(t, tensor.Equal(tensors[name], parsed), name)
	}
}

func TestBuilderDeterministicOrder(t *testing.T) {
	value := tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{1}, []int32{1})
	first := NewBuilder()
	assert.NoError(t, first.Add("a", value))
	assert.NoError(t, first.Add("b", value))
	second := NewBuilder()
	assert.NoError(t, second.Add("a", value))
	assert.NoError(t, second.Add("b", value))
	assert.Equal(t, first.Build(), second.Build())
}

func TestBuilderRejectsEmptyName(t *testing.T) {
	builder := NewBuilder()
	err := builder.Add("", tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{1}, []int32{1}))
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}

func TestParseBadMagic(t *testing.T) {
	builder := NewBuilder()
	assert.NoError(t, builder.Add("t", tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{1}, []int32{1})))
	data := builder.Build()
	data[0] = 'X'
	_, err := Parse(data)
	assert.Error(t, err)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}

func TestParseTruncated(t *testing.T) {
	_, err := Parse([]byte{'F', 'C'})
	assert.Equal(t, status.Internal, status.CodeOf(err))

	builder := NewBuilder()
	assert.NoError(t, builder.Add("tensor", tensor.NewOrPanic(
		tensor.Int64, tensor.TensorShape{2}, []int64{1, 2})))
	data := builder.Build()
	// Cut into the middle of the tensor payload.
	_, err = Parse(data[:len(data)-6])
	assert.Equal(t, status.Internal, status.CodeOf(err))
}

func TestParseMalformedTensor(t *testing.T) {
	buf := append([]byte{}, 'F', 'C', 'C', 0)
	// name "x"
	buf = append(buf, 1, 'x')
	// three bytes of garbage tensor payload
	buf = append(buf, 3, 0xff, 0xff, 0xff)
	buf = append(buf, 0)
	_, err := Parse(buf)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}

func TestGetTensorNotFound(t *testing.T) {
	parser, err := Parse(NewBuilder().Build())
	assert.NoError(t, err)
	_, err = parser.GetTensor("missing")
	assert.Equal(t, status.NotFound, status.CodeOf(err))
}

func TestParseWithoutTerminatorAtEnd(t *testing.T) {
	// A checkpoint that ends cleanly after its last entry parses too.
	builder := NewBuilder()
	assert.NoError(t, builder.Add("t", tensor.NewOrPanic(
		tensor.Int32, tensor.TensorShape{1}, []int32{7})))
	data := builder.Build()
	parser, err := Parse(data[:len(data)-1])
	assert.NoError(t, err)
	parsed, err := parser.GetTensor("t")
	assert.NoError(t, err)
	assert.Equal(t, []int32{7}, parsed.Int32Values())
}
