package tensor

import (
	"github.com/sirupsen/logrus"

	"github.com/fedcompute/aggcore/status"
)

// Tensor packages a dense, row-major value buffer with its data type
// and shape. The backing slice is exclusively owned by the tensor;
// aggregators hand tensors over by pointer and the receiver takes
// ownership.
//
// Aggregation code mostly does not consume tensors directly but their
// flat typed views (Int32Values etc.). Requesting a view of the wrong
// type is a programming error and panics.
type Tensor struct {
	dtype  *DataType
	shape  TensorShape
	values interface{}
}

// New validates the parameters and creates a Tensor. The values
// argument must be the slice type matching dtype ([]int32, []int64,
// []float32, []float64 or []string) with exactly as many elements as
// the shape describes. Unknown dimensions must be resolved before
// tensors are materialized.
func New(dtype *DataType, shape TensorShape, values interface{}) (*Tensor, error) {
	if dtype == nil || dtype == Invalid {
		return nil, status.Error(status.InvalidArgument, "Tensor: Invalid data type")
	}
	numElements, known := shape.NumElements()
	if !known {
		return nil, status.Errorf(status.InvalidArgument,
			"Tensor: Shape %s has unknown dimensions", shape.String())
	}
	length, err := valuesLength(dtype, values)
	if err != nil {
		return nil, err
	}
	if int64(length) != numElements {
		return nil, status.Errorf(status.InvalidArgument,
			"Tensor: Shape %s wants %d elements, got %d", shape.String(), numElements, length)
	}
	return &Tensor{dtype, shape, values}, nil
}

// NewOrPanic is New for statically known good values.
func NewOrPanic(dtype *DataType, shape TensorShape, values interface{}) *Tensor {
	t, err := New(dtype, shape, values)
	if err != nil {
		logrus.Panicf("Could not create tensor: %s", err.Error())
	}
	return t
}

func valuesLength(dtype *DataType, values interface{}) (int, error) {
	switch dtype {
	case Int32:
		if v, ok := values.([]int32); ok {
			return len(v), nil
		}
	case Int64:
		if v, ok := values.([]int64); ok {
			return len(v), nil
		}
	case Float:
		if v, ok := values.([]float32); ok {
			return len(v), nil
		}
	case Double:
		if v, ok := values.([]float64); ok {
			return len(v), nil
		}
	case String:
		if v, ok := values.([]string); ok {
			return len(v), nil
		}
	}
	return 0, status.Errorf(status.InvalidArgument,
		"Tensor: Value buffer does not match data type %s", dtype.TypeName())
}

func (t *Tensor) DType() *DataType {
	return t.dtype
}

func (t *Tensor) Shape() TensorShape {
	return t.shape
}

// NumElements of a materialized tensor is always known.
func (t *Tensor) NumElements() int64 {
	n, _ := t.shape.NumElements()
	return n
}

// IsDense is true for all tensors of this implementation, sparse
// layouts are not supported.
func (t *Tensor) IsDense() bool {
	return true
}

// Values returns the untyped backing slice.
func (t *Tensor) Values() interface{} {
	return t.values
}

func (t *Tensor) viewMismatch(wanted *DataType) {
	logrus.Panicf("Tensor: Incompatible typed view, tensor is %s, wanted %s",
		t.dtype.TypeName(), wanted.TypeName())
}

func (t *Tensor) Int32Values() []int32 {
	v, ok := t.values.([]int32)
	if !ok {
		t.viewMismatch(Int32)
	}
	return v
}

func (t *Tensor) Int64Values() []int64 {
	v, ok := t.values.([]int64)
	if !ok {
		t.viewMismatch(Int64)
	}
	return v
}

func (t *Tensor) FloatValues() []float32 {
	v, ok := t.values.([]float32)
	if !ok {
		t.viewMismatch(Float)
	}
	return v
}

func (t *Tensor) DoubleValues() []float64 {
	v, ok := t.values.([]float64)
	if !ok {
		t.viewMismatch(Double)
	}
	return v
}

func (t *Tensor) StringValues() []string {
	v, ok := t.values.([]string)
	if !ok {
		t.viewMismatch(String)
	}
	return v
}

func (t *Tensor) checkScalar() {
	if t.NumElements() != 1 {
		logrus.Panicf("Tensor: AsScalar used on tensor with %d elements", t.NumElements())
	}
}

// AsScalarInt64 returns the single element of a numeric scalar tensor,
// cast to int64. Floating values truncate toward zero.
func (t *Tensor) AsScalarInt64() int64 {
	t.checkScalar()
	switch t.dtype {
	case Int32:
		return int64(t.Int32Values()[0])
	case Int64:
		return t.Int64Values()[0]
	case Float:
		return int64(t.FloatValues()[0])
	case Double:
		return int64(t.DoubleValues()[0])
	}
	logrus.Panicf("Tensor: AsScalarInt64 used on %s tensor", t.dtype.TypeName())
	return 0
}

// AsScalarDouble returns the single element of a numeric scalar
// tensor, cast to float64.
func (t *Tensor) AsScalarDouble() float64 {
	t.checkScalar()
	switch t.dtype {
	case Int32:
		return float64(t.Int32Values()[0])
	case Int64:
		return float64(t.Int64Values()[0])
	case Float:
		return float64(t.FloatValues()[0])
	case Double:
		return t.DoubleValues()[0]
	}
	logrus.Panicf("Tensor: AsScalarDouble used on %s tensor", t.dtype.TypeName())
	return 0
}

// AsScalarString returns the single element of a string scalar tensor.
func (t *Tensor) AsScalarString() string {
	t.checkScalar()
	return t.StringValues()[0]
}

// Equal compares dtype and shape exactly and the dense data
// elementwise.
func Equal(a *Tensor, b *Tensor) bool {
	if a.dtype != b.dtype || !a.shape.Equal(b.shape) {
		return false
	}
	switch a.dtype {
	case Int32:
		return int32SlicesEqual(a.Int32Values(), b.Int32Values())
	case Int64:
		return int64SlicesEqual(a.Int64Values(), b.Int64Values())
	case Float:
		return float32SlicesEqual(a.FloatValues(), b.FloatValues())
	case Double:
		return float64SlicesEqual(a.DoubleValues(), b.DoubleValues())
	case String:
		return stringSlicesEqual(a.StringValues(), b.StringValues())
	}
	return false
}

func int32SlicesEqual(a []int32, b []int32) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

func int64SlicesEqual(a []int64, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

func float32SlicesEqual(a []float32, b []float32) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

func float64SlicesEqual(a []float64, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}

func stringSlicesEqual(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i, v := range a {
		if b[i] != v {
			return false
		}
	}
	return true
}
