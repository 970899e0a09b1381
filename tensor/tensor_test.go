package tensor

import (
	"github.com/stretchr/testify/assert"
	"testing"

	"github.com/fedcompute/aggcore/status"
)

func TestDataTypeLookup(t *testing.T) {
	for _, dt := range []*DataType{Int32, Int64, Float, Double, String} {
		back, err := FromName(dt.TypeName())
		assert.NoError(t, err)
		assert.Equal(t, dt, back)

		back, err = FromWireCode(dt.WireCode())
		assert.NoError(t, err)
		assert.Equal(t, dt, back)
	}
	_, err := FromName("uint64")
	assert.Error(t, err)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}

func TestDataTypeKinds(t *testing.T) {
	assert.True(t, Int32.IsNumeric())
	assert.True(t, Double.IsNumeric())
	assert.False(t, String.IsNumeric())
	assert.Equal(t, KindString, String.Kind())
	assert.Equal(t, KindUnknown, Invalid.Kind())
	assert.Equal(t, 4, Int32.Width())
	assert.Equal(t, 8, Double.Width())
}

func TestShapeNumElements(t *testing.T) {
	n, known := ScalarShape().NumElements()
	assert.True(t, known)
	assert.Equal(t, int64(1), n)

	n, known = TensorShape{4}.NumElements()
	assert.True(t, known)
	assert.Equal(t, int64(4), n)

	n, known = TensorShape{2, 3}.NumElements()
	assert.True(t, known)
	assert.Equal(t, int64(6), n)

	_, known = TensorShape{UnknownDim}.NumElements()
	assert.False(t, known)
}

func TestShapeEquality(t *testing.T) {
	assert.True(t, TensorShape{2, 3}.Equal(TensorShape{2, 3}))
	assert.False(t, TensorShape{2, 3}.Equal(TensorShape{3, 2}))
	assert.False(t, TensorShape{2}.Equal(TensorShape{2, 1}))
	assert.True(t, ScalarShape().Equal(TensorShape{}))
}

func TestNewValidation(t *testing.T) {
	_, err := New(Invalid, TensorShape{1}, []int32{1})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	_, err = New(Int32, TensorShape{UnknownDim}, []int32{1})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	_, err = New(Int32, TensorShape{3}, []int32{1, 2})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	_, err = New(Int32, TensorShape{2}, []int64{1, 2})
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))

	tn, err := New(Int32, TensorShape{2}, []int32{1, 2})
	assert.NoError(t, err)
	assert.Equal(t, Int32, tn.DType())
	assert.Equal(t, int64(2), tn.NumElements())
	assert.True(t, tn.IsDense())
}

func TestTypedViews(t *testing.T) {
	tn := NewOrPanic(Int64, TensorShape{3}, []int64{5, 6, 7})
	assert.Equal(t, []int64{5, 6, 7}, tn.Int64Values())
	assert.Panics(t, func() {
		tn.Int32Values()
	})
	st := NewOrPanic(String, TensorShape{2}, []string{"a", "b"})
	assert.Equal(t, []string{"a", "b"}, st.StringValues())
	assert.Panics(t, func() {
		st.DoubleValues()
	})
}

func TestAsScalar(t *testing.T) {
	assert.Equal(t, int64(42), NewOrPanic(Int32, ScalarShape(), []int32{42}).AsScalarInt64())
	assert.Equal(t, int64(-3), NewOrPanic(Double, ScalarShape(), []float64{-3.7}).AsScalarInt64())
	assert.Equal(t, 2.5, NewOrPanic(Float, ScalarShape(), []float32{2.5}).AsScalarDouble())
	assert.Equal(t, 9.0, NewOrPanic(Int64, ScalarShape(), []int64{9}).AsScalarDouble())
	assert.Equal(t, "x", NewOrPanic(String, ScalarShape(), []string{"x"}).AsScalarString())

	assert.Panics(t, func() {
		NewOrPanic(Int32, TensorShape{2}, []int32{1, 2}).AsScalarInt64()
	})
	assert.Panics(t, func() {
		NewOrPanic(String, ScalarShape(), []string{"x"}).AsScalarDouble()
	})
}

func TestEqual(t *testing.T) {
	a := NewOrPanic(Int32, TensorShape{2}, []int32{1, 2})
	b := NewOrPanic(Int32, TensorShape{2}, []int32{1, 2})
	c := NewOrPanic(Int32, TensorShape{2}, []int32{1, 3})
	d := NewOrPanic(Int64, TensorShape{2}, []int64{1, 2})
	assert.True(t, Equal(a, b))
	assert.False(t, Equal(a, c))
	assert.False(t, Equal(a, d))

	s1 := NewOrPanic(String, TensorShape{1}, []string{"k"})
	s2 := NewOrPanic(String, TensorShape{1}, []string{"k"})
	assert.True(t, Equal(s1, s2))
}

func TestSpecMatches(t *testing.T) {
	spec := NewSpec("value", Int32, TensorShape{UnknownDim})
	assert.True(t, spec.Matches(NewOrPanic(Int32, TensorShape{5}, make([]int32, 5))))
	assert.False(t, spec.Matches(NewOrPanic(Int64, TensorShape{5}, make([]int64, 5))))
	assert.False(t, spec.Matches(NewOrPanic(Int32, ScalarShape(), []int32{1})))

	assert.True(t, spec.Equal(NewSpec("value", Int32, TensorShape{UnknownDim})))
	assert.False(t, spec.Equal(NewSpec("other", Int32, TensorShape{UnknownDim})))
}

func TestTypeReferenceJson(t *testing.T) {
	ref := Ref(Int64)
	data, err := ref.MarshalJSON()
	assert.NoError(t, err)
	assert.Equal(t, "\"int64\"", string(data))

	var back TypeReference
	assert.NoError(t, back.UnmarshalJSON(data))
	assert.Equal(t, Int64, back.Underlying)

	assert.Error(t, back.UnmarshalJSON([]byte("\"bool\"")))
}
