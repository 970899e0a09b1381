package aggregate

import (
	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// Plain grouping sum: pointwise addition per ordinal with an explicit
// widening of the input type (int32 to int64, float32 to float64).

type sumFoldInt struct {
	inType *tensor.DataType
	data   []int64
}

func (f *sumFoldInt) kindURI() string {
	return SumURI
}

func (f *sumFoldInt) inputType() *tensor.DataType {
	return f.inType
}

func (f *sumFoldInt) outputType() *tensor.DataType {
	return tensor.Int64
}

func (f *sumFoldInt) grow(n int) {
	for len(f.data) < n {
		f.data = append(f.data, 0)
	}
}

func (f *sumFoldInt) size() int {
	return len(f.data)
}

func (f *sumFoldInt) fold(ordinals []int64, values *tensor.Tensor) {
	if f.inType == tensor.Int32 {
		for i, v := range values.Int32Values() {
			f.data[ordinals[i]] += int64(v)
		}
	} else {
		for i, v := range values.Int64Values() {
			f.data[ordinals[i]] += v
		}
	}
}

func (f *sumFoldInt) foldMerge(ordinals []int64, values *tensor.Tensor) {
	for i, v := range values.Int64Values() {
		f.data[ordinals[i]] += v
	}
}

func (f *sumFoldInt) takeValues() interface{} {
	data := f.data
	f.data = nil
	return data
}

type sumFoldFloat struct {
	inType *tensor.DataType
	data   []float64
}

func (f *sumFoldFloat) kindURI() string {
	return SumURI
}

func (f *sumFoldFloat) inputType() *tensor.DataType {
	return f.inType
}

func (f *sumFoldFloat) outputType() *tensor.DataType {
	return tensor.Double
}

func (f *sumFoldFloat) grow(n int) {
	for len(f.data) < n {
		f.data = append(f.data, 0)
	}
}

func (f *sumFoldFloat) size() int {
	return len(f.data)
}

func (f *sumFoldFloat) fold(ordinals []int64, values *tensor.Tensor) {
	if f.inType == tensor.Float {
		for i, v := range values.FloatValues() {
			f.data[ordinals[i]] += float64(v)
		}
	} else {
		for i, v := range values.DoubleValues() {
			f.data[ordinals[i]] += v
		}
	}
}

func (f *sumFoldFloat) foldMerge(ordinals []int64, values *tensor.Tensor) {
	for i, v := range values.DoubleValues() {
		f.data[ordinals[i]] += v
	}
}

func (f *sumFoldFloat) takeValues() interface{} {
	data := f.data
	f.data = nil
	return data
}

type sumFactory struct{}

func (f *sumFactory) Create(intrinsic *Intrinsic) (TensorAggregator, error) {
	if err := checkGroupingIntrinsic(intrinsic, SumURI); err != nil {
		return nil, err
	}
	if len(intrinsic.Parameters) != 0 {
		return nil, status.Error(status.InvalidArgument,
			"GroupingSumFactory: No input parameters expected")
	}
	inType := intrinsic.Inputs[0].DType
	outType, supported := sumWidening[inType]
	if !supported {
		return nil, status.Errorf(status.InvalidArgument,
			"GroupingSumFactory: Unsupported input type %s", inType.TypeName())
	}
	if intrinsic.Outputs[0].DType != outType {
		return nil, status.Errorf(status.InvalidArgument,
			"GroupingSumFactory: Input type %s must produce output type %s",
			inType.TypeName(), outType.TypeName())
	}
	if outType == tensor.Int64 {
		return newOneDimGroupingAggregator(&sumFoldInt{inType: inType}), nil
	}
	return newOneDimGroupingAggregator(&sumFoldFloat{inType: inType}), nil
}

func init() {
	RegisterFactory(SumURI, &sumFactory{})
}
