package aggregate

import (
	"math"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// DP grouping sum: a grouping sum whose accumulate path bounds each
// client contribution before folding it in.
//
// The batch is first collapsed into the client's dense local
// histogram (duplicate ordinals within the batch add up). The
// Linfinity bound then clamps each histogram entry, and the L1/L2
// bounds rescale the whole histogram by
// min(1, l1/L1, l2/L2), where a norm term is skipped when its bound
// is negative (not enforced) or the computed norm is zero. The zero
// norm rule keeps all-zero contributions free of a division by zero.
//
// Merging folds partials that were already bounded when they were
// accumulated, so the merge path applies no bounds.

type dpFoldInt struct {
	inType    *tensor.DataType
	linfinity int64
	l1        float64
	l2        float64
	data      []int64
}

func (f *dpFoldInt) kindURI() string {
	return DPSumURI
}

func (f *dpFoldInt) inputType() *tensor.DataType {
	return f.inType
}

func (f *dpFoldInt) outputType() *tensor.DataType {
	return tensor.Int64
}

func (f *dpFoldInt) grow(n int) {
	for len(f.data) < n {
		f.data = append(f.data, 0)
	}
}

func (f *dpFoldInt) size() int {
	return len(f.data)
}

func (f *dpFoldInt) fold(ordinals []int64, values *tensor.Tensor) {
	histogram := make([]int64, localSize(ordinals))
	if f.inType == tensor.Int32 {
		for i, v := range values.Int32Values() {
			histogram[ordinals[i]] += int64(v)
		}
	} else {
		for i, v := range values.Int64Values() {
			histogram[ordinals[i]] += v
		}
	}
	if f.linfinity >= 0 {
		for i, h := range histogram {
			if h > f.linfinity {
				histogram[i] = f.linfinity
			} else if h < -f.linfinity {
				histogram[i] = -f.linfinity
			}
		}
	}
	l1Norm := 0.0
	l2Squared := 0.0
	for _, h := range histogram {
		l1Norm += math.Abs(float64(h))
		l2Squared += float64(h) * float64(h)
	}
	scale := rescaleFactor(f.l1, l1Norm, f.l2, math.Sqrt(l2Squared))
	if scale >= 1 {
		// Keep integer sums exact when no rescaling applies.
		for ordinal, h := range histogram {
			f.data[ordinal] += h
		}
		return
	}
	for ordinal, h := range histogram {
		f.data[ordinal] += int64(float64(h) * scale)
	}
}

func (f *dpFoldInt) foldMerge(ordinals []int64, values *tensor.Tensor) {
	for i, v := range values.Int64Values() {
		f.data[ordinals[i]] += v
	}
}

func (f *dpFoldInt) takeValues() interface{} {
	data := f.data
	f.data = nil
	return data
}

type dpFoldFloat struct {
	inType    *tensor.DataType
	linfinity float64
	l1        float64
	l2        float64
	data      []float64
}

func (f *dpFoldFloat) kindURI() string {
	return DPSumURI
}

func (f *dpFoldFloat) inputType() *tensor.DataType {
	return f.inType
}

func (f *dpFoldFloat) outputType() *tensor.DataType {
	return tensor.Double
}

func (f *dpFoldFloat) grow(n int) {
	for len(f.data) < n {
		f.data = append(f.data, 0)
	}
}

func (f *dpFoldFloat) size() int {
	return len(f.data)
}

func (f *dpFoldFloat) fold(ordinals []int64, values *tensor.Tensor) {
	histogram := make([]float64, localSize(ordinals))
	if f.inType == tensor.Float {
		for i, v := range values.FloatValues() {
			histogram[ordinals[i]] += float64(v)
		}
	} else {
		for i, v := range values.DoubleValues() {
			histogram[ordinals[i]] += v
		}
	}
	if f.linfinity >= 0 {
		for i, h := range histogram {
			// IEEE min/max, NaN propagates into the accumulator.
			histogram[i] = math.Max(-f.linfinity, math.Min(f.linfinity, h))
		}
	}
	l1Norm := 0.0
	l2Squared := 0.0
	for _, h := range histogram {
		l1Norm += math.Abs(h)
		l2Squared += h * h
	}
	scale := rescaleFactor(f.l1, l1Norm, f.l2, math.Sqrt(l2Squared))
	for ordinal, h := range histogram {
		f.data[ordinal] += h * scale
	}
}

func (f *dpFoldFloat) foldMerge(ordinals []int64, values *tensor.Tensor) {
	for i, v := range values.DoubleValues() {
		f.data[ordinals[i]] += v
	}
}

func (f *dpFoldFloat) takeValues() interface{} {
	data := f.data
	f.data = nil
	return data
}

func localSize(ordinals []int64) int {
	size := 0
	for _, o := range ordinals {
		if int(o)+1 > size {
			size = int(o) + 1
		}
	}
	return size
}

// rescaleFactor computes min(1, l1Bound/l1Norm, l2Bound/l2Norm). A
// negative bound is not enforced. A zero norm skips that norm's term
// entirely, so all-zero contributions are never divided by zero.
func rescaleFactor(l1Bound float64, l1Norm float64, l2Bound float64, l2Norm float64) float64 {
	scale := 1.0
	if l1Bound >= 0 && l1Norm > 0 {
		scale = math.Min(scale, l1Bound/l1Norm)
	}
	if l2Bound >= 0 && l2Norm > 0 {
		scale = math.Min(scale, l2Bound/l2Norm)
	}
	return scale
}

type dpSumFactory struct{}

func (f *dpSumFactory) Create(intrinsic *Intrinsic) (TensorAggregator, error) {
	if err := checkGroupingIntrinsic(intrinsic, DPSumURI); err != nil {
		return nil, err
	}
	if len(intrinsic.Parameters) != 3 {
		return nil, status.Errorf(status.InvalidArgument,
			"DPGroupingSumFactory: Expected 3 parameters (linfinity, l1, l2), got %d",
			len(intrinsic.Parameters))
	}
	inType := intrinsic.Inputs[0].DType
	outType, supported := sumWidening[inType]
	if !supported {
		return nil, status.Errorf(status.InvalidArgument,
			"DPGroupingSumFactory: Unsupported input type %s", inType.TypeName())
	}
	if intrinsic.Outputs[0].DType != outType {
		return nil, status.Errorf(status.InvalidArgument,
			"DPGroupingSumFactory: Input type %s must produce output type %s",
			inType.TypeName(), outType.TypeName())
	}
	linfinity := intrinsic.Parameters[0]
	l1 := intrinsic.Parameters[1]
	l2 := intrinsic.Parameters[2]
	if linfinity.DType() != inType || linfinity.NumElements() != 1 {
		return nil, status.Error(status.InvalidArgument,
			"DPGroupingSumFactory: Linfinity bound must be a scalar of the input type")
	}
	if l1.DType() != tensor.Double || l1.NumElements() != 1 ||
		l2.DType() != tensor.Double || l2.NumElements() != 1 {
		return nil, status.Error(status.InvalidArgument,
			"DPGroupingSumFactory: L1 and L2 bounds must be scalar doubles")
	}
	if outType == tensor.Int64 {
		return newOneDimGroupingAggregator(&dpFoldInt{
			inType:    inType,
			linfinity: linfinity.AsScalarInt64(),
			l1:        l1.AsScalarDouble(),
			l2:        l2.AsScalarDouble(),
		}), nil
	}
	return newOneDimGroupingAggregator(&dpFoldFloat{
		inType:    inType,
		linfinity: linfinity.AsScalarDouble(),
		l1:        l1.AsScalarDouble(),
		l2:        l2.AsScalarDouble(),
	}), nil
}

func init() {
	RegisterFactory(DPSumURI, &dpSumFactory{})
}
