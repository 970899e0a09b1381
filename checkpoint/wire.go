package checkpoint

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// Tensor wire message, canonical protobuf encoding:
//
//	int32    dtype         = 1
//	repeated int64  dim_sizes  = 2 (packed)
//	repeated int32  int32_val  = 3 (packed)
//	repeated int64  int64_val  = 4 (packed)
//	repeated float  float_val  = 5 (packed)
//	repeated double double_val = 6 (packed)
//	repeated bytes  string_val = 7
const (
	fieldDType        = 1
	fieldDimSizes     = 2
	fieldInt32Values  = 3
	fieldInt64Values  = 4
	fieldFloatValues  = 5
	fieldDoubleValues = 6
	fieldStringValues = 7
)

// AppendTensor appends the wire encoding of t to buf.
func AppendTensor(buf []byte, t *tensor.Tensor) []byte {
	buf = protowire.AppendTag(buf, fieldDType, protowire.VarintType)
	buf = protowire.AppendVarint(buf, uint64(t.DType().WireCode()))

	if len(t.Shape()) > 0 {
		var packed []byte
		for _, d := range t.Shape() {
			packed = protowire.AppendVarint(packed, uint64(d))
		}
		buf = protowire.AppendTag(buf, fieldDimSizes, protowire.BytesType)
		buf = protowire.AppendBytes(buf, packed)
	}

	switch t.DType() {
	case tensor.Int32:
		var packed []byte
		for _, v := range t.Int32Values() {
			packed = protowire.AppendVarint(packed, uint64(int64(v)))
		}
		buf = appendPacked(buf, fieldInt32Values, packed)
	case tensor.Int64:
		var packed []byte
		for _, v := range t.Int64Values() {
			packed = protowire.AppendVarint(packed, uint64(v))
		}
		buf = appendPacked(buf, fieldInt64Values, packed)
	case tensor.Float:
		var packed []byte
		for _, v := range t.FloatValues() {
			packed = protowire.AppendFixed32(packed, math.Float32bits(v))
		}
		buf = appendPacked(buf, fieldFloatValues, packed)
	case tensor.Double:
		var packed []byte
		for _, v := range t.DoubleValues() {
			packed = protowire.AppendFixed64(packed, math.Float64bits(v))
		}
		buf = appendPacked(buf, fieldDoubleValues, packed)
	case tensor.String:
		for _, v := range t.StringValues() {
			buf = protowire.AppendTag(buf, fieldStringValues, protowire.BytesType)
			buf = protowire.AppendString(buf, v)
		}
	}
	return buf
}

func appendPacked(buf []byte, field protowire.Number, packed []byte) []byte {
	if len(packed) == 0 {
		return buf
	}
	buf = protowire.AppendTag(buf, field, protowire.BytesType)
	return protowire.AppendBytes(buf, packed)
}

// ParseTensor decodes a tensor wire message.
func ParseTensor(data []byte) (*tensor.Tensor, error) {
	dtypeCode := int32(0)
	var dims []int64
	var int32Values []int32
	var int64Values []int64
	var floatValues []float32
	var doubleValues []float64
	var stringValues []string

	for len(data) > 0 {
		field, wireType, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, malformed("tag")
		}
		data = data[n:]
		switch field {
		case fieldDType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, malformed("dtype")
			}
			dtypeCode = int32(v)
			data = data[n:]
		case fieldDimSizes:
			var err error
			data, err = consumeVarintField(data, wireType, func(v uint64) {
				dims = append(dims, int64(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldInt32Values:
			var err error
			data, err = consumeVarintField(data, wireType, func(v uint64) {
				int32Values = append(int32Values, int32(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldInt64Values:
			var err error
			data, err = consumeVarintField(data, wireType, func(v uint64) {
				int64Values = append(int64Values, int64(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldFloatValues:
			var err error
			data, err = consumeFixed32Field(data, wireType, func(v uint32) {
				floatValues = append(floatValues, math.Float32frombits(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldDoubleValues:
			var err error
			data, err = consumeFixed64Field(data, wireType, func(v uint64) {
				doubleValues = append(doubleValues, math.Float64frombits(v))
			})
			if err != nil {
				return nil, err
			}
		case fieldStringValues:
			v, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, malformed("string value")
			}
			stringValues = append(stringValues, string(v))
			data = data[n:]
		default:
			n := protowire.ConsumeFieldValue(field, wireType, data)
			if n < 0 {
				return nil, malformed("field")
			}
			data = data[n:]
		}
	}

	dtype, err := tensor.FromWireCode(dtypeCode)
	if err != nil {
		return nil, err
	}
	shape := tensor.TensorShape(dims)
	numElements, known := shape.NumElements()
	if !known {
		return nil, status.Error(status.InvalidArgument,
			"Checkpoint: Tensor message has unknown dimensions")
	}
	var values interface{}
	switch dtype {
	case tensor.Int32:
		values = emptyIfNil(int32Values, numElements)
	case tensor.Int64:
		values = emptyIfNil(int64Values, numElements)
	case tensor.Float:
		values = emptyIfNil(floatValues, numElements)
	case tensor.Double:
		values = emptyIfNil(doubleValues, numElements)
	case tensor.String:
		values = emptyIfNil(stringValues, numElements)
	default:
		return nil, status.Errorf(status.InvalidArgument,
			"Checkpoint: Tensor message has unsupported dtype %s", dtype.TypeName())
	}
	return tensor.New(dtype, shape, values)
}

// emptyIfNil keeps zero-element payloads typed: a missing payload
// field decodes into an empty slice of the dtype's kind.
func emptyIfNil(values interface{}, numElements int64) interface{} {
	if numElements != 0 {
		return values
	}
	switch v := values.(type) {
	case []int32:
		if v == nil {
			return []int32{}
		}
	case []int64:
		if v == nil {
			return []int64{}
		}
	case []float32:
		if v == nil {
			return []float32{}
		}
	case []float64:
		if v == nil {
			return []float64{}
		}
	case []string:
		if v == nil {
			return []string{}
		}
	}
	return values
}

func malformed(what string) error {
	return status.Errorf(status.InvalidArgument, "Checkpoint: Malformed tensor message (%s)", what)
}

// consumeVarintField reads one packed or unpacked varint payload.
func consumeVarintField(data []byte, wireType protowire.Type, emit func(uint64)) ([]byte, error) {
	if wireType == protowire.BytesType {
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, malformed("packed varints")
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return nil, malformed("packed varints")
			}
			emit(v)
			packed = packed[m:]
		}
		return data[n:], nil
	}
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return nil, malformed("varint")
	}
	emit(v)
	return data[n:], nil
}

func consumeFixed32Field(data []byte, wireType protowire.Type, emit func(uint32)) ([]byte, error) {
	if wireType == protowire.BytesType {
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, malformed("packed fixed32")
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed32(packed)
			if m < 0 {
				return nil, malformed("packed fixed32")
			}
			emit(v)
			packed = packed[m:]
		}
		return data[n:], nil
	}
	v, n := protowire.ConsumeFixed32(data)
	if n < 0 {
		return nil, malformed("fixed32")
	}
	emit(v)
	return data[n:], nil
}

func consumeFixed64Field(data []byte, wireType protowire.Type, emit func(uint64)) ([]byte, error) {
	if wireType == protowire.BytesType {
		packed, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, malformed("packed fixed64")
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeFixed64(packed)
			if m < 0 {
				return nil, malformed("packed fixed64")
			}
			emit(v)
			packed = packed[m:]
		}
		return data[n:], nil
	}
	v, n := protowire.ConsumeFixed64(data)
	if n < 0 {
		return nil, malformed("fixed64")
	}
	emit(v)
	return data[n:], nil
}
