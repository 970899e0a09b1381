package aggregate

import (
	"bytes"
	"encoding/binary"
	"math"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// CompositeKeyCombiner maps tuples of per-row key values to dense
// ordinals. The first time a composite key is seen it is appended to
// the per-position columns and assigned the next ordinal; later
// occurrences resolve to the same ordinal, within and across batches.
//
// Columns are stored transposed (one growing typed column per key
// position), which makes GetOutputKeys a direct materialization.
type CompositeKeyCombiner struct {
	keyTypes []*tensor.DataType
	interned map[string]int64
	columns  []keyColumn
}

// NewCompositeKeyCombiner creates a combiner for the given key schema.
func NewCompositeKeyCombiner(keyTypes []*tensor.DataType) (*CompositeKeyCombiner, error) {
	if len(keyTypes) == 0 {
		return nil, status.Error(status.InvalidArgument,
			"CompositeKeyCombiner: Key schema may not be empty")
	}
	columns := make([]keyColumn, len(keyTypes))
	for i, dt := range keyTypes {
		column, err := newKeyColumn(dt)
		if err != nil {
			return nil, err
		}
		columns[i] = column
	}
	return &CompositeKeyCombiner{
		keyTypes: keyTypes,
		interned: map[string]int64{},
		columns:  columns,
	}, nil
}

func (c *CompositeKeyCombiner) KeyTypes() []*tensor.DataType {
	return c.keyTypes
}

// NumKeysSeen returns the current intern table size.
func (c *CompositeKeyCombiner) NumKeysSeen() int {
	return len(c.interned)
}

// Accumulate interns the composite key of every row and returns the
// Int64 ordinal tensor with the shape of the inputs. All key tensors
// must match the key schema and share one scalar or one-dimensional
// shape. The combiner state is only modified once all checks passed.
func (c *CompositeKeyCombiner) Accumulate(keys []*tensor.Tensor) (*tensor.Tensor, error) {
	if len(keys) != len(c.keyTypes) {
		return nil, status.Errorf(status.InvalidArgument,
			"CompositeKeyCombiner: Expected %d key tensors, got %d", len(c.keyTypes), len(keys))
	}
	shape := keys[0].Shape()
	if len(shape) > 1 {
		return nil, status.Error(status.InvalidArgument,
			"CompositeKeyCombiner: Only scalar or one-dimensional key tensors are supported")
	}
	for i, key := range keys {
		if key.DType() != c.keyTypes[i] {
			return nil, status.Errorf(status.InvalidArgument,
				"CompositeKeyCombiner: Key tensor %d has dtype %s, schema wants %s",
				i, key.DType().TypeName(), c.keyTypes[i].TypeName())
		}
		if !key.Shape().Equal(shape) {
			return nil, status.Errorf(status.InvalidArgument,
				"CompositeKeyCombiner: Key tensor %d does not match the shape of the first key tensor", i)
		}
		if !key.IsDense() {
			return nil, status.Error(status.InvalidArgument,
				"CompositeKeyCombiner: Only dense tensors are supported")
		}
	}

	numRows := keys[0].NumElements()
	ordinals := make([]int64, numRows)
	buf := bytes.Buffer{}
	for row := int64(0); row < numRows; row++ {
		buf.Reset()
		for i, key := range keys {
			c.columns[i].encodeRow(&buf, key, int(row))
		}
		composite := buf.String()
		ordinal, seen := c.interned[composite]
		if !seen {
			ordinal = int64(len(c.interned))
			for i, key := range keys {
				c.columns[i].appendRow(key, int(row))
			}
			c.interned[composite] = ordinal
		}
		ordinals[row] = ordinal
	}
	return tensor.New(tensor.Int64, shape, ordinals)
}

// GetOutputKeys materializes every key column as a dense tensor of
// length NumKeysSeen, in original column order.
func (c *CompositeKeyCombiner) GetOutputKeys() []*tensor.Tensor {
	outputs := make([]*tensor.Tensor, len(c.columns))
	for i, column := range c.columns {
		outputs[i] = column.materialize()
	}
	return outputs
}

// keyColumn is one growing typed column of interned key values. The
// encodeRow form writes an unambiguous byte representation of a row's
// value for the intern table key.
type keyColumn interface {
	appendRow(t *tensor.Tensor, row int)
	encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int)
	materialize() *tensor.Tensor
}

func newKeyColumn(dtype *tensor.DataType) (keyColumn, error) {
	switch dtype {
	case tensor.Int32:
		return &int32Column{}, nil
	case tensor.Int64:
		return &int64Column{}, nil
	case tensor.Float:
		return &float32Column{}, nil
	case tensor.Double:
		return &float64Column{}, nil
	case tensor.String:
		return &stringColumn{}, nil
	}
	return nil, status.Errorf(status.InvalidArgument,
		"CompositeKeyCombiner: Unsupported key type %s", dtype.TypeName())
}

type int32Column struct {
	values []int32
}

func (c *int32Column) appendRow(t *tensor.Tensor, row int) {
	c.values = append(c.values, t.Int32Values()[row])
}

func (c *int32Column) encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], uint32(t.Int32Values()[row]))
	buf.Write(scratch[:])
}

func (c *int32Column) materialize() *tensor.Tensor {
	return tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{int64(len(c.values))}, c.values)
}

type int64Column struct {
	values []int64
}

func (c *int64Column) appendRow(t *tensor.Tensor, row int) {
	c.values = append(c.values, t.Int64Values()[row])
}

func (c *int64Column) encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(t.Int64Values()[row]))
	buf.Write(scratch[:])
}

func (c *int64Column) materialize() *tensor.Tensor {
	return tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{int64(len(c.values))}, c.values)
}

type float32Column struct {
	values []float32
}

func (c *float32Column) appendRow(t *tensor.Tensor, row int) {
	c.values = append(c.values, t.FloatValues()[row])
}

func (c *float32Column) encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int) {
	var scratch [4]byte
	binary.LittleEndian.PutUint32(scratch[:], math.Float32bits(t.FloatValues()[row]))
	buf.Write(scratch[:])
}

func (c *float32Column) materialize() *tensor.Tensor {
	return tensor.NewOrPanic(tensor.Float, tensor.TensorShape{int64(len(c.values))}, c.values)
}

type float64Column struct {
	values []float64
}

func (c *float64Column) appendRow(t *tensor.Tensor, row int) {
	c.values = append(c.values, t.DoubleValues()[row])
}

func (c *float64Column) encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int) {
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], math.Float64bits(t.DoubleValues()[row]))
	buf.Write(scratch[:])
}

func (c *float64Column) materialize() *tensor.Tensor {
	return tensor.NewOrPanic(tensor.Double, tensor.TensorShape{int64(len(c.values))}, c.values)
}

type stringColumn struct {
	values []string
}

func (c *stringColumn) appendRow(t *tensor.Tensor, row int) {
	c.values = append(c.values, t.StringValues()[row])
}

func (c *stringColumn) encodeRow(buf *bytes.Buffer, t *tensor.Tensor, row int) {
	// Length prefix keeps adjacent string keys unambiguous.
	s := t.StringValues()[row]
	var scratch [8]byte
	binary.LittleEndian.PutUint64(scratch[:], uint64(len(s)))
	buf.Write(scratch[:])
	buf.WriteString(s)
}

func (c *stringColumn) materialize() *tensor.Tensor {
	return tensor.NewOrPanic(tensor.String, tensor.TensorShape{int64(len(c.values))}, c.values)
}
