package format

import (
	"bytes"
	"io"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// Bundle is an ordered collection of named tensors, the in-memory
// form of the msgpack/JSON tensor exchange format. The encoding is a
// header describing names, types and shapes, followed by one flat
// value array per tensor.
type Bundle struct {
	Entries []Entry
}

type Entry struct {
	Name   string
	Tensor *tensor.Tensor
}

func (b *Bundle) Get(name string) *tensor.Tensor {
	for _, entry := range b.Entries {
		if entry.Name == name {
			return entry.Tensor
		}
	}
	return nil
}

type bundleHeader struct {
	Tensors []headerEntry `json:"tensors"`
}

type headerEntry struct {
	Name  string               `json:"name"`
	Type  tensor.TypeReference `json:"type"`
	Shape []int64              `json:"shape"`
}

// EncodeBundle writes the bundle to destination with the given
// backend.
func EncodeBundle(bundle *Bundle, backendType BackendType, destination io.Writer) error {
	backend, err := CreateSerializingBackend(backendType, destination)
	if err != nil {
		return err
	}
	header := bundleHeader{Tensors: make([]headerEntry, len(bundle.Entries))}
	for i, entry := range bundle.Entries {
		header.Tensors[i] = headerEntry{
			Name:  entry.Name,
			Type:  tensor.Ref(entry.Tensor.DType()),
			Shape: entry.Tensor.Shape(),
		}
	}
	if err := backend.EncodeJson(&header); err != nil {
		return err
	}
	for _, entry := range bundle.Entries {
		codec, err := getFundamentalCodec(entry.Tensor.DType())
		if err != nil {
			return err
		}
		if err := codec.writeArray(backend, entry.Tensor); err != nil {
			return err
		}
	}
	return backend.Flush()
}

// DecodeBundle reads a bundle written by EncodeBundle.
func DecodeBundle(backendType BackendType, reader io.Reader) (*Bundle, error) {
	backend, err := CreateDeserializingBackend(backendType, reader)
	if err != nil {
		return nil, err
	}
	var header bundleHeader
	if err := backend.DecodeJson(&header); err != nil {
		return nil, status.Wrap(status.InvalidArgument, err, "Bundle: Could not decode header")
	}
	bundle := &Bundle{Entries: make([]Entry, len(header.Tensors))}
	for i, entry := range header.Tensors {
		shape := tensor.TensorShape(entry.Shape)
		numElements, known := shape.NumElements()
		if !known {
			return nil, status.Errorf(status.InvalidArgument,
				"Bundle: Tensor %s has unknown dimensions", entry.Name)
		}
		codec, err := getFundamentalCodec(entry.Type.Underlying)
		if err != nil {
			return nil, err
		}
		values, err := codec.readArray(backend, int(numElements))
		if err != nil {
			return nil, status.Wrap(status.InvalidArgument, err,
				"Bundle: Could not decode values of "+entry.Name)
		}
		decoded, err := tensor.New(entry.Type.Underlying, shape, values)
		if err != nil {
			return nil, err
		}
		bundle.Entries[i] = Entry{Name: entry.Name, Tensor: decoded}
	}
	return bundle, nil
}

// EncodeBundleToBytes is EncodeBundle into a fresh buffer.
func EncodeBundleToBytes(bundle *Bundle, backendType BackendType) ([]byte, error) {
	buf := bytes.Buffer{}
	if err := EncodeBundle(bundle, backendType, &buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeBundleFromBytes is DecodeBundle from a byte slice.
func DecodeBundleFromBytes(backendType BackendType, data []byte) (*Bundle, error) {
	return DecodeBundle(backendType, bytes.NewReader(data))
}

// fundamentalCodec writes and reads the flat value array of one data
// type.
type fundamentalCodec interface {
	writeArray(backend SerializingBackend, t *tensor.Tensor) error
	readArray(backend DeserializingBackend, numElements int) (interface{}, error)
}

func getFundamentalCodec(dtype *tensor.DataType) (fundamentalCodec, error) {
	switch dtype {
	case tensor.Int32:
		return int32Codec{}, nil
	case tensor.Int64:
		return int64Codec{}, nil
	case tensor.Float:
		return float32Codec{}, nil
	case tensor.Double:
		return float64Codec{}, nil
	case tensor.String:
		return stringCodec{}, nil
	}
	if dtype == nil {
		return nil, status.Error(status.InvalidArgument, "Bundle: Missing data type")
	}
	return nil, status.Errorf(status.InvalidArgument, "Bundle: Unsupported type %s", dtype.TypeName())
}

// checkArrayLen validates an announced length against the header.
func checkArrayLen(announced int, expected int) error {
	if announced >= 0 && announced != expected {
		return status.Errorf(status.InvalidArgument,
			"Bundle: Array length %d does not match shape with %d elements", announced, expected)
	}
	return nil
}

type int32Codec struct{}

func (int32Codec) writeArray(backend SerializingBackend, t *tensor.Tensor) error {
	values := t.Int32Values()
	if err := backend.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := backend.EncodeInt32(v); err != nil {
			return err
		}
	}
	return nil
}

func (int32Codec) readArray(backend DeserializingBackend, numElements int) (interface{}, error) {
	announced, err := backend.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if err := checkArrayLen(announced, numElements); err != nil {
		return nil, err
	}
	values := make([]int32, numElements)
	for i := range values {
		if values[i], err = backend.DecodeInt32(); err != nil {
			return nil, err
		}
	}
	if announced < 0 {
		if err := backend.FinishArray(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

type int64Codec struct{}

func (int64Codec) writeArray(backend SerializingBackend, t *tensor.Tensor) error {
	values := t.Int64Values()
	if err := backend.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := backend.EncodeInt64(v); err != nil {
			return err
		}
	}
	return nil
}

func (int64Codec) readArray(backend DeserializingBackend, numElements int) (interface{}, error) {
	announced, err := backend.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if err := checkArrayLen(announced, numElements); err != nil {
		return nil, err
	}
	values := make([]int64, numElements)
	for i := range values {
		if values[i], err = backend.DecodeInt64(); err != nil {
			return nil, err
		}
	}
	if announced < 0 {
		if err := backend.FinishArray(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

type float32Codec struct{}

func (float32Codec) writeArray(backend SerializingBackend, t *tensor.Tensor) error {
	values := t.FloatValues()
	if err := backend.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := backend.EncodeFloat32(v); err != nil {
			return err
		}
	}
	return nil
}

func (float32Codec) readArray(backend DeserializingBackend, numElements int) (interface{}, error) {
	announced, err := backend.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if err := checkArrayLen(announced, numElements); err != nil {
		return nil, err
	}
	values := make([]float32, numElements)
	for i := range values {
		if values[i], err = backend.DecodeFloat32(); err != nil {
			return nil, err
		}
	}
	if announced < 0 {
		if err := backend.FinishArray(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

type float64Codec struct{}

func (float64Codec) writeArray(backend SerializingBackend, t *tensor.Tensor) error {
	values := t.DoubleValues()
	if err := backend.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := backend.EncodeFloat64(v); err != nil {
			return err
		}
	}
	return nil
}

func (float64Codec) readArray(backend DeserializingBackend, numElements int) (interface{}, error) {
	announced, err := backend.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if err := checkArrayLen(announced, numElements); err != nil {
		return nil, err
	}
	values := make([]float64, numElements)
	for i := range values {
		if values[i], err = backend.DecodeFloat64(); err != nil {
			return nil, err
		}
	}
	if announced < 0 {
		if err := backend.FinishArray(); err != nil {
			return nil, err
		}
	}
	return values, nil
}

type stringCodec struct{}

func (stringCodec) writeArray(backend SerializingBackend, t *tensor.Tensor) error {
	values := t.StringValues()
	if err := backend.EncodeArrayLen(len(values)); err != nil {
		return err
	}
	for _, v := range values {
		if err := backend.EncodeString(v); err != nil {
			return err
		}
	}
	return nil
}

func (stringCodec) readArray(backend DeserializingBackend, numElements int) (interface{}, error) {
	announced, err := backend.DecodeArrayLen()
	if err != nil {
		return nil, err
	}
	if err := checkArrayLen(announced, numElements); err != nil {
		return nil, err
	}
	values := make([]string, numElements)
	for i := range values {
		if values[i], err = backend.DecodeString(); err != nil {
			return nil, err
		}
	}
	if announced < 0 {
		if err := backend.FinishArray(); err != nil {
			return nil, err
		}
	}
	return values, nil
}
