package format

import (
	"bytes"
	"github.com/stretchr/testify/assert"
	"testing"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

func sampleBundle() *Bundle {
	return &Bundle{Entries: []Entry{
		{"counts", tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{3}, []int32{1, -2, 3})},
		{"totals", tensor.NewOrPanic(tensor.Int64, tensor.TensorShape{2}, []int64{1 << 40, -7})},
		{"ratios", tensor.NewOrPanic(tensor.Float, tensor.TensorShape{2}, []float32{0.5, -1.25})},
		{"scores", tensor.NewOrPanic(tensor.Double, tensor.TensorShape{3}, []float64{0.25, -3, 12.5})},
		{"labels", tensor.NewOrPanic(tensor.String, tensor.TensorShape{2}, []string{"a", "b c"})},
		{"scalar", tensor.NewOrPanic(tensor.Int64, tensor.ScalarShape(), []int64{9})},
		{"empty", tensor.NewOrPanic(tensor.Double, tensor.TensorShape{0}, []float64{})},
	}}
}

func assertBundlesEqual(t *testing.T, expected *Bundle, actual *Bundle) {
	assert.Equal(t, len(expected.Entries), len(actual.Entries))
	for i, entry := range expected.Entries {
		assert.Equal(t, entry.Name, actual.Entries[i].Name)
		assert.True(t, tensor.Equal(entry.Tensor, actual.Entries[i].Tensor), entry.Name)
	}
}

func TestBundleMsgPackRoundTrip(t *testing.T) {
	bundle := sampleBundle()
	encoded, err := EncodeBundleToBytes(bundle, BackendMsgPack)
	assert.NoError(t, err)
	decoded, err := DecodeBundleFromBytes(BackendMsgPack, encoded)
	assert.NoError(t, err)
	assertBundlesEqual(t, bundle, decoded)
}

func TestBundleJsonRoundTrip(t *testing.T) {
	bundle := sampleBundle()
	encoded, err := EncodeBundleToBytes(bundle, BackendJson)
	assert.NoError(t, err)
	decoded, err := DecodeBundleFromBytes(BackendJson, encoded)
	assert.NoError(t, err)
	assertBundlesEqual(t, bundle, decoded)
}

func TestBundleJsonIsReadable(t *testing.T) {
	bundle := &Bundle{Entries: []Entry{
		{"v", tensor.NewOrPanic(tensor.Int32, tensor.TensorShape{2}, []int32{1, 2})},
	}}
	encoded, err := EncodeBundleToBytes(bundle, BackendJson)
	assert.NoError(t, err)
	assert.Contains(t, string(encoded), "\"name\":\"v\"")
	assert.Contains(t, string(encoded), "\"type\":\"int32\"")
	assert.Contains(t, string(encoded), "[1,2]")
}

func TestBundleGet(t *testing.T) {
	bundle := sampleBundle()
	assert.NotNil(t, bundle.Get("counts"))
	assert.Nil(t, bundle.Get("missing"))
}

func TestBundleUnknownBackend(t *testing.T) {
	_, err := EncodeBundleToBytes(sampleBundle(), 42)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
	_, err = DecodeBundleFromBytes(42, nil)
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}

func TestBundleDecodeGarbage(t *testing.T) {
	_, err := DecodeBundleFromBytes(BackendJson, []byte("not json"))
	assert.Error(t, err)
	_, err = DecodeBundleFromBytes(BackendMsgPack, []byte{0xc1})
	assert.Error(t, err)
}

func TestBundleLengthMismatch(t *testing.T) {
	// Header says 3 elements, the msgpack value array carries 2.
	buf := bytes.Buffer{}
	backend, err := CreateSerializingBackend(BackendMsgPack, &buf)
	assert.NoError(t, err)
	header := bundleHeader{Tensors: []headerEntry{
		{Name: "v", Type: tensor.Ref(tensor.Int32), Shape: []int64{3}},
	}}
	assert.NoError(t, backend.EncodeJson(&header))
	assert.NoError(t, backend.EncodeArrayLen(2))
	assert.NoError(t, backend.EncodeInt32(1))
	assert.NoError(t, backend.EncodeInt32(2))

	_, err = DecodeBundleFromBytes(BackendMsgPack, buf.Bytes())
	assert.Equal(t, status.InvalidArgument, status.CodeOf(err))
}
