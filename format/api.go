package format

import (
	"bufio"
	"io"

	"github.com/vmihailenco/msgpack"

	"github.com/fedcompute/aggcore/status"
)

// Tensor bundles can travel in msgpack (compact, for transport) or
// JSON (readable, for tooling). Both backends implement the same
// encode/decode surface, the bundle codec on top is backend
// agnostic.

type BackendType = int

const BackendMsgPack BackendType = 1
const BackendJson BackendType = 2

func CreateSerializingBackend(backendType BackendType, destination io.Writer) (SerializingBackend, error) {
	switch backendType {
	case BackendMsgPack:
		return &msgPackSerializingBackend{msgpack.NewEncoder(destination)}, nil
	case BackendJson:
		return &jsonSerializingBackend{destination: destination}, nil
	default:
		return nil, status.Errorf(status.InvalidArgument, "Unsupported backend %d", backendType)
	}
}

func CreateDeserializingBackend(backendType BackendType, reader io.Reader) (DeserializingBackend, error) {
	switch backendType {
	case BackendMsgPack:
		return &msgPackDeserializingBackend{msgpack.NewDecoder(reader)}, nil
	case BackendJson:
		return newJsonDeserializingBackend(bufio.NewReader(reader)), nil
	default:
		return nil, status.Errorf(status.InvalidArgument, "Unsupported backend %d", backendType)
	}
}

type SerializingBackend interface {
	// EncodeJson writes a value using its regular JSON marshalling.
	EncodeJson(i interface{}) error
	EncodeArrayLen(l int) error
	EncodeInt32(v int32) error
	EncodeInt64(v int64) error
	EncodeFloat32(f float32) error
	EncodeFloat64(f float64) error
	EncodeString(s string) error
	Flush() error
}

type DeserializingBackend interface {
	// DecodeJson reads a value through its regular JSON
	// unmarshalling.
	DecodeJson(destination interface{}) error
	// DecodeArrayLen consumes an array start and returns the
	// announced element count, or -1 for backends that do not encode
	// one.
	DecodeArrayLen() (int, error)
	// FinishArray consumes a pending array end marker, if any.
	FinishArray() error
	DecodeInt32() (int32, error)
	DecodeInt64() (int64, error)
	DecodeFloat32() (float32, error)
	DecodeFloat64() (float64, error)
	DecodeString() (string, error)
}
