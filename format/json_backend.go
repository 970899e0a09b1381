package format

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// jsonSerializingBackend writes the bundle as one JSON document. Array
// elements are comma separated via a small stack of pending element
// counts, the same trick the array length announcement makes possible
// for msgpack.
type jsonSerializingBackend struct {
	destination io.Writer
	// pending element counts of the open arrays
	stack []int
}

func (j *jsonSerializingBackend) write(data []byte) error {
	_, err := j.destination.Write(data)
	return err
}

// push writes one value and maintains separators of enclosing arrays.
func (j *jsonSerializingBackend) push(data []byte) error {
	if err := j.write(data); err != nil {
		return err
	}
	return j.afterElement()
}

func (j *jsonSerializingBackend) afterElement() error {
	for len(j.stack) > 0 {
		last := len(j.stack) - 1
		j.stack[last]--
		if j.stack[last] > 0 {
			return j.write([]byte(","))
		}
		// Array complete, close it and count it as an element of the
		// enclosing array.
		if err := j.write([]byte("]")); err != nil {
			return err
		}
		j.stack = j.stack[:last]
	}
	return nil
}

func (j *jsonSerializingBackend) EncodeJson(i interface{}) error {
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}
	return j.push(data)
}

func (j *jsonSerializingBackend) EncodeArrayLen(l int) error {
	if l == 0 {
		return j.push([]byte("[]"))
	}
	if err := j.write([]byte("[")); err != nil {
		return err
	}
	j.stack = append(j.stack, l)
	return nil
}

func (j *jsonSerializingBackend) EncodeInt32(v int32) error {
	return j.EncodeJson(v)
}

func (j *jsonSerializingBackend) EncodeInt64(v int64) error {
	return j.EncodeJson(v)
}

func (j *jsonSerializingBackend) EncodeFloat32(f float32) error {
	return j.EncodeJson(f)
}

func (j *jsonSerializingBackend) EncodeFloat64(f float64) error {
	return j.EncodeJson(f)
}

func (j *jsonSerializingBackend) EncodeString(s string) error {
	return j.EncodeJson(s)
}

func (j *jsonSerializingBackend) Flush() error {
	return nil
}

// jsonDeserializingBackend reads with a streaming token decoder. JSON
// arrays do not announce their length, DecodeArrayLen reports -1 and
// FinishArray consumes the closing bracket.
type jsonDeserializingBackend struct {
	decoder *json.Decoder
}

func newJsonDeserializingBackend(reader io.Reader) *jsonDeserializingBackend {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()
	return &jsonDeserializingBackend{decoder}
}

func (j *jsonDeserializingBackend) DecodeJson(destination interface{}) error {
	return j.decoder.Decode(destination)
}

func (j *jsonDeserializingBackend) DecodeArrayLen() (int, error) {
	token, err := j.decoder.Token()
	if err != nil {
		return 0, err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '[' {
		return 0, errors.New("Expected array start")
	}
	return -1, nil
}

func (j *jsonDeserializingBackend) FinishArray() error {
	token, err := j.decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != ']' {
		return errors.New("Expected array end")
	}
	return nil
}

func (j *jsonDeserializingBackend) number() (json.Number, error) {
	token, err := j.decoder.Token()
	if err != nil {
		return "", err
	}
	number, ok := token.(json.Number)
	if !ok {
		return "", errors.New("Expected number")
	}
	return number, nil
}

func (j *jsonDeserializingBackend) DecodeInt32() (int32, error) {
	number, err := j.number()
	if err != nil {
		return 0, err
	}
	value, err := number.Int64()
	return int32(value), err
}

func (j *jsonDeserializingBackend) DecodeInt64() (int64, error) {
	number, err := j.number()
	if err != nil {
		return 0, err
	}
	return number.Int64()
}

func (j *jsonDeserializingBackend) DecodeFloat32() (float32, error) {
	number, err := j.number()
	if err != nil {
		return 0, err
	}
	value, err := number.Float64()
	return float32(value), err
}

func (j *jsonDeserializingBackend) DecodeFloat64() (float64, error) {
	number, err := j.number()
	if err != nil {
		return 0, err
	}
	return number.Float64()
}

func (j *jsonDeserializingBackend) DecodeString() (string, error) {
	token, err := j.decoder.Token()
	if err != nil {
		return "", err
	}
	s, ok := token.(string)
	if !ok {
		return "", errors.New("Expected string")
	}
	return s, nil
}
