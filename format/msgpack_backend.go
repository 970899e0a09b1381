package format

import (
	"bytes"
	"encoding/json"

	"github.com/buger/jsonparser"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack"
	"github.com/vmihailenco/msgpack/codes"
)

type msgPackSerializingBackend struct {
	*msgpack.Encoder
}

func (m *msgPackSerializingBackend) EncodeJson(i interface{}) error {
	// Route through JSON so custom MarshalJSON implementations (data
	// type names) produce the same structure in both backends.
	data, err := json.Marshal(i)
	if err != nil {
		return err
	}
	value, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return err
	}
	return m.encodeJsonWithType(value, dataType)
}

func (m *msgPackSerializingBackend) encodeJsonWithType(value []byte, dataType jsonparser.ValueType) error {
	switch dataType {
	case jsonparser.String:
		return m.EncodeString(string(value))
	case jsonparser.Object:
		count := 0
		counter := func([]byte, []byte, jsonparser.ValueType, int) error {
			count++
			return nil
		}
		if err := jsonparser.ObjectEach(value, counter); err != nil {
			return err
		}
		if err := m.EncodeMapLen(count); err != nil {
			return err
		}
		return jsonparser.ObjectEach(value, func(key []byte, value []byte, valueType jsonparser.ValueType, offset int) error {
			if err := m.EncodeString(string(key)); err != nil {
				return err
			}
			return m.encodeJsonWithType(value, valueType)
		})
	case jsonparser.Array:
		count := 0
		if _, err := jsonparser.ArrayEach(value, func([]byte, jsonparser.ValueType, int, error) {
			count++
		}); err != nil {
			return err
		}
		if err := m.EncodeArrayLen(count); err != nil {
			return err
		}
		var subError error
		_, err := jsonparser.ArrayEach(value, func(value []byte, valueType jsonparser.ValueType, offset int, e error) {
			if err := m.encodeJsonWithType(value, valueType); err != nil {
				subError = err
			}
		})
		if err != nil {
			return err
		}
		return subError
	case jsonparser.Number:
		if i, err := jsonparser.GetInt(value); err == nil {
			return m.EncodeInt(i)
		}
		f, err := jsonparser.GetFloat(value)
		if err != nil {
			return err
		}
		return m.EncodeFloat64(f)
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(value)
		if err != nil {
			return err
		}
		return m.EncodeBool(b)
	case jsonparser.Null:
		return m.EncodeNil()
	}
	return errors.Errorf("Unsupported JSON value type %d", dataType)
}

func (m *msgPackSerializingBackend) Flush() error {
	return nil
}

type msgPackDeserializingBackend struct {
	*msgpack.Decoder
}

func (m *msgPackDeserializingBackend) DecodeJson(destination interface{}) error {
	buf := bytes.Buffer{}
	if err := m.decodePlainJson(&buf); err != nil {
		return err
	}
	return json.Unmarshal(buf.Bytes(), destination)
}

func (m *msgPackDeserializingBackend) decodePlainJson(buf *bytes.Buffer) error {
	code, err := m.PeekCode()
	if err != nil {
		return err
	}
	addMarshalled := func(i interface{}) error {
		marshalled, err := json.Marshal(i)
		if err != nil {
			return err
		}
		_, err = buf.Write(marshalled)
		return err
	}
	switch {
	case codes.IsFixedArray(code) || code == codes.Array16 || code == codes.Array32:
		length, err := m.Decoder.DecodeArrayLen()
		if err != nil {
			return err
		}
		buf.WriteByte('[')
		for i := 0; i < length; i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := m.decodePlainJson(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
		return nil
	case codes.IsFixedMap(code) || code == codes.Map16 || code == codes.Map32:
		length, err := m.DecodeMapLen()
		if err != nil {
			return err
		}
		buf.WriteByte('{')
		for i := 0; i < length; i++ {
			if i > 0 {
				buf.WriteByte(',')
			}
			key, err := m.Decoder.DecodeString()
			if err != nil {
				return err
			}
			if err := addMarshalled(key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.decodePlainJson(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
		return nil
	case codes.IsString(code):
		s, err := m.Decoder.DecodeString()
		if err != nil {
			return err
		}
		return addMarshalled(s)
	case codes.IsFixedNum(code) || code == codes.Int8 || code == codes.Int16 || code == codes.Int32 || code == codes.Int64:
		i, err := m.Decoder.DecodeInt64()
		if err != nil {
			return err
		}
		return addMarshalled(i)
	case code == codes.Uint8 || code == codes.Uint16 || code == codes.Uint32 || code == codes.Uint64:
		i, err := m.DecodeUint64()
		if err != nil {
			return err
		}
		return addMarshalled(i)
	case code == codes.Float || code == codes.Double:
		f, err := m.Decoder.DecodeFloat64()
		if err != nil {
			return err
		}
		return addMarshalled(f)
	case code == codes.True || code == codes.False:
		b, err := m.DecodeBool()
		if err != nil {
			return err
		}
		return addMarshalled(b)
	case code == codes.Nil:
		if err := m.DecodeNil(); err != nil {
			return err
		}
		_, err := buf.Write([]byte("null"))
		return err
	}
	return errors.Errorf("Unsupported msgpack code %d", code)
}

func (m *msgPackDeserializingBackend) FinishArray() error {
	// msgpack arrays carry their length up front, there is no end
	// marker to consume.
	return nil
}
