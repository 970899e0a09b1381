package config

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// YAML support works by converting to JSON and reusing the regular
// JSON unmarshallers (data type references only implement JSON
// decoding). The conversion walks the yaml node tree directly so the
// order of mappings survives.

// yamlToJson converts a YAML document to its JSON equivalent.
func yamlToJson(data []byte) ([]byte, error) {
	buffer := bytes.Buffer{}
	serializer := jsonSerializer{&buffer}
	if err := yaml.Unmarshal(data, &serializer); err != nil {
		return nil, err
	}
	if buffer.Len() == 0 {
		return []byte("null"), nil
	}
	return buffer.Bytes(), nil
}

type jsonSerializer struct {
	writer io.Writer
}

func (s *jsonSerializer) append(c byte) error {
	_, err := s.writer.Write([]byte{c})
	return err
}

func (s *jsonSerializer) appendMany(data []byte) error {
	_, err := s.writer.Write(data)
	return err
}

func (s *jsonSerializer) appendScalar(value *yaml.Node) error {
	switch value.Tag {
	case "!!null":
		return s.appendMany([]byte("null"))
	case "!!str":
		encoded, err := json.Marshal(value.Value)
		if err != nil {
			return err
		}
		return s.appendMany(encoded)
	default:
		// Numbers and booleans are valid JSON literals as is.
		return s.appendMany([]byte(value.Value))
	}
}

func (s *jsonSerializer) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return s.appendScalar(value)
	case yaml.SequenceNode:
		if err := s.append('['); err != nil {
			return err
		}
		for i, c := range value.Content {
			if i > 0 {
				if err := s.append(','); err != nil {
					return err
				}
			}
			if err := s.UnmarshalYAML(c); err != nil {
				return err
			}
		}
		return s.append(']')
	case yaml.MappingNode:
		if len(value.Content)%2 != 0 {
			return errors.New("Broken mapping node")
		}
		if err := s.append('{'); err != nil {
			return err
		}
		for i := 0; i < len(value.Content); i += 2 {
			if i > 0 {
				if err := s.append(','); err != nil {
					return err
				}
			}
			key := value.Content[i]
			if key.Kind != yaml.ScalarNode {
				return errors.New("JSON only supports strings as keys")
			}
			encoded, err := json.Marshal(key.Value)
			if err != nil {
				return err
			}
			if err := s.appendMany(encoded); err != nil {
				return err
			}
			if err := s.append(':'); err != nil {
				return err
			}
			if err := s.UnmarshalYAML(value.Content[i+1]); err != nil {
				return err
			}
		}
		return s.append('}')
	case yaml.DocumentNode:
		for _, c := range value.Content {
			if err := s.UnmarshalYAML(c); err != nil {
				return err
			}
		}
		return nil
	default:
		return errors.Errorf("Unsupported yaml node kind %d", value.Kind)
	}
}
