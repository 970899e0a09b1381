package config

import (
	"encoding/json"
	"io/ioutil"

	"github.com/fedcompute/aggcore/aggregate"
	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// Aggregation plans describe an intrinsic tree declaratively, in YAML
// or JSON:
//
//	uri: "GoogleSQL:group_by"
//	inputs:
//	  - name: key
//	    type: string
//	outputs:
//	  - name: key
//	    type: string
//	nested:
//	  - uri: "GoogleSQL:dp_sum"
//	    inputs:
//	      - name: value
//	        type: int32
//	    outputs:
//	      - name: value
//	        type: int64
//	    parameters:
//	      - type: int32
//	        values: [9]
//	      - type: float64
//	        values: [-1]
//	      - type: float64
//	        values: [-1]
//
// Column shapes default to the single unknown dimension, parameter
// shapes to a scalar when they hold one value.

type intrinsicFile struct {
	URI        string          `json:"uri"`
	Inputs     []columnFile    `json:"inputs"`
	Outputs    []columnFile    `json:"outputs"`
	Parameters []parameterFile `json:"parameters"`
	Nested     []intrinsicFile `json:"nested"`
}

type columnFile struct {
	Name  string               `json:"name"`
	Type  tensor.TypeReference `json:"type"`
	Shape []int64              `json:"shape"`
}

type parameterFile struct {
	Type   tensor.TypeReference `json:"type"`
	Shape  []int64              `json:"shape"`
	Values json.RawMessage      `json:"values"`
}

// ParseIntrinsic reads an intrinsic tree from JSON.
func ParseIntrinsic(data []byte) (*aggregate.Intrinsic, error) {
	var file intrinsicFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, status.Wrap(status.InvalidArgument, err, "Plan: Could not parse")
	}
	return buildIntrinsic(&file)
}

// ParseIntrinsicFromYaml reads an intrinsic tree from YAML.
func ParseIntrinsicFromYaml(data []byte) (*aggregate.Intrinsic, error) {
	jsonData, err := yamlToJson(data)
	if err != nil {
		return nil, status.Wrap(status.InvalidArgument, err, "Plan: Invalid yaml")
	}
	return ParseIntrinsic(jsonData)
}

// LoadIntrinsic reads a YAML plan file.
func LoadIntrinsic(path string) (*aggregate.Intrinsic, error) {
	data, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, status.Wrap(status.Unavailable, err, "Plan: Could not read file")
	}
	return ParseIntrinsicFromYaml(data)
}

func buildIntrinsic(file *intrinsicFile) (*aggregate.Intrinsic, error) {
	if file.URI == "" {
		return nil, status.Error(status.InvalidArgument, "Plan: Missing intrinsic uri")
	}
	intrinsic := &aggregate.Intrinsic{URI: file.URI}
	var err error
	if intrinsic.Inputs, err = buildSpecs(file.Inputs); err != nil {
		return nil, err
	}
	if intrinsic.Outputs, err = buildSpecs(file.Outputs); err != nil {
		return nil, err
	}
	for i := range file.Parameters {
		parameter, err := buildParameter(&file.Parameters[i])
		if err != nil {
			return nil, err
		}
		intrinsic.Parameters = append(intrinsic.Parameters, parameter)
	}
	for i := range file.Nested {
		nested, err := buildIntrinsic(&file.Nested[i])
		if err != nil {
			return nil, err
		}
		intrinsic.Nested = append(intrinsic.Nested, *nested)
	}
	return intrinsic, nil
}

func buildSpecs(columns []columnFile) ([]tensor.Spec, error) {
	if len(columns) == 0 {
		return nil, nil
	}
	specs := make([]tensor.Spec, len(columns))
	for i, column := range columns {
		if column.Type.Underlying == nil {
			return nil, status.Errorf(status.InvalidArgument,
				"Plan: Column %s has no type", column.Name)
		}
		shape := tensor.TensorShape{tensor.UnknownDim}
		if column.Shape != nil {
			shape = tensor.TensorShape(column.Shape)
		}
		specs[i] = tensor.NewSpec(column.Name, column.Type.Underlying, shape)
	}
	return specs, nil
}

func buildParameter(parameter *parameterFile) (*tensor.Tensor, error) {
	dtype := parameter.Type.Underlying
	if dtype == nil {
		return nil, status.Error(status.InvalidArgument, "Plan: Parameter has no type")
	}
	values, count, err := decodeValues(dtype, parameter.Values)
	if err != nil {
		return nil, err
	}
	var shape tensor.TensorShape
	switch {
	case parameter.Shape != nil:
		shape = tensor.TensorShape(parameter.Shape)
	case count == 1:
		shape = tensor.ScalarShape()
	default:
		shape = tensor.TensorShape{int64(count)}
	}
	return tensor.New(dtype, shape, values)
}

func decodeValues(dtype *tensor.DataType, raw json.RawMessage) (interface{}, int, error) {
	if raw == nil {
		return nil, 0, status.Error(status.InvalidArgument, "Plan: Parameter has no values")
	}
	switch dtype {
	case tensor.Int32:
		var values []int32
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, 0, status.Wrap(status.InvalidArgument, err, "Plan: Invalid parameter values")
		}
		return values, len(values), nil
	case tensor.Int64:
		var values []int64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, 0, status.Wrap(status.InvalidArgument, err, "Plan: Invalid parameter values")
		}
		return values, len(values), nil
	case tensor.Float:
		var values []float32
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, 0, status.Wrap(status.InvalidArgument, err, "Plan: Invalid parameter values")
		}
		return values, len(values), nil
	case tensor.Double:
		var values []float64
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, 0, status.Wrap(status.InvalidArgument, err, "Plan: Invalid parameter values")
		}
		return values, len(values), nil
	case tensor.String:
		var values []string
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, 0, status.Wrap(status.InvalidArgument, err, "Plan: Invalid parameter values")
		}
		return values, len(values), nil
	}
	return nil, 0, status.Errorf(status.InvalidArgument,
		"Plan: Unsupported parameter type %s", dtype.TypeName())
}
