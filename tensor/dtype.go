package tensor

import (
	"encoding/json"

	"github.com/fedcompute/aggcore/status"
)

// TypeKind groups data types for dispatch purposes.
type TypeKind int

const (
	KindUnknown TypeKind = iota
	KindNumeric
	KindString
)

// DataType describes the element type of a Tensor. Instances are
// process-wide singletons, equality is pointer identity.
type DataType struct {
	name string
	// Wire enum value used by the checkpoint codec.
	wire int32
	// Byte width of a single element, 0 for indirect types.
	width int
	kind  TypeKind
}

var Invalid = &DataType{"invalid", 0, 0, KindUnknown}
var Int32 = &DataType{"int32", 1, 4, KindNumeric}
var Int64 = &DataType{"int64", 2, 8, KindNumeric}
var Float = &DataType{"float32", 3, 4, KindNumeric}
var Double = &DataType{"float64", 4, 8, KindNumeric}
var String = &DataType{"string", 5, 0, KindString}

var allTypes = []*DataType{
	Invalid,
	Int32,
	Int64,
	Float,
	Double,
	String,
}

func (d *DataType) TypeName() string {
	return d.name
}

func (d *DataType) WireCode() int32 {
	return d.wire
}

func (d *DataType) Width() int {
	return d.width
}

func (d *DataType) Kind() TypeKind {
	return d.kind
}

func (d *DataType) IsNumeric() bool {
	return d.kind == KindNumeric
}

func (d *DataType) String() string {
	return d.name
}

func (d *DataType) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.name)
}

// FromName resolves a data type by its encoded name.
func FromName(name string) (*DataType, error) {
	for _, t := range allTypes {
		if t.name == name {
			return t, nil
		}
	}
	return nil, status.Errorf(status.InvalidArgument, "Unknown data type %s", name)
}

// FromWireCode resolves a data type by its checkpoint wire value.
func FromWireCode(code int32) (*DataType, error) {
	for _, t := range allTypes {
		if t.wire == code {
			return t, nil
		}
	}
	return nil, status.Errorf(status.InvalidArgument, "Unknown data type code %d", code)
}

// TypeReference wraps a DataType for JSON decoding by name.
type TypeReference struct {
	Underlying *DataType
}

func Ref(dataType *DataType) TypeReference {
	return TypeReference{dataType}
}

func (t TypeReference) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Underlying.TypeName())
}

func (t *TypeReference) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	resolved, err := FromName(name)
	if err != nil {
		return err
	}
	t.Underlying = resolved
	return nil
}
