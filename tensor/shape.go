package tensor

import (
	"fmt"
	"strings"
)

// UnknownDim marks a dimension whose size is resolved at runtime.
// Shapes holding it are only valid in specs, not in materialized
// tensors.
const UnknownDim int64 = -1

// TensorShape is an ordered list of dimension sizes. The empty shape
// describes a scalar.
type TensorShape []int64

// ScalarShape returns the shape of a scalar tensor.
func ScalarShape() TensorShape {
	return TensorShape{}
}

// NumElements returns the product of all dimension sizes. The second
// return value is false when any dimension is unknown.
func (s TensorShape) NumElements() (int64, bool) {
	n := int64(1)
	for _, d := range s {
		if d < 0 {
			return 0, false
		}
		n *= d
	}
	return n, true
}

// IsKnown returns true if all dimension sizes are non-negative.
func (s TensorShape) IsKnown() bool {
	_, known := s.NumElements()
	return known
}

func (s TensorShape) Equal(other TensorShape) bool {
	if len(s) != len(other) {
		return false
	}
	for i, d := range s {
		if other[i] != d {
			return false
		}
	}
	return true
}

func (s TensorShape) String() string {
	parts := make([]string, len(s))
	for i, d := range s {
		parts[i] = fmt.Sprintf("%d", d)
	}
	return "{" + strings.Join(parts, ",") + "}"
}
