package tensor

// Spec is the declarative contract of a tensor: a name, a data type
// and a shape which may contain unknown dimensions. An empty name
// marks an anonymous internal column which is not emitted in outputs.
type Spec struct {
	Name  string
	DType *DataType
	Shape TensorShape
}

func NewSpec(name string, dtype *DataType, shape TensorShape) Spec {
	return Spec{Name: name, DType: dtype, Shape: shape}
}

func (s Spec) Equal(other Spec) bool {
	return s.Name == other.Name && s.DType == other.DType && s.Shape.Equal(other.Shape)
}

// Matches checks a materialized tensor against the spec. Unknown
// dimensions accept any size.
func (s Spec) Matches(t *Tensor) bool {
	if t.DType() != s.DType {
		return false
	}
	if len(t.Shape()) != len(s.Shape) {
		return false
	}
	for i, d := range s.Shape {
		if d == UnknownDim {
			continue
		}
		if t.Shape()[i] != d {
			return false
		}
	}
	return true
}
