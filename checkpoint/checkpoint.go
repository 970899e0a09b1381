package checkpoint

import (
	"bytes"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/fedcompute/aggcore/status"
	"github.com/fedcompute/aggcore/tensor"
)

// The checkpoint wire format ships named tensors between client and
// server:
//
//	bytes 0..3: magic "FCC\x00"
//	repeated:
//	  varint name_len, 0 terminates the checkpoint
//	  name bytes
//	  varint tensor_len
//	  tensor wire message (see wire.go)
var checkpointMagic = []byte{'F', 'C', 'C', 0}

// Builder writes a checkpoint, emitting tensors in the order they are
// added.
type Builder struct {
	buf bytes.Buffer
}

func NewBuilder() *Builder {
	b := &Builder{}
	b.buf.Write(checkpointMagic)
	return b
}

// Add appends one named tensor. Names may not be empty, an empty name
// terminates the checkpoint on the wire.
func (b *Builder) Add(name string, t *tensor.Tensor) error {
	if name == "" {
		return status.Error(status.InvalidArgument,
			"Checkpoint: Tensor name may not be empty")
	}
	b.buf.Write(protowire.AppendVarint(nil, uint64(len(name))))
	b.buf.WriteString(name)
	encoded := AppendTensor(nil, t)
	b.buf.Write(protowire.AppendVarint(nil, uint64(len(encoded))))
	b.buf.Write(encoded)
	return nil
}

// Build terminates the checkpoint and returns its bytes. The builder
// is not reusable afterwards.
func (b *Builder) Build() []byte {
	b.buf.Write(protowire.AppendVarint(nil, 0))
	return b.buf.Bytes()
}

// Parser holds the tensors of a parsed checkpoint by name.
type Parser struct {
	tensors map[string]*tensor.Tensor
	names   []string
}

// Parse reads a whole serialized checkpoint. Truncated data fails
// with Internal, a wrong magic or a malformed tensor message with
// InvalidArgument.
func Parse(data []byte) (*Parser, error) {
	if len(data) < len(checkpointMagic) {
		return nil, status.Error(status.Internal,
			"Checkpoint: Unable to read header")
	}
	if !bytes.Equal(data[:len(checkpointMagic)], checkpointMagic) {
		return nil, status.Error(status.InvalidArgument,
			"Checkpoint: Unsupported checkpoint format")
	}
	data = data[len(checkpointMagic):]

	parser := &Parser{tensors: map[string]*tensor.Tensor{}}
	for len(data) > 0 {
		nameLen, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, status.Error(status.Internal,
				"Checkpoint: Unable to read next tensor name size")
		}
		data = data[n:]
		if nameLen == 0 {
			break
		}
		if uint64(len(data)) < nameLen {
			return nil, status.Error(status.Internal,
				"Checkpoint: Unable to read next tensor name")
		}
		name := string(data[:nameLen])
		data = data[nameLen:]

		tensorLen, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, status.Errorf(status.Internal,
				"Checkpoint: Unable to read tensor size for %s", name)
		}
		data = data[n:]
		if uint64(len(data)) < tensorLen {
			return nil, status.Errorf(status.Internal,
				"Checkpoint: Unable to read tensor data for %s", name)
		}
		parsed, err := ParseTensor(data[:tensorLen])
		if err != nil {
			return nil, status.Wrap(status.InvalidArgument, err,
				"Checkpoint: Unable to parse tensor "+name)
		}
		data = data[tensorLen:]
		parser.tensors[name] = parsed
		parser.names = append(parser.names, name)
	}
	return parser, nil
}

// GetTensor returns the tensor stored under name.
func (p *Parser) GetTensor(name string) (*tensor.Tensor, error) {
	t, ok := p.tensors[name]
	if !ok {
		return nil, status.Errorf(status.NotFound,
			"Checkpoint: No tensor found for name %s", name)
	}
	return t, nil
}

// Names returns all tensor names in parse order.
func (p *Parser) Names() []string {
	return p.names
}
