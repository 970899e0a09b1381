package status

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"testing"
)

func TestCodeNames(t *testing.T) {
	assert.Equal(t, "OK", Ok.String())
	assert.Equal(t, "INVALID_ARGUMENT", InvalidArgument.String())
	assert.Equal(t, "FAILED_PRECONDITION", FailedPrecondition.String())
	assert.Equal(t, "NOT_FOUND", NotFound.String())
	assert.Equal(t, "UNKNOWN", Code(100).String())
}

func TestErrorf(t *testing.T) {
	err := Errorf(InvalidArgument, "bad tensor at position %d", 3)
	assert.Error(t, err)
	assert.Equal(t, InvalidArgument, CodeOf(err))
	assert.Contains(t, err.Error(), "INVALID_ARGUMENT")
	assert.Contains(t, err.Error(), "bad tensor at position 3")
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Ok, CodeOf(nil))
	assert.Equal(t, Internal, CodeOf(errors.New("plain")))
	assert.Equal(t, NotFound, CodeOf(Error(NotFound, "missing")))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(Internal, nil, "context"))
	inner := errors.New("io failure")
	err := Wrap(Internal, inner, "parsing checkpoint")
	assert.Equal(t, Internal, CodeOf(err))
	assert.Contains(t, err.Error(), "parsing checkpoint")
	assert.Contains(t, err.Error(), "io failure")
}
