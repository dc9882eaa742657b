package errs

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatting(t *testing.T) {
	plain := New(CodeNotFound, "entry abc not found")
	assert.Equal(t, "NOT_FOUND: entry abc not found", plain.Error())

	wrapped := Wrap(CodeIO, "reading file", io.ErrUnexpectedEOF)
	assert.Contains(t, wrapped.Error(), "IO: reading file")
	assert.Contains(t, wrapped.Error(), io.ErrUnexpectedEOF.Error())
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(CodeIO, "nothing", nil))
}

func TestUnwrap(t *testing.T) {
	cause := io.ErrClosedPipe
	err := Wrap(CodeIO, "writing", cause)
	assert.True(t, errors.Is(err, cause))
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		err   error
		check func(error) bool
	}{
		{NotFound("thing"), IsNotFound},
		{New(CodeAlreadyExists, "dup"), IsAlreadyExists},
		{New(CodeIO, "io"), IsIO},
		{New(CodeSerialization, "bad bytes"), IsSerialization},
		{New(CodeInvalidOperation, "spent"), IsInvalidOperation},
	}

	for _, tt := range tests {
		assert.True(t, tt.check(tt.err))
	}

	assert.False(t, IsNotFound(New(CodeIO, "io")))
	assert.False(t, IsNotFound(errors.New("plain")))
	assert.False(t, IsNotFound(nil))
}

func TestPredicatesSeeThroughWrapping(t *testing.T) {
	inner := NotFound("entry")
	outer := fmt.Errorf("loading tree: %w", inner)
	assert.True(t, IsNotFound(outer))
}
