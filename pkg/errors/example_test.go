package errors_test

import (
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/arrowodbc/pkg/errors"
)

// Example demonstrates basic error creation with positional details.
func Example() {
	err := errors.New(errors.ErrorTypeConversion, "invalid decimal text").
		WithDetail(errors.DetailColumn, "amount").
		WithDetail(errors.DetailRow, 7)

	fmt.Println(err.Error())

	// Output:
	// conversion: invalid decimal text (column=amount, row=7)
}

// ExampleWrap shows how driver failures are wrapped.
func ExampleWrap() {
	err := errors.Wrap(io.ErrUnexpectedEOF, errors.ErrorTypeDriver, "fetch failed")

	if errors.IsType(err, errors.ErrorTypeDriver) {
		fmt.Println("driver error")
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		fmt.Println("cause preserved")
	}

	// Output:
	// driver error
	// cause preserved
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, errors.Wrap(nil, errors.ErrorTypeDriver, "x"))
}

func TestWrapPreservesStack(t *testing.T) {
	inner := errors.New(errors.ErrorTypeEncoding, "bad utf-8")
	outer := errors.Wrap(inner, errors.ErrorTypeConversion, "column a")

	require.NotEmpty(t, inner.Stack)
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, errors.IsType(outer, errors.ErrorTypeConversion))
	assert.False(t, errors.IsType(outer, errors.ErrorTypeEncoding))

	var target *errors.Error
	require.True(t, errors.As(outer.Cause, &target))
	assert.Equal(t, errors.ErrorTypeEncoding, target.Type)
}

func TestDetail(t *testing.T) {
	err := errors.Newf(errors.ErrorTypeBufferTooSmall, "column %q truncated", "name").
		WithDetail(errors.DetailIndicator, int64(-4))

	v, ok := err.Detail(errors.DetailIndicator)
	require.True(t, ok)
	assert.Equal(t, int64(-4), v)

	_, ok = err.Detail(errors.DetailRow)
	assert.False(t, ok)
	assert.Contains(t, err.Error(), `column "name" truncated`)
}

func TestIsTypeForeignError(t *testing.T) {
	assert.False(t, errors.IsType(io.EOF, errors.ErrorTypeDriver))
}
