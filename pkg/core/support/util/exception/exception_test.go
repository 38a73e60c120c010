package exception_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/garrichello/climatecore/pkg/core/support/util/exception"
)

func TestNewCoreError(t *testing.T) {
	originalErr := errors.New("db connection refused")
	ce := exception.NewCoreError("mddb", "failed to connect", originalErr)

	assert.Equal(t, "mddb", ce.Module)
	assert.Equal(t, "failed to connect", ce.Message)
	assert.Equal(t, originalErr, ce.Unwrap())
	assert.Contains(t, ce.Error(), "[mddb] failed to connect: db connection refused")
	assert.NotEmpty(t, ce.StackTrace)
}

func TestNewCoreErrorf(t *testing.T) {
	ce := exception.NewCoreErrorf("adapter", "level '%s' not found in %d records", "2m", 0)

	assert.Nil(t, ce.Unwrap())
	assert.Contains(t, ce.Error(), "[adapter] level '2m' not found in 0 records")
}

func TestSentinelTraversal(t *testing.T) {
	ce := exception.NewCoreError("mddb", "no records found", exception.ErrNotFound)
	wrapped := fmt.Errorf("step failed: %w", ce)

	assert.True(t, errors.Is(wrapped, exception.ErrNotFound))
	assert.False(t, errors.Is(wrapped, exception.ErrNotImplemented))
}

func TestIsCoreError(t *testing.T) {
	ce := exception.NewCoreErrorf("engine", "boom")
	assert.True(t, exception.IsCoreError(ce))
	assert.True(t, exception.IsCoreError(fmt.Errorf("wrapped: %w", ce)))
	assert.False(t, exception.IsCoreError(errors.New("plain")))
	assert.False(t, exception.IsCoreError(nil))
}
