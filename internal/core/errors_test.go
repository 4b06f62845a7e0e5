package core

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDescribe(t *testing.T) {
	assert.Nil(t, Describe(nil))

	tests := []struct {
		name string
		err  error
		typ  ErrorType
		kind string
	}{
		{
			name: "validation",
			err:  wrapOp(OpSearchRecalls, "", ValidateDrugName("", "recalls")),
			typ:  ErrorTypeValidation,
			kind: "validation_error",
		},
		{
			name: "rate limited",
			err:  wrapOp(OpSearchShortages, "aspirin", &FetchError{Kind: KindRateLimited, Status: 429, Message: "slow down"}),
			typ:  ErrorTypeRateLimited,
			kind: "rate_limited",
		},
		{
			name: "server error",
			err:  &FetchError{Kind: KindUpstreamError, Status: 502, Message: "bad gateway"},
			typ:  ErrorTypeUpstreamTransient,
			kind: "upstream_error",
		},
		{
			name: "deadline",
			err:  fmt.Errorf("waiting: %w", context.DeadlineExceeded),
			typ:  ErrorTypeUpstreamTransient,
			kind: "timeout",
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			typ:  ErrorTypeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Describe(tt.err)
			assert.Equal(t, tt.typ, d.Type)
			assert.Equal(t, tt.kind, d.Kind)
			assert.NotEmpty(t, d.Message)
		})
	}
}

func TestDescribeCarriesOperationContext(t *testing.T) {
	err := wrapOp(OpSearchShortages, "aspirin", &FetchError{Kind: KindTimeout, Message: "timed out"})
	d := Describe(err)
	assert.Equal(t, OpSearchShortages, d.Operation)
	assert.Equal(t, "aspirin", d.Drug)
	assert.Same(t, d, Describe(fmt.Errorf("again: %w", d)))
}
