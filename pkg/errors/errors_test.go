package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{429, ErrorTypeRateLimit},
		{404, ErrorTypeNotFound},
		{403, ErrorTypeRejected},
		{400, ErrorTypeRejected},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{302, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			err := FromStatus(tt.code, "boom")
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.code, err.Code)
		})
	}
}

func TestUnwrapAndTypeOf(t *testing.T) {
	root := stderrors.New("dial tcp: connection refused")
	err := fmt.Errorf("fetching page 2: %w", Wrap(ErrorTypeNetwork, "request failed", root))

	assert.True(t, stderrors.Is(err, root))
	assert.Equal(t, ErrorTypeNetwork, TypeOf(err))
	assert.True(t, Is(err, ErrorTypeNetwork))
	assert.False(t, Is(nil, ErrorTypeNetwork))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(root))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "rejected error (code 403): forbidden", FromStatus(403, "forbidden").Error())
	assert.Equal(t, `missing_element error: no element matches "a.like"`, MissingElement("a.like").Error())
	assert.Equal(t, "network error: request failed: eof",
		Wrap(ErrorTypeNetwork, "request failed", stderrors.New("eof")).Error())
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.False(t, IsRetryable(ErrorTypeRejected))
	assert.False(t, IsRetryable(ErrorTypeMissingElement))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(200))
}
