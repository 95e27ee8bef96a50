package resilience

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestStatusError_Message(t *testing.T) {
	assert.Equal(t, "http status 503", NewStatusError("", 503).Error())
	assert.Equal(t, "wallchain: discovery: http status 403", NewStatusError("wallchain: discovery", 403).Error())
}

func TestRetryableStatus(t *testing.T) {
	for _, code := range []int{408, 425, 429, 500, 502, 503, 504} {
		assert.True(t, RetryableStatus(code), "%d should be retryable", code)
	}
	for _, code := range []int{200, 400, 401, 403, 404, 422, 501} {
		assert.False(t, RetryableStatus(code), "%d should not be retryable", code)
	}
}

func TestClassify_StatusErrors(t *testing.T) {
	assert.Equal(t, Transient, Classify(NewStatusError("", 429)))
	assert.Equal(t, Permanent, Classify(NewStatusError("", 404)))

	wrapped := eris.Wrap(NewStatusError("", 502), "harvest: discover companies")
	assert.Equal(t, Transient, Classify(wrapped))
	assert.Equal(t, 502, StatusCode(wrapped))
}

func TestClassify_NilAndPlain(t *testing.T) {
	assert.Equal(t, Class(""), Classify(nil))
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(errors.New("entry 3: missing xInfo")))
	assert.Zero(t, StatusCode(errors.New("boom")))
}

func TestClassify_ContextCanceled(t *testing.T) {
	assert.False(t, IsTransient(fmt.Errorf("fetch: %w", context.Canceled)))
}

func TestClassify_ConnectionErrors(t *testing.T) {
	for _, err := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, io.ErrUnexpectedEOF} {
		assert.True(t, IsTransient(fmt.Errorf("get: %w", err)), "%v should be transient", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassify_NetworkTimeout(t *testing.T) {
	assert.True(t, IsTransient(timeoutErr{}))
}

func TestClassify_NetworkPhrases(t *testing.T) {
	assert.True(t, IsTransient(errors.New("read tcp: Connection Reset By Peer")), "phrase match is case-insensitive")
	assert.True(t, IsTransient(errors.New("net/http: TLS handshake timeout")))
}
