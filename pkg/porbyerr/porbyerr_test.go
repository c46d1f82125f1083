package porbyerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorFormatsWithAndWithoutCause(t *testing.T) {
	e := New(KindInvalidPort, "port 70000 out of range")
	assert.Contains(t, e.Error(), "invalid_port")
	assert.Contains(t, e.Error(), "port 70000 out of range")

	wrapped := Wrap(KindDecode, "bad frame", errors.New("unexpected EOF"))
	assert.Contains(t, wrapped.Error(), "decode_error")
	assert.Contains(t, wrapped.Error(), "unexpected EOF")
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("root cause")
	wrapped := Wrap(KindPairing, "cooldown active", cause)
	assert.Same(t, cause, errors.Unwrap(wrapped))
}

func TestIsMatchesKindThroughWrapping(t *testing.T) {
	base := New(KindNotStarted, "engine not started")
	outer := fmt.Errorf("starting engine: %w", base)

	assert.True(t, Is(outer, KindNotStarted))
	assert.False(t, Is(outer, KindDecode))
}
