package pairing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAcceptsFixedCode(t *testing.T) {
	m := New(Config{FixedCode: "123456"})
	result := m.Validate("123456")
	assert.True(t, result.Accepted)
	assert.Empty(t, result.Reason)
}

func TestValidateRejectsWrongCode(t *testing.T) {
	m := New(Config{FixedCode: "123456", MaxAttempts: 3})
	result := m.Validate("000000")
	assert.False(t, result.Accepted)
	assert.Contains(t, result.Reason, "2 attempts remaining")
}

// Scenario 4 from the spec's testable properties: pairing lockout.
// max_attempts=3, cooldown=30s. Three wrong codes; the third reply
// contains "Too many failed attempts". A fourth attempt within 30s is
// rejected with a cooldown message.
func TestValidateLockoutAndCooldown(t *testing.T) {
	m := New(Config{FixedCode: "123456", MaxAttempts: 3, Cooldown: 30 * time.Second})

	var now time.Time = time.Now()
	m.now = func() time.Time { return now }

	r1 := m.Validate("000000")
	assert.False(t, r1.Accepted)
	assert.Contains(t, r1.Reason, "2 attempts remaining")

	r2 := m.Validate("111111")
	assert.False(t, r2.Accepted)
	assert.Contains(t, r2.Reason, "1 attempts remaining")

	r3 := m.Validate("222222")
	assert.False(t, r3.Accepted)
	assert.Contains(t, r3.Reason, "Too many failed attempts")

	r4 := m.Validate("123456") // correct code, but cooldown is active
	assert.False(t, r4.Accepted)
	require.Contains(t, r4.Reason, "Cooldown active")
	assert.Contains(t, r4.Reason, "Try again in 30s")

	// Advance past the cooldown window; validation evaluates lazily,
	// no timer fires on expiry per spec §5.
	now = now.Add(31 * time.Second)
	r5 := m.Validate("123456")
	assert.True(t, r5.Accepted)
}

func TestValidateSuccessResetsAttempts(t *testing.T) {
	m := New(Config{FixedCode: "123456", MaxAttempts: 3})
	m.Validate("000000")
	r := m.Validate("123456")
	assert.True(t, r.Accepted)

	// Attempt counter was reset by the success.
	r2 := m.Validate("000000")
	assert.Contains(t, r2.Reason, "2 attempts remaining")
}

func TestGeneratedCodeIsSixDigits(t *testing.T) {
	m := New(Config{})
	code := m.ActiveCode()
	assert.Len(t, code, 6)
	for _, c := range code {
		assert.True(t, c >= '0' && c <= '9')
	}
}
