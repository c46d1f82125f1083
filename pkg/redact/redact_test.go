package redact

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/porby-sdk/porby/pkg/model"
)

func testRedactor() *Redactor {
	return New(
		[]string{"Authorization", "Cookie"},
		[]string{"password", "token"},
		[]string{"api_key", "secret"},
		"<redacted>",
	)
}

func TestRedactHeadersCaseInsensitive(t *testing.T) {
	r := testRedactor()
	h := map[string]string{
		"authorization": "Bearer xyz",
		"Content-Type":  "application/json",
	}
	out := r.RedactHeaders(h)
	assert.Equal(t, "<redacted>", out["authorization"])
	assert.Equal(t, "application/json", out["Content-Type"])
	// Original map untouched.
	assert.Equal(t, "Bearer xyz", h["authorization"])
}

func TestRedactMetadataCaseInsensitive(t *testing.T) {
	r := testRedactor()
	m := model.Metadata{
		"Password": model.StringValue("hunter2"),
		"userId":   model.Int64Value(42),
	}
	out := r.RedactMetadata(m)
	assert.Equal(t, model.StringValue("<redacted>"), out["Password"])
	assert.Equal(t, model.Int64Value(42), out["userId"])
}

func TestRedactURLQueryParam(t *testing.T) {
	r := testRedactor()
	out := r.RedactURL("https://example.com/v1/users?api_key=abc123&page=2")
	assert.Contains(t, out, "api_key=%3Credacted%3E")
	assert.Contains(t, out, "page=2")
}

func TestRedactURLUnparseablePassesThrough(t *testing.T) {
	r := testRedactor()
	bad := "ht!tp://[::not a url"
	assert.Equal(t, bad, r.RedactURL(bad))
}

func TestRedactionIsIdempotent(t *testing.T) {
	r := testRedactor()

	h := map[string]string{"Cookie": "session=abc"}
	once := r.RedactHeaders(h)
	twice := r.RedactHeaders(once)
	assert.Equal(t, once, twice)

	m := model.Metadata{"token": model.StringValue("abc")}
	mOnce := r.RedactMetadata(m)
	mTwice := r.RedactMetadata(mOnce)
	assert.Equal(t, mOnce, mTwice)

	url := "https://example.com?secret=abc"
	uOnce := r.RedactURL(url)
	uTwice := r.RedactURL(uOnce)
	assert.Equal(t, uOnce, uTwice)
}
