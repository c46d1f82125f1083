package collector

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/porby-sdk/porby/pkg/model"
	"github.com/porby-sdk/porby/pkg/redact"
)

type interceptedKey struct{}

// NetworkCollectorConfig tunes a NetworkCollector.
type NetworkCollectorConfig struct {
	Redactor     *redact.Redactor
	MaxBodyBytes int64 // 0 disables body capture, per spec §4.8
	Next         http.RoundTripper
}

// NetworkCollector is an http.RoundTripper that observes every request
// passing through it and emits a Network-variant LogEntry on
// completion. The idiomatic Go analog of "intercept at the request
// layer without infinite recursion" is a RoundTripper: installing it
// as http.Client.Transport means only that client's requests pass
// through it, and a context marker prevents double-counting if the
// same collector is accidentally chained into Next.
type NetworkCollector struct {
	cfg  NetworkCollectorConfig
	emit EmitFunc
}

// NewNetworkCollector constructs a NetworkCollector. If cfg.Next is
// nil, http.DefaultTransport is used.
func NewNetworkCollector(cfg NetworkCollectorConfig) *NetworkCollector {
	if cfg.Next == nil {
		cfg.Next = http.DefaultTransport
	}
	return &NetworkCollector{cfg: cfg}
}

func (n *NetworkCollector) Start(emit EmitFunc) error {
	n.emit = emit
	return nil
}

func (n *NetworkCollector) Stop() {
	n.emit = nil
}

// RoundTrip implements http.RoundTripper.
func (n *NetworkCollector) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Context().Value(interceptedKey{}) != nil {
		return n.cfg.Next.RoundTrip(req)
	}
	ctx := context.WithValue(req.Context(), interceptedKey{}, true)
	req = req.WithContext(ctx)

	start := time.Now()
	reqBody := n.captureRequestBody(req)

	resp, err := n.cfg.Next.RoundTrip(req)

	entry := n.buildEntry(req, resp, err, reqBody, time.Since(start))
	if n.emit != nil {
		n.emit(entry)
	}
	return resp, err
}

func (n *NetworkCollector) captureRequestBody(req *http.Request) []byte {
	if n.cfg.MaxBodyBytes <= 0 || req.Body == nil {
		return nil
	}
	limited := io.LimitReader(req.Body, n.cfg.MaxBodyBytes)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil
	}
	req.Body = io.NopCloser(io.MultiReader(newBodyBuf(body), req.Body))
	return body
}

func newBodyBuf(b []byte) io.Reader {
	return &sliceReader{b: b}
}

type sliceReader struct {
	b   []byte
	pos int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.pos:])
	r.pos += n
	return n, nil
}

func (n *NetworkCollector) buildEntry(req *http.Request, resp *http.Response, err error, reqBody []byte, dur time.Duration) model.LogEntry {
	statusCode := 0
	var respHeaders map[string]string
	var respBody []byte
	if resp != nil {
		statusCode = resp.StatusCode
		respHeaders = headerToMap(resp.Header)
		if n.cfg.MaxBodyBytes > 0 && resp.Body != nil {
			limited := io.LimitReader(resp.Body, n.cfg.MaxBodyBytes)
			respBody, _ = io.ReadAll(limited)
			resp.Body = io.NopCloser(io.MultiReader(newBodyBuf(respBody), resp.Body))
		}
	}

	reqHeaders := headerToMap(req.Header)
	url := req.URL.String()
	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}

	if n.cfg.Redactor != nil {
		reqHeaders = n.cfg.Redactor.RedactHeaders(reqHeaders)
		respHeaders = n.cfg.Redactor.RedactHeaders(respHeaders)
		url = n.cfg.Redactor.RedactURL(url)
	}

	level := classifyStatus(statusCode, err != nil)

	extra := model.NetworkExtraOf(model.NetworkExtra{
		Method:          req.Method,
		URL:             url,
		StatusCode:      statusCode,
		RequestHeaders:  reqHeaders,
		ResponseHeaders: respHeaders,
		RequestBody:     reqBody,
		ResponseBody:    respBody,
		DurationMS:      dur.Milliseconds(),
		BytesSent:       req.ContentLength,
		Error:           errMsg,
	})

	e := model.NewEntry(level, model.CategoryNetwork, req.Method+" "+url, model.SourceSite{})
	return e.WithExtra(extra)
}

func headerToMap(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}
