package providers

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/genops-ai/genops-go/models"
)

// ExtractFunc parses provider-specific usage out of a request/response body
// pair. It returns false when the exchange carries no usage, for example an
// error payload or a non-completion endpoint.
type ExtractFunc func(reqBody, respBody []byte) (models.Usage, bool)

// Transport is an http.RoundTripper that observes provider API traffic and
// reports token usage to a Recorder. It never alters the request or the
// response, a nil recorder makes it a passthrough, and event-stream
// responses are never buffered.
type Transport struct {
	// Base handles the actual request. Defaults to http.DefaultTransport.
	Base http.RoundTripper

	// Provider labels the emitted usage (e.g., "openai").
	Provider string

	// Extract parses usage from the exchange.
	Extract ExtractFunc

	// Recorder returns the current recorder, or nil when detached. Looked
	// up per request so uninstrumenting takes effect on live clients.
	Recorder func() Recorder
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	rec := t.recorder()
	if rec == nil {
		return base.RoundTrip(req)
	}

	reqBody, req, err := captureRequestBody(req)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := base.RoundTrip(req)
	elapsed := time.Since(start)

	if err != nil {
		usage, _ := t.Extract(reqBody, nil)
		usage.Provider = t.Provider
		usage.Duration = elapsed
		rec.RecordUsage(req.Context(), usage, err)
		return nil, err
	}

	// Streaming responses are handed through untouched: buffering an SSE
	// body would stall the caller until the stream ends, and the framing
	// carries no usage JSON to extract anyway.
	if isEventStream(resp) {
		return resp, nil
	}

	respBody, resp, readErr := captureResponseBody(resp)
	if readErr != nil {
		return nil, readErr
	}

	usage, ok := t.Extract(reqBody, respBody)
	if ok {
		usage.Provider = t.Provider
		usage.Duration = elapsed
		rec.RecordUsage(req.Context(), usage, nil)
	}
	return resp, nil
}

func (t *Transport) recorder() Recorder {
	if t.Recorder == nil {
		return nil
	}
	return t.Recorder()
}

func isEventStream(resp *http.Response) bool {
	mt, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	return err == nil && mt == "text/event-stream"
}

// captureRequestBody reads and restores the request body so the model name
// can be parsed out of it.
func captureRequestBody(req *http.Request) ([]byte, *http.Request, error) {
	if req.Body == nil {
		return nil, req, nil
	}
	body, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		return nil, nil, err
	}
	clone := req.Clone(req.Context())
	clone.Body = io.NopCloser(bytes.NewReader(body))
	return body, clone, nil
}

func captureResponseBody(resp *http.Response) ([]byte, *http.Response, error) {
	if resp.Body == nil {
		return nil, resp, nil
	}
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(body))
	return body, resp, nil
}
