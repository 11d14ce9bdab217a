package providers

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/genops-ai/genops-go/models"
)

func chatExtract(reqBody, respBody []byte) (models.Usage, bool) {
	usage := models.Usage{
		Operation: "chat",
		Model:     gjson.GetBytes(reqBody, "model").String(),
	}
	in := gjson.GetBytes(respBody, "usage.prompt_tokens")
	if !in.Exists() {
		return usage, false
	}
	usage.InputTokens = in.Int()
	usage.OutputTokens = gjson.GetBytes(respBody, "usage.completion_tokens").Int()
	return usage, true
}

func TestTransport_RecordsUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "gpt-4o", gjson.GetBytes(body, "model").String())
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o","usage":{"prompt_tokens":120,"completion_tokens":48}}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	client := &http.Client{Transport: &Transport{
		Provider: "openai",
		Extract:  chatExtract,
		Recorder: func() Recorder { return rec },
	}}

	resp, err := client.Post(srv.URL, "application/json",
		strings.NewReader(`{"model":"gpt-4o","messages":[]}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	// The body must still be readable by the caller.
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "prompt_tokens")

	require.Len(t, rec.usages, 1)
	usage := rec.usages[0]
	assert.Equal(t, "openai", usage.Provider)
	assert.Equal(t, "gpt-4o", usage.Model)
	assert.Equal(t, int64(120), usage.InputTokens)
	assert.Equal(t, int64(48), usage.OutputTokens)
	assert.Greater(t, usage.Duration.Nanoseconds(), int64(0))
}

func TestTransport_StreamingResponseNotBuffered(t *testing.T) {
	firstChunk := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
		flusher := w.(http.Flusher)
		io.WriteString(w, "data: {\"delta\":\"hel\"}\n\n")
		flusher.Flush()
		close(firstChunk)
		<-release
		io.WriteString(w, "data: [DONE]\n\n")
	}))
	defer srv.Close()
	defer close(release)

	rec := &fakeRecorder{}
	client := &http.Client{Transport: &Transport{
		Provider: "openai",
		Extract:  chatExtract,
		Recorder: func() Recorder { return rec },
	}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	// The handler is still holding the stream open, so a buffered body
	// would have blocked RoundTrip before the response got here.
	<-firstChunk
	buf := make([]byte, 64)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "hel")

	assert.Empty(t, rec.usages)
}

func TestTransport_NoRecorderIsPassthrough(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	client := &http.Client{Transport: &Transport{
		Provider: "openai",
		Extract:  chatExtract,
		Recorder: func() Recorder { return nil },
	}}

	resp, err := client.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransport_SkipsResponsesWithoutUsage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"bad request"}}`))
	}))
	defer srv.Close()

	rec := &fakeRecorder{}
	client := &http.Client{Transport: &Transport{
		Provider: "openai",
		Extract:  chatExtract,
		Recorder: func() Recorder { return rec },
	}}

	resp, err := client.Post(srv.URL, "application/json",
		strings.NewReader(`{"model":"gpt-4o"}`))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Empty(t, rec.usages)
}

func TestTransport_RecordsTransportError(t *testing.T) {
	rec := &fakeRecorder{}
	client := &http.Client{Transport: &Transport{
		Provider: "openai",
		Extract:  chatExtract,
		Recorder: func() Recorder { return rec },
	}}

	_, err := client.Post("http://127.0.0.1:1", "application/json",
		strings.NewReader(`{"model":"gpt-4o"}`))
	require.Error(t, err)

	require.Len(t, rec.usages, 1)
	assert.Equal(t, "gpt-4o", rec.usages[0].Model)
}
