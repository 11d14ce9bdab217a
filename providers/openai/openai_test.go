package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/genops-ai/genops-go/models"
)

type captureRecorder struct {
	usages []models.Usage
}

func (c *captureRecorder) RecordUsage(_ context.Context, usage models.Usage, _ error) {
	c.usages = append(c.usages, usage)
}

func TestExtractUsage(t *testing.T) {
	tests := []struct {
		name     string
		reqBody  string
		respBody string
		want     models.Usage
		ok       bool
	}{
		{
			name:     "chat completion",
			reqBody:  `{"model":"gpt-4o","messages":[]}`,
			respBody: `{"object":"chat.completion","model":"gpt-4o-2024-08-06","usage":{"prompt_tokens":100,"completion_tokens":30}}`,
			want:     models.Usage{Operation: "chat", Model: "gpt-4o-2024-08-06", InputTokens: 100, OutputTokens: 30},
			ok:       true,
		},
		{
			name:     "embedding",
			reqBody:  `{"model":"text-embedding-3-small","input":"hello"}`,
			respBody: `{"object":"list","model":"text-embedding-3-small","usage":{"prompt_tokens":5,"total_tokens":5}}`,
			want:     models.Usage{Operation: "embedding", Model: "text-embedding-3-small", InputTokens: 5},
			ok:       true,
		},
		{
			name:     "error payload has no usage",
			reqBody:  `{"model":"gpt-4o"}`,
			respBody: `{"error":{"message":"invalid request"}}`,
			want:     models.Usage{Operation: "chat", Model: "gpt-4o"},
			ok:       false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := extractUsage([]byte(tt.reqBody), []byte(tt.respBody))
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAdapter_Available(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	assert.False(t, adapter.Available())

	t.Setenv("OPENAI_API_KEY", "sk-test")
	assert.True(t, adapter.Available())
}

func TestTransport_ReportsToAdapterRecorder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"model":"gpt-4o","usage":{"prompt_tokens":10,"completion_tokens":4}}`))
	}))
	defer srv.Close()

	rec := &captureRecorder{}
	require.NoError(t, adapter.Instrument(rec))
	defer adapter.Uninstrument()
	assert.True(t, adapter.Instrumented())

	client := &http.Client{Transport: NewTransport(nil)}
	resp, err := client.Post(srv.URL, "application/json",
		strings.NewReader(`{"model":"gpt-4o","messages":[]}`))
	require.NoError(t, err)
	resp.Body.Close()

	require.Len(t, rec.usages, 1)
	assert.Equal(t, "openai", rec.usages[0].Provider)
	assert.Equal(t, int64(10), rec.usages[0].InputTokens)

	// Detaching stops reporting on the same live client.
	require.NoError(t, adapter.Uninstrument())
	resp, err = client.Post(srv.URL, "application/json",
		strings.NewReader(`{"model":"gpt-4o","messages":[]}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Len(t, rec.usages, 1)
}
