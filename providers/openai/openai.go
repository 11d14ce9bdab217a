// Package openai instruments the official OpenAI Go SDK. Importing it
// registers the adapter; clients built with NewClient report token usage
// for every completion and embedding call.
package openai

import (
	"net/http"
	"os"
	"sync"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/genops-ai/genops-go/config"
	"github.com/genops-ai/genops-go/models"
	"github.com/genops-ai/genops-go/providers"
)

const providerName = "openai"

// Adapter wires OpenAI clients to a usage recorder.
type Adapter struct {
	mu  sync.RWMutex
	rec providers.Recorder
}

var adapter = &Adapter{}

func init() {
	providers.Register(adapter)
}

// Name implements providers.Adapter.
func (a *Adapter) Name() string { return providerName }

// Available reports whether OpenAI credentials are present.
func (a *Adapter) Available() bool {
	return os.Getenv("OPENAI_API_KEY") != ""
}

// Instrument implements providers.Adapter.
func (a *Adapter) Instrument(rec providers.Recorder) error {
	a.mu.Lock()
	a.rec = rec
	a.mu.Unlock()
	return nil
}

// Uninstrument implements providers.Adapter.
func (a *Adapter) Uninstrument() error {
	a.mu.Lock()
	a.rec = nil
	a.mu.Unlock()
	return nil
}

// Instrumented implements providers.Adapter.
func (a *Adapter) Instrumented() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rec != nil
}

func (a *Adapter) recorder() providers.Recorder {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.rec
}

// NewClient builds an OpenAI client whose traffic is observed by the
// adapter's recorder. Extra options are appended after the configured ones,
// so callers can override anything.
func NewClient(cfg config.ProviderConfig, extra ...option.RequestOption) openai.Client {
	opts := []option.RequestOption{
		option.WithHTTPClient(&http.Client{
			Timeout:   cfg.Timeout,
			Transport: NewTransport(nil),
		}),
		option.WithMaxRetries(cfg.MaxRetries),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	opts = append(opts, extra...)
	return openai.NewClient(opts...)
}

// NewTransport wraps base with OpenAI usage extraction. Useful for callers
// that manage their own http.Client.
func NewTransport(base http.RoundTripper) *providers.Transport {
	return &providers.Transport{
		Base:     base,
		Provider: providerName,
		Extract:  extractUsage,
		Recorder: adapter.recorder,
	}
}

// extractUsage parses the OpenAI response body. Chat completions carry
// usage.prompt_tokens/completion_tokens; embeddings carry prompt_tokens
// only and report as the embedding operation.
func extractUsage(reqBody, respBody []byte) (models.Usage, bool) {
	usage := models.Usage{Operation: "chat"}
	usage.Model = gjson.GetBytes(respBody, "model").String()
	if usage.Model == "" {
		usage.Model = gjson.GetBytes(reqBody, "model").String()
	}
	if respBody == nil {
		return usage, usage.Model != ""
	}

	in := gjson.GetBytes(respBody, "usage.prompt_tokens")
	if !in.Exists() {
		return usage, false
	}
	usage.InputTokens = in.Int()
	usage.OutputTokens = gjson.GetBytes(respBody, "usage.completion_tokens").Int()
	if gjson.GetBytes(respBody, "object").String() == "list" {
		usage.Operation = "embedding"
	}
	return usage, true
}
