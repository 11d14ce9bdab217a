package pricing

import "github.com/genops-ai/genops-go/models"

// entry builds a builtin table row from USD-per-million-token rates.
func entry(provider, model string, inputUSD, outputUSD float64) models.PricingEntry {
	return models.PricingEntry{
		Provider:         provider,
		Model:            model,
		InputPerMillion:  models.FromUSD(inputUSD),
		OutputPerMillion: models.FromUSD(outputUSD),
		Currency:         "USD",
	}
}

// builtinEntries is the compiled-in price list, in USD per one million
// tokens. Rates drift; deployments that need exact billing should carry an
// override file and keep it current.
func builtinEntries() []models.PricingEntry {
	return []models.PricingEntry{
		// OpenAI
		entry("openai", "gpt-4o", 2.50, 10.00),
		entry("openai", "gpt-4o-mini", 0.15, 0.60),
		entry("openai", "gpt-4.1", 2.00, 8.00),
		entry("openai", "gpt-4.1-mini", 0.40, 1.60),
		entry("openai", "gpt-4.1-nano", 0.10, 0.40),
		entry("openai", "gpt-4-turbo", 10.00, 30.00),
		entry("openai", "gpt-4", 30.00, 60.00),
		entry("openai", "gpt-3.5-turbo", 0.50, 1.50),
		entry("openai", "o3", 2.00, 8.00),
		entry("openai", "o4-mini", 1.10, 4.40),
		entry("openai", "text-embedding-3-small", 0.02, 0),
		entry("openai", "text-embedding-3-large", 0.13, 0),
		entry("openai", DefaultModelKey, 2.50, 10.00),

		// Anthropic
		entry("anthropic", "claude-opus-4", 15.00, 75.00),
		entry("anthropic", "claude-sonnet-4", 3.00, 15.00),
		entry("anthropic", "claude-3-7-sonnet", 3.00, 15.00),
		entry("anthropic", "claude-3-5-sonnet", 3.00, 15.00),
		entry("anthropic", "claude-3-5-haiku", 0.80, 4.00),
		entry("anthropic", "claude-3-opus", 15.00, 75.00),
		entry("anthropic", "claude-3-haiku", 0.25, 1.25),
		entry("anthropic", DefaultModelKey, 3.00, 15.00),

		// Google Gemini
		entry("gemini", "gemini-2.5-pro", 1.25, 10.00),
		entry("gemini", "gemini-2.5-flash", 0.30, 2.50),
		entry("gemini", "gemini-2.0-flash", 0.10, 0.40),
		entry("gemini", "gemini-1.5-pro", 1.25, 5.00),
		entry("gemini", "gemini-1.5-flash", 0.075, 0.30),
		entry("gemini", DefaultModelKey, 1.25, 5.00),

		// Together
		entry("together", "meta-llama/llama-3.1-405b-instruct-turbo", 3.50, 3.50),
		entry("together", "meta-llama/llama-3.1-70b-instruct-turbo", 0.88, 0.88),
		entry("together", "meta-llama/llama-3.1-8b-instruct-turbo", 0.18, 0.18),
		entry("together", "mistralai/mixtral-8x7b-instruct-v0.1", 0.60, 0.60),
		entry("together", DefaultModelKey, 0.88, 0.88),
	}
}
