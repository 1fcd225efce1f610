// Package llm provides an OpenAI-compatible chat client used for text
// generation: chapter script adaptation and character profile writing.
//
// # Configuration
//
// Requires api_key and model, optionally base_url, referer, title, timeout,
// max_tokens and json_mode. Each stage can carry its own Config; the config
// package falls back to the shared [llm] section.
//
// # Entry Points
//
// NewClient: construct client from Config.
// Client.CompleteJSON: send system/user prompts, receive the raw JSON content.
// Client.HealthCheck: verify API key and model availability.
// DecodeLLMJSON: decode a model response with one bounded repair pass.
//
// # Failure Behaviour
//
// Requests are not retried. The per-request deadline comes from
// TimeoutSeconds; callers may additionally bound the call with a context.
package llm
