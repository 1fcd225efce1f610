// Package config loads, normalizes, and validates narrate configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, applies a .env file when present, and honours
// environment fallbacks such as NARRATE_LLM_API_KEY, MINIMAX_API_TOKEN and
// INDEXTTS_PATH. The Config type is loaded once per process and passed
// explicitly to every stage.
package config
