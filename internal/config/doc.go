// Package config loads and merges gavel configuration from multiple sources.
//
// Precedence (highest to lowest):
//  1. CLI flags
//  2. Environment variables (GAVEL_PROVIDER, GAVEL_MODEL, GAVEL_WARN_BUDGET, etc.)
//  3. Config file ($XDG_CONFIG_HOME/gavel/config.json)
//  4. Built-in defaults
//
// A .env file in the working directory is loaded into the environment
// before the merge, so API keys and GAVEL_* variables can live next to the
// repository under review. Credentials themselves (ANTHROPIC_API_KEY,
// OPENAI_API_KEY, GITHUB_TOKEN) are read from the environment only and are
// never stored in the config file.
package config
