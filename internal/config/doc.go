// Package config loads, normalizes, and validates glimpse configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// OPENAI_API_KEY for the embeddings endpoint. The Config type centralizes the
// capture cadence, detector thresholds, archive policy and collaborator
// settings so the daemon and CLI discover them in one pass.
//
// Long-running components read settings through a Provider. FileProvider
// watches the configuration file and publishes a fresh snapshot after every
// successful reload; consumers re-read Current on their next cycle instead of
// restarting.
package config
