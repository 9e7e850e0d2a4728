// Package config handles configuration loading, parsing, and validation
// from environment variables (prefixed ATTACHMENTS_) and an optional YAML
// file. It provides type-safe access to the server, database, blob storage
// and upload policy settings.
package config
