// Package config parses the flashwire-server YAML configuration: the HTTP
// surface, the feed source, replay pacing, the state backend selection and
// cleanup cadence. Secrets (the Redis URL, the admin API key) are referenced
// by environment variable name, never stored in the file. Watch provides
// fsnotify-based hot reload for the runtime-tunable knobs.
package config
