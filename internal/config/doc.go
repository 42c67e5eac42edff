// Package config loads and validates the YAML gateway configuration: HTTP
// server settings, the access-token gate, the tenant bot list, messaging
// bridge transport parameters, media conversion settings and logging.
package config
