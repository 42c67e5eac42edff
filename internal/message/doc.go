// Package message defines the outbound payload shapes accepted by the
// messaging transport, one constructor per message kind, plus recipient
// addressing and media-type resolution helpers.
package message
