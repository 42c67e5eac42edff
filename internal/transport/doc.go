// Package transport defines the provider boundary between the gateway and
// the messaging network, and implements the HTTP bridge client that opens a
// named session, persists the pairing QR artifact, and posts outbound
// messages with bounded retries.
package transport
