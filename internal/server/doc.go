// Package server implements the gateway's HTTP surface: tenant-scoped send
// endpoints dispatching through each bot's transport provider, the upload
// endpoints feeding the media pipeline, pairing-artifact retrieval, and
// monitoring/metrics routes.
package server
