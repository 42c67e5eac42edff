// Package session implements the tenant session registry and bootstrapper.
// Each configured bot name owns exactly one session holding its conversation
// flow, transport provider handle and per-tenant store; creation is
// idempotent and safe under concurrent callers.
package session
