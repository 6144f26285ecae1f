// Package server implements the core WebSocket relay for the chat service.
//
// The implementation is organized into specialized files for configuration,
// credential verification, the hub and its session registry, per-session
// pumps, the frame protocol, routing, and HTTP handlers to keep the codebase
// maintainable and testable as the project grows.
package server
