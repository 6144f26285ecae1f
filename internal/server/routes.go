// Package server wires HTTP handlers into a ServeMux for the chat relay
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the health check and the WebSocket endpoint.
func SetupRoutes(hub *Hub) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	return mux
}
