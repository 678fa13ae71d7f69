// Package server implements the websocket relay: the Hub event loop, the
// per-connection session controller, room broadcasts and the HTTP surface.
//
// All room state is owned by the Hub's Run goroutine. Client pumps, HTTP
// handlers and upload workers talk to it only through channels.
package server
