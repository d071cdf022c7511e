// Package gateway serves the chat-relay HTTP API.
//
// # Overview
//
// The Gateway owns the conversation store, the upstream inference client,
// the session manager and the completion service, and exposes them over a
// single net/http server.
//
// # Routes
//
//	POST   /api/completion  stream a reply as SSE frames {"response","done"}
//	GET    /api/messages    {"messages":[...]} without the system message
//	DELETE /api/messages    {"success":true}
//	GET    /health          liveness, always "OK"
//	GET    /health/ready    503 when the store does not answer a ping
//	GET    /metrics         Prometheus exposition, when enabled
//
// Every response carries security headers. The /api routes additionally
// pass through CORS handling and the session middleware, which issues or
// refreshes the signed session cookie.
//
// # Errors
//
// Failures detected before the first frame is written use a status code
// and a JSON body {"error": "..."}:
//
//	400  invalid body, blank or oversized message
//	502  upstream rejected the request or sent a malformed stream
//	503  conversation store unavailable
//
// Failures after streaming began end the stream with an "error" event.
// Client disconnects are logged and otherwise ignored.
//
// # Lifecycle
//
//	gw, err := gateway.New(ctx, cfg, logger)
//	if err != nil {
//	    return err
//	}
//	return gw.Run(ctx) // blocks until ctx is canceled
//
// Run starts the sqlite janitor when that backend is selected and shuts
// the server down gracefully, giving in-flight streams five seconds.
package gateway
