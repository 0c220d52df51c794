// Package ws implements the WebSocket hub for flashwire-server.
//
// Hub manages a set of connected clients and broadcasts the breaking-news
// projection to all of them on a configurable interval. Clients receive the
// current list immediately on connect.
//
// Message format sent to clients:
//
//	{
//	  "event": "breaking",
//	  "data":  { /* same schema as GET /api/breaking */ }
//	}
//
// The upgrader accepts all origins; apply CORS restrictions at the reverse
// proxy level. The hub is mounted at /ws/breaking by the server.
package ws
