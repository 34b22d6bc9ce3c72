// Package transport carries messages between UI windows and the backend.
//
// Each UI window holds one websocket connection to the local server. Traffic
// in both directions is wrapped in a frame naming a channel:
//
//	{"channel": "message", "payload": {...}}
//
// The Hub keeps the set of connected windows and a table of channel
// listeners. A channel has at most one listener. Outbound frames go to the
// active window, which is the window that most recently connected or sent
// a frame.
//
// Server exposes the hub over HTTP with gin: GET /ws upgrades to a websocket
// and GET /health reports status.
package transport
