// Package connection implements a websocket client for a running inkwell
// backend.
//
// The client speaks the same framed protocol as an editor window: it sends
// router commands on the "message" channel and delivers every frame the
// backend pushes back. The inkwelld send command uses it to drive the
// backend from a terminal.
package connection
