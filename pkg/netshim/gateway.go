// Package netshim owns the TCP edges of the proxy: the client listener,
// the per-client telnet sessions with their login flow, and the upstream
// mud connection. The shims never touch engine state directly; every
// crossing into the plugin world goes through the Gateway, whose
// implementation hops onto the dispatcher.
package netshim

import "github.com/bastionmud/bastion/pkg/records"

// Gateway is the proxy-side surface the network loops call into. Every
// method must be safe to call from shim goroutines.
type Gateway interface {
	// Banned reports whether an address may not connect. Checked at
	// accept time.
	Banned(addr string) bool

	// Passwords returns the live proxy passwords, normal then view-only.
	Passwords() (string, string)

	// ClientConnected registers a freshly accepted connection.
	ClientConnected(c *ClientConn)

	// ClientLoggedIn marks a connection authenticated.
	ClientLoggedIn(id string, viewOnly bool)

	// ClientBanned reports a connection that ran out of login attempts.
	ClientBanned(id string)

	// ClientDisconnected removes a connection whose read loop ended.
	ClientDisconnected(id string)

	// ClientLine hands one authenticated input line to the pipeline.
	ClientLine(id, line string)

	// MudDisconnected reports that the upstream connection ended.
	MudDisconnected(err error)

	// MudLine hands one complete upstream line, text or telnet frame, to
	// the pipeline.
	MudLine(l *records.Line)
}
