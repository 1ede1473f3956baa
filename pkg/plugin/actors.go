package plugin

import "strings"

// clientActorPrefix marks actors that are client connections rather than
// plugin code. The settings engine uses it to enforce read-only
// settings.
const clientActorPrefix = "client:"

// ClientActor returns the actor string for a client connection.
func ClientActor(clientID string) string {
	return clientActorPrefix + clientID
}

// IsClientActor reports whether the actor string names a client
// connection.
func IsClientActor(actor string) bool {
	return strings.HasPrefix(actor, clientActorPrefix)
}

// ClientFromActor extracts the client id from a client actor string.
// The second return is false for plugin actors.
func ClientFromActor(actor string) (string, bool) {
	if !IsClientActor(actor) {
		return "", false
	}
	return strings.TrimPrefix(actor, clientActorPrefix), true
}
