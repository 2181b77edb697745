// Package protocol defines the JSON message shapes exchanged with clients
// over the persistent websocket connection.
package protocol
