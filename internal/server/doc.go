// Package server provides the HTTP surface: the websocket audio
// ingestion endpoint and the monitoring/management API.
package server
