// Package goban holds the shared vocabulary for the goban service: the
// session lifecycle states, stone colors, move kinds and the opaque
// board snapshots the server stores on behalf of its clients. The
// server never interprets board contents; all game rules live in the
// client.
package goban

const (
	// GCPProject is the project this runs in.
	GCPProject = "icco-cloud"

	// Service is the name of this service.
	Service = "goban"
)
