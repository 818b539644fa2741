package posegraph

import "errors"

var (
	// ErrSynchronization is returned when no timestamp pair falls within tolerance
	ErrSynchronization = errors.New("no synchronizable node pairs")

	// ErrDimensionMismatch is returned when a basis and a signal disagree on node count
	ErrDimensionMismatch = errors.New("dimension mismatch")

	// ErrIdentityConflict is returned when a verification batch receives a second robot
	ErrIdentityConflict = errors.New("identity conflict")

	// ErrMalformedInput is returned for missing or empty payloads
	ErrMalformedInput = errors.New("malformed input")

	// ErrGraphNotReady is returned when a tick needs a graph or signal that has not arrived yet
	ErrGraphNotReady = errors.New("graph not ready")

	// ErrNotConnected is returned when publishing without a broker connection
	ErrNotConnected = errors.New("MQTT client not connected")
)
