package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Caches and upstream clients return
// these (optionally wrapped) so services can translate them into domain errors.
//
// - ErrUnavailable: no usable data could be produced right now
// - ErrNotFound: the upstream has no answer for the query
// - ErrCircuitOpen: calls to an upstream are suspended after repeated failures
var (
	ErrUnavailable = errors.New("unavailable")
	ErrNotFound    = errors.New("not found")
	ErrCircuitOpen = errors.New("circuit open")
)
