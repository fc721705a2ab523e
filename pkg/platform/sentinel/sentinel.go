package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and infrastructure layers return
// these (optionally wrapped) so services can translate them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: entity does not exist in the collection
// - ErrAlreadyUsed: an identifier is already taken by another member
// - ErrUnavailable: an optional backend (redis, kafka) is not reachable
// - ErrCapacity: a bounded resource (connection registry) is full
//
// For validation errors (bad input, missing fields), use pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrAlreadyUsed = errors.New("already used")
	ErrUnavailable = errors.New("unavailable")
	ErrCapacity    = errors.New("capacity reached")
)
