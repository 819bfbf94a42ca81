package types

import "errors"

// Sentinel errors for priorauth operations.
var (
	// ErrUnknownOperator indicates a condition names an operator outside the
	// supported set. Evaluation degrades to PEND.
	ErrUnknownOperator = errors.New("unknown condition operator")

	// ErrComparison indicates a condition could not compare fact and value
	// (type mismatch or malformed container). Evaluation resolves to FAIL.
	ErrComparison = errors.New("condition comparison failed")

	// ErrCandidateNotFound indicates no candidate carries the requested id.
	ErrCandidateNotFound = errors.New("candidate rule not found")

	// ErrInvalidTransition indicates a review transition out of a terminal state.
	ErrInvalidTransition = errors.New("invalid review status transition")

	// ErrInvalidStatus indicates an unknown review status name.
	ErrInvalidStatus = errors.New("invalid review status")

	// ErrRegistryCorrupt indicates the persisted registry could not be parsed.
	ErrRegistryCorrupt = errors.New("registry document is corrupt")

	// ErrDuplicateCandidate indicates a candidate id is already registered.
	ErrDuplicateCandidate = errors.New("candidate rule already registered")

	// ErrInvalidRule indicates reviewer-supplied conditions failed validation.
	ErrInvalidRule = errors.New("invalid rule conditions")

	// ErrEmptyPolicyID indicates candidates were added without a policy id.
	ErrEmptyPolicyID = errors.New("policy id is required")
)
