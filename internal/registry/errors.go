package registry

import (
	"errors"
	"fmt"

	"github.com/solatis/priorauth/internal/types"
)

// TransitionError reports a review transition the lifecycle does not allow.
// It matches types.ErrInvalidTransition under errors.Is.
type TransitionError struct {
	CandidateID string
	From        types.ReviewStatus
	To          types.ReviewStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("candidate %s: %s -> %s: %v", e.CandidateID, e.From, e.To, types.ErrInvalidTransition)
}

func (e *TransitionError) Unwrap() error {
	return types.ErrInvalidTransition
}

func notFound(candidateID string) error {
	return fmt.Errorf("%w: %s", types.ErrCandidateNotFound, candidateID)
}

// IsSkippable reports whether a review error concerns only the candidate
// at hand (unknown id or terminal state), so a batch may continue.
func IsSkippable(err error) bool {
	return errors.Is(err, types.ErrCandidateNotFound) || errors.Is(err, types.ErrInvalidTransition)
}
