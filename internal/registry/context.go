package registry

import "context"

type contextKey string

const reviewerKey = contextKey("reviewer")

// WithReviewer attaches the identity performing a review to ctx.
// SQLStore records it on the transition log.
func WithReviewer(ctx context.Context, reviewer string) context.Context {
	return context.WithValue(ctx, reviewerKey, reviewer)
}

// ReviewerFromContext returns the reviewer attached to ctx or "".
func ReviewerFromContext(ctx context.Context) string {
	if reviewer, ok := ctx.Value(reviewerKey).(string); ok {
		return reviewer
	}
	return ""
}
