package repo

import "context"

// SpamKeywordRepo is the learned spam keyword set.
// The keyword filter reads it; summary generation proposes additions.
type SpamKeywordRepo interface {
	// List returns all learned keywords (lowercase)
	List(ctx context.Context) ([]string, error)

	// Add merges keywords into the set, returns how many were new
	Add(ctx context.Context, keywords []string) (int, error)
}
