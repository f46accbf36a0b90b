package repo

import "context"

// PublisherRepo delivers formatted content to the target channel
type PublisherRepo interface {
	// SendText sends HTML text, splitting it if too long
	SendText(ctx context.Context, text string) error

	// SendPhoto sends a local photo with an HTML caption
	SendPhoto(ctx context.Context, path, caption string) error

	// SendReport sends HTML text like SendText; mirrors receive it as a titled post
	SendReport(ctx context.Context, title, text string) error
}
