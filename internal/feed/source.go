package feed

import (
	"context"

	"github.com/LeonardoBeccarini/crop_advisor/internal/model/messages"
)

// Handler receives the partial updates of one path. Sources may call it from
// their own goroutines.
type Handler func(messages.FeedUpdate)

// Source is an explicitly constructed data-feed client.
type Source interface {
	// Connect establishes the upstream connection.
	Connect(ctx context.Context) error
	// Subscribe starts delivering the updates of path to h; it returns once the
	// subscription is in place.
	Subscribe(path string, h Handler) error
	Unsubscribe(path string) error
	Connected() bool
	Close()
}
