package session

import (
	"context"
	"time"

	"github.com/jerry88277/meetchi/internal/api"
)

const heartbeatInterval = 25 * time.Second

// runHeartbeat sends a {type: ping} message every 25s until ctx is
// cancelled, defeating intermediary idle-close timeouts. It is a detached
// cooperative task and must terminate no later than session close — the
// caller cancels ctx from Coordinator.Run's cleanup.
func runHeartbeat(ctx context.Context, send func(*api.Message) error) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := send(&api.Message{Type: api.TypePing}); err != nil {
				return
			}
		}
	}
}
