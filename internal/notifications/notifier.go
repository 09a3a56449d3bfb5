// Package notifications publishes interaction events to Redis channels for
// downstream consumers such as feeds and realtime gateways.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types published by the interaction subsystem.
const (
	EventReactionToggled = "reaction_toggled"
	EventBookmarkToggled = "bookmark_toggled"
	EventCommentCreated  = "comment_created"
	EventCommentDeleted  = "comment_deleted"
)

// InteractionEvent is the payload published on a post's interaction channel.
type InteractionEvent struct {
	Type      string    `json:"type"`
	PostID    uint      `json:"post_id"`
	CommentID uint      `json:"comment_id,omitempty"`
	MemberID  uint      `json:"member_id"`
	Active    *bool     `json:"active,omitempty"`
	Count     *int64    `json:"count,omitempty"`
	Mode      string    `json:"mode,omitempty"`
	At        time.Time `json:"at"`
}

// Notifier provides helpers to publish notifications into Redis channels
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier instance using the provided Redis client.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PostChannel returns the channel carrying a post's interaction events.
func PostChannel(postID uint) string {
	return fmt.Sprintf("interactions:post:%d", postID)
}

// PublishInteraction sends an event to the post's channel. A nil client is a no-op.
func (n *Notifier) PublishInteraction(ctx context.Context, event InteractionEvent) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if event.At.IsZero() {
		event.At = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return n.rdb.Publish(ctx, PostChannel(event.PostID), payload).Err()
}
