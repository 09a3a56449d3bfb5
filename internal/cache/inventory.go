package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const PostCountsKeyPrefix = "post:%d:interaction_counts"

const PostCountsTTL = 5 * time.Minute

// generationTTL outlives every entry a generation guards.
const generationTTL = 24 * time.Hour

// PostCountsKey holds the like and bookmark totals of a post.
func PostCountsKey(postID uint) string {
	return fmt.Sprintf(PostCountsKeyPrefix, postID)
}

// PostCountsGenerationKey is bumped on every invalidation of PostCountsKey.
func PostCountsGenerationKey(postID uint) string {
	return PostCountsKey(postID) + ":gen"
}

// InvalidatePostCounts drops the cached interaction totals of a post and bumps
// their generation so in-flight recomputations do not write them back.
func InvalidatePostCounts(ctx context.Context, postID uint) {
	InvalidateGuarded(ctx, PostCountsKey(postID), PostCountsGenerationKey(postID))
}

// InvalidateGuarded bumps guard and deletes key in one transaction.
func InvalidateGuarded(ctx context.Context, key, guard string) {
	if client == nil {
		return
	}
	_, _ = client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, guard)
		pipe.Expire(ctx, guard, generationTTL)
		pipe.Del(ctx, key)
		return nil
	})
}
