// Package timeout defines centralized timeout constants for AI-backed operations.
// Package timeout 定义 AI 相关操作的集中式超时常量。
package timeout

import "time"

const (
	// EmbeddingTimeout is the timeout for a single embedding request.
	// EmbeddingTimeout 是单次向量生成请求的超时时间。
	EmbeddingTimeout = 30 * time.Second

	// RecommendationTimeout bounds a recommendation request end to end.
	// RecommendationTimeout 是推荐请求的整体超时时间。
	RecommendationTimeout = 5 * time.Second

	// FeedbackBackoff is the pause between taste vector write attempts after a version conflict.
	// FeedbackBackoff 是版本冲突后两次写入尝试之间的等待时间。
	FeedbackBackoff = 50 * time.Millisecond

	// EmbeddingRunnerInterval is how often the content embedding runner looks for new content.
	EmbeddingRunnerInterval = 2 * time.Minute
)
