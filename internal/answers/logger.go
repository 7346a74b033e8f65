package answers

import (
	"time"

	"github.com/okayama-voice/opinion-map/internal/logger"
)

// LogRequest logs an answer request being made.
func LogRequest(provider string, postID int64, region string) {
	logger.For("answers").Info("answer request", "provider", provider, "post_id", postID, "region", region)
}

// LogResponse logs an answer received.
func LogResponse(provider string, postID int64, duration time.Duration, sources int) {
	logger.For("answers").Info("answer response", "provider", provider, "post_id", postID,
		"duration_ms", duration.Milliseconds(), "sources", sources)
}

// LogError logs an error from an answer operation.
func LogError(provider, operation string, err error) {
	logger.For("answers").Error(operation+" error", "provider", provider, "err", err)
}
