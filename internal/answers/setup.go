package answers

import (
	"log"

	"github.com/okayama-voice/opinion-map/internal/db"
	"github.com/okayama-voice/opinion-map/internal/middleware"
	"github.com/okayama-voice/opinion-map/internal/posts"
)

var (
	service           *Service
	regenerateLimiter *middleware.RateLimiter
)

// Init migrates the answer table and selects the provider. A misconfigured
// provider disables generation; stored answers are still served.
func Init(city string) *Service {
	if err := db.Migrate(db.DB, &AIResponse{}); err != nil {
		log.Fatal("Failed to migrate tables: ", err)
	}

	cfg := LoadFromEnv()
	provider, err := NewProvider(cfg)
	if err != nil {
		LogError(string(cfg.Provider), "init", err)
		provider = nil
	}

	regenerateLimiter = middleware.NewRateLimiterFromEnv("REGENERATE_RATE_LIMIT", 3, 2)
	service = &Service{
		Store:    GormStore{DB: db.DB},
		Posts:    posts.GormStore{DB: db.DB},
		Provider: provider,
		City:     city,
		Timeout:  cfg.Timeout,
	}
	return service
}
