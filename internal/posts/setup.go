package posts

import (
	"log"
	"net/http"

	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/db"
	"github.com/okayama-voice/opinion-map/internal/middleware"
	"github.com/okayama-voice/opinion-map/internal/regions"
)

var handler *Handler

// Init migrates the post tables and builds the handler served by SetupRoutes.
func Init(cfg config.Config, resolver regions.Resolver, answers AnswerLookup, answerRoutes http.Handler) {
	if err := db.Migrate(db.DB, &Post{}, &Reply{}, &Like{}); err != nil {
		log.Fatal("Failed to migrate tables: ", err)
	}

	handler = &Handler{
		Store: GormStore{DB: db.DB},
		Placer: &Placer{
			Resolver: resolver,
			City:     cfg.Municipality.Name,
			CityHall: cfg.Municipality.CityHall,
		},
		Config:       cfg,
		Answers:      answers,
		AnswerRoutes: answerRoutes,
		Limiter:      middleware.NewRateLimiterFromEnv("RATE_LIMIT", 10, 5),
	}
}
