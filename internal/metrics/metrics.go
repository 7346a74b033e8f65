package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TierFeaturesLoaded = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opinionmap_tier_features",
		Help: "Boundary features kept per tier after municipality filtering",
	}, []string{"tier"})
	TierLoadFailuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_tier_load_failures_total",
		Help: "Boundary tier loads that failed",
	}, []string{"tier"})
	RegionResolutionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_region_resolutions_total",
		Help: "Region resolutions by outcome (resolved, unresolved)",
	}, []string{"outcome"})
	RegionCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_region_cache_total",
		Help: "Region cache lookups by result (hit, miss, error)",
	}, []string{"result"})
	PostsCreatedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_posts_created_total",
		Help: "Posts created, by whether a location was chosen",
	}, []string{"has_region"})
	RepliesCreatedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opinionmap_replies_created_total",
		Help: "Replies created",
	})
	LikesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "opinionmap_likes_total",
		Help: "Accepted likes",
	})
	AnswerRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_answer_requests_total",
		Help: "AI answer generations by provider and status",
	}, []string{"provider", "status"})
	AnswerDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "opinionmap_answer_duration_ms",
		Help:    "AI answer generation duration in milliseconds",
		Buckets: []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	}, []string{"provider"})
	RealtimeSubscribers = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "opinionmap_realtime_subscribers",
		Help: "Active realtime subscriptions per topic",
	}, []string{"topic"})
	RealtimeEventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_realtime_events_total",
		Help: "Change events published per topic",
	}, []string{"topic"})
	TierSwapsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "opinionmap_tier_swaps_total",
		Help: "Overlay swaps performed by viewport sessions, by attached tier",
	}, []string{"tier"})
)

func init() {
	prometheus.MustRegister(TierFeaturesLoaded)
	prometheus.MustRegister(TierLoadFailuresTotal)
	prometheus.MustRegister(RegionResolutionsTotal)
	prometheus.MustRegister(RegionCacheTotal)
	prometheus.MustRegister(PostsCreatedTotal)
	prometheus.MustRegister(RepliesCreatedTotal)
	prometheus.MustRegister(LikesTotal)
	prometheus.MustRegister(AnswerRequestsTotal)
	prometheus.MustRegister(AnswerDurationMs)
	prometheus.MustRegister(RealtimeSubscribers)
	prometheus.MustRegister(RealtimeEventsTotal)
	prometheus.MustRegister(TierSwapsTotal)
}

// Handler exposes the registered metrics for scraping at /metrics.
func Handler() http.Handler { return promhttp.Handler() }
