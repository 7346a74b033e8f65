// Package mapview serves the map configuration and the boundary overlays
// the client renders.
package mapview

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/okayama-voice/opinion-map/internal/viewport"
	"github.com/paulmach/orb"
)

// Handler serves /config and /regions.
type Handler struct {
	Config   config.Config
	Index    *regions.Index
	Resolver regions.Resolver
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Categories returns the category palette in display order.
func (h *Handler) Categories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Config.Categories)
}

// TierThreshold is the zoom range over which a tier is shown.
type TierThreshold struct {
	Tier    regions.Tier `json:"tier"`
	MinZoom int          `json:"min_zoom"`
	MaxZoom int          `json:"max_zoom"`
	Color   string       `json:"color"`
}

type mapConfigOut struct {
	Center      config.LatLng   `json:"center"`
	InitialZoom int             `json:"initial_zoom"`
	MaxZoom     int             `json:"max_zoom"`
	TileURL     string          `json:"tile_url"`
	CityHall    config.LatLng   `json:"city_hall"`
	Tiers       []TierThreshold `json:"tiers"`
	AgeGroups   []string        `json:"age_groups"`
	Genders     []string        `json:"genders"`
}

// Thresholds lists the zoom range over which each tier is shown.
func Thresholds(cfg config.Config) []TierThreshold {
	ranges := map[regions.Tier][2]int{
		regions.TierCity:         {viewport.MinZoom, viewport.CityMaxZoom},
		regions.TierWard:         {viewport.CityMaxZoom + 1, viewport.WardMaxZoom},
		regions.TierNeighborhood: {viewport.WardMaxZoom + 1, viewport.MaxZoom},
	}
	out := make([]TierThreshold, 0, len(regions.AllTiers))
	for _, t := range regions.AllTiers {
		tc, _ := cfg.Tier(t.String())
		rg := ranges[t]
		out = append(out, TierThreshold{Tier: t, MinZoom: rg[0], MaxZoom: rg[1], Color: tc.Color})
	}
	return out
}

// MapConfig returns the initial viewport and tier thresholds.
func (h *Handler) MapConfig(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, mapConfigOut{
		Center:      h.Config.Map.Center,
		InitialZoom: h.Config.Map.InitialZoom,
		MaxZoom:     h.Config.Map.MaxZoom,
		TileURL:     h.Config.Map.TileURL,
		CityHall:    h.Config.Municipality.CityHall,
		Tiers:       Thresholds(h.Config),
		AgeGroups:   h.Config.AgeGroups,
		Genders:     h.Config.Genders,
	})
}

// Overlay returns the FeatureCollection of one tier.
func (h *Handler) Overlay(w http.ResponseWriter, r *http.Request) {
	t, err := regions.ParseTier(chi.URLParam(r, "tier"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, h.Index.FeatureCollection(t))
}

type zoomOverlayOut struct {
	Zoom    int          `json:"zoom"`
	Tier    regions.Tier `json:"tier"`
	Overlay interface{}  `json:"overlay"`
}

// OverlayForZoom picks the tier for ?zoom=N and returns it with its overlay.
// A missing zoom means the initial zoom.
func (h *Handler) OverlayForZoom(w http.ResponseWriter, r *http.Request) {
	zoom := h.Config.Map.InitialZoom
	if v := r.URL.Query().Get("zoom"); v != "" {
		z, err := strconv.Atoi(v)
		if err != nil {
			http.Error(w, "invalid zoom", http.StatusBadRequest)
			return
		}
		zoom = z
	}
	zoom = viewport.Clamp(zoom)
	t := viewport.TierFor(zoom)
	writeJSON(w, http.StatusOK, zoomOverlayOut{Zoom: zoom, Tier: t, Overlay: h.Index.FeatureCollection(t)})
}

// Status reports feature counts and load errors per tier.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.Index.Status())
}

type resolveIn struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

type resolveOut struct {
	Resolved bool            `json:"resolved"`
	Region   *regions.Region `json:"region,omitempty"`
	Label    string          `json:"label"`
}

// TargetLabel is the "投稿先" line shown while composing a post. It names
// the region when a ward or neighborhood is known and otherwise falls back
// to the coordinate at four decimals.
func TargetLabel(reg regions.Region, resolved bool, pt orb.Point) string {
	if resolved && (reg.Ward != "" || reg.Neighborhood != "") {
		return "投稿先：" + reg.Label()
	}
	return fmt.Sprintf("投稿先：(%.4f, %.4f)", pt.Lat(), pt.Lon())
}

// Resolve labels a coordinate the way a new post at that point would be tagged.
func (h *Handler) Resolve(w http.ResponseWriter, r *http.Request) {
	var in resolveIn
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Lat == nil || in.Lng == nil {
		http.Error(w, "lat and lng are required", http.StatusBadRequest)
		return
	}
	if *in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180 {
		http.Error(w, "coordinate out of range", http.StatusBadRequest)
		return
	}

	pt := orb.Point{*in.Lng, *in.Lat}
	reg, ok := h.Resolver.Resolve(pt)
	out := resolveOut{Resolved: ok, Label: TargetLabel(reg, ok, pt)}
	if ok {
		out.Region = &reg
	}
	logger.For("mapview").Debug("resolve", "lat", *in.Lat, "lng", *in.Lng, "resolved", ok)
	writeJSON(w, http.StatusOK, out)
}

// ConfigRoutes mounts under /config.
func (h *Handler) ConfigRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/categories", h.Categories)
	r.Get("/map", h.MapConfig)
	return r
}

// RegionRoutes mounts under /regions.
func (h *Handler) RegionRoutes() http.Handler {
	r := chi.NewRouter()
	r.Get("/status", h.Status)
	r.Get("/overlay", h.OverlayForZoom)
	r.Post("/resolve", h.Resolve)
	r.Get("/{tier}", h.Overlay)
	return r
}
