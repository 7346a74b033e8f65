package mapview_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/mapview"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/paulmach/orb"
)

func square(minX, minY, maxX, maxY float64) orb.Polygon {
	return orb.Polygon{{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY}}}
}

func newServer(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.Default()
	idx := regions.NewIndex(regions.Municipality{Name: cfg.Municipality.Name, Prefecture: cfg.Municipality.Prefecture})
	idx.Install(regions.TierWard, "N03_005", "#009966", []regions.Feature{{
		Geometry:   square(133.8, 34.6, 134.0, 34.8),
		Properties: map[string]string{"N03_004": "岡山市", "N03_005": "北区"},
	}})
	idx.Install(regions.TierNeighborhood, "S_NAME", "#66cc66", []regions.Feature{{
		Geometry:   square(133.91, 34.65, 133.93, 34.67),
		Properties: map[string]string{"CITY_NAME": "岡山市", "N03_005": "北区", "S_NAME": "大供"},
	}})

	h := &mapview.Handler{Config: cfg, Index: idx, Resolver: idx}
	r := chi.NewRouter()
	r.Mount("/config", h.ConfigRoutes())
	r.Mount("/regions", h.RegionRoutes())
	return r
}

func do(t *testing.T, srv http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestMapConfig(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/config/map", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var out struct {
		Center      config.LatLng `json:"center"`
		InitialZoom int           `json:"initial_zoom"`
		MaxZoom     int           `json:"max_zoom"`
		Tiers       []struct {
			Tier    string `json:"tier"`
			MinZoom int    `json:"min_zoom"`
			MaxZoom int    `json:"max_zoom"`
			Color   string `json:"color"`
		} `json:"tiers"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out.Center.Lat != 34.66175 || out.Center.Lng != 133.9346 || out.InitialZoom != 11 || out.MaxZoom != 19 {
		t.Errorf("unexpected viewport %+v", out)
	}
	want := []struct {
		tier     string
		min, max int
		color    string
	}{
		{"city", 0, 11, "#0055cc"},
		{"ward", 12, 13, "#009966"},
		{"neighborhood", 14, 19, "#66cc66"},
	}
	if len(out.Tiers) != len(want) {
		t.Fatalf("expected %d tiers, got %d", len(want), len(out.Tiers))
	}
	for i, w := range want {
		got := out.Tiers[i]
		if got.Tier != w.tier || got.MinZoom != w.min || got.MaxZoom != w.max || got.Color != w.color {
			t.Errorf("tier %d = %+v, want %+v", i, got, w)
		}
	}
}

func TestCategories(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/config/categories", "")
	var cats []config.Category
	if err := json.NewDecoder(rec.Body).Decode(&cats); err != nil {
		t.Fatal(err)
	}
	if len(cats) != 9 || cats[0].Name != "地域経済" || cats[8].Color != "#7f7f7f" {
		t.Errorf("unexpected categories %+v", cats)
	}
}

func TestOverlayForZoom(t *testing.T) {
	tests := []struct {
		query    string
		code     int
		tier     string
		features int
	}{
		{"", http.StatusOK, "city", 0},
		{"?zoom=12", http.StatusOK, "ward", 1},
		{"?zoom=15", http.StatusOK, "neighborhood", 1},
		{"?zoom=40", http.StatusOK, "neighborhood", 1},
		{"?zoom=abc", http.StatusBadRequest, "", 0},
	}
	srv := newServer(t)
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/regions/overlay"+tt.query, "")
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var out struct {
				Tier    string `json:"tier"`
				Overlay struct {
					Features []json.RawMessage `json:"features"`
				} `json:"overlay"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Tier != tt.tier || len(out.Overlay.Features) != tt.features {
				t.Errorf("got tier %s with %d features", out.Tier, len(out.Overlay.Features))
			}
		})
	}
}

func TestOverlayByTier(t *testing.T) {
	srv := newServer(t)
	if rec := do(t, srv, http.MethodGet, "/regions/ward", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	if rec := do(t, srv, http.MethodGet, "/regions/prefecture", ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		code     int
		resolved bool
		label    string
	}{
		{"inside", `{"lat":34.66,"lng":133.92}`, http.StatusOK, true, "投稿先：岡山市 北区 大供"},
		{"outside", `{"lat":35.0,"lng":135.0}`, http.StatusOK, false, "投稿先：(35.0000, 135.0000)"},
		{"missing lng", `{"lat":34.66}`, http.StatusBadRequest, false, ""},
		{"out of range", `{"lat":91,"lng":0}`, http.StatusBadRequest, false, ""},
	}
	srv := newServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodPost, "/regions/resolve", tt.body)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			var out struct {
				Resolved bool            `json:"resolved"`
				Region   *regions.Region `json:"region"`
				Label    string          `json:"label"`
			}
			if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
				t.Fatal(err)
			}
			if out.Resolved != tt.resolved || out.Label != tt.label {
				t.Errorf("got resolved=%v label=%q", out.Resolved, out.Label)
			}
			if out.Resolved != (out.Region != nil) {
				t.Errorf("region presence does not match resolved flag")
			}
		})
	}
}

func TestTargetLabel_CityOnlyUsesCoordinate(t *testing.T) {
	got := mapview.TargetLabel(regions.Region{City: "岡山市"}, true, orb.Point{133.91951, 34.65515})
	if got != "投稿先：(34.6551, 133.9195)" {
		t.Errorf("got %q", got)
	}
}

func TestStatus(t *testing.T) {
	rec := do(t, newServer(t), http.MethodGet, "/regions/status", "")
	var out []regions.TierStatus
	if err := json.NewDecoder(rec.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if len(out) != 3 || out[0].Features != 0 || out[1].Features != 1 || out[2].Features != 1 {
		t.Errorf("unexpected status %+v", out)
	}
}

func TestThresholdsCoverEveryZoom(t *testing.T) {
	th := mapview.Thresholds(config.Default())
	if len(th) != 3 {
		t.Fatalf("expected 3 thresholds, got %d", len(th))
	}
	for i := 1; i < len(th); i++ {
		if th[i].MinZoom != th[i-1].MaxZoom+1 {
			t.Errorf("gap between %v and %v", th[i-1], th[i])
		}
	}
	if th[0].Tier != regions.TierCity || th[2].MaxZoom != 19 {
		t.Errorf("unexpected thresholds %+v", th)
	}
}
