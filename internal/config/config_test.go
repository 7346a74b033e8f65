package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okayama-voice/opinion-map/internal/config"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Municipality.CityHall.Lat != 34.6551466 || cfg.Municipality.CityHall.Lng != 133.9195016 {
		t.Errorf("unexpected city hall %+v", cfg.Municipality.CityHall)
	}
	if got := cfg.CategoryColor("交通・道路"); got != "#1f77b4" {
		t.Errorf("category color = %s", got)
	}
	if got := cfg.CategoryColor("存在しない"); got != "#cccccc" {
		t.Errorf("unknown category color = %s", got)
	}
}

func TestLoad_YAMLOverridesSubset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
municipality:
  name: 倉敷市
  prefecture: 岡山県
map:
  initial_zoom: 12
categories:
  - name: 観光
    color: "#123456"
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Municipality.Name != "倉敷市" || cfg.Map.InitialZoom != 12 {
		t.Errorf("override not applied: %+v", cfg)
	}
	if cfg.Map.MaxZoom != 19 || len(cfg.Tiers) != 3 {
		t.Errorf("defaults lost: max zoom %d, tiers %d", cfg.Map.MaxZoom, len(cfg.Tiers))
	}
	if len(cfg.Categories) != 1 || !cfg.HasCategory("観光") || cfg.HasCategory("地域経済") {
		t.Errorf("categories = %+v", cfg.Categories)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error")
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("CONFIG_PATH", "")
	t.Setenv("BOUNDARY_WARD_SOURCE", "https://example.jp/ward.geojson")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://map.example.jp, ,http://localhost:3000")

	cfg, err := config.LoadFromEnv()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ward, ok := cfg.Tier("ward")
	if !ok || ward.Source != "https://example.jp/ward.geojson" {
		t.Errorf("ward source = %q", ward.Source)
	}
	if city, _ := cfg.Tier("city"); city.Source != "data/oka_city.geojson" {
		t.Errorf("city source changed to %q", city.Source)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "http://localhost:3000" {
		t.Errorf("origins = %v", cfg.AllowedOrigins)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		target error
	}{
		{"missing municipality", func(c *config.Config) { c.Municipality.Name = " " }, config.ErrMissingMunicipality},
		{"no categories", func(c *config.Config) { c.Categories = nil }, config.ErrNoCategories},
		{"unknown tier", func(c *config.Config) { c.Tiers[0].Tier = "prefecture" }, nil},
		{"duplicate tier", func(c *config.Config) { c.Tiers[1].Tier = "city" }, nil},
		{"tier without source", func(c *config.Config) { c.Tiers[2].Source = "" }, nil},
		{"bad tier color", func(c *config.Config) { c.Tiers[0].Color = "blue" }, nil},
		{"bad category color", func(c *config.Config) { c.Categories[0].Color = "#12345" }, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.target != nil && !errors.Is(err, tt.target) {
				t.Errorf("expected %v, got %v", tt.target, err)
			}
		})
	}
}
