// Package config holds the municipality, map and category settings of an
// opinion map deployment. Defaults target Okayama City; a YAML file named by
// CONFIG_PATH overrides any subset of them.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-yaml"
)

// Common errors
var (
	ErrMissingMunicipality = errors.New("municipality.name is required")
	ErrNoCategories        = errors.New("at least one category is required")
)

// LatLng is a WGS84 coordinate in lat/lng order, as the map client uses it.
type LatLng struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lng float64 `yaml:"lng" json:"lng"`
}

// Municipality identifies the city whose boundaries are kept at load time.
type Municipality struct {
	Name       string `yaml:"name" json:"name"`
	Prefecture string `yaml:"prefecture" json:"prefecture"`
	// CityHall is where posts without a chosen location are placed.
	CityHall LatLng `yaml:"city_hall" json:"city_hall"`
}

// MapConfig describes the initial viewport handed to the client.
type MapConfig struct {
	Center      LatLng `yaml:"center" json:"center"`
	InitialZoom int    `yaml:"initial_zoom" json:"initial_zoom"`
	MaxZoom     int    `yaml:"max_zoom" json:"max_zoom"`
	// MarkerBase is used for stored posts that lack coordinates.
	MarkerBase LatLng `yaml:"marker_base" json:"marker_base"`
	TileURL    string `yaml:"tile_url" json:"tile_url"`
}

// TierConfig points a boundary tier at its dataset.
type TierConfig struct {
	Tier      string `yaml:"tier" json:"tier"` // city, ward or neighborhood
	Source    string `yaml:"source" json:"-"`  // http(s) URL or file path
	NameField string `yaml:"name_field" json:"name_field"`
	Color     string `yaml:"color" json:"color"`
}

// Category is a post category with its marker color.
type Category struct {
	Name  string `yaml:"name" json:"name"`
	Color string `yaml:"color" json:"color"`
}

// Config is the full deployment configuration.
type Config struct {
	Municipality   Municipality `yaml:"municipality"`
	Map            MapConfig    `yaml:"map"`
	Tiers          []TierConfig `yaml:"tiers"`
	Categories     []Category   `yaml:"categories"`
	AgeGroups      []string     `yaml:"age_groups"`
	Genders        []string     `yaml:"genders"`
	AllowedOrigins []string     `yaml:"allowed_origins"`
}

// Default returns the built-in Okayama City configuration.
func Default() Config {
	return Config{
		Municipality: Municipality{
			Name:       "岡山市",
			Prefecture: "岡山県",
			CityHall:   LatLng{Lat: 34.6551466, Lng: 133.9195016},
		},
		Map: MapConfig{
			Center:      LatLng{Lat: 34.66175, Lng: 133.9346},
			InitialZoom: 11,
			MaxZoom:     19,
			MarkerBase:  LatLng{Lat: 34.6617, Lng: 133.9350},
			TileURL:     "https://{s}.tile.openstreetmap.org/{z}/{x}/{y}.png",
		},
		Tiers: []TierConfig{
			{Tier: "city", Source: "data/oka_city.geojson", NameField: "N03_004", Color: "#0055cc"},
			{Tier: "ward", Source: "data/oka_ward.geojson", NameField: "N03_005", Color: "#009966"},
			{Tier: "neighborhood", Source: "data/oka_chome.geojson", NameField: "S_NAME", Color: "#66cc66"},
		},
		Categories: []Category{
			{Name: "地域経済", Color: "#ff7f0e"},
			{Name: "交通・道路", Color: "#1f77b4"},
			{Name: "子育て・教育・高齢者福祉", Color: "#2ca02c"},
			{Name: "若者支援・雇用", Color: "#9467bd"},
			{Name: "医療・健康", Color: "#d62728"},
			{Name: "自然・環境", Color: "#17becf"},
			{Name: "防災・安全", Color: "#bcbd22"},
			{Name: "行政・政治改革", Color: "#8c564b"},
			{Name: "その他", Color: "#7f7f7f"},
		},
		AgeGroups: []string{"10代未満", "10代", "20代", "30代", "40代", "50代", "60代", "70代以上", "未回答"},
		Genders:   []string{"男性", "女性", "その他", "未回答"},
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:8080",
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadFromEnv loads the configuration file and applies environment overrides.
//
// Environment variables:
//   - CONFIG_PATH: YAML file to read (default: none, built-in defaults)
//   - BOUNDARY_CITY_SOURCE, BOUNDARY_WARD_SOURCE, BOUNDARY_NEIGHBORHOOD_SOURCE: dataset locations
//   - CORS_ALLOWED_ORIGINS: comma-separated origin allow-list
func LoadFromEnv() (Config, error) {
	cfg, err := Load(strings.TrimSpace(os.Getenv("CONFIG_PATH")))
	if err != nil {
		return cfg, err
	}

	for i := range cfg.Tiers {
		key := "BOUNDARY_" + strings.ToUpper(cfg.Tiers[i].Tier) + "_SOURCE"
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			cfg.Tiers[i].Source = v
		}
	}

	if v := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); v != "" {
		var origins []string
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		cfg.AllowedOrigins = origins
	}

	return cfg, cfg.Validate()
}

var colorRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// Validate checks that the configuration can drive a map session.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Municipality.Name) == "" {
		return ErrMissingMunicipality
	}

	seen := make(map[string]bool)
	for _, t := range c.Tiers {
		switch t.Tier {
		case "city", "ward", "neighborhood":
		default:
			return fmt.Errorf("unknown tier %q", t.Tier)
		}
		if seen[t.Tier] {
			return fmt.Errorf("tier %q configured twice", t.Tier)
		}
		seen[t.Tier] = true
		if t.Source == "" {
			return fmt.Errorf("tier %q has no source", t.Tier)
		}
		if !colorRe.MatchString(t.Color) {
			return fmt.Errorf("tier %q has invalid color %q", t.Tier, t.Color)
		}
	}

	if len(c.Categories) == 0 {
		return ErrNoCategories
	}
	for _, cat := range c.Categories {
		if !colorRe.MatchString(cat.Color) {
			return fmt.Errorf("category %q has invalid color %q", cat.Name, cat.Color)
		}
	}
	return nil
}

// Tier returns the configuration of the named tier.
func (c Config) Tier(name string) (TierConfig, bool) {
	for _, t := range c.Tiers {
		if t.Tier == name {
			return t, true
		}
	}
	return TierConfig{}, false
}

// CategoryColor returns the marker color of a category, or #cccccc for unknown ones.
func (c Config) CategoryColor(name string) string {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return cat.Color
		}
	}
	return "#cccccc"
}

// HasCategory reports whether name is a configured category.
func (c Config) HasCategory(name string) bool {
	for _, cat := range c.Categories {
		if cat.Name == name {
			return true
		}
	}
	return false
}
