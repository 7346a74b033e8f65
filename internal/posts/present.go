package posts

import (
	"math/rand"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/regions"
)

// CityWideLabel is shown for posts that carry no region at all.
const CityWideLabel = "（市全体への意見）"

// Uncategorized is shown for posts without a category.
const Uncategorized = "未分類"

// EmptyListMessage is shown when the sidebar has nothing to list.
const EmptyListMessage = "投稿がありません"

const excerptRunes = 80

// RegionLabel joins the stored region parts of a post with single spaces.
func RegionLabel(p Post) string {
	if label := regions.JoinLabel(deref(p.CityName), deref(p.WardName), deref(p.ChomeName)); label != "" {
		return label
	}
	return CityWideLabel
}

// Marker is the map pin of a post.
type Marker struct {
	ID       int64   `json:"id"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Color    string  `json:"color"`
	Category string  `json:"category"`
}

// Markers builds the pins of posts. Posts stored without coordinates are
// scattered around the map's marker base point.
func Markers(list []Post, cfg config.Config, jitter func() float64) []Marker {
	if jitter == nil {
		jitter = rand.Float64
	}
	spread := func() float64 { return (jitter() - 0.5) * 2 * markerJitter }

	out := make([]Marker, 0, len(list))
	for _, p := range list {
		m := Marker{ID: p.ID, Color: cfg.CategoryColor(p.Category), Category: p.Category}
		if p.Lat == nil || p.Lng == nil || *p.Lat == 0 || *p.Lng == 0 {
			m.Lat = cfg.Map.MarkerBase.Lat + spread()
			m.Lng = cfg.Map.MarkerBase.Lng + spread()
		} else {
			m.Lat, m.Lng = *p.Lat, *p.Lng
		}
		out = append(out, m)
	}
	return out
}

// Sort orders of the sidebar.
const (
	SortNewest   = "newest"
	SortLikes    = "likes"
	SortComments = "comments"
)

// AllCategories disables the category filter.
const AllCategories = "all"

// SidebarItem is one row of the sidebar list.
type SidebarItem struct {
	ID            int64     `json:"id"`
	Category      string    `json:"category"`
	Color         string    `json:"color"`
	Excerpt       string    `json:"excerpt"`
	Likes         int       `json:"likes"`
	CommentsCount int       `json:"comments_count"`
	Lat           *float64  `json:"lat"`
	Lng           *float64  `json:"lng"`
	Region        string    `json:"region"`
	CreatedAt     time.Time `json:"created_at"`
}

// Sidebar is the filtered and sorted post list.
type Sidebar struct {
	Items   []SidebarItem `json:"items"`
	Empty   bool          `json:"empty"`
	Message string        `json:"message,omitempty"`
}

// Excerpt returns the first 80 characters of content, with an ellipsis when
// anything was cut.
func Excerpt(content string) string {
	if utf8.RuneCountInString(content) <= excerptRunes {
		return content
	}
	runes := []rune(content)
	return string(runes[:excerptRunes]) + "…"
}

// ParseCategories splits a comma-separated category filter. An empty result
// means every category; "all" is dropped.
func ParseCategories(raw string) []string {
	var out []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" && c != AllCategories {
			out = append(out, c)
		}
	}
	return out
}

// BuildSidebar filters list by category and orders it. category is a single
// name, "all", or a comma-separated list. Unknown sort values fall back to
// newest first; ties keep their incoming order.
func BuildSidebar(list []Post, category, order string, cfg config.Config) Sidebar {
	wanted := make(map[string]bool)
	for _, c := range ParseCategories(category) {
		wanted[c] = true
	}
	filtered := make([]Post, 0, len(list))
	for _, p := range list {
		if len(wanted) > 0 && !wanted[p.Category] {
			continue
		}
		filtered = append(filtered, p)
	}

	switch order {
	case SortLikes:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].Likes > filtered[j].Likes })
	case SortComments:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CommentsCount > filtered[j].CommentsCount })
	default:
		sort.SliceStable(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })
	}

	sb := Sidebar{Items: make([]SidebarItem, 0, len(filtered))}
	for _, p := range filtered {
		cat := p.Category
		if strings.TrimSpace(cat) == "" {
			cat = Uncategorized
		}
		sb.Items = append(sb.Items, SidebarItem{
			ID:            p.ID,
			Category:      cat,
			Color:         cfg.CategoryColor(p.Category),
			Excerpt:       Excerpt(p.Content),
			Likes:         p.Likes,
			CommentsCount: p.CommentsCount,
			Lat:           p.Lat,
			Lng:           p.Lng,
			Region:        RegionLabel(p),
			CreatedAt:     p.CreatedAt,
		})
	}
	if len(sb.Items) == 0 {
		sb.Empty = true
		sb.Message = EmptyListMessage
	}
	return sb
}
