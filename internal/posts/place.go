package posts

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"unicode/utf8"

	"github.com/okayama-voice/opinion-map/internal/config"
	"github.com/okayama-voice/opinion-map/internal/regions"
	"github.com/paulmach/orb"
)

// Common errors
var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotFound     = errors.New("post not found")
	ErrAlreadyLiked = errors.New("already liked")
)

// Field limits.
const (
	MaxDisplayName  = 50
	MaxContent      = 2000
	MaxReplyName    = 50
	MaxReplyContent = 500
)

// Unanswered is stored for age group and gender when the poster skips them.
const Unanswered = "未回答"

const (
	cityHallJitter = 0.00015
	markerJitter   = 0.0005
)

// NewPost is a post as submitted by the client. Lat and Lng are nil when the
// poster did not pick a location.
type NewPost struct {
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	DisplayName string   `json:"display_name"`
	Content     string   `json:"content"`
	Category    string   `json:"category"`
	AgeGroup    string   `json:"age_group"`
	Gender      string   `json:"gender"`
}

// NewReply is a reply as submitted by the client.
type NewReply struct {
	DisplayName string `json:"display_name"`
	Content     string `json:"content"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

func checkLength(field, v string, max int) error {
	if v == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(v) > max {
		return invalid("%s must be at most %d characters", field, max)
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if a == v {
			return true
		}
	}
	return false
}

// Validate trims the submission, fills the unanswered defaults and checks it
// against the configured categories and attribute lists.
func (in *NewPost) Validate(cfg config.Config) error {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Content = strings.TrimSpace(in.Content)
	in.Category = strings.TrimSpace(in.Category)
	in.AgeGroup = strings.TrimSpace(in.AgeGroup)
	in.Gender = strings.TrimSpace(in.Gender)
	if in.AgeGroup == "" {
		in.AgeGroup = Unanswered
	}
	if in.Gender == "" {
		in.Gender = Unanswered
	}

	if err := checkLength("display_name", in.DisplayName, MaxDisplayName); err != nil {
		return err
	}
	if err := checkLength("content", in.Content, MaxContent); err != nil {
		return err
	}
	if !cfg.HasCategory(in.Category) {
		return invalid("unknown category %q", in.Category)
	}
	if in.AgeGroup != Unanswered && !oneOf(in.AgeGroup, cfg.AgeGroups) {
		return invalid("unknown age_group %q", in.AgeGroup)
	}
	if in.Gender != Unanswered && !oneOf(in.Gender, cfg.Genders) {
		return invalid("unknown gender %q", in.Gender)
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		return invalid("lat and lng must be given together")
	}
	if in.Lat != nil && (*in.Lat < -90 || *in.Lat > 90 || *in.Lng < -180 || *in.Lng > 180) {
		return invalid("coordinate out of range")
	}
	return nil
}

// Validate trims the reply and checks its lengths.
func (in *NewReply) Validate() error {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Content = strings.TrimSpace(in.Content)
	if err := checkLength("display_name", in.DisplayName, MaxReplyName); err != nil {
		return err
	}
	return checkLength("content", in.Content, MaxReplyContent)
}

// Placer turns a validated submission into a post with coordinates and
// region tags.
type Placer struct {
	Resolver regions.Resolver
	// City is stored when the coordinate resolves to no neighborhood, or
	// when no coordinate was given.
	City     string
	CityHall config.LatLng
	// Jitter returns a value in [0, 1). Defaults to math/rand.
	Jitter func() float64
}

func (p *Placer) jitter(spread float64) float64 {
	f := p.Jitter
	if f == nil {
		f = rand.Float64
	}
	return (f() - 0.5) * 2 * spread
}

// Place builds the post to insert. A chosen coordinate is tagged with the
// region that contains it; without one the post is scattered around city
// hall and flagged as a city-wide opinion.
func (p *Placer) Place(in NewPost) Post {
	post := Post{
		DisplayName: in.DisplayName,
		Content:     in.Content,
		Category:    in.Category,
		AgeGroup:    in.AgeGroup,
		Gender:      in.Gender,
	}

	if in.Lat == nil || in.Lng == nil {
		lat := p.CityHall.Lat + p.jitter(cityHallJitter)
		lng := p.CityHall.Lng + p.jitter(cityHallJitter)
		post.Lat, post.Lng = &lat, &lng
		post.HasRegion = false
		post.CityName = strPtr(p.City)
		return post
	}

	lat, lng := *in.Lat, *in.Lng
	post.Lat, post.Lng = &lat, &lng
	post.HasRegion = true

	region, ok := p.Resolver.Resolve(orb.Point{lng, lat})
	if !ok {
		post.CityName = strPtr(p.City)
		return post
	}
	city := region.City
	if city == "" {
		city = p.City
	}
	post.CityName = strPtr(city)
	post.WardName = strPtr(region.Ward)
	post.ChomeName = strPtr(region.Neighborhood)
	return post
}
