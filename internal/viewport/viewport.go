// Package viewport decides which boundary tier a map view shows and swaps
// overlays when the zoom level settles.
package viewport

import (
	"sync"

	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/okayama-voice/opinion-map/internal/regions"
)

// Zoom range of the tile provider.
const (
	MinZoom     = 0
	MaxZoom     = 19
	DefaultZoom = 11
)

// Tier thresholds: the city tier up to CityMaxZoom, the ward tier up to
// WardMaxZoom, neighborhoods beyond.
const (
	CityMaxZoom = 11
	WardMaxZoom = 13
)

// TierFor maps a zoom level to the tier that should be visible.
func TierFor(zoom int) regions.Tier {
	switch {
	case zoom <= CityMaxZoom:
		return regions.TierCity
	case zoom <= WardMaxZoom:
		return regions.TierWard
	default:
		return regions.TierNeighborhood
	}
}

// Clamp limits zoom to the supported range.
func Clamp(zoom int) int {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

// Surface renders tier overlays. Attach and Detach are called with the
// session lock held and must not call back into the session.
type Surface interface {
	Attach(t regions.Tier) error
	Detach(t regions.Tier) error
}

// Session is the viewport state of one map view. Exactly one tier overlay is
// attached at any time.
type Session struct {
	mu      sync.Mutex
	surface Surface
	zoom    int
	current regions.Tier
}

// NewSession attaches the tier for the initial zoom.
func NewSession(s Surface, zoom int) (*Session, error) {
	zoom = Clamp(zoom)
	sess := &Session{surface: s, zoom: zoom, current: TierFor(zoom)}
	if err := s.Attach(sess.current); err != nil {
		return nil, err
	}
	return sess, nil
}

// ZoomEnd handles a settled zoom change. When the tier is unchanged nothing
// is touched; otherwise the current overlay is detached and the new one
// attached before any other notification is processed. It reports the
// visible tier and whether a swap happened.
func (s *Session) ZoomEnd(zoom int) (regions.Tier, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.zoom = Clamp(zoom)
	next := TierFor(s.zoom)
	if next == s.current {
		return s.current, false, nil
	}

	if err := s.surface.Detach(s.current); err != nil {
		return s.current, false, err
	}
	if err := s.surface.Attach(next); err != nil {
		// Put the previous overlay back so the view never ends up empty.
		_ = s.surface.Attach(s.current)
		return s.current, false, err
	}
	s.current = next
	metrics.TierSwapsTotal.WithLabelValues(next.String()).Inc()
	return next, true, nil
}

// Current returns the attached tier.
func (s *Session) Current() regions.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Zoom returns the last clamped zoom level.
func (s *Session) Zoom() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.zoom
}
