// Package regions holds the three boundary tiers of a municipality and
// resolves coordinates to the region label attached to posts.
package regions

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/okayama-voice/opinion-map/internal/geo"
	"github.com/okayama-voice/opinion-map/internal/logger"
	"github.com/okayama-voice/opinion-map/internal/metrics"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"
)

// TierSpec tells Load where a tier's dataset lives and how to name and draw it.
type TierSpec struct {
	Tier      Tier
	Source    Source
	NameField string
	Color     string
}

// LoadError reports the failure of a single tier.
type LoadError struct {
	Tier Tier
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load %s tier: %v", e.Tier, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Index holds the filtered features of each tier in load order.
type Index struct {
	municipality Municipality
	wardRe       *regexp.Regexp

	mu       sync.RWMutex
	tiers    map[Tier][]Feature
	colors   map[Tier]string
	loadErrs map[Tier]error
}

// NewIndex returns an index with every tier empty.
func NewIndex(m Municipality) *Index {
	return &Index{
		municipality: m,
		wardRe:       m.wardPattern(),
		tiers:        make(map[Tier][]Feature),
		colors:       make(map[Tier]string),
		loadErrs:     make(map[Tier]error),
	}
}

// Municipality returns the municipality the index is filtered to.
func (idx *Index) Municipality() Municipality { return idx.municipality }

type tierResult struct {
	spec     TierSpec
	features []Feature
	err      error
}

// Load fetches every tier concurrently and installs whatever succeeded. Each
// failed tier is left empty and reported as a *LoadError in the joined error;
// it never prevents the other tiers from loading.
func (idx *Index) Load(ctx context.Context, specs []TierSpec) error {
	log := logger.For("regions")
	results := make([]tierResult, len(specs))

	var g errgroup.Group
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			start := time.Now()
			features, err := idx.loadTier(ctx, spec)
			results[i] = tierResult{spec: spec, features: features, err: err}
			if err != nil {
				log.Error("tier load failed", "tier", spec.Tier, "source", spec.Source, "err", err)
				return nil
			}
			log.Info("tier loaded", "tier", spec.Tier, "source", spec.Source,
				"features", len(features), "duration_ms", time.Since(start).Milliseconds())
			return nil
		})
	}
	_ = g.Wait()

	var errs []error
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, r := range results {
		idx.colors[r.spec.Tier] = r.spec.Color
		if r.err != nil {
			idx.tiers[r.spec.Tier] = nil
			idx.loadErrs[r.spec.Tier] = r.err
			metrics.TierLoadFailuresTotal.WithLabelValues(r.spec.Tier.String()).Inc()
			errs = append(errs, &LoadError{Tier: r.spec.Tier, Err: r.err})
			continue
		}
		idx.tiers[r.spec.Tier] = r.features
		delete(idx.loadErrs, r.spec.Tier)
		metrics.TierFeaturesLoaded.WithLabelValues(r.spec.Tier.String()).Set(float64(len(r.features)))
	}
	return errors.Join(errs...)
}

func (idx *Index) loadTier(ctx context.Context, spec TierSpec) ([]Feature, error) {
	if spec.Source == nil {
		return nil, fmt.Errorf("%w: no source configured", ErrLoadFailed)
	}
	data, err := spec.Source.Fetch(ctx)
	if err != nil {
		return nil, err
	}

	decoded, skipped, err := decodeFeatures(data)
	if err != nil {
		return nil, err
	}
	if skipped > 0 {
		logger.For("regions").Warn("skipped malformed features", "tier", spec.Tier, "skipped", skipped)
	}

	kept := make([]Feature, 0, len(decoded))
	for _, f := range decoded {
		if !idx.municipality.Keeps(spec.Tier, f) {
			continue
		}
		f.Name = displayName(f, spec.NameField)
		kept = append(kept, f)
	}
	return kept, nil
}

// Install replaces a tier's features directly, applying the same municipality
// filter and naming as Load. It is used by tools and tests that already hold
// decoded features.
func (idx *Index) Install(t Tier, nameField, color string, features []Feature) int {
	kept := make([]Feature, 0, len(features))
	for _, f := range features {
		if !idx.municipality.Keeps(t, f) {
			continue
		}
		if f.Geometry != nil && f.Bound == (orb.Bound{}) {
			f.Bound = f.Geometry.Bound()
		}
		f.Name = displayName(f, nameField)
		kept = append(kept, f)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.tiers[t] = kept
	idx.colors[t] = color
	delete(idx.loadErrs, t)
	return len(kept)
}

// Resolve finds the neighborhood containing pt. Only the neighborhood tier is
// searched, in load order, and the first containing feature wins even when
// boundaries overlap. The boolean is false when no feature contains pt.
func (idx *Index) Resolve(pt orb.Point) (Region, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	for _, f := range idx.tiers[TierNeighborhood] {
		if !geo.PointInRegion(pt, f.Geometry) {
			continue
		}
		metrics.RegionResolutionsTotal.WithLabelValues("resolved").Inc()
		return idx.regionOf(f), true
	}
	metrics.RegionResolutionsTotal.WithLabelValues("unresolved").Inc()
	return Region{}, false
}

func (idx *Index) regionOf(f Feature) Region {
	city := f.Prop(AttrCityName)
	if city == "" {
		city = f.Prop(AttrN03City)
	}
	if city == "" {
		city = idx.municipality.Name
	}

	ward := f.Prop(AttrN03Ward)
	if ward == "" {
		if m := idx.wardRe.FindStringSubmatch(f.Prop(AttrCityName)); m != nil {
			ward = m[1]
		}
	}

	neighborhood := f.Prop(AttrAreaName)
	if neighborhood == "" {
		neighborhood = f.Prop(AttrN03Area)
	}

	return Region{City: city, Ward: ward, Neighborhood: neighborhood}
}

// Features returns the loaded features of a tier. The slice must not be modified.
func (idx *Index) Features(t Tier) []Feature {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tiers[t]
}

// Counts returns the number of loaded features per tier.
func (idx *Index) Counts() map[Tier]int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make(map[Tier]int, len(AllTiers))
	for _, t := range AllTiers {
		out[t] = len(idx.tiers[t])
	}
	return out
}

// TierStatus summarises one tier for the status endpoint.
type TierStatus struct {
	Tier     Tier   `json:"tier"`
	Features int    `json:"features"`
	Color    string `json:"color"`
	Error    string `json:"error,omitempty"`
}

// Status reports feature counts and load errors for every tier.
func (idx *Index) Status() []TierStatus {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]TierStatus, 0, len(AllTiers))
	for _, t := range AllTiers {
		st := TierStatus{Tier: t, Features: len(idx.tiers[t]), Color: idx.colors[t]}
		if err := idx.loadErrs[t]; err != nil {
			st.Error = err.Error()
		}
		out = append(out, st)
	}
	return out
}

// highlightStyle is applied by the rendering surface on hover.
var highlightStyle = map[string]interface{}{"color": "#ff6600", "weight": 2.5, "fillOpacity": 0.3}

// FeatureCollection builds the overlay document of a tier. Each feature
// carries its display name, tier, default and highlight styles, and a label
// anchor at its centroid.
func (idx *Index) FeatureCollection(t Tier) *geojson.FeatureCollection {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	color := idx.colors[t]
	fc := geojson.NewFeatureCollection()
	for _, f := range idx.tiers[t] {
		if f.Geometry == nil {
			continue
		}
		label := geo.Centroid(f.Geometry)
		gf := geojson.NewFeature(f.Geometry)
		gf.Properties["name"] = f.Name
		gf.Properties["tier"] = t.String()
		gf.Properties["color"] = color
		gf.Properties["style"] = map[string]interface{}{"color": color, "weight": 0.8, "fillOpacity": 0.12}
		gf.Properties["highlight"] = highlightStyle
		gf.Properties["label_lng"] = label.Lon()
		gf.Properties["label_lat"] = label.Lat()
		fc.Append(gf)
	}
	return fc
}
