package regions

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/paulmach/orb/geojson"
)

type rawCollection struct {
	Type     string            `json:"type"`
	Features []json.RawMessage `json:"features"`
}

// decodeFeatures decodes a FeatureCollection one feature at a time so that a
// feature with a broken geometry is skipped instead of failing the tier.
// It returns the decoded features and the number skipped.
func decodeFeatures(data []byte) ([]Feature, int, error) {
	var fc rawCollection
	if err := json.Unmarshal(data, &fc); err != nil {
		return nil, 0, fmt.Errorf("%w: decode feature collection: %w", ErrLoadFailed, err)
	}
	if !strings.EqualFold(fc.Type, "FeatureCollection") {
		return nil, 0, fmt.Errorf("%w: expected FeatureCollection, got %q", ErrLoadFailed, fc.Type)
	}

	features := make([]Feature, 0, len(fc.Features))
	skipped := 0
	for _, raw := range fc.Features {
		gf, err := geojson.UnmarshalFeature(raw)
		if err != nil {
			skipped++
			continue
		}
		f := Feature{
			Geometry:   gf.Geometry,
			Properties: flattenProperties(gf.Properties),
		}
		if gf.Geometry != nil {
			f.Bound = gf.Geometry.Bound()
		}
		features = append(features, f)
	}
	return features, skipped, nil
}
